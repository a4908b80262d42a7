package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

type packageInfo struct {
	ImportPath string
	Imports    []string
}

// corePackages must stay transport-agnostic: the hub and the websocket
// layer sit above them, never below.
var corePackages = []string{
	"./internal/world/...",
	"./internal/sim/...",
	"./internal/terrain/...",
	"./internal/vmath/...",
}

var forbiddenPrefixes = []string{
	"buckaneers/server/internal/hub",
	"buckaneers/server/internal/net/ws",
	"buckaneers/server/internal/app",
	"github.com/gorilla/websocket",
	"net/http",
}

func violations(pkgs []packageInfo) []string {
	var found []string
	for _, pkg := range pkgs {
		for _, imp := range pkg.Imports {
			for _, prefix := range forbiddenPrefixes {
				if imp == prefix || strings.HasPrefix(imp, prefix+"/") {
					found = append(found, fmt.Sprintf("%s -> %s", pkg.ImportPath, imp))
				}
			}
		}
	}
	sort.Strings(found)
	return found
}

func decodePackages(r io.Reader) ([]packageInfo, error) {
	decoder := json.NewDecoder(r)
	var pkgs []packageInfo
	for {
		var pkg packageInfo
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				return pkgs, nil
			}
			return nil, err
		}
		pkgs = append(pkgs, pkg)
	}
}

func main() {
	args := append([]string{"list", "-json"}, corePackages...)
	cmd := exec.Command("go", args...)
	cmd.Env = os.Environ()
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Stderr.Write(exitErr.Stderr)
		}
		fmt.Fprintf(os.Stderr, "depscheck: failed to list packages: %v\n", err)
		os.Exit(1)
	}

	pkgs, err := decodePackages(bytes.NewReader(output))
	if err != nil {
		fmt.Fprintf(os.Stderr, "depscheck: failed to decode package info: %v\n", err)
		os.Exit(1)
	}

	if found := violations(pkgs); len(found) > 0 {
		fmt.Fprintln(os.Stderr, "depscheck: found forbidden imports:")
		for _, violation := range found {
			fmt.Fprintf(os.Stderr, "  %s\n", violation)
		}
		os.Exit(1)
	}
}
