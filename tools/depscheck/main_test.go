package main

import (
	"strings"
	"testing"
)

func TestViolations(t *testing.T) {
	input := `{"ImportPath":"buckaneers/server/internal/sim","Imports":["buckaneers/server/internal/world","net/http/pprof"]}
{"ImportPath":"buckaneers/server/internal/world","Imports":["buckaneers/server/internal/hubble","github.com/gorilla/websocket"]}`
	pkgs, err := decodePackages(strings.NewReader(input))
	if err != nil {
		t.Fatalf("decodePackages returned error: %v", err)
	}
	got := violations(pkgs)
	want := []string{
		"buckaneers/server/internal/sim -> net/http/pprof",
		"buckaneers/server/internal/world -> github.com/gorilla/websocket",
	}
	if len(got) != len(want) {
		t.Fatalf("violations = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("violations = %v, want %v", got, want)
		}
	}
}
