package logging

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// Sink names the server wires up.
const (
	SinkConsole = "console"
	SinkJSON    = "json"
)

// Config tunes the router. Sinks selects which named sinks handed to
// NewRouter receive events; an empty list selects all of them.
type Config struct {
	Sinks            []string
	BufferSize       int
	MinimumSeverity  Severity
	Fields           map[string]any
	JSON             JSONConfig
	Console          ConsoleConfig
	DropWarnInterval time.Duration
}

type JSONConfig struct {
	FilePath      string
	FlushInterval time.Duration
}

type ConsoleConfig struct {
	Microseconds bool
}

func DefaultConfig() Config {
	return Config{
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		Fields:           map[string]any{"service": "buckaneers"},
		DropWarnInterval: 5 * time.Second,
		JSON: JSONConfig{
			FlushInterval: 2 * time.Second,
		},
	}
}

// Validate rejects settings the router cannot honour.
func (c Config) Validate() error {
	if c.BufferSize < 0 {
		return fmt.Errorf("logging: negative buffer size %d", c.BufferSize)
	}
	for i, name := range c.Sinks {
		if name == "" {
			return fmt.Errorf("logging: empty sink name at position %d", i)
		}
		if slices.Contains(c.Sinks[:i], name) {
			return fmt.Errorf("logging: sink %q selected twice", name)
		}
	}
	return nil
}

// Routes reports whether events go to the sink called name.
func (c Config) Routes(name string) bool {
	return len(c.Sinks) == 0 || slices.Contains(c.Sinks, name)
}

func (c Config) CloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	return maps.Clone(c.Fields)
}
