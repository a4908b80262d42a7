package app

import (
	"io"
	"testing"

	"buckaneers/server/internal/telemetry"
	"buckaneers/server/internal/world"
)

func envFrom(values map[string]string) func(string) string {
	return func(name string) string { return values[name] }
}

func TestApplyEnv(t *testing.T) {
	var warnings []string
	logger := telemetry.LoggerFunc(func(format string, args ...any) {
		warnings = append(warnings, format)
	})

	cfg := ApplyEnv(DefaultConfig(), envFrom(map[string]string{
		"ADDR":                ":9000",
		"WORLD_SEED":          "12",
		"WOLF_COUNT":          "7",
		"DEATH_POLICY":        "remove",
		"MAILBOX_ORDER":       "fifo",
		"MAILBOX_CAPACITY":    "not-a-number",
		"STATE_FILE":          "-",
		"SAVE_INTERVAL_TICKS": "120",
		"ALLOW_DEV_RESET":     "true",
		"LOG_MIN_SEVERITY":    "debug",
		"LOG_SINKS":           "console,json",
		"ENABLE_PPROF_TRACE":  "1",
	}), logger)

	if cfg.Addr != ":9000" || cfg.Hub.World.Seed != 12 || cfg.Hub.World.WolfCount != 7 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Hub.World.DeathPolicy != world.DeathRemove || cfg.Hub.World.MailboxOrder != world.MailboxFIFO {
		t.Fatalf("policies not applied: %+v", cfg.Hub.World)
	}
	if cfg.Hub.World.MailboxCapacity != DefaultConfig().Hub.World.MailboxCapacity {
		t.Fatalf("invalid capacity should be ignored, got %d", cfg.Hub.World.MailboxCapacity)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}
	if cfg.StateFile != "" {
		t.Fatalf("STATE_FILE=- should disable persistence, got %q", cfg.StateFile)
	}
	if cfg.Hub.SaveIntervalTicks != 120 || !cfg.Hub.World.AllowDevReset || !cfg.Observability.EnablePprofTrace {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.LogMinSeverity != "debug" {
		t.Fatalf("log severity = %q", cfg.LogMinSeverity)
	}
	if len(cfg.LogSinks) != 2 || cfg.LogSinks[1] != "json" {
		t.Fatalf("log sinks = %v", cfg.LogSinks)
	}
}

func TestApplyEnvKeepsDefaults(t *testing.T) {
	cfg := ApplyEnv(DefaultConfig(), envFrom(nil), nil)
	want := DefaultConfig()
	if cfg.Addr != want.Addr || cfg.StateFile != want.StateFile || cfg.Hub != want.Hub {
		t.Fatalf("defaults changed: %+v", cfg)
	}
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		check   func(t *testing.T, cfg Config)
		wantErr bool
	}{
		{
			name: "overrides",
			args: []string{"-addr", ":7000", "-wolves", "2", "-death-policy", "remove", "-state", "", "-pprof"},
			check: func(t *testing.T, cfg Config) {
				if cfg.Addr != ":7000" || cfg.Hub.World.WolfCount != 2 || cfg.Hub.World.DeathPolicy != world.DeathRemove {
					t.Fatalf("unexpected config: %+v", cfg)
				}
				if cfg.StateFile != "" || !cfg.Observability.EnablePprofTrace {
					t.Fatalf("unexpected config: %+v", cfg)
				}
			},
		},
		{
			name: "no flags",
			args: nil,
			check: func(t *testing.T, cfg Config) {
				if cfg.Hub != DefaultConfig().Hub {
					t.Fatalf("defaults changed: %+v", cfg.Hub)
				}
			},
		},
		{name: "tick rate is fixed", args: []string{"-tick-rate", "30"}, wantErr: true},
		{name: "unknown flag", args: []string{"-lava"}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := ParseFlags(DefaultConfig(), tc.args, io.Discard)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFlags returned error: %v", err)
			}
			tc.check(t, cfg)
		})
	}
}

func TestNewRouterSinks(t *testing.T) {
	tests := []struct {
		name        string
		sinks       []string
		wantConsole bool
		wantJSON    bool
		wantErr     bool
	}{
		{name: "all sinks", wantConsole: true, wantJSON: true},
		{name: "json only", sinks: []string{"json"}, wantJSON: true},
		{name: "unknown sink", sinks: []string{"syslog"}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.LogJSONPath = t.TempDir() + "/logs/events.jsonl"
			cfg.LogSinks = tc.sinks
			router, err := newRouter(cfg)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("newRouter returned error: %v", err)
			}
			if (router.Sink("console") != nil) != tc.wantConsole || (router.Sink("json") != nil) != tc.wantJSON {
				t.Fatalf("console=%v json=%v", router.Sink("console") != nil, router.Sink("json") != nil)
			}
			if err := router.Close(t.Context()); err != nil {
				t.Fatalf("Close returned error: %v", err)
			}
		})
	}
}
