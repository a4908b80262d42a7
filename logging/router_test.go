package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"buckaneers/server/logging"
	"buckaneers/server/logging/sinks"
)

func fixedClock() logging.Clock {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return logging.ClockFunc(func() time.Time { return at })
}

func TestRouterDeliversToEverySink(t *testing.T) {
	memory := sinks.NewMemorySink()
	var buf bytes.Buffer
	jsonSink := sinks.NewJSON(&buf, 0)
	cfg := logging.DefaultConfig()
	cfg.Fields = map[string]any{"server": "test"}

	router, err := logging.NewRouter(fixedClock(), cfg, []logging.NamedSink{
		{Name: "memory", Sink: memory},
		{Name: "json", Sink: jsonSink},
	})
	if err != nil {
		t.Fatalf("NewRouter returned error: %v", err)
	}
	router.Publish(context.Background(), logging.Event{Type: "test.one", Tick: 7, Severity: logging.SeverityInfo})
	router.Publish(context.Background(), logging.Event{Type: "test.debug", Severity: logging.SeverityDebug})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := router.Close(ctx); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	events := memory.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event above the minimum severity, got %d", len(events))
	}
	got := events[0]
	if got.Type != "test.one" || got.Tick != 7 || got.Extra["server"] != "test" {
		t.Fatalf("unexpected event: %+v", got)
	}
	if got.TraceID == "" || got.Time.IsZero() {
		t.Fatalf("router should stamp time and trace id: %+v", got)
	}
	if router.Stats().EventsTotal != 1 {
		t.Fatalf("stats = %+v", router.Stats())
	}
	if router.Metrics().Snapshot()["logging_events_total"] != 1 {
		t.Fatalf("metrics = %v", router.Metrics().Snapshot())
	}

	var wire map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &wire); err != nil {
		t.Fatalf("json sink wrote %q: %v", buf.String(), err)
	}
	if wire["type"] != "test.one" || wire["severity"] != "info" {
		t.Fatalf("unexpected json line: %v", wire)
	}
}

func TestRouterRejectsUnnamedSink(t *testing.T) {
	if _, err := logging.NewRouter(nil, logging.DefaultConfig(), []logging.NamedSink{{Sink: sinks.NewMemorySink()}}); err == nil {
		t.Fatalf("expected error for unnamed sink")
	}
}

func TestRouterIgnoresPublishAfterClose(t *testing.T) {
	memory := sinks.NewMemorySink()
	router, err := logging.NewRouter(fixedClock(), logging.DefaultConfig(), []logging.NamedSink{{Name: "memory", Sink: memory}})
	if err != nil {
		t.Fatalf("NewRouter returned error: %v", err)
	}
	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	router.Publish(context.Background(), logging.Event{Type: "late", Severity: logging.SeverityError})
	if len(memory.Events()) != 0 {
		t.Fatalf("closed router delivered an event")
	}
}

func TestParseSeverity(t *testing.T) {
	tests := map[string]logging.Severity{
		"debug":   logging.SeverityDebug,
		"warning": logging.SeverityWarn,
		"error":   logging.SeverityError,
		"":        logging.SeverityInfo,
		"loud":    logging.SeverityInfo,
	}
	for input, want := range tests {
		if got := logging.ParseSeverity(input); got != want {
			t.Fatalf("ParseSeverity(%q) = %s, want %s", input, got, want)
		}
	}
}

func TestWithFieldsKeepsEventExtras(t *testing.T) {
	var seen logging.Event
	next := logging.PublisherFunc(func(_ context.Context, e logging.Event) { seen = e })
	pub := logging.WithFields(next, map[string]any{"a": 1, "b": 2})
	pub.Publish(context.Background(), logging.Event{Type: "x", Extra: map[string]any{"a": "own"}})
	if seen.Extra["a"] != "own" || seen.Extra["b"] != 2 {
		t.Fatalf("extras = %v", seen.Extra)
	}
}

func TestRouterRoutesSelectedSinks(t *testing.T) {
	memory := sinks.NewMemorySink()
	skipped := sinks.NewMemorySink()
	cfg := logging.DefaultConfig()
	cfg.Sinks = []string{"memory"}

	router, err := logging.NewRouter(fixedClock(), cfg, []logging.NamedSink{
		{Name: "memory", Sink: memory},
		{Name: "skipped", Sink: skipped},
	})
	if err != nil {
		t.Fatalf("NewRouter returned error: %v", err)
	}
	if router.Sink("skipped") != nil {
		t.Fatalf("unselected sink should not be routed")
	}
	ctx := context.Background()
	router.Publish(ctx, logging.Event{Type: "combat.capture", Severity: logging.SeverityInfo})
	router.Publish(ctx, logging.Event{Type: "combat.release", Severity: logging.SeverityInfo})
	router.Publish(ctx, logging.Event{Type: "lifecycle.world_reset", Severity: logging.SeverityInfo})
	if err := router.Close(ctx); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	if memory.Count("combat.capture") != 1 || len(memory.Events()) != 3 {
		t.Fatalf("memory sink got %+v", memory.Events())
	}
	if len(skipped.Events()) != 0 {
		t.Fatalf("unselected sink received events")
	}
	metrics := router.Metrics().Snapshot()
	want := map[string]uint64{
		"logging_events_combat_total":       2,
		"logging_events_lifecycle_total":    1,
		"logging_sink_memory_written_total": 3,
	}
	for key, value := range want {
		if metrics[key] != value {
			t.Fatalf("%s = %d, want %d (all: %v)", key, metrics[key], value, metrics)
		}
	}
}

func TestRouterRejectsBadConfig(t *testing.T) {
	memory := []logging.NamedSink{{Name: "memory", Sink: sinks.NewMemorySink()}}
	tests := []struct {
		name   string
		mutate func(*logging.Config)
	}{
		{name: "negative buffer", mutate: func(c *logging.Config) { c.BufferSize = -1 }},
		{name: "empty sink name", mutate: func(c *logging.Config) { c.Sinks = []string{""} }},
		{name: "duplicate sink", mutate: func(c *logging.Config) { c.Sinks = []string{"memory", "memory"} }},
		{name: "missing sink", mutate: func(c *logging.Config) { c.Sinks = []string{"json"} }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := logging.DefaultConfig()
			tc.mutate(&cfg)
			if _, err := logging.NewRouter(nil, cfg, memory); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}

func TestMemorySinkAsPublisher(t *testing.T) {
	memory := sinks.NewMemorySink()
	var pub logging.Publisher = memory
	extra := map[string]any{"seed": 4}
	pub.Publish(context.Background(), logging.Event{Type: "lifecycle.world_reset", Extra: extra})
	pub.Publish(context.Background(), logging.Event{})
	extra["seed"] = 5

	got := memory.OfType("lifecycle.world_reset")
	if len(got) != 1 || len(memory.Events()) != 1 {
		t.Fatalf("recorded %+v", memory.Events())
	}
	if got[0].Extra["seed"] != 4 {
		t.Fatalf("memory sink shares extras with the publisher")
	}
	memory.Reset()
	if memory.Count("lifecycle.world_reset") != 0 {
		t.Fatalf("Reset kept events")
	}
}
