package logging

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"
)

type failingSink struct{ writes int }

func (s *failingSink) Write(Event) error {
	s.writes++
	return errors.New("disk full")
}

func (s *failingSink) Close(context.Context) error { return nil }

func TestSinkWorkerCountsFailures(t *testing.T) {
	metrics := &Metrics{}
	sink := &failingSink{}
	w := newSinkWorker("json", sink, 4, metrics, log.New(io.Discard, "", 0))
	w.enqueue(Event{Type: "combat.capture"})
	close(w.events)
	w.run()

	if sink.writes != 1 || w.failures != 1 {
		t.Fatalf("writes=%d failures=%d", sink.writes, w.failures)
	}
	if got := metrics.Snapshot()["logging_sink_json_failed_total"]; got != 1 {
		t.Fatalf("failed counter = %d", got)
	}
}

func TestSinkWorkerDropsWhenFull(t *testing.T) {
	metrics := &Metrics{}
	w := newSinkWorker("console", &failingSink{}, 1, metrics, log.New(io.Discard, "", 0))
	w.enqueue(Event{Type: "a"})
	w.enqueue(Event{Type: "b"})
	if got := metrics.Snapshot()["logging_sink_console_dropped_total"]; got != 1 {
		t.Fatalf("dropped counter = %d", got)
	}
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{5, 32 * time.Second},
		{9, 32 * time.Second},
	}
	for _, tc := range tests {
		if got := retryDelay(tc.failures); got != tc.want {
			t.Fatalf("retryDelay(%d) = %s, want %s", tc.failures, got, tc.want)
		}
	}
}
