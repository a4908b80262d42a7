package sinks

import (
	"context"
	"slices"
	"sync"

	"buckaneers/server/logging"
)

// MemorySink keeps every event it sees. Tests plug it in as a router sink or
// straight in as a publisher.
type MemorySink struct {
	mu     sync.Mutex
	events []logging.Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.Targets = slices.Clone(event.Targets)
	if event.Extra != nil {
		extra := make(map[string]any, len(event.Extra))
		for k, v := range event.Extra {
			extra[k] = v
		}
		event.Extra = extra
	}
	s.events = append(s.events, event)
	return nil
}

// Publish records the event without routing, so the sink can stand in for a
// router.
func (s *MemorySink) Publish(_ context.Context, event logging.Event) {
	if event.Type == "" {
		return
	}
	s.Write(event)
}

func (s *MemorySink) Events() []logging.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

// OfType returns the recorded events of one type in publish order.
func (s *MemorySink) OfType(typ logging.EventType) []logging.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []logging.Event
	for _, e := range s.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// Count reports how many events of one type were recorded.
func (s *MemorySink) Count(typ logging.EventType) int {
	return len(s.OfType(typ))
}

func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

func (s *MemorySink) Close(context.Context) error {
	return nil
}
