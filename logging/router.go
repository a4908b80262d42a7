package logging

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

type NamedSink struct {
	Name string
	Sink Sink
}

const (
	routerEventsMetricKey  = "logging_events_total"
	routerDroppedMetricKey = "logging_dropped_total"

	defaultBufferSize = 512
	minSinkBuffer     = 32
	maxSinkBuffer     = 1024
)

// Router stamps events and fans them out to sink workers through a bounded
// queue. Publish never blocks; events that do not fit are counted and
// dropped.
type Router struct {
	cfg      Config
	metrics  *Metrics
	queue    chan Event
	workers  []*sinkWorker
	clock    Clock
	fallback *log.Logger
	fields   map[string]any
	entropy  *ulid.MonotonicEntropy

	stop   chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool

	eventsTotal  atomic.Uint64
	droppedTotal atomic.Uint64
	nextDropLog  atomic.Int64
}

type RouterStats struct {
	EventsTotal  uint64
	DroppedTotal uint64
}

// NewRouter starts a router over the sinks cfg selects. Every selected name
// must be among namedSinks.
func NewRouter(clock Clock, cfg Config, namedSinks []NamedSink) (*Router, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = SystemClock{}
	}
	provided := make(map[string]bool, len(namedSinks))
	for _, named := range namedSinks {
		if named.Name == "" {
			return nil, fmt.Errorf("logging: sink without a name")
		}
		provided[named.Name] = true
	}
	for _, name := range cfg.Sinks {
		if !provided[name] {
			return nil, fmt.Errorf("logging: sink %q selected but not provided", name)
		}
	}

	bufferSize := cfg.BufferSize
	if bufferSize == 0 {
		bufferSize = defaultBufferSize
	}
	r := &Router{
		cfg:      cfg,
		metrics:  &Metrics{},
		queue:    make(chan Event, bufferSize),
		clock:    clock,
		fallback: log.New(os.Stderr, "[logging] ", log.LstdFlags),
		fields:   cfg.CloneFields(),
		entropy:  ulid.Monotonic(rand.Reader, 0),
		stop:     make(chan struct{}),
	}

	sinkBuffer := min(max(bufferSize, minSinkBuffer), maxSinkBuffer)
	for _, named := range namedSinks {
		if named.Sink == nil || !cfg.Routes(named.Name) {
			continue
		}
		r.workers = append(r.workers, newSinkWorker(named.Name, named.Sink, sinkBuffer, r.metrics, r.fallback))
	}

	r.wg.Add(1 + len(r.workers))
	go r.dispatch()
	for _, worker := range r.workers {
		go func() {
			defer r.wg.Done()
			worker.run()
		}()
	}
	return r, nil
}

func (r *Router) dispatch() {
	defer r.wg.Done()
	defer func() {
		for _, worker := range r.workers {
			close(worker.events)
		}
	}()
	for {
		select {
		case <-r.stop:
			for {
				select {
				case event := <-r.queue:
					r.forward(event)
				default:
					return
				}
			}
		case event := <-r.queue:
			r.forward(event)
		}
	}
}

func (r *Router) forward(event Event) {
	if event.Severity < r.cfg.MinimumSeverity {
		return
	}
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	if event.TraceID == "" {
		event.TraceID = ulid.MustNew(ulid.Timestamp(event.Time), r.entropy).String()
	}
	if len(r.fields) > 0 {
		event = cloneForFields(event)
		if event.Extra == nil {
			event.Extra = make(map[string]any, len(r.fields))
		}
		for k, v := range r.fields {
			if _, exists := event.Extra[k]; !exists {
				event.Extra[k] = v
			}
		}
	}
	r.eventsTotal.Add(1)
	r.metrics.TelemetryAdd(routerEventsMetricKey, 1)
	r.metrics.TelemetryAdd(categoryMetricKey(event.Type), 1)
	for _, worker := range r.workers {
		worker.enqueue(event)
	}
}

// categoryMetricKey counts events per family, "combat.capture" landing in
// logging_events_combat_total.
func categoryMetricKey(typ EventType) string {
	category, _, _ := strings.Cut(string(typ), ".")
	return "logging_events_" + category + "_total"
}

func (r *Router) Publish(ctx context.Context, event Event) {
	if event.Type == "" || r.closed.Load() {
		return
	}
	select {
	case r.queue <- event:
	default:
		r.drop(event)
	}
}

func (r *Router) drop(event Event) {
	r.droppedTotal.Add(1)
	r.metrics.TelemetryAdd(routerDroppedMetricKey, 1)
	interval := r.cfg.DropWarnInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	now := time.Now().UnixNano()
	next := r.nextDropLog.Load()
	if now >= next && r.nextDropLog.CompareAndSwap(next, now+interval.Nanoseconds()) {
		r.fallback.Printf("dropping event type=%s tick=%d", event.Type, event.Tick)
	}
}

// Close drains the queue into the sinks and closes them. A second Close
// waits for ctx and returns its error.
func (r *Router) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		<-ctx.Done()
		return ctx.Err()
	}
	close(r.stop)
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	var firstErr error
	for _, worker := range r.workers {
		if err := worker.sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Router) Stats() RouterStats {
	return RouterStats{
		EventsTotal:  r.eventsTotal.Load(),
		DroppedTotal: r.droppedTotal.Load(),
	}
}

// Metrics exposes the counter set shared with the rest of the server.
func (r *Router) Metrics() *Metrics {
	if r == nil {
		return nil
	}
	return r.metrics
}

// Sink returns the routed sink called name, or nil.
func (r *Router) Sink(name string) Sink {
	for _, worker := range r.workers {
		if worker.name == name {
			return worker.sink
		}
	}
	return nil
}
