package logging

import (
	"log"
	"time"
)

const maxBackoffShift = 5

// sinkWorker feeds one sink from its own buffer. After a failed write the
// next one waits out an exponential backoff capped at 32s; other sinks are
// not held up.
type sinkWorker struct {
	name     string
	sink     Sink
	events   chan Event
	metrics  *Metrics
	fallback *log.Logger
	failures int
}

func newSinkWorker(name string, sink Sink, buffer int, metrics *Metrics, fallback *log.Logger) *sinkWorker {
	return &sinkWorker{
		name:     name,
		sink:     sink,
		events:   make(chan Event, buffer),
		metrics:  metrics,
		fallback: fallback,
	}
}

func (w *sinkWorker) metricKey(what string) string {
	return "logging_sink_" + w.name + "_" + what + "_total"
}

func (w *sinkWorker) enqueue(event Event) {
	select {
	case w.events <- cloneForFields(event):
	default:
		w.metrics.TelemetryAdd(w.metricKey("dropped"), 1)
		w.fallback.Printf("sink %s backlog full dropping event type=%s", w.name, event.Type)
	}
}

func (w *sinkWorker) run() {
	var retryAt time.Time
	for event := range w.events {
		if wait := time.Until(retryAt); wait > 0 {
			time.Sleep(wait)
		}
		if err := w.sink.Write(event); err != nil {
			w.metrics.TelemetryAdd(w.metricKey("failed"), 1)
			w.failures++
			delay := retryDelay(w.failures)
			retryAt = time.Now().Add(delay)
			w.fallback.Printf("sink %s failed: %v (retry in %s)", w.name, err, delay)
			continue
		}
		w.failures = 0
		retryAt = time.Time{}
		w.metrics.TelemetryAdd(w.metricKey("written"), 1)
	}
}

func retryDelay(failures int) time.Duration {
	return time.Duration(1<<min(failures, maxBackoffShift)) * time.Second
}
