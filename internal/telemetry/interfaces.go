package telemetry

import (
	"log"

	"buckaneers/server/logging"
)

// Logger is the printf-style operator log shared by the hub, the transports
// and the simulation driver.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts functions into the Logger interface.
type LoggerFunc func(format string, args ...any)

func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return LoggerFunc(nil)
}

// OrNop returns logger, or Nop when logger is nil.
func OrNop(logger Logger) Logger {
	if logger == nil {
		return Nop()
	}
	return logger
}

// WrapLogger adapts a standard library logger. A nil logger discards.
func WrapLogger(logger *log.Logger) Logger {
	if logger == nil {
		return Nop()
	}
	return LoggerFunc(logger.Printf)
}

// Prefixed tags every line with the component name, as in "[ws] ...".
func Prefixed(logger Logger, component string) Logger {
	logger = OrNop(logger)
	prefix := "[" + component + "] "
	return LoggerFunc(func(format string, args ...any) {
		logger.Printf(prefix+format, args...)
	})
}

// Metrics is the counter and gauge sink the simulation reports into. Keys
// ending in _total are counters fed through Add; the rest are gauges.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

// Discard is a Metrics that drops every update.
var Discard Metrics = discard{}

type discard struct{}

func (discard) Add(string, uint64)   {}
func (discard) Store(string, uint64) {}

// OrDiscard returns metrics, or Discard when metrics is nil.
func OrDiscard(metrics Metrics) Metrics {
	if metrics == nil {
		return Discard
	}
	return metrics
}

// WrapMetrics reports into the router's metric set so /diagnostics shows
// simulation counters next to the logging ones.
func WrapMetrics(metrics *logging.Metrics) Metrics {
	if metrics == nil {
		return Discard
	}
	return routerMetrics{metrics: metrics}
}

type routerMetrics struct {
	metrics *logging.Metrics
}

func (m routerMetrics) Add(key string, delta uint64) {
	m.metrics.TelemetryAdd(key, delta)
}

func (m routerMetrics) Store(key string, value uint64) {
	m.metrics.TelemetryStore(key, value)
}
