package sim

import (
	"buckaneers/server/internal/telemetry"
	"buckaneers/server/logging"
)

// Deps carries shared infrastructure dependencies required by the simulation engine.
type Deps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	Clock     logging.Clock
	Proximity Proximity
	// OnReset runs after a dev_reset message rebuilt the world.
	OnReset func()
}

func (d Deps) withDefaults() Deps {
	d.Logger = telemetry.OrNop(d.Logger)
	d.Metrics = telemetry.OrDiscard(d.Metrics)
	if d.Publisher == nil {
		d.Publisher = logging.NopPublisher()
	}
	if d.Clock == nil {
		d.Clock = logging.SystemClock{}
	}
	if d.Proximity == nil {
		d.Proximity = LinearScan{}
	}
	return d
}
