package sim

import (
	"context"
	"time"

	"buckaneers/server/internal/world"
)

const (
	ticksMetricKey        = "sim_ticks_total"
	tickDurationMetricKey = "sim_tick_duration_us"
)

// StepResult summarises one authoritative tick.
type StepResult struct {
	// Tick is the counter value after the step.
	Tick          uint64        `json:"tick"`
	Messages      int           `json:"messages"`
	Ignored       int           `json:"ignored"`
	Unspawned     int           `json:"unspawned"`
	Snapshots     int           `json:"snapshots"`
	SnapshotBytes int           `json:"snapshotBytes"`
	Reset         bool          `json:"reset"`
	Duration      time.Duration `json:"durationNanos"`
}

// Engine advances a world one tick at a time. It is not safe for concurrent
// use; callers serialise Step with every other access to the world.
type Engine struct {
	world *world.World
	deps  Deps
}

func NewEngine(w *world.World, deps Deps) *Engine {
	return &Engine{world: w, deps: deps.withDefaults()}
}

// World exposes the world the engine mutates.
func (e *Engine) World() *world.World {
	return e.world
}

// Deps returns the injected dependencies.
func (e *Engine) Deps() Deps {
	return e.deps
}

// Step runs one tick: inbound messages, lazy spawns, player movement, attack
// streaks and snapshots, then the tick counter, waffle slots, spears and
// wolves. A dev_reset ends the tick right after the inbound pass.
func (e *Engine) Step() StepResult {
	start := e.deps.Clock.Now()
	ctx := context.Background()
	var result StepResult

	if e.applyInbound(ctx, &result) {
		result.Tick = e.world.AdvanceTick()
		result.Reset = true
		e.finish(start, &result)
		return result
	}

	e.spawnPlayers()
	e.movePlayers()
	e.resolveAttacks(ctx)
	e.publishSnapshots(&result)

	result.Tick = e.world.AdvanceTick()

	e.assignWaffles()
	e.advanceSpears(ctx)
	e.advanceWolves(ctx)

	e.finish(start, &result)
	return result
}

func (e *Engine) finish(start time.Time, result *StepResult) {
	result.Duration = e.deps.Clock.Now().Sub(start)
	e.deps.Metrics.Add(ticksMetricKey, 1)
	e.deps.Metrics.Store(tickDurationMetricKey, uint64(result.Duration/time.Microsecond))
}

func (e *Engine) spawnPlayers() {
	for _, id := range e.world.Clients() {
		e.world.SpawnPlayer(id)
	}
}
