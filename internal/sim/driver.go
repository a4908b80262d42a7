package sim

import (
	"context"
	"time"

	"buckaneers/server/logging/simulation"
)

const (
	backlogDropsMetricKey = "sim_backlog_drops_total"
	overrunsMetricKey     = "sim_tick_overruns_total"
)

// Ticker is anything that can run one authoritative tick.
type Ticker interface {
	Tick() StepResult
}

// DriverConfig tunes the fixed-rate driver.
type DriverConfig struct {
	TickRate        int
	BacklogCapTicks int
	// FrameRate is how often the driver wakes up to drain its accumulator.
	FrameRate int
}

// DriverHooks lets callers observe the driver.
type DriverHooks struct {
	AfterStep func(StepResult)
}

// Driver runs whole ticks out of accumulated wall-clock time so the
// simulation rate does not depend on how often it is woken up. When more
// than BacklogCapTicks are owed the backlog is discarded rather than burned
// through.
type Driver struct {
	target Ticker
	config DriverConfig
	hooks  DriverHooks
	deps   Deps

	step          time.Duration
	accumulator   time.Duration
	last          time.Time
	started       bool
	overrunStreak uint64
	lastTick      uint64
}

func NewDriver(target Ticker, cfg DriverConfig, hooks DriverHooks, deps Deps) *Driver {
	if cfg.TickRate <= 0 {
		cfg.TickRate = ticksPerSecond
	}
	if cfg.BacklogCapTicks <= 0 {
		cfg.BacklogCapTicks = BacklogCapTicks
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = cfg.TickRate
	}
	return &Driver{
		target: target,
		config: cfg,
		hooks:  hooks,
		deps:   deps.withDefaults(),
		step:   time.Second / time.Duration(cfg.TickRate),
	}
}

// Advance adds the time elapsed since the previous call to the accumulator
// and runs every whole tick it holds. It returns the number of ticks run.
func (d *Driver) Advance(now time.Time) int {
	if !d.started {
		d.started = true
		d.last = now
		return 0
	}
	elapsed := now.Sub(d.last)
	d.last = now
	if elapsed > 0 {
		d.accumulator += elapsed
	}

	owed := int(d.accumulator / d.step)
	if owed > d.config.BacklogCapTicks {
		d.deps.Metrics.Add(backlogDropsMetricKey, 1)
		simulation.BacklogDropped(context.Background(), d.deps.Publisher, d.lastTick, simulation.BacklogDroppedPayload{
			OwedTicks: owed,
			CapTicks:  d.config.BacklogCapTicks,
			StallMs:   elapsed.Milliseconds(),
		}, nil)
		d.deps.Logger.Printf("[driver] dropping backlog of %d ticks after %s stall", owed, elapsed)
		d.accumulator = 0
		return 0
	}

	ran := 0
	for d.accumulator >= d.step {
		d.accumulator -= d.step
		d.runOne()
		ran++
	}
	return ran
}

func (d *Driver) runOne() {
	result := d.target.Tick()
	d.lastTick = result.Tick
	if result.Duration > d.step {
		d.overrunStreak++
		d.deps.Metrics.Add(overrunsMetricKey, 1)
		simulation.TickBudgetOverrun(context.Background(), d.deps.Publisher, result.Tick, simulation.TickBudgetOverrunPayload{
			DurationMillis: result.Duration.Milliseconds(),
			BudgetMillis:   d.step.Milliseconds(),
			Ratio:          float64(result.Duration) / float64(d.step),
			Streak:         d.overrunStreak,
		}, nil)
	} else {
		d.overrunStreak = 0
	}
	if d.hooks.AfterStep != nil {
		d.hooks.AfterStep(result)
	}
}

// Run wakes up at the frame rate and advances the accumulator until ctx is
// cancelled.
func (d *Driver) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(d.config.FrameRate))
	defer ticker.Stop()

	d.Advance(d.deps.Clock.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Advance(d.deps.Clock.Now())
		}
	}
}

// Pending reports the time held in the accumulator.
func (d *Driver) Pending() time.Duration {
	return d.accumulator
}
