package sim

import (
	"testing"
	"time"

	"buckaneers/server/logging/simulation"
)

type countingTicker struct {
	ticks    uint64
	duration time.Duration
}

func (c *countingTicker) Tick() StepResult {
	c.ticks++
	return StepResult{Tick: c.ticks, Duration: c.duration}
}

func TestDriverRunsWholeTicks(t *testing.T) {
	target := &countingTicker{}
	var after []uint64
	d := NewDriver(target, DriverConfig{TickRate: 60}, DriverHooks{AfterStep: func(r StepResult) {
		after = append(after, r.Tick)
	}}, Deps{})

	start := time.Unix(0, 0)
	if ran := d.Advance(start); ran != 0 {
		t.Fatalf("first advance should only initialise, ran %d", ran)
	}
	if ran := d.Advance(start.Add(50 * time.Millisecond)); ran != 3 {
		t.Fatalf("50ms at 60Hz should run 3 ticks, ran %d", ran)
	}
	if want := 50*time.Millisecond - 3*(time.Second/60); d.Pending() != want {
		t.Fatalf("pending = %s, want %s", d.Pending(), want)
	}
	if len(after) != 3 || after[2] != 3 {
		t.Fatalf("hook saw %v", after)
	}
	if ran := d.Advance(start.Add(50 * time.Millisecond)); ran != 0 {
		t.Fatalf("no elapsed time should run nothing, ran %d", ran)
	}
}

func TestDriverDropsBacklog(t *testing.T) {
	pub := &recordingPublisher{}
	target := &countingTicker{}
	d := NewDriver(target, DriverConfig{TickRate: 60}, DriverHooks{}, Deps{Publisher: pub})

	start := time.Unix(0, 0)
	d.Advance(start)
	if ran := d.Advance(start.Add(2 * time.Second)); ran != 0 {
		t.Fatalf("stalled driver should not catch up, ran %d", ran)
	}
	if target.ticks != 0 || d.Pending() != 0 {
		t.Fatalf("backlog kept: ticks=%d pending=%s", target.ticks, d.Pending())
	}
	if pub.count(simulation.EventBacklogDropped) != 1 {
		t.Fatalf("expected backlog event")
	}

	if ran := d.Advance(start.Add(2*time.Second + time.Second/60)); ran != 1 {
		t.Fatalf("driver should resume at the normal rate, ran %d", ran)
	}
}

func TestDriverReportsOverruns(t *testing.T) {
	pub := &recordingPublisher{}
	target := &countingTicker{duration: 40 * time.Millisecond}
	d := NewDriver(target, DriverConfig{TickRate: 60}, DriverHooks{}, Deps{Publisher: pub})

	start := time.Unix(0, 0)
	d.Advance(start)
	d.Advance(start.Add(2 * time.Second / 60))
	if got := pub.count(simulation.EventTickBudgetOverrun); got != 2 {
		t.Fatalf("expected 2 overrun events, got %d", got)
	}

	pub.mu.Lock()
	last := pub.events[len(pub.events)-1].Payload.(simulation.TickBudgetOverrunPayload)
	pub.mu.Unlock()
	if last.Streak != 2 {
		t.Fatalf("streak = %d, want 2", last.Streak)
	}

	target.duration = time.Millisecond
	d.Advance(start.Add(3 * time.Second / 60))
	if got := pub.count(simulation.EventTickBudgetOverrun); got != 2 {
		t.Fatalf("fast tick reported as overrun")
	}
}
