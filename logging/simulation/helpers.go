package simulation

import (
	"context"

	"buckaneers/server/logging"
)

const (
	// EventTickBudgetOverrun is emitted when one tick takes longer than its slot.
	EventTickBudgetOverrun logging.EventType = "simulation.tick_budget_overrun"
	// EventBacklogDropped is emitted when the driver discards owed ticks after a stall.
	EventBacklogDropped logging.EventType = "simulation.backlog_dropped"
)

// TickBudgetOverrunPayload captures timing details for a tick budget breach.
type TickBudgetOverrunPayload struct {
	DurationMillis int64   `json:"durationMillis"`
	BudgetMillis   int64   `json:"budgetMillis"`
	Ratio          float64 `json:"ratio"`
	Streak         uint64  `json:"streak"`
}

// BacklogDroppedPayload captures how much catch-up work was thrown away.
type BacklogDroppedPayload struct {
	OwedTicks int   `json:"owedTicks"`
	CapTicks  int   `json:"capTicks"`
	StallMs   int64 `json:"stallMillis"`
}

// TickBudgetOverrun publishes a warning when the simulation exceeds the configured tick budget.
func TickBudgetOverrun(ctx context.Context, pub logging.Publisher, tick uint64, payload TickBudgetOverrunPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventTickBudgetOverrun,
		Tick:     tick,
		Actor:    logging.WorldRef(),
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// BacklogDropped publishes a warning when the driver resets its accumulator.
func BacklogDropped(ctx context.Context, pub logging.Publisher, tick uint64, payload BacklogDroppedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventBacklogDropped,
		Tick:     tick,
		Actor:    logging.WorldRef(),
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
