package combat

import (
	"context"

	"buckaneers/server/logging"
)

const (
	// EventSpearThrown is emitted when a completed attack streak releases a spear.
	EventSpearThrown logging.EventType = "combat.spear_thrown"
	// EventDamage is emitted when a spear damages a wolf.
	EventDamage logging.EventType = "combat.damage"
	// EventDefeat is emitted when a wolf runs out of health.
	EventDefeat logging.EventType = "combat.defeat"
	// EventCapture is emitted when a spear picks up a wolf as a passenger.
	EventCapture logging.EventType = "combat.capture"
	// EventRelease is emitted when a spent spear drops its passengers.
	EventRelease logging.EventType = "combat.release"
	// EventLungeHit is emitted when a lunging wolf strikes a player.
	EventLungeHit logging.EventType = "combat.lunge_hit"
)

// SpearThrownPayload captures the spawn of a spear.
type SpearThrownPayload struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	DX        float64 `json:"dx"`
	DY        float64 `json:"dy"`
	TickDeath uint64  `json:"tickDeath"`
}

// DamagePayload captures the amount dealt to a single target.
type DamagePayload struct {
	Amount       int `json:"amount"`
	TargetHealth int `json:"targetHealth"`
}

// DefeatPayload describes what happened to a defeated wolf.
type DefeatPayload struct {
	Policy   string `json:"policy"`
	Replaced int    `json:"replaced"`
}

// CapturePayload captures how loaded a spear is after a capture.
type CapturePayload struct {
	Passengers int     `json:"passengers"`
	Drag       float64 `json:"drag"`
	TickDeath  uint64  `json:"tickDeath"`
}

// ReleasePayload describes the hand-off when a spear expires.
type ReleasePayload struct {
	Released int  `json:"released"`
	Mounted  bool `json:"mounted"`
}

// SpearThrown publishes a debug event when a spear is thrown.
func SpearThrown(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, spear logging.EntityRef, payload SpearThrownPayload, extra map[string]any) {
	publish(ctx, pub, EventSpearThrown, logging.SeverityDebug, tick, actor, []logging.EntityRef{spear}, payload, extra)
}

// Damage publishes a combat damage event for a single target.
func Damage(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, target logging.EntityRef, payload DamagePayload, extra map[string]any) {
	publish(ctx, pub, EventDamage, logging.SeverityInfo, tick, actor, []logging.EntityRef{target}, payload, extra)
}

// Defeat publishes a combat defeat event for the eliminated wolf.
func Defeat(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, target logging.EntityRef, payload DefeatPayload, extra map[string]any) {
	publish(ctx, pub, EventDefeat, logging.SeverityInfo, tick, actor, []logging.EntityRef{target}, payload, extra)
}

// Capture publishes an event when a spear captures a wolf.
func Capture(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, target logging.EntityRef, payload CapturePayload, extra map[string]any) {
	publish(ctx, pub, EventCapture, logging.SeverityInfo, tick, actor, []logging.EntityRef{target}, payload, extra)
}

// Release publishes an event when a spear releases its passengers.
func Release(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, targets []logging.EntityRef, payload ReleasePayload, extra map[string]any) {
	publish(ctx, pub, EventRelease, logging.SeverityInfo, tick, actor, targets, payload, extra)
}

// LungeHit publishes an event when a wolf's lunge connects with a player.
func LungeHit(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, target logging.EntityRef, extra map[string]any) {
	publish(ctx, pub, EventLungeHit, logging.SeverityInfo, tick, actor, []logging.EntityRef{target}, nil, extra)
}

func publish(ctx context.Context, pub logging.Publisher, typ logging.EventType, severity logging.Severity, tick uint64, actor logging.EntityRef, targets []logging.EntityRef, payload any, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     typ,
		Tick:     tick,
		Actor:    actor,
		Targets:  targets,
		Severity: severity,
		Category: logging.CategoryCombat,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
