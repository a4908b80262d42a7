package lifecycle

import (
	"context"

	"buckaneers/server/logging"
)

const (
	// EventClientRegistered is emitted when a transport endpoint is first seen.
	EventClientRegistered logging.EventType = "lifecycle.client_registered"
	// EventClientDisconnected is emitted when a transport endpoint goes away.
	EventClientDisconnected logging.EventType = "lifecycle.client_disconnected"
	// EventPlayerSpawned is emitted when a client receives its player entity.
	EventPlayerSpawned logging.EventType = "lifecycle.player_spawned"
	// EventPlayerKilled is emitted when a player is removed by a lethal hit.
	EventPlayerKilled logging.EventType = "lifecycle.player_killed"
	// EventWolfSpawned is emitted when a wolf enters the world.
	EventWolfSpawned logging.EventType = "lifecycle.wolf_spawned"
	// EventWorldReset is emitted when the world is rebuilt from scratch.
	EventWorldReset logging.EventType = "lifecycle.world_reset"
)

// ClientPayload names the transport endpoint involved in a client event.
type ClientPayload struct {
	Client string `json:"client"`
	Codec  string `json:"codec,omitempty"`
}

// PlayerSpawnedPayload captures where a player entered the world.
type PlayerSpawnedPayload struct {
	Client string  `json:"client"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// PlayerKilledPayload names the client whose player died.
type PlayerKilledPayload struct {
	Client string `json:"client"`
}

// WolfSpawnedPayload captures a wolf spawn and what caused it.
type WolfSpawnedPayload struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Reason string  `json:"reason"`
}

// WorldResetPayload describes the configuration of a rebuilt world.
type WorldResetPayload struct {
	Seed      int    `json:"seed"`
	WolfCount int    `json:"wolfCount"`
	Reason    string `json:"reason"`
}

// ClientRegistered publishes an informational event for a new endpoint.
func ClientRegistered(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ClientPayload, extra map[string]any) {
	publish(ctx, pub, EventClientRegistered, logging.SeverityInfo, tick, actor, nil, payload, extra)
}

// ClientDisconnected publishes an informational event for a departed endpoint.
func ClientDisconnected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ClientPayload, extra map[string]any) {
	publish(ctx, pub, EventClientDisconnected, logging.SeverityInfo, tick, actor, nil, payload, extra)
}

// PlayerSpawned publishes an informational event when a player spawns.
func PlayerSpawned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerSpawnedPayload, extra map[string]any) {
	publish(ctx, pub, EventPlayerSpawned, logging.SeverityInfo, tick, actor, nil, payload, extra)
}

// PlayerKilled publishes an informational event when a player is killed.
func PlayerKilled(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, victim logging.EntityRef, payload PlayerKilledPayload, extra map[string]any) {
	publish(ctx, pub, EventPlayerKilled, logging.SeverityInfo, tick, actor, []logging.EntityRef{victim}, payload, extra)
}

// WolfSpawned publishes a debug event when a wolf spawns.
func WolfSpawned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload WolfSpawnedPayload, extra map[string]any) {
	publish(ctx, pub, EventWolfSpawned, logging.SeverityDebug, tick, actor, nil, payload, extra)
}

// WorldReset publishes a warning when the world is discarded and rebuilt.
func WorldReset(ctx context.Context, pub logging.Publisher, tick uint64, payload WorldResetPayload, extra map[string]any) {
	publish(ctx, pub, EventWorldReset, logging.SeverityWarn, tick, logging.WorldRef(), nil, payload, extra)
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
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
