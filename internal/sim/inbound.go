package sim

import (
	"context"
	"errors"

	"buckaneers/server/internal/net/proto"
	"buckaneers/server/internal/vmath"
	"buckaneers/server/internal/world"
	"buckaneers/server/logging"
	"buckaneers/server/logging/network"
)

const (
	messagesMetricKey        = "sim_messages_total"
	messagesIgnoredMetricKey = "sim_messages_ignored_total"
	messagesDroppedMetricKey = "sim_messages_unspawned_total"

	ignoredUnknownType = "unknown_type"
	ignoredMalformed   = "malformed"
	ignoredDevReset    = "dev_reset_disabled"
)

// codecFor returns the codec a client negotiated, falling back to JSON.
func (e *Engine) codecFor(id world.ClientID) proto.Codec {
	codec, err := proto.CodecByName(e.world.ClientCodec(id))
	if err != nil {
		return proto.JSONCodec{}
	}
	return codec
}

// applyInbound drains the inbox and applies every intent. It reports whether
// a dev_reset rebuilt the world, in which case the remaining messages are
// discarded.
func (e *Engine) applyInbound(ctx context.Context, result *StepResult) bool {
	envelopes := e.world.DrainInbox()
	tick := e.world.Tick()
	for _, env := range envelopes {
		result.Messages++
		e.deps.Metrics.Add(messagesMetricKey, 1)

		msg, err := e.codecFor(env.Sender).DecodeClient(env.Payload)
		if err != nil {
			reason := ignoredMalformed
			if errors.Is(err, proto.ErrUnknownType) {
				reason = ignoredUnknownType
			}
			e.ignore(ctx, env, reason, result)
			continue
		}

		if _, ok := msg.(proto.DevReset); ok {
			if !e.world.Config().AllowDevReset {
				e.ignore(ctx, env, ignoredDevReset, result)
				continue
			}
			e.world.Reset(e.world.Config(), "dev_reset")
			if e.deps.OnReset != nil {
				e.deps.OnReset()
			}
			return true
		}

		player, ok := e.world.PlayerByClient(env.Sender)
		if !ok {
			result.Unspawned++
			e.deps.Metrics.Add(messagesDroppedMetricKey, 1)
			continue
		}

		switch m := msg.(type) {
		case proto.Move:
			player.Velocity = vmath.Normalize(vmath.Vec2{X: m.X, Y: m.Y})
		case proto.Attack:
			applyAttack(player, vmath.Vec2{X: m.X, Y: m.Y}, tick)
		case proto.Dash:
			applyDash(player, vmath.Vec2{X: m.X, Y: m.Y}, tick)
		}
	}
	return false
}

func applyAttack(p *world.Player, target vmath.Vec2, tick uint64) {
	p.Attack.Dir = vmath.Normalize(target.Sub(p.Pos))
	p.Attack.Latest = tick
	if p.Attack.Streak == world.StreakDormant {
		p.Attack.Streak = world.StreakActive
		p.Attack.Earliest = tick
	}
}

func applyDash(p *world.Player, dir vmath.Vec2, tick uint64) {
	if tick < p.Dash.End {
		return
	}
	p.Dash = world.DashState{
		Start: tick,
		End:   tick + DashTicks,
		Dir:   vmath.Normalize(dir),
	}
}

func (e *Engine) ignore(ctx context.Context, env world.Envelope, reason string, result *StepResult) {
	result.Ignored++
	e.deps.Metrics.Add(messagesIgnoredMetricKey, 1)
	actor := logging.EntityRef{ID: string(env.Sender), Kind: logging.EntityKindClient}
	network.MessageIgnored(ctx, e.deps.Publisher, e.world.Tick(), actor, network.MessageIgnoredPayload{Reason: reason, Bytes: len(env.Payload)}, nil)
}
