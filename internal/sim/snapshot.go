package sim

import (
	"buckaneers/server/internal/net/proto"
	"buckaneers/server/internal/vmath"
	"buckaneers/server/internal/world"
)

const (
	snapshotsMetricKey     = "sim_snapshots_total"
	snapshotBytesMetricKey = "sim_snapshot_bytes"
)

// BuildTick renders the shared part of this tick's snapshot. You is left at
// proto.NoPlayer for the caller to fill in per client.
func BuildTick(w *world.World) proto.Tick {
	tick := w.Tick()
	out := proto.Tick{
		Tick:     tick,
		GrabGrid: w.Mask().EncodeGrab(),
		MapSeed:  w.Seed(),
		Players:  []proto.PlayerView{},
		Spears:   []proto.SpearView{},
		Wolves:   []proto.WolfView{},
		You:      proto.NoPlayer,
	}

	for _, p := range w.Players() {
		view := proto.PlayerView{ID: uint64(p.ID), X: p.Pos.X, Y: p.Pos.Y}
		if p.Attack.Streak != world.StreakDormant {
			prog := float64(int64(tick)-int64(p.Attack.Earliest)) / AttackPrepareTicks
			if prog >= 0 && prog <= AttackDisplayMax {
				view.Attack = &proto.AttackView{Prog: prog, DX: p.Attack.Dir.X, DY: p.Attack.Dir.Y}
			}
		}
		out.Players = append(out.Players, view)
	}

	carried := make(map[world.EntityID]vmath.Vec2)
	for _, s := range w.FlyingSpears() {
		death := s.Death
		if len(s.Passengers) > 0 {
			death = tick + SpearThrowTicks
		}
		out.Spears = append(out.Spears, proto.SpearView{ID: uint64(s.ID), X: s.Pos.X, Y: s.Pos.Y, TickDeath: death})
		for _, id := range s.Passengers {
			if wolf, ok := w.Wolf(id); ok {
				carried[id] = s.Pos.Add(wolf.Offset)
			}
		}
	}

	for _, wolf := range w.FreeWolves() {
		out.Wolves = append(out.Wolves, wolfView(w, wolf, wolf.Pos))
	}
	// Carried wolves are flattened after the free ones, in spear order.
	for _, s := range w.FlyingSpears() {
		for _, id := range s.Passengers {
			if wolf, ok := w.Wolf(id); ok {
				out.Wolves = append(out.Wolves, wolfView(w, wolf, carried[id]))
			}
		}
	}
	return out
}

func wolfView(w *world.World, wolf *world.Wolf, pos vmath.Vec2) proto.WolfView {
	view := proto.WolfView{
		ID:         uint64(wolf.ID),
		X:          pos.X,
		Y:          pos.Y,
		Angle:      wolf.Angle,
		Passengers: []proto.PassengerView{},
	}
	if wolf.HPMax > 0 {
		view.HP = float64(wolf.HP) / float64(wolf.HPMax)
	}
	if !wolf.Mount.Carrying() {
		return view
	}
	if s, ok := w.Spear(wolf.Mount.Peer); ok {
		offset := vmath.Pivot(s.Offset, wolf.Angle)
		dir := vmath.Pivot(s.Dir, wolf.Angle)
		view.Passengers = append(view.Passengers, proto.PassengerView{
			ID:    uint64(s.ID),
			X:     pos.X + offset.X,
			Y:     pos.Y + offset.Y,
			Angle: dir.Angle(),
		})
	}
	return view
}

// publishSnapshots encodes the tick for every registered client and queues
// it as the newest message of its outbox.
func (e *Engine) publishSnapshots(result *StepResult) {
	shared := BuildTick(e.world)
	encoded := make(map[string][]byte, 2)
	for _, id := range e.world.Clients() {
		snapshot := shared
		if p, ok := e.world.PlayerByClient(id); ok {
			snapshot.You = int64(p.ID)
		}
		codec := e.codecFor(id)
		var payload []byte
		if snapshot.You == proto.NoPlayer {
			// Spectators share one encoding per codec.
			if cached, ok := encoded[codec.Name()]; ok {
				payload = cached
			}
		}
		if payload == nil {
			data, err := codec.EncodeTick(snapshot)
			if err != nil {
				e.deps.Logger.Printf("[snapshot] encode for client=%s codec=%s failed: %v", id, codec.Name(), err)
				continue
			}
			payload = data
			if snapshot.You == proto.NoPlayer {
				encoded[codec.Name()] = data
			}
		}
		e.world.Deliver(id, payload)
		result.Snapshots++
		result.SnapshotBytes += len(payload)
	}
	e.deps.Metrics.Add(snapshotsMetricKey, uint64(result.Snapshots))
	e.deps.Metrics.Store(snapshotBytesMetricKey, uint64(result.SnapshotBytes))
}
