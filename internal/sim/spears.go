package sim

import (
	"context"
	"math"

	"buckaneers/server/internal/terrain"
	"buckaneers/server/internal/vmath"
	"buckaneers/server/internal/world"
	"buckaneers/server/logging"
	"buckaneers/server/logging/combat"
)

const (
	damageMetricKey   = "sim_wolf_damage_total"
	defeatMetricKey   = "sim_wolf_defeats_total"
	captureMetricKey  = "sim_wolf_captures_total"
	releaseMetricKey  = "sim_spear_releases_total"
	replicateSpawnTag = "replicate"
)

// passengerDrag is the flight speed factor of a spear carrying n wolves.
func passengerDrag(n int) float64 {
	return math.Max(0, 1-SpearDragPerPassenger*float64(n))
}

// advanceSpears moves every flying spear, resolves its hits and releases the
// passengers of spears whose flight is over.
func (e *Engine) advanceSpears(ctx context.Context) {
	for _, s := range e.world.FlyingSpears() {
		if _, ok := e.world.Spear(s.ID); !ok {
			continue
		}
		e.advanceSpear(ctx, s)
	}
}

func (e *Engine) advanceSpear(ctx context.Context, s *world.Spear) {
	tick := e.world.Tick()
	prev, cur := vmath.Progress(s.Birth, s.Death, tick)
	step := vmath.EaseOutQuad(cur) - vmath.EaseOutQuad(prev)

	before := s.Pos
	s.Pos = s.Pos.Add(s.Dir.Scale(passengerDrag(len(s.Passengers)) * SpearThrowDist * step))
	terrain.ClampWrapped(e.world.Mask(), &s.Pos, &s.Cell, terrain.Fly)

	e.resolveSpearHits(ctx, s, before)

	wrapped := vmath.Wrap(s.Pos)
	if wrapped != s.Pos {
		s.Pos = wrapped
		s.Cell = terrain.CellOf(s.Pos)
	}

	if vmath.InvLerp(float64(s.Birth), float64(s.Death), float64(tick)) >= 1 {
		e.releaseSpear(ctx, s)
	}
}

// resolveSpearHits damages every uncarried wolf swept by the spear this tick once
// per spear, and picks up wolves that were swept closely enough.
func (e *Engine) resolveSpearHits(ctx context.Context, s *world.Spear, before vmath.Vec2) {
	wolves := e.world.FreeWolves()
	points := make([]vmath.Vec2, len(wolves))
	for i, wolf := range wolves {
		points[i] = wolf.Pos
	}
	spearRef := logging.Ref(logging.EntityKindSpear, uint64(s.ID))
	tick := e.world.Tick()

	for _, idx := range e.deps.Proximity.Sweep(before, s.Pos, SpearDamageRadius, points) {
		wolf := wolves[idx]
		if current, ok := e.world.Wolf(wolf.ID); !ok || current != wolf || wolf.Mount.Carried() {
			continue
		}
		wolfRef := logging.Ref(logging.EntityKindWolf, uint64(wolf.ID))

		if e.world.Hits().Record(s.ID, wolf.ID, tick) {
			wolf.HP--
			e.deps.Metrics.Add(damageMetricKey, 1)
			combat.Damage(ctx, e.deps.Publisher, tick, spearRef, wolfRef, combat.DamagePayload{Amount: 1, TargetHealth: wolf.HP}, nil)
			if wolf.HP <= 0 {
				e.defeatWolf(ctx, s, wolf)
				continue
			}
		}

		if vmath.PointToSegment(wolf.Pos, before, s.Pos) < SpearCaptureRadius {
			if !e.world.Capture(s.ID, wolf.ID) {
				continue
			}
			drag := passengerDrag(len(s.Passengers))
			s.Death = s.Birth + uint64(math.Ceil(float64(s.Death-s.Birth)*drag))
			e.deps.Metrics.Add(captureMetricKey, 1)
			combat.Capture(ctx, e.deps.Publisher, tick, spearRef, wolfRef, combat.CapturePayload{Passengers: len(s.Passengers), Drag: drag, TickDeath: s.Death}, nil)
		}
	}
}

// defeatWolf applies the configured death policy to a wolf without health.
func (e *Engine) defeatWolf(ctx context.Context, s *world.Spear, wolf *world.Wolf) {
	policy := e.world.Config().DeathPolicy
	replaced := 0
	if policy == world.DeathReplicate {
		e.world.SpawnWolf(replicateSpawnTag)
		e.world.SpawnWolf(replicateSpawnTag)
		replaced = 2
	}
	e.world.RemoveWolf(wolf.ID)
	e.deps.Metrics.Add(defeatMetricKey, 1)
	combat.Defeat(ctx, e.deps.Publisher, e.world.Tick(),
		logging.Ref(logging.EntityKindSpear, uint64(s.ID)),
		logging.Ref(logging.EntityKindWolf, uint64(wolf.ID)),
		combat.DefeatPayload{Policy: string(policy), Replaced: replaced}, nil)
}

func (e *Engine) releaseSpear(ctx context.Context, s *world.Spear) {
	released, mounted := e.world.Release(s.ID)
	if len(released) == 0 {
		return
	}
	e.deps.Metrics.Add(releaseMetricKey, 1)
	targets := make([]logging.EntityRef, 0, len(released))
	for _, id := range released {
		targets = append(targets, logging.Ref(logging.EntityKindWolf, uint64(id)))
	}
	combat.Release(ctx, e.deps.Publisher, e.world.Tick(),
		logging.Ref(logging.EntityKindSpear, uint64(s.ID)), targets,
		combat.ReleasePayload{Released: len(released), Mounted: mounted}, nil)
}
