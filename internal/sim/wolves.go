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

const lungeKillsMetricKey = "sim_lunge_kills_total"

// advanceWolves runs the stage machine of every free wolf.
func (e *Engine) advanceWolves(ctx context.Context) {
	for _, wolf := range e.world.FreeWolves() {
		if _, ok := e.world.Wolf(wolf.ID); !ok {
			continue
		}
		e.advanceWolf(ctx, wolf)
	}
}

// target returns the live player a wolf is assigned to.
func (e *Engine) target(wolf *world.Wolf) (*world.Player, bool) {
	if !wolf.Waffle.Assigned() {
		return nil, false
	}
	p, ok := e.world.Player(wolf.Waffle.Player)
	if !ok || e.world.ClientDead(p.Client) {
		return nil, false
	}
	return p, true
}

// goal is the ring point of the wolf's slot around p, or p itself once the
// wolf is already close to the ring point.
func goal(wolf *world.Wolf, p *world.Player) vmath.Vec2 {
	theta := vmath.Tau * float64(wolf.Waffle.Slot) / world.WaffleSlots
	ring := p.Pos.Add(vmath.FromAngle(theta).Scale(WolfRingRadius))
	if vmath.Distance(ring, wolf.Pos) < WolfRingSnap {
		return p.Pos
	}
	return ring
}

func (e *Engine) advanceWolf(ctx context.Context, wolf *world.Wolf) {
	tick := e.world.Tick()
	p, valid := e.target(wolf)
	if !valid {
		wolf.Stage = world.StageDormant
		if wolf.Waffle.Assigned() {
			e.world.Unassign(wolf)
		}
	}

	started := tick >= wolf.StageStart+1
	prev, cur := vmath.Progress(wolf.StageStart, wolf.StageEnd, tick)

	switch wolf.Stage {
	case world.StageDormant:
		if valid {
			e.startTurn(wolf, p, tick)
		}
	case world.StageTurning:
		wolf.Angle = vmath.LerpRads(wolf.AngleFrom, wolf.AngleTo, vmath.EaseOutQuad(cur))
		if cur < 1 {
			return
		}
		if lungeReady(wolf, p) {
			e.setStage(wolf, world.StageLunging, tick, WolfLungeTicks)
			return
		}
		wolf.WalkDist = math.Min(vmath.Distance(goal(wolf, p), wolf.Pos), WolfWalkDistMax)
		e.setStage(wolf, world.StageWalking, tick, WolfWalkTicks)
	case world.StageWalking:
		if !started {
			return
		}
		step := vmath.EaseOutQuad(cur) - vmath.EaseOutQuad(prev)
		e.moveWolf(wolf, step*wolf.WalkDist)
		if cur >= 1 {
			wolf.Stage = world.StageDormant
		}
	case world.StageLunging:
		if !started {
			return
		}
		e.lunge(ctx, wolf, p, prev, cur)
		if cur >= 1 {
			e.setStage(wolf, world.StageCooldown, tick, WolfCooldownTicks)
		}
	case world.StageCooldown:
		if cur >= 1 {
			wolf.Stage = world.StageDormant
		}
	}
}

func (e *Engine) setStage(wolf *world.Wolf, stage world.WolfStage, tick, duration uint64) {
	wolf.Stage = stage
	wolf.StageStart = tick
	wolf.StageEnd = tick + duration
}

// startTurn faces the wolf toward its goal. Larger turns take longer.
func (e *Engine) startTurn(wolf *world.Wolf, p *world.Player, tick uint64) {
	to := goal(wolf, p).Sub(wolf.Pos).Angle()
	dot := math.Cos(wolf.Angle)*math.Cos(to) + math.Sin(wolf.Angle)*math.Sin(to)
	wolf.AngleFrom = wolf.Angle
	wolf.AngleTo = to
	duration := uint64(math.Floor(WolfTurnTicksMax * (0.5 + 0.5*(2-dot))))
	e.setStage(wolf, world.StageTurning, tick, duration)
}

// lungeReady reports whether the wolf faces its player closely enough and is
// within striking range.
func lungeReady(wolf *world.Wolf, p *world.Player) bool {
	delta := p.Pos.Sub(wolf.Pos)
	dist := delta.Length()
	if dist == 0 {
		return true
	}
	dot := vmath.FromAngle(wolf.Angle).Dot(delta.Scale(1 / dist))
	return dot > WolfAlignDot && dist < WolfLungeDist*WolfLungeRangeSlack
}

// lungeCurve maps lunge progress to distance covered: a short recoil up to
// the wind-up point, then a strike to full length.
func lungeCurve(t float64) float64 {
	if t < WolfLungeWindUp {
		return vmath.Lerp(0, WolfLungeRecoil, t/WolfLungeWindUp)
	}
	return vmath.Lerp(WolfLungeRecoil, 1, (t-WolfLungeWindUp)/(1-WolfLungeWindUp))
}

func (e *Engine) lunge(ctx context.Context, wolf *world.Wolf, p *world.Player, prev, cur float64) {
	if cur < WolfLungeHoming && p != nil {
		turn := vmath.RadDistance(wolf.Angle, p.Pos.Sub(wolf.Pos).Angle())
		wolf.Angle += vmath.Clamp(turn, -WolfLungeTurnRate, WolfLungeTurnRate)
	}

	before := wolf.Pos
	e.moveWolf(wolf, (lungeCurve(cur)-lungeCurve(prev))*WolfLungeDist)

	players := e.world.Players()
	points := make([]vmath.Vec2, len(players))
	for i, pl := range players {
		points[i] = pl.Pos
	}
	for _, idx := range e.deps.Proximity.Sweep(before, wolf.Pos, WolfLungeHitRadius, points) {
		victim := players[idx]
		combat.LungeHit(ctx, e.deps.Publisher, e.world.Tick(),
			logging.Ref(logging.EntityKindWolf, uint64(wolf.ID)),
			logging.Ref(logging.EntityKindPlayer, uint64(victim.ID)), nil)
		if e.world.KillPlayer(victim.ID, wolf.ID) {
			e.deps.Metrics.Add(lungeKillsMetricKey, 1)
		}
	}
}

func (e *Engine) moveWolf(wolf *world.Wolf, dist float64) {
	if dist == 0 {
		return
	}
	wolf.Pos = wolf.Pos.Add(vmath.FromAngle(wolf.Angle).Scale(dist))
	terrain.Clamp(e.world.Mask(), &wolf.Pos, &wolf.Cell, terrain.Walk)
}
