package sim

import (
	"context"

	"buckaneers/server/internal/terrain"
	"buckaneers/server/internal/vmath"
	"buckaneers/server/internal/world"
	"buckaneers/server/logging"
	"buckaneers/server/logging/combat"
)

const (
	grabsMetricKey  = "sim_grabs_total"
	thrownMetricKey = "sim_spears_thrown_total"
)

func (e *Engine) movePlayers() {
	tick := e.world.Tick()
	mask := e.world.Mask()
	for _, p := range e.world.Players() {
		p.Pos = p.Pos.Add(p.Velocity.Scale(PlayerSpeed))

		prev, cur := vmath.Progress(p.Dash.Start, p.Dash.End, tick)
		if step := vmath.EaseOutQuad(cur) - vmath.EaseOutQuad(prev); step != 0 {
			p.Pos = p.Pos.Add(p.Dash.Dir.Scale(step * DashDist))
		}

		terrain.Clamp(mask, &p.Pos, &p.Cell, terrain.Walk)

		tx, ty := terrain.TileCell(p.Pos.X, p.Pos.Y)
		if mask.ConsumeGrab(tx, ty) {
			e.deps.Metrics.Add(grabsMetricKey, 1)
		}
	}
}

// resolveAttacks advances every attack streak. An active streak that went
// silent for too long breaks; one held for the full prepare time throws a
// spear and cools down.
func (e *Engine) resolveAttacks(ctx context.Context) {
	tick := e.world.Tick()
	for _, p := range e.world.Players() {
		a := &p.Attack
		switch a.Streak {
		case world.StreakCooldown:
			if tick >= a.CooldownOver {
				a.Streak = world.StreakDormant
			}
		case world.StreakActive:
			if tick-a.Latest >= AttackTimeoutTicks {
				a.Streak = world.StreakDormant
			} else if tick-a.Earliest >= AttackPrepareTicks {
				a.Streak = world.StreakCooldown
				a.CooldownOver = tick + AttackCooldownTicks
				e.throwSpear(ctx, p)
			}
		}
	}
}

// throwSpear releases a spear from the player's hand. Nothing is thrown when
// the release point is not walkable.
func (e *Engine) throwSpear(ctx context.Context, p *world.Player) {
	dir := p.Attack.Dir
	offset := vmath.Vec2{
		X: dir.X*SpearReleaseFwd - dir.Y*SpearReleaseOut,
		Y: dir.Y*SpearReleaseFwd + dir.X*SpearReleaseOut,
	}
	pos := p.Pos.Add(offset)
	cell := terrain.CellOf(pos)
	if !e.world.Mask().Allows(cell.HX, cell.HY, terrain.Walk) {
		return
	}
	death := e.world.Tick() + SpearThrowTicks
	spear := e.world.SpawnSpear(p.ID, pos, dir, death)
	e.deps.Metrics.Add(thrownMetricKey, 1)
	combat.SpearThrown(ctx, e.deps.Publisher, e.world.Tick(),
		logging.Ref(logging.EntityKindPlayer, uint64(p.ID)),
		logging.Ref(logging.EntityKindSpear, uint64(spear.ID)),
		combat.SpearThrownPayload{X: pos.X, Y: pos.Y, DX: dir.X, DY: dir.Y, TickDeath: death}, nil)
}
