package sim

import (
	"buckaneers/server/internal/vmath"
	"buckaneers/server/internal/world"
)

// assignWaffles fills at most one empty or stale waffle slot per player with
// the nearest unassigned free wolf, so one player cannot claim every free
// wolf in a single tick.
func (e *Engine) assignWaffles() {
	for _, p := range e.world.Players() {
		for slot := 0; slot < world.WaffleSlots; slot++ {
			if e.slotHeld(p, slot) {
				continue
			}
			p.Waffle[slot] = 0

			candidates, points := e.unassignedWolves()
			best := e.deps.Proximity.Nearest(p.Pos, points)
			if best < 0 {
				continue
			}
			e.world.Assign(p, slot, candidates[best])
			break
		}
	}
}

// slotHeld reports whether a slot still references an uncarried wolf that
// points back at it.
func (e *Engine) slotHeld(p *world.Player, slot int) bool {
	id := p.Waffle[slot]
	if id == 0 {
		return false
	}
	wolf, ok := e.world.Wolf(id)
	if !ok || wolf.Mount.Carried() {
		return false
	}
	return wolf.Waffle == world.WaffleRef{Player: p.ID, Slot: slot}
}

func (e *Engine) unassignedWolves() ([]*world.Wolf, []vmath.Vec2) {
	var wolves []*world.Wolf
	var points []vmath.Vec2
	for _, wolf := range e.world.FreeWolves() {
		if wolf.Waffle.Assigned() {
			continue
		}
		wolves = append(wolves, wolf)
		points = append(points, wolf.Pos)
	}
	return wolves, points
}
