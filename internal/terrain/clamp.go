package terrain

import (
	"math"

	"buckaneers/server/internal/vmath"
)

const wallEpsilon = 0.001

// Cell is the cached subtile of a moving entity.
type Cell struct {
	HX int `json:"hx" msgpack:"hx"`
	HY int `json:"hy" msgpack:"hy"`
}

// CellOf returns the subtile containing p.
func CellOf(p vmath.Vec2) Cell {
	hx, hy := HardCell(p.X, p.Y)
	return Cell{HX: hx, HY: hy}
}

// Clamp keeps p out of subtiles lacking the need bits. Each axis is tested on
// its own so movement slides along walls: x against the destination column
// in the old row, then y against the destination row in the committed column.
// A blocked axis is inset just inside the previous subtile. Cells beyond the
// map edge are blocked.
func Clamp(m *Mask, p *vmath.Vec2, cell *Cell, need uint8) {
	clamp(m, p, cell, need, m.Allows)
}

// ClampWrapped is Clamp for entities that cross the map edge. A destination
// beyond the edge is tested against the subtile it wraps onto; the caller
// folds p back onto the map afterwards.
func ClampWrapped(m *Mask, p *vmath.Vec2, cell *Cell, need uint8) {
	clamp(m, p, cell, need, m.AllowsWrapped)
}

func clamp(m *Mask, p *vmath.Vec2, cell *Cell, need uint8, allows func(hx, hy int, need uint8) bool) {
	fhx := p.X / HardSize
	fhy := p.Y / HardSize
	newHX := int(math.Floor(fhx))
	newHY := int(math.Floor(fhy))
	if newHX == cell.HX && newHY == cell.HY {
		return
	}

	if newHX != cell.HX {
		if allows(newHX, cell.HY, need) {
			cell.HX = newHX
		} else {
			p.X = (float64(cell.HX) + inset(fhx-float64(cell.HX))) * HardSize
		}
	}

	if newHY != cell.HY {
		if allows(cell.HX, newHY, need) {
			cell.HY = newHY
		} else {
			p.Y = (float64(cell.HY) + inset(fhy-float64(cell.HY))) * HardSize
		}
	}
}

func inset(frac float64) float64 {
	if frac <= 0 {
		return wallEpsilon
	}
	if frac >= 1 {
		return 1 - wallEpsilon
	}
	return frac
}
