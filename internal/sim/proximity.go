package sim

import "buckaneers/server/internal/vmath"

// Proximity answers the spatial queries of a tick. Implementations must
// return the same answers as LinearScan so a spatial index can replace it
// without changing the simulation.
type Proximity interface {
	// Nearest returns the index of the point closest to from, preferring the
	// lowest index on ties, or -1 when points is empty.
	Nearest(from vmath.Vec2, points []vmath.Vec2) int
	// Sweep returns, in ascending order, the indices of points closer than
	// radius to the segment a-b.
	Sweep(a, b vmath.Vec2, radius float64, points []vmath.Vec2) []int
}

// LinearScan checks every candidate on every query.
type LinearScan struct{}

func (LinearScan) Nearest(from vmath.Vec2, points []vmath.Vec2) int {
	best := -1
	bestDist := 0.0
	for i, p := range points {
		d := vmath.Distance(from, p)
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func (LinearScan) Sweep(a, b vmath.Vec2, radius float64, points []vmath.Vec2) []int {
	var hits []int
	for i, p := range points {
		if vmath.PointToSegment(p, a, b) < radius {
			hits = append(hits, i)
		}
	}
	return hits
}
