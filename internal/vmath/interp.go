package vmath

import "math"

const Tau = 2 * math.Pi

// EaseOutQuad maps progress t in [0,1] onto a decelerating curve.
func EaseOutQuad(t float64) float64 {
	return 1 - (1-t)*(1-t)
}

func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// InvLerp returns where p sits between min and max as a ratio. An empty
// interval reports 0 before max and 1 from max onwards.
func InvLerp(min, max, p float64) float64 {
	if max == min {
		if p >= max {
			return 1
		}
		return 0
	}
	return (p - min) / (max - min)
}

// Clamp limits value to the range [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func Clamp01(value float64) float64 {
	return Clamp(value, 0, 1)
}

// RadDistance returns the signed shortest rotation from a to b.
func RadDistance(a, b float64) float64 {
	diff := math.Mod(b-a, Tau)
	return math.Mod(2*diff, Tau) - diff
}

// LerpRads interpolates angles along the shortest arc.
func LerpRads(a, b, t float64) float64 {
	return a + RadDistance(a, b)*t
}

// Progress samples an interval at two consecutive ticks and returns both
// ratios clamped to [0,1]. Callers apply ease(cur)-ease(prev) as a step so the
// sum over the interval telescopes to exactly one.
func Progress(start, end, tick uint64) (prev, cur float64) {
	s, e := float64(start), float64(end)
	prev = Clamp01(InvLerp(s, e, float64(tick)-1))
	cur = Clamp01(InvLerp(s, e, float64(tick)))
	return prev, cur
}

// Wrap01 folds v onto [0,1) so coordinates leaving one edge re-enter at the
// opposite one.
func Wrap01(v float64) float64 {
	w := v - math.Floor(v)
	if w >= 1 {
		return 0
	}
	return w
}

// Wrap folds both coordinates onto [0,1).
func Wrap(v Vec2) Vec2 {
	return Vec2{X: Wrap01(v.X), Y: Wrap01(v.Y)}
}
