package vmath

import "math"

// Vec2 is a point or direction in unit world space.
type Vec2 struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{X: v.X + o.X, Y: v.Y + o.Y} }

func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{X: v.X - o.X, Y: v.Y - o.Y} }

func (v Vec2) Scale(s float64) Vec2 { return Vec2{X: v.X * s, Y: v.Y * s} }

// Dot returns the scalar product of two vectors.
func (v Vec2) Dot(o Vec2) float64 { return v.X*o.X + v.Y*o.Y }

// Length returns the Euclidean norm of the vector.
func (v Vec2) Length() float64 { return math.Hypot(v.X, v.Y) }

// Distance returns the Euclidean distance between two points.
func Distance(a, b Vec2) float64 { return b.Sub(a).Length() }

// Normalize returns the unit vector pointing along v. The zero vector, and
// any vector with a non-finite component, normalizes to zero.
func Normalize(v Vec2) Vec2 {
	length := v.Length()
	if length == 0 || math.IsNaN(length) || math.IsInf(length, 0) {
		return Vec2{}
	}
	return Vec2{X: v.X / length, Y: v.Y / length}
}

// FromAngle returns the unit vector at angle radians.
func FromAngle(angle float64) Vec2 {
	return Vec2{X: math.Cos(angle), Y: math.Sin(angle)}
}

// Angle returns the bearing of v in radians.
func (v Vec2) Angle() float64 { return math.Atan2(v.Y, v.X) }

// Pivot rotates v about the origin by angle radians.
func Pivot(v Vec2, angle float64) Vec2 {
	sin, cos := math.Sincos(angle)
	return Vec2{
		X: v.X*cos - v.Y*sin,
		Y: v.X*sin + v.Y*cos,
	}
}

// PointToSegment returns the distance from p to the closest point on the
// segment a-b. A degenerate segment measures the distance to a.
func PointToSegment(p, a, b Vec2) float64 {
	ab := b.Sub(a)
	lengthSq := ab.Dot(ab)
	if lengthSq == 0 {
		return Distance(p, a)
	}
	t := Clamp01(p.Sub(a).Dot(ab) / lengthSq)
	return Distance(p, a.Add(ab.Scale(t)))
}
