package vmath

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= epsilon
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   Vec2
		want Vec2
	}{
		{name: "zero", in: Vec2{}, want: Vec2{}},
		{name: "axis", in: Vec2{X: 5}, want: Vec2{X: 1}},
		{name: "diagonal", in: Vec2{X: 3, Y: -4}, want: Vec2{X: 0.6, Y: -0.8}},
		{name: "nan", in: Vec2{X: math.NaN(), Y: 1}, want: Vec2{}},
		{name: "inf", in: Vec2{X: math.Inf(1)}, want: Vec2{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.in)
			if !almostEqual(got.X, tc.want.X) || !almostEqual(got.Y, tc.want.Y) {
				t.Fatalf("Normalize(%+v) = %+v, want %+v", tc.in, got, tc.want)
			}
		})
	}
}

func TestPointToSegment(t *testing.T) {
	a := Vec2{X: 0, Y: 0}
	b := Vec2{X: 1, Y: 0}
	cases := []struct {
		name string
		p    Vec2
		want float64
	}{
		{name: "above middle", p: Vec2{X: 0.5, Y: 0.25}, want: 0.25},
		{name: "before start", p: Vec2{X: -0.3, Y: 0.4}, want: 0.5},
		{name: "past end", p: Vec2{X: 1.3, Y: 0}, want: 0.3},
		{name: "on segment", p: Vec2{X: 0.7}, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PointToSegment(tc.p, a, b); !almostEqual(got, tc.want) {
				t.Fatalf("PointToSegment(%+v) = %f, want %f", tc.p, got, tc.want)
			}
		})
	}
	if got := PointToSegment(Vec2{X: 3, Y: 4}, Vec2{}, Vec2{}); !almostEqual(got, 5) {
		t.Fatalf("degenerate segment distance = %f, want 5", got)
	}
}

func TestPivot(t *testing.T) {
	got := Pivot(Vec2{X: 1}, math.Pi/2)
	if !almostEqual(got.X, 0) || !almostEqual(got.Y, 1) {
		t.Fatalf("quarter turn = %+v", got)
	}
	back := Pivot(got, -math.Pi/2)
	if !almostEqual(back.X, 1) || !almostEqual(back.Y, 0) {
		t.Fatalf("inverse pivot = %+v", back)
	}
}

func TestInvLerpGuardsEmptyInterval(t *testing.T) {
	if got := InvLerp(5, 5, 4); got != 0 {
		t.Fatalf("before empty interval = %f, want 0", got)
	}
	if got := InvLerp(5, 5, 5); got != 1 {
		t.Fatalf("at empty interval = %f, want 1", got)
	}
	if got := InvLerp(0, 10, 5); !almostEqual(got, 0.5) {
		t.Fatalf("midpoint = %f", got)
	}
}

func TestRadDistanceTakesShortestArc(t *testing.T) {
	cases := []struct {
		name string
		a, b float64
		want float64
	}{
		{name: "same", a: 1, b: 1, want: 0},
		{name: "small positive", a: 0, b: 0.5, want: 0.5},
		{name: "small negative", a: 0.5, b: 0, want: -0.5},
		{name: "across wrap", a: 0.1, b: Tau - 0.1, want: -0.2},
		{name: "across wrap reversed", a: Tau - 0.1, b: 0.1, want: 0.2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RadDistance(tc.a, tc.b); math.Abs(got-tc.want) > 1e-6 {
				t.Fatalf("RadDistance(%f, %f) = %f, want %f", tc.a, tc.b, got, tc.want)
			}
		})
	}
	if got := LerpRads(0.1, Tau-0.1, 1); math.Abs(got-(-0.1)) > 1e-6 {
		t.Fatalf("LerpRads end = %f, want -0.1", got)
	}
}

func TestProgressTelescopes(t *testing.T) {
	const start, end = 100, 121
	sum := 0.0
	for tick := uint64(start); tick <= end+5; tick++ {
		prev, cur := Progress(start, end, tick)
		sum += EaseOutQuad(cur) - EaseOutQuad(prev)
	}
	if !almostEqual(sum, 1) {
		t.Fatalf("eased steps sum to %f, want 1", sum)
	}
}
