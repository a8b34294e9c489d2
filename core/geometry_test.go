package core

import (
	"math"
	"testing"
)

func TestPlanarSpeedKmh(t *testing.T) {
	// 3 m/s and 4 m/s components -> 5 m/s -> 18 km/h.
	if got := PlanarSpeedKmh(3, 4); math.Abs(got-18.0) > 1e-9 {
		t.Errorf("PlanarSpeedKmh(3, 4) = %v, want 18", got)
	}
	if got := PlanarSpeedKmh(0, 0); got != 0 {
		t.Errorf("PlanarSpeedKmh(0, 0) = %v, want 0", got)
	}
}

func TestRoundedEqual(t *testing.T) {
	cases := []struct {
		name string
		a, b Vec2
		want bool
	}{
		{"identical", Vec2{10, 20}, Vec2{10, 20}, true},
		{"within rounding tolerance", Vec2{10.4, 19.6}, Vec2{10, 20}, true},
		{"x rounds away", Vec2{10.6, 20}, Vec2{10, 20}, false},
		{"y rounds away", Vec2{10, 20.6}, Vec2{10, 20}, false},
		{"negative coordinates", Vec2{-3.4, -7.5}, Vec2{-3, -8}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RoundedEqual(tc.a, tc.b); got != tc.want {
				t.Errorf("RoundedEqual(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestVec2Distance(t *testing.T) {
	a := Vec2{0, 0}
	b := Vec2{3, 4}
	if got := a.DistanceTo(b); got != 5 {
		t.Errorf("DistanceTo = %v, want 5", got)
	}
	if got := b.Sub(a).Norm(); got != 5 {
		t.Errorf("Sub/Norm = %v, want 5", got)
	}
}
