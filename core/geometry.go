package core

import "math"

// MpsToKmh converts simulator-native metre-per-second speeds into km/h,
// the unit congestion thresholds are expressed in.
const MpsToKmh = 3.6

// Vec2 is a planar map-coordinate vector in metres.
type Vec2 struct {
	X, Y float64
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec2) DistanceTo(other Vec2) float64 {
	return math.Hypot(v.X-other.X, v.Y-other.Y)
}

// Norm returns the Euclidean norm of the vector.
func (v Vec2) Norm() float64 {
	return math.Hypot(v.X, v.Y)
}

// Sub returns v - other.
func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{X: v.X - other.X, Y: v.Y - other.Y}
}

// PlanarSpeedKmh converts a planar velocity vector in m/s to a scalar speed
// in km/h.
func PlanarSpeedKmh(vx, vy float64) float64 {
	return math.Hypot(vx, vy) * MpsToKmh
}

// RoundedEqual compares two points after rounding each coordinate to the
// nearest integer unit. Destination arrival uses this deliberately coarse
// tolerance instead of exact floating-point equality.
func RoundedEqual(a, b Vec2) bool {
	return math.Round(a.X) == math.Round(b.X) && math.Round(a.Y) == math.Round(b.Y)
}
