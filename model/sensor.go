package model

// Rotation holds simulator-style orientation angles in degrees.
type Rotation struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

// Camera is an RGB sensor attached to at most one entity. A parentless
// camera is a fixed roadside sensor and carries its own pose; a mounted
// camera's pose is relative to its parent and owned by the simulator.
type Camera struct {
	ID       string
	ParentID string // empty for fixed roadside sensors

	// Fixed placement, meaningful only when ParentID is empty.
	Location Location
	Z        float64
	Rotation Rotation
}

// Fixed reports whether the camera is a parentless roadside sensor.
func (c *Camera) Fixed() bool { return c.ParentID == "" }
