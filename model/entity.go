package model

// EntityKind distinguishes the two node categories in the simulation.
type EntityKind int

const (
	KindVehicle EntityKind = iota
	KindRoadsideUnit
)

// Dimensions holds the physical extent of an actor in metres.
type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Pose is a planar position plus heading in degrees.
type Pose struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
	Heading float64 `json:"heading"`
}

// Entity represents a tracked simulation actor: a mobile vehicle or a
// stationary roadside unit. Identity is assigned once at setup and never
// reused within a run.
type Entity struct {
	ID         string
	Kind       EntityKind
	Model      string // simulator blueprint name, e.g. "vehicle.audi.tt"
	Dimensions Dimensions

	Pose Pose
	// Planar velocity in native simulator units (m/s).
	VX, VY float64

	// Route state; only meaningful for vehicles with an assigned route.
	Route              []int // waypoint indices, destination last
	HasDestination     bool
	DestinationIndex   int
	TravelledTicks     uint64
	ReachedDestination bool
}

// IsRSU reports whether the entity is a stationary roadside unit.
func (e *Entity) IsRSU() bool { return e.Kind == KindRoadsideUnit }

// EntityState is the per-tick slice of entity state a node reads before
// running inference. It is a value copy; nodes never mutate store state.
type EntityState struct {
	ID      string
	IsRSU   bool
	X       float64
	Y       float64
	Heading float64
	// Speed is the planar speed magnitude in m/s.
	Speed float64
}

// Pedestrian is bookkeeping only: pedestrians are moved by the external
// simulator's walker controllers, but their identity and dimensions are part
// of the exported metadata.
type Pedestrian struct {
	ID         string
	Dimensions Dimensions
}
