package model

// Location is a 2D point in map coordinates.
type Location struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Intersection is a fixed point of interest for congestion sampling. The
// counter records how many ticks the approach traffic averaged below the
// congestion threshold; it only ever grows during a run.
type Intersection struct {
	ID              string
	Location        Location
	CongestionTicks uint64
}

// SignalState is the state of the traffic signal governing a vehicle.
type SignalState int

const (
	SignalUnknown SignalState = iota
	SignalRed
	SignalYellow
	SignalGreen
)

func (s SignalState) String() string {
	switch s {
	case SignalRed:
		return "red"
	case SignalYellow:
		return "yellow"
	case SignalGreen:
		return "green"
	default:
		return "unknown"
	}
}

// Permissive reports whether a vehicle governed by this signal is expected
// to be moving. Only permissive-signal vehicles count towards congestion
// averages; stopped-at-red traffic is expected, not congestion.
func (s SignalState) Permissive() bool { return s == SignalGreen }
