package model

// Class is the detection class vocabulary surviving reduction. The
// underlying perception model may emit many more labels; everything outside
// this set is dropped before publishing.
type Class string

const (
	ClassVehicle Class = "vehicle"
	ClassPerson  Class = "person"
)

// KnownClass reports whether label is part of the published vocabulary.
func KnownClass(label string) bool {
	return label == string(ClassVehicle) || label == string(ClassPerson)
}

// DetectionRecord is one reduced detection from one sensor at one tick.
// Records are immutable once created and only ever appended to the shared
// detection log.
type DetectionRecord struct {
	ParentID string  `json:"parent_id"`
	Index    int     `json:"detection_id"`
	Class    Class   `json:"class"`
	XMin     float64 `json:"xmin"`
	YMin     float64 `json:"ymin"`
	XMax     float64 `json:"xmax"`
	YMax     float64 `json:"ymax"`
	Tick     uint64  `json:"tick"`
}
