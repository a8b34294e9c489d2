// Package perception wraps the external detection model and reduces its raw
// output to the compact records nodes publish.
package perception

import (
	"context"
	"fmt"
)

// Frame is one camera image as read from the simulator for a given tick.
// Pixels is opaque to this package; only the dimensions matter for
// reduction.
type Frame struct {
	Width  int
	Height int
	Pixels []byte
}

// RawDetection is one row of the detection table returned by the external
// model: class label, confidence, and image-space bounding box.
type RawDetection struct {
	Label      string
	Confidence float64
	XMin       float64
	YMin       float64
	XMax       float64
	YMax       float64
}

// Detector is the single inference call consumed from the external model.
// It is the one potentially expensive operation in a node's tick; its
// latency sets the real-time budget.
type Detector interface {
	Infer(ctx context.Context, frame Frame) ([]RawDetection, error)
}

// NullDetector reports no detections. Useful for load-shaping runs where
// only traffic analytics matter.
type NullDetector struct{}

func (NullDetector) Infer(context.Context, Frame) ([]RawDetection, error) {
	return nil, nil
}

// ScriptedDetector replays a fixed table per (sensor-agnostic) call
// sequence. It serves tests, recorded-run replays, and demo runs.
type ScriptedDetector struct {
	// Tables is consumed front to back, one entry per Infer call. When
	// exhausted, Infer returns an empty table, or starts the script over
	// when Loop is set.
	Tables [][]RawDetection
	Loop   bool

	calls int
}

func (d *ScriptedDetector) Infer(_ context.Context, _ Frame) ([]RawDetection, error) {
	if len(d.Tables) == 0 {
		return nil, nil
	}
	if d.calls >= len(d.Tables) {
		if !d.Loop {
			return nil, nil
		}
		d.calls = 0
	}
	table := d.Tables[d.calls]
	d.calls++
	return table, nil
}

// ValidateFrame rejects frames a detector cannot meaningfully process.
func ValidateFrame(f Frame) error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("frame has invalid dimensions %dx%d", f.Width, f.Height)
	}
	return nil
}
