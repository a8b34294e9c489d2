package node

import (
	"context"
	"errors"
	"testing"

	"github.com/aleksihamalainen/congestion-sim/internal/logging"
	"github.com/aleksihamalainen/congestion-sim/internal/perception"
	"github.com/aleksihamalainen/congestion-sim/internal/pipe"
	"github.com/aleksihamalainen/congestion-sim/internal/sim"
	"github.com/aleksihamalainen/congestion-sim/model"
)

// fakeWorld serves a single entity and camera at a fixed tick.
type fakeWorld struct {
	tick     uint64
	state    model.EntityState
	frame    perception.Frame
	stateErr error
	frameErr error
}

func (w *fakeWorld) CurrentTick() uint64 { return w.tick }

func (w *fakeWorld) EntityState(id string, tick uint64) (model.EntityState, error) {
	if w.stateErr != nil {
		return model.EntityState{}, w.stateErr
	}
	if tick != w.tick {
		return model.EntityState{}, sim.TickError(id, tick, w.tick)
	}
	return w.state, nil
}

func (w *fakeWorld) CameraFrame(cameraID string, tick uint64) (perception.Frame, error) {
	if w.frameErr != nil {
		return perception.Frame{}, w.frameErr
	}
	if tick != w.tick {
		return perception.Frame{}, sim.TickError(cameraID, tick, w.tick)
	}
	return w.frame, nil
}

func (w *fakeWorld) TrafficSignal(string) (model.SignalState, error) {
	return model.SignalGreen, nil
}

func (w *fakeWorld) AdvanceTick() uint64 {
	w.tick++
	return w.tick
}

func newTestNode(w sim.World, det perception.Detector) (*Node, *pipe.SummaryPipe, *pipe.DetectionLog) {
	summaries := pipe.NewSummaryPipe()
	detlog := pipe.NewDetectionLog()
	n := New("vehicle_1", "camera_1", w, det, perception.NewReducer(logging.Noop()),
		summaries, detlog, logging.Noop(), nil)
	return n, summaries, detlog
}

func TestTickPublishesSummaryAndDetections(t *testing.T) {
	w := &fakeWorld{
		tick:  5,
		state: model.EntityState{ID: "vehicle_1", X: 12, Y: 34, Heading: 90, Speed: 8},
		frame: perception.Frame{Width: 640, Height: 640},
	}
	det := &perception.ScriptedDetector{Tables: [][]perception.RawDetection{
		{
			{Label: "vehicle", Confidence: 0.9, XMin: 10, YMin: 10, XMax: 100, YMax: 80},
			{Label: "person", Confidence: 0.8, XMin: 200, YMin: 100, XMax: 240, YMax: 220},
		},
	}}
	n, summaries, detlog := newTestNode(w, det)

	if err := n.Tick(context.Background(), 5); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if n.Phase() != Suspended {
		t.Errorf("phase after tick = %v", n.Phase())
	}

	s, ok := summaries.Latest("vehicle_1")
	if !ok {
		t.Fatal("no summary published")
	}
	if s.Tick != 5 || s.X != 12 || s.Y != 34 || s.Speed != 8 {
		t.Errorf("summary = %+v", s)
	}
	if len(s.Detections) != 2 {
		t.Errorf("detections = %+v", s.Detections)
	}
	if detlog.Len() != 2 {
		t.Errorf("detection log length = %d", detlog.Len())
	}
}

func TestTickFailureRetainsPreviousSummary(t *testing.T) {
	w := &fakeWorld{
		tick:  1,
		state: model.EntityState{ID: "vehicle_1", Speed: 5},
		frame: perception.Frame{Width: 640, Height: 640},
	}
	n, summaries, _ := newTestNode(w, perception.NullDetector{})

	if err := n.Tick(context.Background(), 1); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	// The world moved on without this node: a mismatched read fails the
	// tick but leaves the previous summary in place.
	w.AdvanceTick()
	err := n.Tick(context.Background(), 3)
	if !errors.Is(err, sim.ErrTickUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if n.Phase() != Suspended {
		t.Errorf("phase after failed tick = %v", n.Phase())
	}

	s, ok := summaries.Latest("vehicle_1")
	if !ok || s.Tick != 1 {
		t.Errorf("retained summary = %+v, ok=%v", s, ok)
	}
}

func TestTickFailsOnInferError(t *testing.T) {
	w := &fakeWorld{
		tick:  1,
		state: model.EntityState{ID: "vehicle_1"},
		frame: perception.Frame{Width: 640, Height: 640},
	}
	boom := errors.New("model crashed")
	n, summaries, _ := newTestNode(w, failingDetector{err: boom})

	if err := n.Tick(context.Background(), 1); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if _, ok := summaries.Latest("vehicle_1"); ok {
		t.Error("failed tick must not publish")
	}
}

func TestTickRejectsInvalidFrame(t *testing.T) {
	w := &fakeWorld{
		tick:  1,
		state: model.EntityState{ID: "vehicle_1"},
		frame: perception.Frame{Width: 0, Height: 0},
	}
	n, _, _ := newTestNode(w, perception.NullDetector{})

	if err := n.Tick(context.Background(), 1); err == nil {
		t.Fatal("expected frame validation error")
	}
}

func TestStoppedNodeRefusesTicks(t *testing.T) {
	w := &fakeWorld{tick: 1, frame: perception.Frame{Width: 640, Height: 640}}
	n, _, _ := newTestNode(w, perception.NullDetector{})

	n.Stop()
	if err := n.Tick(context.Background(), 1); err == nil {
		t.Fatal("stopped node accepted a tick")
	}
	if n.Phase() != Stopped {
		t.Errorf("phase = %v", n.Phase())
	}
}

func TestStopDuringTickLatches(t *testing.T) {
	w := &fakeWorld{
		tick:  1,
		state: model.EntityState{ID: "vehicle_1"},
		frame: perception.Frame{Width: 640, Height: 640},
	}
	det := &stoppingDetector{}
	n, summaries, _ := newTestNode(w, det)
	det.node = n

	// The in-flight tick finishes publishing, but the stop holds.
	if err := n.Tick(context.Background(), 1); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if n.Phase() != Stopped {
		t.Fatalf("phase after mid-tick stop = %v, want %v", n.Phase(), Stopped)
	}
	if _, ok := summaries.Latest("vehicle_1"); !ok {
		t.Error("in-flight tick should still publish")
	}

	w.AdvanceTick()
	if err := n.Tick(context.Background(), 2); err == nil {
		t.Fatal("stopped node accepted a later tick")
	}
}

// stoppingDetector cancels its own node from inside inference, the worst
// spot for an external Stop to land.
type stoppingDetector struct{ node *Node }

func (d *stoppingDetector) Infer(context.Context, perception.Frame) ([]perception.RawDetection, error) {
	d.node.Stop()
	return nil, nil
}

type failingDetector struct{ err error }

func (d failingDetector) Infer(context.Context, perception.Frame) ([]perception.RawDetection, error) {
	return nil, d.err
}
