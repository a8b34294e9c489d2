// Package node implements the per-agent unit of work: one Node per
// simulated vehicle or roadside unit, each running the read → infer →
// reduce → publish cycle once per tick. Nodes are driven by external tick
// calls from the Pool; they never advance time themselves.
package node

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aleksihamalainen/congestion-sim/internal/logging"
	"github.com/aleksihamalainen/congestion-sim/internal/observability"
	"github.com/aleksihamalainen/congestion-sim/internal/perception"
	"github.com/aleksihamalainen/congestion-sim/internal/pipe"
	"github.com/aleksihamalainen/congestion-sim/internal/sim"
	"github.com/aleksihamalainen/congestion-sim/model"
)

// Phase is the node state machine position. A node cycles through the tick
// phases and rests in Suspended between ticks; Stopped is terminal and only
// reached by external cancellation.
type Phase int

const (
	Created Phase = iota
	Reading
	Inferring
	Reducing
	Publishing
	Suspended
	Stopped
)

func (p Phase) String() string {
	switch p {
	case Created:
		return "created"
	case Reading:
		return "reading"
	case Inferring:
		return "inferring"
	case Reducing:
		return "reducing"
	case Publishing:
		return "publishing"
	case Suspended:
		return "suspended"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Node processes one agent's camera data each tick and publishes the result
// into the shared pipes. It owns exclusive write access to its own summary
// slot and only ever appends to the detection log.
type Node struct {
	ID       string
	CameraID string

	world     sim.World
	detector  perception.Detector
	reducer   *perception.Reducer
	summaries *pipe.SummaryPipe
	detlog    *pipe.DetectionLog

	log     logging.Logger
	metrics *observability.SimCollector
	tracer  trace.Tracer

	mu    sync.Mutex
	phase Phase
}

// New constructs a node bound to its camera and shared pipes.
func New(id, cameraID string, world sim.World, detector perception.Detector, reducer *perception.Reducer,
	summaries *pipe.SummaryPipe, detlog *pipe.DetectionLog,
	log logging.Logger, metrics *observability.SimCollector) *Node {
	if log == nil {
		log = logging.Noop()
	}
	return &Node{
		ID:        id,
		CameraID:  cameraID,
		world:     world,
		detector:  detector,
		reducer:   reducer,
		summaries: summaries,
		detlog:    detlog,
		log:       log.With(logging.Node(id)),
		metrics:   metrics,
		tracer:    otel.Tracer("congestion-sim/node"),
		phase:     Created,
	}
}

// Phase returns the node's current state machine position.
func (n *Node) Phase() Phase {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.phase
}

// Stop moves the node to its terminal state. Subsequent Tick calls fail.
func (n *Node) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.phase = Stopped
}

// setPhase moves the state machine, except out of Stopped: a Stop that
// lands mid-tick must not be overwritten by the remaining phase
// transitions or the deferred suspend.
func (n *Node) setPhase(p Phase) {
	n.mu.Lock()
	if n.phase != Stopped {
		n.phase = p
	}
	n.mu.Unlock()
}

// Tick runs one full read → infer → reduce → publish cycle for the given
// tick. An error fails only this tick: the previous summary stays in the
// map, and the caller resumes the node at the next tick boundary.
func (n *Node) Tick(ctx context.Context, tick uint64) error {
	if n.Phase() == Stopped {
		return fmt.Errorf("node %s is stopped", n.ID)
	}

	ctx, span := n.tracer.Start(ctx, "node.tick", trace.WithAttributes(
		attribute.String("node.id", n.ID),
		attribute.Int64("sim.tick", int64(tick)),
	))
	defer span.End()
	defer n.setPhase(Suspended)

	// READING: both reads are keyed by tick; stale substitutes are never
	// acceptable because consumers depend on temporal alignment.
	n.setPhase(Reading)
	state, err := n.world.EntityState(n.ID, tick)
	if err != nil {
		n.metrics.RecordNodeFailure(n.ID, Reading.String())
		return fmt.Errorf("read entity state: %w", err)
	}
	frame, err := n.world.CameraFrame(n.CameraID, tick)
	if err != nil {
		n.metrics.RecordNodeFailure(n.ID, Reading.String())
		return fmt.Errorf("read camera frame: %w", err)
	}
	if err := perception.ValidateFrame(frame); err != nil {
		n.metrics.RecordNodeFailure(n.ID, Reading.String())
		return fmt.Errorf("read camera frame: %w", err)
	}

	// INFERRING: the externally-owned model call; blocking, not a
	// scheduling suspension point.
	n.setPhase(Inferring)
	inferCtx, inferSpan := n.tracer.Start(ctx, "node.infer")
	rows, err := n.detector.Infer(inferCtx, frame)
	inferSpan.End()
	if err != nil {
		n.metrics.RecordNodeFailure(n.ID, Inferring.String())
		return fmt.Errorf("infer: %w", err)
	}

	n.setPhase(Reducing)
	result := n.reducer.Reduce(ctx, n.ID, tick, rows, frame, state.IsRSU)
	if result.Dropped > 0 && n.metrics != nil {
		n.metrics.DetectionsDropped.Add(float64(result.Dropped))
	}

	// PUBLISHING: overwrite own summary slot, append to the shared log.
	n.setPhase(Publishing)
	summary := model.OutputSummary{
		NodeID:     n.ID,
		IsRSU:      state.IsRSU,
		X:          state.X,
		Y:          state.Y,
		Heading:    state.Heading,
		Speed:      state.Speed,
		Tick:       tick,
		Detections: result.Records,
	}
	n.summaries.Publish(summary)
	n.detlog.Append(result.Records...)
	if n.metrics != nil {
		n.metrics.SummariesPublished.Inc()
		n.metrics.DetectionsLogged.Add(float64(len(result.Records)))
	}

	span.SetAttributes(attribute.Int("detections", len(result.Records)))
	n.log.Debug(ctx, "published summary",
		logging.Tick(tick),
		logging.Int("detections", len(result.Records)),
		logging.Int("dropped_rows", result.Dropped),
	)
	return nil
}
