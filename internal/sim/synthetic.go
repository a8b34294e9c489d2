package sim

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"

	"github.com/aleksihamalainen/congestion-sim/core"
	"github.com/aleksihamalainen/congestion-sim/internal/perception"
	"github.com/aleksihamalainen/congestion-sim/model"
)

// SyntheticWorld is a deterministic waypoint-following world. Vehicles with
// routes move along their waypoint polyline at a fixed cruise speed and stop
// at the final waypoint; signals cycle red/green on a fixed period with a
// per-entity phase offset. It writes refreshed poses into the WorldStore on
// every AdvanceTick, mirroring how the external simulator owns per-tick
// position updates.
type SyntheticWorld struct {
	mu sync.RWMutex

	store *core.WorldStore

	// CruiseSpeed is the scripted vehicle speed in m/s.
	CruiseSpeed float64
	// SignalPeriod is the length of one red or green phase, in ticks.
	SignalPeriod uint64

	frameWidth  int
	frameHeight int
	tickSeconds float64

	tick     uint64
	progress map[string]*routeProgress
	released map[string]bool
}

type routeProgress struct {
	segment int     // index into the route's waypoint list
	along   float64 // metres travelled into the current segment
	done    bool
}

// NewSyntheticWorld builds a world over an already-populated store.
func NewSyntheticWorld(store *core.WorldStore, frameWidth, frameHeight int) *SyntheticWorld {
	return &SyntheticWorld{
		store:        store,
		CruiseSpeed:  8.0,
		SignalPeriod: 60,
		frameWidth:   frameWidth,
		frameHeight:  frameHeight,
		tickSeconds:  1.0 / float64(store.TicksPerSecond),
		progress:     make(map[string]*routeProgress),
		released:     make(map[string]bool),
	}
}

// CurrentTick implements World.
func (w *SyntheticWorld) CurrentTick() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.tick
}

// AdvanceTick implements World: advances scripted vehicle motion by one tick
// and refreshes the store.
func (w *SyntheticWorld) AdvanceTick() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.tick++
	waypoints := w.store.Waypoints()
	for _, v := range w.store.Vehicles() {
		if !v.HasDestination || w.released[v.ID] {
			continue
		}
		w.moveVehicle(v, waypoints)
	}
	return w.tick
}

func (w *SyntheticWorld) moveVehicle(v model.Entity, waypoints []model.Location) {
	prog, ok := w.progress[v.ID]
	if !ok {
		prog = &routeProgress{}
		w.progress[v.ID] = prog
	}
	if prog.done || len(v.Route) < 2 {
		// Single-waypoint routes are already at their destination.
		if len(v.Route) == 1 && !prog.done {
			dest := waypoints[v.Route[0]]
			_ = w.store.UpdateEntityState(v.ID, model.Pose{X: dest.X, Y: dest.Y, Heading: v.Pose.Heading}, 0, 0)
			prog.done = true
		} else if prog.done {
			_ = w.store.UpdateEntityState(v.ID, v.Pose, 0, 0)
		}
		return
	}

	remaining := w.CruiseSpeed * w.tickSeconds
	x, y := v.Pose.X, v.Pose.Y
	for remaining > 0 && prog.segment < len(v.Route)-1 {
		target := waypoints[v.Route[prog.segment+1]]
		dx, dy := target.X-x, target.Y-y
		dist := math.Hypot(dx, dy)
		if dist <= remaining {
			x, y = target.X, target.Y
			remaining -= dist
			prog.segment++
			prog.along = 0
			continue
		}
		x += dx / dist * remaining
		y += dy / dist * remaining
		prog.along += remaining
		remaining = 0
	}

	vx, vy := 0.0, 0.0
	heading := v.Pose.Heading
	if prog.segment < len(v.Route)-1 {
		target := waypoints[v.Route[prog.segment+1]]
		dx, dy := target.X-x, target.Y-y
		if d := math.Hypot(dx, dy); d > 0 {
			vx = dx / d * w.CruiseSpeed
			vy = dy / d * w.CruiseSpeed
			heading = math.Atan2(dy, dx) * 180 / math.Pi
		}
	} else {
		prog.done = true
	}
	_ = w.store.UpdateEntityState(v.ID, model.Pose{X: x, Y: y, Heading: heading}, vx, vy)
}

// EntityState implements World. It serves only the current tick.
func (w *SyntheticWorld) EntityState(id string, tick uint64) (model.EntityState, error) {
	w.mu.RLock()
	current := w.tick
	released := w.released[id]
	w.mu.RUnlock()

	if tick != current {
		return model.EntityState{}, TickError(id, tick, current)
	}
	if released {
		return model.EntityState{}, fmt.Errorf("entity %q has been released", id)
	}

	e, err := w.store.Entity(id)
	if err != nil {
		return model.EntityState{}, err
	}
	return model.EntityState{
		ID:      e.ID,
		IsRSU:   e.IsRSU(),
		X:       e.Pose.X,
		Y:       e.Pose.Y,
		Heading: e.Pose.Heading,
		Speed:   math.Hypot(e.VX, e.VY),
	}, nil
}

// CameraFrame implements World. Frames carry real dimensions and synthetic
// pixel content; the detection model is scripted in this world, so pixels
// are never inspected.
func (w *SyntheticWorld) CameraFrame(cameraID string, tick uint64) (perception.Frame, error) {
	w.mu.RLock()
	current := w.tick
	released := w.released[cameraID]
	w.mu.RUnlock()

	if tick != current {
		return perception.Frame{}, TickError(cameraID, tick, current)
	}
	if released {
		return perception.Frame{}, fmt.Errorf("camera %q has been released", cameraID)
	}

	found := false
	for _, c := range w.store.Cameras() {
		if c.ID == cameraID {
			found = true
			break
		}
	}
	if !found {
		return perception.Frame{}, fmt.Errorf("camera %q not found", cameraID)
	}
	return perception.Frame{Width: w.frameWidth, Height: w.frameHeight}, nil
}

// TrafficSignal implements World and core.SignalSource. The phase offset is
// derived from the entity id so co-located vehicles do not all flip at once.
func (w *SyntheticWorld) TrafficSignal(entityID string) (model.SignalState, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if _, err := w.store.Entity(entityID); err != nil {
		return model.SignalUnknown, err
	}
	if w.SignalPeriod == 0 {
		return model.SignalGreen, nil
	}
	h := fnv.New32a()
	h.Write([]byte(entityID))
	phase := (w.tick/w.SignalPeriod + uint64(h.Sum32())) % 2
	if phase == 0 {
		return model.SignalGreen, nil
	}
	return model.SignalRed, nil
}

// Release implements core.ActorReleaser. Releasing twice is an error, which
// exercises the best-effort teardown path.
func (w *SyntheticWorld) Release(_ context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.released[id] {
		return fmt.Errorf("actor %q already released", id)
	}
	w.released[id] = true
	return nil
}
