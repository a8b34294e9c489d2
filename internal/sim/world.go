// Package sim defines the narrow interface through which the rest of the
// system consumes the underlying world simulator, plus a deterministic
// in-process implementation for tests and standalone runs. The real
// physics simulator stays external behind the same interface.
package sim

import (
	"errors"
	"fmt"

	"github.com/aleksihamalainen/congestion-sim/internal/perception"
	"github.com/aleksihamalainen/congestion-sim/model"
)

// ErrTickUnavailable marks a read for a tick the world cannot serve. Nodes
// fail fast on it rather than substitute stale data; temporal alignment is
// part of the consumer contract.
var ErrTickUnavailable = errors.New("state unavailable for requested tick")

// World is the consumed surface of the simulator collaborator. Reads are
// keyed by tick so callers cannot accidentally mix state across tick
// boundaries.
type World interface {
	// CurrentTick returns the tick whose state is currently readable.
	CurrentTick() uint64
	// EntityState returns an entity's pose and speed for the given tick.
	EntityState(id string, tick uint64) (model.EntityState, error)
	// CameraFrame returns a camera's rendered frame for the given tick.
	CameraFrame(cameraID string, tick uint64) (perception.Frame, error)
	// TrafficSignal returns the state of the signal governing an entity.
	TrafficSignal(entityID string) (model.SignalState, error)
	// AdvanceTick steps the world forward one tick and returns the new tick.
	AdvanceTick() uint64
}

// TickError wraps ErrTickUnavailable with the id and tick that missed.
func TickError(id string, want, have uint64) error {
	return fmt.Errorf("%w: %s wants tick %d, world at %d", ErrTickUnavailable, id, want, have)
}
