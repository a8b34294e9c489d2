package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/aleksihamalainen/congestion-sim/internal/logging"
)

// ActorReleaser detaches one simulator-owned resource (sensor, vehicle,
// controller, pedestrian). Implemented by the external simulator binding.
type ActorReleaser interface {
	Release(ctx context.Context, id string) error
}

// ReleaseAll releases every camera, entity, and pedestrian tracked by the
// store. Teardown is best-effort and exhaustive: a refused release is
// recorded and the remaining resources are still released. The joined error
// lists every failure.
func ReleaseAll(ctx context.Context, ws *WorldStore, releaser ActorReleaser, log logging.Logger) error {
	if log == nil {
		log = logging.Noop()
	}

	var errs []error
	release := func(id string) {
		if err := releaser.Release(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", id, err))
			log.Warn(ctx, "actor release failed", logging.String("actor", id), logging.Err(err))
		}
	}

	// Sensors first so nothing keeps streaming from a destroyed parent.
	for _, c := range ws.Cameras() {
		release(c.ID)
	}
	for _, e := range ws.Entities() {
		release(e.ID)
	}
	for _, p := range ws.Pedestrians() {
		release(p.ID)
	}

	return errors.Join(errs...)
}
