package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/aleksihamalainen/congestion-sim/internal/logging"
	"github.com/aleksihamalainen/congestion-sim/model"
)

type recordingReleaser struct {
	mu       sync.Mutex
	released []string
	failOn   map[string]error
}

func (r *recordingReleaser) Release(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failOn[id]; ok {
		return err
	}
	r.released = append(r.released, id)
	return nil
}

func TestReleaseAllOrder(t *testing.T) {
	ws := NewWorldStore(20)
	if _, err := LoadScenario(ws, strings.NewReader(sampleScenario)); err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}

	rel := &recordingReleaser{}
	if err := ReleaseAll(context.Background(), ws, rel, logging.Noop()); err != nil {
		t.Fatalf("ReleaseAll: %v", err)
	}

	// 2 cameras + 3 entities (2 vehicles, 1 rsu) + 1 pedestrian.
	if len(rel.released) != 6 {
		t.Fatalf("released %d actors: %v", len(rel.released), rel.released)
	}
	// Sensors must go before their parents.
	camsDone := false
	for _, id := range rel.released {
		if strings.HasPrefix(id, "camera_") {
			if camsDone {
				t.Fatalf("camera released after entities: %v", rel.released)
			}
		} else {
			camsDone = true
		}
	}
}

func TestReleaseAllContinuesPastFailures(t *testing.T) {
	ws := NewWorldStore(20)
	v1 := ws.AddVehicle("m", model.Dimensions{})
	v2 := ws.AddVehicle("m", model.Dimensions{})

	boom := errors.New("actor busy")
	rel := &recordingReleaser{failOn: map[string]error{v1: boom}}

	err := ReleaseAll(context.Background(), ws, rel, logging.Noop())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
	if len(rel.released) != 1 || rel.released[0] != v2 {
		t.Errorf("surviving releases = %v, want [%s]", rel.released, v2)
	}
}
