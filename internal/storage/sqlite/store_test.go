package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleksihamalainen/congestion-sim/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDetectionRoundTrip(t *testing.T) {
	s := openTestStore(t)

	runID, err := s.CreateRun("Town02", 20, 640, 640)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	batch := []model.DetectionRecord{
		{ParentID: "vehicle_1", Index: 0, Class: model.ClassVehicle, XMin: 10, YMin: 20, XMax: 110, YMax: 90, Tick: 3},
		{ParentID: "vehicle_1", Index: 1, Class: model.ClassPerson, XMin: 200, YMin: 100, XMax: 240, YMax: 220, Tick: 3},
	}
	require.NoError(t, s.AppendDetections(runID, batch))
	require.NoError(t, s.AppendDetections(runID, []model.DetectionRecord{
		{ParentID: "rsu_1", Index: 0, Class: model.ClassVehicle, XMin: 5, YMin: 5, XMax: 50, YMax: 40, Tick: 4},
	}))
	require.NoError(t, s.AppendDetections(runID, nil))

	n, err := s.DetectionCount(runID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := s.Detections(runID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, batch[0], got[0])
	assert.Equal(t, batch[1], got[1])
	assert.Equal(t, "rsu_1", got[2].ParentID)
	assert.Equal(t, uint64(4), got[2].Tick)
}

func TestRunsAreIsolated(t *testing.T) {
	s := openTestStore(t)

	run1, err := s.CreateRun("Town02", 20, 640, 640)
	require.NoError(t, err)
	run2, err := s.CreateRun("Town05", 10, 800, 600)
	require.NoError(t, err)
	require.NotEqual(t, run1, run2)

	require.NoError(t, s.AppendDetections(run1, []model.DetectionRecord{
		{ParentID: "vehicle_1", Class: model.ClassVehicle, Tick: 1},
	}))

	n1, err := s.DetectionCount(run1)
	require.NoError(t, err)
	n2, err := s.DetectionCount(run2)
	require.NoError(t, err)
	assert.Equal(t, 1, n1)
	assert.Equal(t, 0, n2)
}

func TestFinishRunPersistsCounters(t *testing.T) {
	s := openTestStore(t)

	runID, err := s.CreateRun("Town02", 20, 640, 640)
	require.NoError(t, err)

	congestion := map[string]uint64{"intersection_1": 42, "intersection_2": 0}
	travel := map[string]float64{"vehicle_1": 12.4, "vehicle_2": 0}
	meta := map[string]any{"map": "Town02", "fps": 20}

	require.NoError(t, s.FinishRun(runID, congestion, travel, meta))

	gotCongestion, err := s.CongestionTicks(runID)
	require.NoError(t, err)
	assert.Equal(t, congestion, gotCongestion)

	gotTravel, err := s.TravelTimes(runID)
	require.NoError(t, err)
	assert.Equal(t, travel, gotTravel)
}

func TestFinishRunWithoutMetadata(t *testing.T) {
	s := openTestStore(t)

	runID, err := s.CreateRun("Town02", 20, 640, 640)
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(runID, nil, nil, nil))

	ticks, err := s.CongestionTicks(runID)
	require.NoError(t, err)
	assert.Empty(t, ticks)
}
