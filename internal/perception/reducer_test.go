package perception

import (
	"context"
	"testing"

	"github.com/aleksihamalainen/congestion-sim/internal/logging"
	"github.com/aleksihamalainen/congestion-sim/model"
)

func TestReduceClassAllowListAndDeadZone(t *testing.T) {
	r := NewReducer(logging.Noop())
	frame := Frame{Width: 640, Height: 640}

	rows := []RawDetection{
		// Vehicle box confined to the lower frame: looks like the ego hood.
		{Label: "vehicle", Confidence: 0.9, XMin: 100, YMin: 0.7 * 640, XMax: 500, YMax: 0.9 * 640},
		{Label: "dog", Confidence: 0.8, XMin: 10, YMin: 10, XMax: 40, YMax: 40},
		{Label: "person", Confidence: 0.85, XMin: 200, YMin: 100, XMax: 240, YMax: 220},
	}

	res := r.Reduce(context.Background(), "vehicle_1", 7, rows, frame, false)
	if res.Dropped != 0 {
		t.Fatalf("Dropped = %d", res.Dropped)
	}
	if len(res.Records) != 1 {
		t.Fatalf("records = %+v, want only the person", res.Records)
	}
	got := res.Records[0]
	if got.Class != model.ClassPerson || got.Index != 2 {
		t.Errorf("record = %+v", got)
	}
	if got.ParentID != "vehicle_1" || got.Tick != 7 {
		t.Errorf("record attribution = %+v", got)
	}

	// The same table from a roadside unit keeps the vehicle: there is no
	// ego vehicle to suppress.
	res = r.Reduce(context.Background(), "rsu_1", 7, rows, frame, true)
	if len(res.Records) != 2 {
		t.Fatalf("rsu records = %+v", res.Records)
	}
	if res.Records[0].Class != model.ClassVehicle || res.Records[1].Class != model.ClassPerson {
		t.Errorf("rsu records = %+v", res.Records)
	}
}

func TestReduceDeadZoneRequiresBothBounds(t *testing.T) {
	r := NewReducer(logging.Noop())
	frame := Frame{Width: 640, Height: 640}

	cases := []struct {
		name       string
		ymin, ymax float64
		kept       bool
	}{
		{"both bounds deep", 0.7 * 640, 0.9 * 640, false},
		{"ymin high in frame", 0.3 * 640, 0.9 * 640, true},
		{"ymin just below dead zone", 0.6 * 640, 0.9 * 640, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows := []RawDetection{{Label: "vehicle", XMin: 0, YMin: tc.ymin, XMax: 100, YMax: tc.ymax}}
			res := r.Reduce(context.Background(), "vehicle_1", 1, rows, frame, false)
			if kept := len(res.Records) == 1; kept != tc.kept {
				t.Errorf("kept = %v, want %v", kept, tc.kept)
			}
		})
	}
}

func TestReduceSkipsMalformedRows(t *testing.T) {
	r := NewReducer(logging.Noop())
	frame := Frame{Width: 640, Height: 640}

	rows := []RawDetection{
		{Label: "", XMin: 0, YMin: 0, XMax: 10, YMax: 10},
		{Label: "vehicle", XMin: 50, YMin: 50, XMax: 20, YMax: 60},  // inverted
		{Label: "person", XMin: 600, YMin: 10, XMax: 700, YMax: 40}, // off frame
		{Label: "vehicle", XMin: 10, YMin: 10, XMax: 80, YMax: 60},
	}

	res := r.Reduce(context.Background(), "rsu_1", 3, rows, frame, true)
	if res.Dropped != 3 {
		t.Fatalf("Dropped = %d, want 3", res.Dropped)
	}
	if len(res.Records) != 1 || res.Records[0].Index != 3 {
		t.Fatalf("records = %+v", res.Records)
	}
}

func TestReduceEmptyTable(t *testing.T) {
	r := NewReducer(logging.Noop())
	res := r.Reduce(context.Background(), "vehicle_1", 1, nil, Frame{Width: 640, Height: 640}, false)
	if len(res.Records) != 0 || res.Dropped != 0 {
		t.Fatalf("result = %+v", res)
	}
}
