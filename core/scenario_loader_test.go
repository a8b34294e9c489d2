package core

import (
	"strings"
	"testing"
)

const sampleScenario = `{
	"map": "Town02",
	"fps": 20,
	"img_width": 640,
	"img_height": 640,
	"n_frames": 100,
	"waypoints": [{"x": 0, "y": 0}, {"x": 50, "y": 0}, {"x": 100, "y": 0}],
	"vehicles": [
		{
			"model": "vehicle.audi.tt",
			"dimensions": {"length": 4.2, "width": 1.8, "height": 1.4},
			"spawn_point": 0,
			"route": [0, 2],
			"camera": {"location": {"x": 1.2, "y": 0}, "z": 1.7, "rotation": {"pitch": 0, "yaw": 0, "roll": 0}}
		},
		{
			"model": "vehicle.tesla.model3",
			"dimensions": {"length": 4.7, "width": 1.9, "height": 1.4},
			"spawn_point": 1
		}
	],
	"rsus": [
		{"camera": {"location": {"x": 100, "y": 0}, "z": 6, "rotation": {"pitch": -15, "yaw": 180, "roll": 0}}}
	],
	"intersections": [{"x": 100, "y": 0}],
	"pedestrians": [{"dimensions": {"length": 0.45, "width": 0.45, "height": 1.8}}]
}`

func TestLoadScenario(t *testing.T) {
	ws := NewWorldStore(20)
	sc, err := LoadScenario(ws, strings.NewReader(sampleScenario))
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}

	if sc.MapName != "Town02" || sc.FPS != 20 || sc.TotalTicks != 100 {
		t.Errorf("scenario header = %+v", sc)
	}
	if len(sc.VehicleIDs) != 2 || len(sc.RSUIDs) != 1 {
		t.Fatalf("vehicles = %v, rsus = %v", sc.VehicleIDs, sc.RSUIDs)
	}
	// Only the first vehicle carries a camera, plus the RSU camera.
	if len(sc.CameraIDs) != 2 {
		t.Fatalf("cameras = %v, want 2", sc.CameraIDs)
	}
	if cam, ok := sc.NodeCameras["vehicle_1"]; !ok || cam != "camera_1" {
		t.Errorf("vehicle_1 camera binding = %q, %v", cam, ok)
	}
	if cam, ok := sc.NodeCameras["rsu_1"]; !ok || cam != "camera_2" {
		t.Errorf("rsu_1 camera binding = %q, %v", cam, ok)
	}
	if _, ok := sc.NodeCameras["vehicle_2"]; ok {
		t.Error("camera-less vehicle should not be a perception node")
	}

	// Vehicle 1 was placed at its spawn point with a route.
	e, err := ws.Entity("vehicle_1")
	if err != nil {
		t.Fatalf("Entity: %v", err)
	}
	if e.Pose.X != 0 || e.Pose.Y != 0 {
		t.Errorf("spawn pose = %+v", e.Pose)
	}
	if !e.HasDestination || e.DestinationIndex != 2 {
		t.Errorf("route state = hasDest %v destIdx %d", e.HasDestination, e.DestinationIndex)
	}

	// The RSU camera is parentless and keeps its fixed placement.
	var fixed int
	for _, c := range ws.Cameras() {
		if c.Fixed() {
			fixed++
			if c.Location.X != 100 || c.Z != 6 {
				t.Errorf("rsu camera placement = %+v z=%v", c.Location, c.Z)
			}
		}
	}
	if fixed != 1 {
		t.Errorf("fixed cameras = %d, want 1", fixed)
	}

	if len(ws.Pedestrians()) != 1 || len(ws.Intersections()) != 1 {
		t.Errorf("pedestrians = %d, intersections = %d", len(ws.Pedestrians()), len(ws.Intersections()))
	}
}

func TestLoadScenarioErrors(t *testing.T) {
	cases := []struct {
		name string
		json string
	}{
		{"invalid json", `{`},
		{"zero fps", `{"fps": 0, "waypoints": []}`},
		{"bad spawn point", `{"fps": 20, "waypoints": [{"x":0,"y":0}], "vehicles": [{"model": "m", "spawn_point": 9}]}`},
		{"bad route index", `{"fps": 20, "waypoints": [{"x":0,"y":0}], "vehicles": [{"model": "m", "spawn_point": 0, "route": [0, 5]}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ws := NewWorldStore(20)
			if _, err := LoadScenario(ws, strings.NewReader(tc.json)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
