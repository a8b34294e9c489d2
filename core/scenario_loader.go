package core

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/aleksihamalainen/congestion-sim/model"
)

// Scenario summarises what was loaded from a scenario file. It is mainly
// useful for wiring nodes in main() and for logging.
type Scenario struct {
	MapName     string
	FPS         int
	ImageWidth  int
	ImageHeight int
	TotalTicks  int

	VehicleIDs      []string
	RSUIDs          []string
	CameraIDs       []string
	IntersectionIDs []string

	// NodeCameras maps each perception node (vehicle or RSU entity id) to
	// the camera it reads frames from.
	NodeCameras map[string]string
}

// internal JSON shapes; unexported so the file format can evolve freely.
type scenarioJSON struct {
	Map         string             `json:"map"`
	FPS         int                `json:"fps"`
	ImageWidth  int                `json:"img_width"`
	ImageHeight int                `json:"img_height"`
	TotalTicks  int                `json:"n_frames"`
	Waypoints   []model.Location   `json:"waypoints"`
	Vehicles    []vehicleJSON      `json:"vehicles"`
	RSUs        []rsuJSON          `json:"rsus"`
	Crossings   []model.Location   `json:"intersections"`
	Pedestrians []pedestrianJSON   `json:"pedestrians"`
}

type vehicleJSON struct {
	Model      string           `json:"model"`
	Dimensions model.Dimensions `json:"dimensions"`
	SpawnPoint int              `json:"spawn_point"`
	Route      []int            `json:"route,omitempty"`
	Camera     *cameraJSON      `json:"camera,omitempty"`
}

type rsuJSON struct {
	Camera cameraJSON `json:"camera"`
}

type cameraJSON struct {
	Location model.Location `json:"location"`
	Z        float64        `json:"z"`
	Rotation model.Rotation `json:"rotation"`
}

type pedestrianJSON struct {
	Dimensions model.Dimensions `json:"dimensions"`
}

// LoadScenario reads a JSON scenario from r and populates the WorldStore
// with waypoints, vehicles (plus optional routes and mounted cameras),
// roadside units, intersections, and pedestrians.
//
// It fails on JSON and referential errors (bad route indices, bad spawn
// points); the store's own invariants cover everything else.
func LoadScenario(ws *WorldStore, r io.Reader) (*Scenario, error) {
	if ws == nil {
		return nil, fmt.Errorf("LoadScenario: store is nil")
	}

	var payload scenarioJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadScenario: decode failed: %w", err)
	}
	if payload.FPS <= 0 {
		return nil, fmt.Errorf("LoadScenario: fps must be positive, got %d", payload.FPS)
	}

	if err := ws.SetWaypoints(payload.Waypoints); err != nil {
		return nil, fmt.Errorf("LoadScenario: waypoints: %w", err)
	}

	sc := &Scenario{
		MapName:     payload.Map,
		FPS:         payload.FPS,
		ImageWidth:  payload.ImageWidth,
		ImageHeight: payload.ImageHeight,
		TotalTicks:  payload.TotalTicks,
		NodeCameras: make(map[string]string),
	}

	for i, v := range payload.Vehicles {
		if v.SpawnPoint < 0 || v.SpawnPoint >= len(payload.Waypoints) {
			return nil, fmt.Errorf("LoadScenario: vehicle %d spawn point %d out of range", i, v.SpawnPoint)
		}
		id := ws.AddVehicle(v.Model, v.Dimensions)
		spawn := payload.Waypoints[v.SpawnPoint]
		if err := ws.UpdateEntityState(id, model.Pose{X: spawn.X, Y: spawn.Y}, 0, 0); err != nil {
			return nil, fmt.Errorf("LoadScenario: place vehicle %s: %w", id, err)
		}
		if len(v.Route) > 0 {
			if err := ws.SetRoute(id, v.Route); err != nil {
				return nil, fmt.Errorf("LoadScenario: route for %s: %w", id, err)
			}
		}
		sc.VehicleIDs = append(sc.VehicleIDs, id)

		if v.Camera != nil {
			camID, err := ws.AddCamera(id, v.Camera.Location, v.Camera.Z, v.Camera.Rotation)
			if err != nil {
				return nil, fmt.Errorf("LoadScenario: camera for %s: %w", id, err)
			}
			sc.CameraIDs = append(sc.CameraIDs, camID)
			sc.NodeCameras[id] = camID
		}
	}

	for _, r := range payload.RSUs {
		pose := model.Pose{
			X:       r.Camera.Location.X,
			Y:       r.Camera.Location.Y,
			Z:       r.Camera.Z,
			Heading: r.Camera.Rotation.Yaw,
		}
		id := ws.AddRoadsideUnit(pose)
		camID, err := ws.AddCamera("", r.Camera.Location, r.Camera.Z, r.Camera.Rotation)
		if err != nil {
			return nil, fmt.Errorf("LoadScenario: camera for %s: %w", id, err)
		}
		sc.RSUIDs = append(sc.RSUIDs, id)
		sc.CameraIDs = append(sc.CameraIDs, camID)
		sc.NodeCameras[id] = camID
	}

	for _, loc := range payload.Crossings {
		sc.IntersectionIDs = append(sc.IntersectionIDs, ws.AddIntersection(loc))
	}

	for _, p := range payload.Pedestrians {
		ws.AddPedestrian(p.Dimensions)
	}

	return sc, nil
}
