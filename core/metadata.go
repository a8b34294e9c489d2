package core

import (
	"time"

	"github.com/aleksihamalainen/congestion-sim/model"
)

// Metadata is the serialized snapshot of the environment and scenario handed
// to external persistence and visualization after a run.
type Metadata struct {
	Timestamp    string           `json:"timestamp"`
	Map          string           `json:"map"`
	Waypoints    []model.Location `json:"waypoints"`
	ImageWidth   int              `json:"img_width"`
	ImageHeight  int              `json:"img_height"`
	TotalTicks   int              `json:"n_frames"`
	FPS          int              `json:"fps"`
	NVehicles    int              `json:"n_vehicles"`
	NSensors     int              `json:"n_sensors"`
	NPedestrians int              `json:"n_pedestrians"`

	Vehicles      []VehicleInfo      `json:"vehicles"`
	Sensors       []SensorInfo       `json:"sensors"`
	Pedestrians   []PedestrianInfo   `json:"pedestrians"`
	Intersections []IntersectionInfo `json:"intersections"`

	CongestionStatistics map[string]uint64 `json:"congestion_statistics"`
}

// VehicleInfo describes one vehicle's identity and physical dimensions.
type VehicleInfo struct {
	ID     string  `json:"id"`
	Model  string  `json:"model"`
	Width  float64 `json:"width"`
	Length float64 `json:"length"`
	Height float64 `json:"height"`
}

// SensorInfo describes a camera. Parentless cameras (RSUs) also carry their
// fixed placement.
type SensorInfo struct {
	ID       string          `json:"id"`
	ParentID string          `json:"parent_id,omitempty"`
	Location *model.Location `json:"location,omitempty"`
	Z        *float64        `json:"z,omitempty"`
	Rotation *model.Rotation `json:"rotation,omitempty"`
}

// PedestrianInfo describes one pedestrian's identity and dimensions.
type PedestrianInfo struct {
	ID     string  `json:"id"`
	Width  float64 `json:"width"`
	Length float64 `json:"length"`
	Height float64 `json:"height"`
}

// IntersectionInfo describes one intersection's identity and location.
type IntersectionInfo struct {
	ID       string         `json:"id"`
	Location model.Location `json:"location"`
}

// BuildMetadata assembles the metadata snapshot from the store and scenario
// parameters. Congestion statistics reflect the counters at call time, so
// this is normally invoked after the final tick.
func BuildMetadata(ws *WorldStore, sc *Scenario) Metadata {
	md := Metadata{
		Timestamp:            time.Now().UTC().Format(time.RFC3339),
		Map:                  sc.MapName,
		Waypoints:            ws.Waypoints(),
		ImageWidth:           sc.ImageWidth,
		ImageHeight:          sc.ImageHeight,
		TotalTicks:           sc.TotalTicks,
		FPS:                  sc.FPS,
		CongestionStatistics: make(map[string]uint64),
	}

	for _, e := range ws.Entities() {
		if e.Kind != model.KindVehicle {
			continue
		}
		md.Vehicles = append(md.Vehicles, VehicleInfo{
			ID:     e.ID,
			Model:  e.Model,
			Width:  e.Dimensions.Width,
			Length: e.Dimensions.Length,
			Height: e.Dimensions.Height,
		})
	}
	md.NVehicles = len(md.Vehicles)

	for _, c := range ws.Cameras() {
		info := SensorInfo{ID: c.ID, ParentID: c.ParentID}
		if c.Fixed() {
			loc := c.Location
			z := c.Z
			rot := c.Rotation
			info.Location = &loc
			info.Z = &z
			info.Rotation = &rot
		}
		md.Sensors = append(md.Sensors, info)
	}
	md.NSensors = len(md.Sensors)

	for _, p := range ws.Pedestrians() {
		md.Pedestrians = append(md.Pedestrians, PedestrianInfo{
			ID:     p.ID,
			Width:  p.Dimensions.Width,
			Length: p.Dimensions.Length,
			Height: p.Dimensions.Height,
		})
	}
	md.NPedestrians = len(md.Pedestrians)

	for _, in := range ws.Intersections() {
		md.Intersections = append(md.Intersections, IntersectionInfo{ID: in.ID, Location: in.Location})
		md.CongestionStatistics[in.ID] = in.CongestionTicks
	}

	return md
}
