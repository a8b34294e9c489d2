package core

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aleksihamalainen/congestion-sim/model"
)

// WorldStore is the in-memory, thread-safe source of truth for entity pose,
// velocity, and the counters derived from them. Positions and velocities are
// written by the simulator's tick advance; the travel and congestion
// counters are written by the accounting passes. Node processes only read.
type WorldStore struct {
	mu sync.RWMutex

	// TicksPerSecond converts travelled ticks into seconds. Immutable after
	// construction.
	TicksPerSecond int

	entities      map[string]*model.Entity
	entityOrder   []string
	intersections map[string]*model.Intersection
	interOrder    []string
	cameras       map[string]*model.Camera
	cameraOrder   []string
	pedestrians   map[string]*model.Pedestrian
	pedOrder      []string

	waypoints []model.Location

	vehicleSeq      int
	rsuSeq          int
	cameraSeq       int
	intersectionSeq int
	pedestrianSeq   int
}

// NewWorldStore constructs an empty store. ticksPerSecond must match the
// simulator's fixed tick rate; it defaults to 1 when non-positive so travel
// times stay defined.
func NewWorldStore(ticksPerSecond int) *WorldStore {
	if ticksPerSecond <= 0 {
		ticksPerSecond = 1
	}
	return &WorldStore{
		TicksPerSecond: ticksPerSecond,
		entities:       make(map[string]*model.Entity),
		intersections:  make(map[string]*model.Intersection),
		cameras:        make(map[string]*model.Camera),
		pedestrians:    make(map[string]*model.Pedestrian),
	}
}

// SetWaypoints installs the map's waypoint grid. Route indices refer into
// this slice, so a grid that drops an index some route still holds is
// rejected: travel accounting and motion would read past the new slice.
func (ws *WorldStore) SetWaypoints(points []model.Location) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	for _, id := range ws.entityOrder {
		for _, idx := range ws.entities[id].Route {
			if idx >= len(points) {
				return fmt.Errorf("waypoint grid of %d points drops index %d held by %s", len(points), idx, id)
			}
		}
	}
	ws.waypoints = append([]model.Location(nil), points...)
	return nil
}

// Waypoints returns a snapshot of the waypoint grid.
func (ws *WorldStore) Waypoints() []model.Location {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return append([]model.Location(nil), ws.waypoints...)
}

// AddVehicle registers a mobile vehicle and returns its sequential id
// (vehicle_1, vehicle_2, ...). Ids are never reused within a run.
func (ws *WorldStore) AddVehicle(modelName string, dims model.Dimensions) string {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	ws.vehicleSeq++
	id := fmt.Sprintf("vehicle_%d", ws.vehicleSeq)
	ws.entities[id] = &model.Entity{
		ID:         id,
		Kind:       model.KindVehicle,
		Model:      modelName,
		Dimensions: dims,
	}
	ws.entityOrder = append(ws.entityOrder, id)
	return id
}

// AddRoadsideUnit registers a stationary roadside unit at a fixed pose and
// returns its sequential id (rsu_1, rsu_2, ...).
func (ws *WorldStore) AddRoadsideUnit(pose model.Pose) string {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	ws.rsuSeq++
	id := fmt.Sprintf("rsu_%d", ws.rsuSeq)
	ws.entities[id] = &model.Entity{
		ID:   id,
		Kind: model.KindRoadsideUnit,
		Pose: pose,
	}
	ws.entityOrder = append(ws.entityOrder, id)
	return id
}

// AddCamera registers a camera, optionally attached to a parent entity.
// Parentless cameras must carry their own placement.
func (ws *WorldStore) AddCamera(parentID string, loc model.Location, z float64, rot model.Rotation) (string, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if parentID != "" {
		if _, ok := ws.entities[parentID]; !ok {
			return "", fmt.Errorf("camera parent %q not found", parentID)
		}
	}
	ws.cameraSeq++
	id := fmt.Sprintf("camera_%d", ws.cameraSeq)
	ws.cameras[id] = &model.Camera{
		ID:       id,
		ParentID: parentID,
		Location: loc,
		Z:        z,
		Rotation: rot,
	}
	ws.cameraOrder = append(ws.cameraOrder, id)
	return id, nil
}

// AddIntersection registers a congestion sampling point and returns its
// sequential id (intersection_1, ...). Its counter starts at zero.
func (ws *WorldStore) AddIntersection(loc model.Location) string {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	ws.intersectionSeq++
	id := fmt.Sprintf("intersection_%d", ws.intersectionSeq)
	ws.intersections[id] = &model.Intersection{ID: id, Location: loc}
	ws.interOrder = append(ws.interOrder, id)
	return id
}

// AddPedestrian records a pedestrian's identity and dimensions for metadata
// export. Pedestrian motion is owned by the external simulator.
func (ws *WorldStore) AddPedestrian(dims model.Dimensions) string {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	ws.pedestrianSeq++
	id := fmt.Sprintf("pedestrian_%d", ws.pedestrianSeq)
	ws.pedestrians[id] = &model.Pedestrian{ID: id, Dimensions: dims}
	ws.pedOrder = append(ws.pedOrder, id)
	return id
}

// SetRoute assigns an ordered waypoint route to a vehicle. The last index is
// the destination used by travel accounting. RSUs cannot carry routes.
func (ws *WorldStore) SetRoute(entityID string, indices []int) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	e, ok := ws.entities[entityID]
	if !ok {
		return fmt.Errorf("entity %q not found", entityID)
	}
	if e.Kind != model.KindVehicle {
		return fmt.Errorf("entity %q is not a vehicle", entityID)
	}
	if len(indices) == 0 {
		return errors.New("route must contain at least one waypoint index")
	}
	for _, idx := range indices {
		if idx < 0 || idx >= len(ws.waypoints) {
			return fmt.Errorf("route index %d out of range (%d waypoints)", idx, len(ws.waypoints))
		}
	}
	e.Route = append([]int(nil), indices...)
	e.DestinationIndex = indices[len(indices)-1]
	e.HasDestination = true
	return nil
}

// UpdateEntityState refreshes an entity's pose and velocity. This is the
// simulator-owned write that happens once per tick per entity.
func (ws *WorldStore) UpdateEntityState(id string, pose model.Pose, vx, vy float64) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	e, ok := ws.entities[id]
	if !ok {
		return fmt.Errorf("entity %q not found", id)
	}
	e.Pose = pose
	e.VX = vx
	e.VY = vy
	return nil
}

// AdvanceTravelAccounting performs the once-per-tick travel pass: a vehicle
// whose rounded (x, y) matches its rounded destination waypoint is marked
// arrived; vehicles still under way gain one travelled tick. The arrived
// flag latches and its counter stops growing from that tick onward.
// Entities without an assigned route are skipped silently.
func (ws *WorldStore) AdvanceTravelAccounting() {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	for _, id := range ws.entityOrder {
		e := ws.entities[id]
		if e.Kind != model.KindVehicle || !e.HasDestination {
			continue
		}
		dest := ws.waypoints[e.DestinationIndex]
		if RoundedEqual(Vec2{X: e.Pose.X, Y: e.Pose.Y}, Vec2{X: dest.X, Y: dest.Y}) {
			e.ReachedDestination = true
		}
		if !e.ReachedDestination {
			e.TravelledTicks++
		}
	}
}

// TravelTime returns the travel time of an entity in seconds, reflecting the
// most recent accounting pass.
func (ws *WorldStore) TravelTime(id string) (float64, error) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	e, ok := ws.entities[id]
	if !ok {
		return 0, fmt.Errorf("entity %q not found", id)
	}
	return float64(e.TravelledTicks) / float64(ws.TicksPerSecond), nil
}

// TravelTimes returns travel times in seconds for every vehicle.
func (ws *WorldStore) TravelTimes() map[string]float64 {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	times := make(map[string]float64)
	for id, e := range ws.entities {
		if e.Kind != model.KindVehicle {
			continue
		}
		times[id] = float64(e.TravelledTicks) / float64(ws.TicksPerSecond)
	}
	return times
}

// ReachedDestination reports whether the entity has arrived. Unknown ids and
// entities without routes report false.
func (ws *WorldStore) ReachedDestination(id string) bool {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	e, ok := ws.entities[id]
	return ok && e.ReachedDestination
}

// Entity returns a snapshot copy of an entity.
func (ws *WorldStore) Entity(id string) (model.Entity, error) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	e, ok := ws.entities[id]
	if !ok {
		return model.Entity{}, fmt.Errorf("entity %q not found", id)
	}
	return *e, nil
}

// Entities returns snapshot copies of all entities in creation order.
func (ws *WorldStore) Entities() []model.Entity {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	out := make([]model.Entity, 0, len(ws.entityOrder))
	for _, id := range ws.entityOrder {
		out = append(out, *ws.entities[id])
	}
	return out
}

// Vehicles returns snapshot copies of all mobile vehicles in creation order.
func (ws *WorldStore) Vehicles() []model.Entity {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	out := make([]model.Entity, 0, len(ws.entityOrder))
	for _, id := range ws.entityOrder {
		if e := ws.entities[id]; e.Kind == model.KindVehicle {
			out = append(out, *e)
		}
	}
	return out
}

// Intersections returns snapshot copies of all intersections in creation
// order.
func (ws *WorldStore) Intersections() []model.Intersection {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	out := make([]model.Intersection, 0, len(ws.interOrder))
	for _, id := range ws.interOrder {
		out = append(out, *ws.intersections[id])
	}
	return out
}

// Cameras returns snapshot copies of all cameras in creation order.
func (ws *WorldStore) Cameras() []model.Camera {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	out := make([]model.Camera, 0, len(ws.cameraOrder))
	for _, id := range ws.cameraOrder {
		out = append(out, *ws.cameras[id])
	}
	return out
}

// Pedestrians returns snapshot copies of all pedestrians in creation order.
func (ws *WorldStore) Pedestrians() []model.Pedestrian {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	out := make([]model.Pedestrian, 0, len(ws.pedOrder))
	for _, id := range ws.pedOrder {
		out = append(out, *ws.pedestrians[id])
	}
	return out
}

// CongestionTicks returns an intersection's congestion counter.
func (ws *WorldStore) CongestionTicks(id string) (uint64, error) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	in, ok := ws.intersections[id]
	if !ok {
		return 0, fmt.Errorf("intersection %q not found", id)
	}
	return in.CongestionTicks, nil
}

// incrementCongestion bumps an intersection's counter by one tick. Only the
// analytics pass calls this, once per tick per congested intersection.
func (ws *WorldStore) incrementCongestion(id string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if in, ok := ws.intersections[id]; ok {
		in.CongestionTicks++
	}
}
