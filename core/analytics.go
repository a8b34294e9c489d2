package core

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/aleksihamalainen/congestion-sim/internal/logging"
	"github.com/aleksihamalainen/congestion-sim/model"
)

// Default analytics tuning, matching the recorded scenarios.
const (
	DefaultApproachRadius = 50.0 // length-units around an intersection
	DefaultSpeedLimitKmh  = 30.0
)

// SignalSource reports the traffic signal currently governing a vehicle.
// It is implemented by the external simulator.
type SignalSource interface {
	TrafficSignal(entityID string) (model.SignalState, error)
}

// Analytics computes per-tick congestion samples and exposes congestion
// ratios over the WorldStore's counters.
//
// The congestion proxy averages only in-radius vehicles whose signal is
// permissive: traffic that should be moving but is not. Raw occupancy would
// count stopped-at-red vehicles as congestion.
type Analytics struct {
	Store   *WorldStore
	Signals SignalSource

	// ApproachRadius bounds which vehicles contribute to an intersection's
	// average, in map length-units.
	ApproachRadius float64
	// SpeedLimitKmh sets the congestion threshold: an intersection samples
	// as congested when its average approach speed is below half this.
	SpeedLimitKmh float64

	log logging.Logger
}

// NewAnalytics constructs an Analytics pass with default tuning.
func NewAnalytics(store *WorldStore, signals SignalSource, log logging.Logger) *Analytics {
	if log == nil {
		log = logging.Noop()
	}
	return &Analytics{
		Store:          store,
		Signals:        signals,
		ApproachRadius: DefaultApproachRadius,
		SpeedLimitKmh:  DefaultSpeedLimitKmh,
		log:            log,
	}
}

// AverageApproachSpeed returns the mean speed, in km/h, of vehicles within
// ApproachRadius of the intersection whose governing signal is permissive.
// The second return value is false when no vehicle qualifies; callers must
// treat that as "not congested", never as a numeric value.
func (a *Analytics) AverageApproachSpeed(intersection model.Intersection) (float64, bool) {
	center := Vec2{X: intersection.Location.X, Y: intersection.Location.Y}

	var speeds []float64
	for _, v := range a.Store.Vehicles() {
		pos := Vec2{X: v.Pose.X, Y: v.Pose.Y}
		if pos.DistanceTo(center) >= a.ApproachRadius {
			continue
		}
		signal, err := a.Signals.TrafficSignal(v.ID)
		if err != nil || !signal.Permissive() {
			continue
		}
		speeds = append(speeds, PlanarSpeedKmh(v.VX, v.VY))
	}
	if len(speeds) == 0 {
		return 0, false
	}
	return stat.Mean(speeds, nil), true
}

// UpdateCongestion samples every intersection once and increments its
// congestion counter when the average approach speed is below half the
// speed limit. Call exactly once per tick; the counter is a count of
// ticks-under-threshold, not a rate.
func (a *Analytics) UpdateCongestion(ctx context.Context) {
	for _, in := range a.Store.Intersections() {
		avg, ok := a.AverageApproachSpeed(in)
		if !ok {
			continue
		}
		if avg < 0.5*a.SpeedLimitKmh {
			a.Store.incrementCongestion(in.ID)
			a.log.Debug(ctx, "congested tick",
				logging.String("intersection", in.ID),
				logging.Any("avg_kmh", avg),
			)
		}
	}
}

// CongestionRatio divides an intersection's congestion-tick counter by the
// elapsed tick count.
func (a *Analytics) CongestionRatio(intersectionID string, elapsedTicks uint64) (float64, error) {
	if elapsedTicks == 0 {
		return 0, fmt.Errorf("congestion ratio undefined before the first tick")
	}
	ticks, err := a.Store.CongestionTicks(intersectionID)
	if err != nil {
		return 0, err
	}
	return float64(ticks) / float64(elapsedTicks), nil
}
