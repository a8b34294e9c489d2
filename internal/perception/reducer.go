package perception

import (
	"context"

	"github.com/aleksihamalainen/congestion-sim/internal/logging"
	"github.com/aleksihamalainen/congestion-sim/model"
)

// Self-detection dead zone divisors. A vehicle-mounted camera sees part of
// its own hood/body as a large vehicle in the lower frame region; a vehicle
// box whose vertical extent satisfies both bounds is suppressed. The values
// are empirically tuned; keep them unless the camera mount geometry changes.
const (
	DefaultYMinDivisor = 1.6
	DefaultYMaxDivisor = 16.0
)

// Reducer turns a raw per-image detection table into a filtered, typed list
// of DetectionRecords: class allow-listing, self-detection suppression, and
// defensive validation of each row.
type Reducer struct {
	// YMinDivisor and YMaxDivisor tune the dead zone: a vehicle row is
	// suppressed when ymin > height/YMinDivisor and ymax > height/YMaxDivisor.
	YMinDivisor float64
	YMaxDivisor float64

	log logging.Logger
}

// NewReducer constructs a Reducer with the standard dead-zone tuning.
func NewReducer(log logging.Logger) *Reducer {
	if log == nil {
		log = logging.Noop()
	}
	return &Reducer{
		YMinDivisor: DefaultYMinDivisor,
		YMaxDivisor: DefaultYMaxDivisor,
		log:         log,
	}
}

// Result is the outcome of reducing one detection table. Dropped counts
// malformed rows that were skipped, so silent data loss stays observable.
type Result struct {
	Records []model.DetectionRecord
	Dropped int
}

// Reduce filters one raw table for the owning node. Row order is preserved;
// the per-record index mirrors the surviving rows' input positions. A
// malformed row fails only itself: it is skipped and counted.
func (r *Reducer) Reduce(ctx context.Context, ownerID string, tick uint64, rows []RawDetection, frame Frame, isRSU bool) Result {
	var res Result
	for i, row := range rows {
		if err := validateRow(row, frame); err != nil {
			res.Dropped++
			r.log.Warn(ctx, "malformed detection row skipped",
				logging.Node(ownerID),
				logging.Tick(tick),
				logging.Int("row", i),
				logging.Err(err),
			)
			continue
		}
		if !model.KnownClass(row.Label) {
			continue
		}
		// A mobile vehicle's camera can detect its mounting vehicle; drop
		// vehicle boxes confined to the dead zone near the bottom of the
		// frame. RSUs have no ego vehicle, so they keep everything.
		if !isRSU && row.Label == string(model.ClassVehicle) {
			h := float64(frame.Height)
			if row.YMin > h/r.YMinDivisor && row.YMax > h/r.YMaxDivisor {
				continue
			}
		}
		res.Records = append(res.Records, model.DetectionRecord{
			ParentID: ownerID,
			Index:    i,
			Class:    model.Class(row.Label),
			XMin:     row.XMin,
			YMin:     row.YMin,
			XMax:     row.XMax,
			YMax:     row.YMax,
			Tick:     tick,
		})
	}
	return res
}

// validateRow rejects rows the inference collaborator should never emit:
// empty labels and degenerate or out-of-frame boxes. Skipping them here
// keeps corrupt coordinates out of the published records.
func validateRow(row RawDetection, frame Frame) error {
	if row.Label == "" {
		return errEmptyLabel
	}
	if row.XMin > row.XMax || row.YMin > row.YMax {
		return errInvertedBox
	}
	if row.XMin < 0 || row.YMin < 0 ||
		row.XMax > float64(frame.Width) || row.YMax > float64(frame.Height) {
		return errBoxOutOfFrame
	}
	return nil
}

type rowError string

func (e rowError) Error() string { return string(e) }

const (
	errEmptyLabel    rowError = "empty class label"
	errInvertedBox   rowError = "inverted bounding box"
	errBoxOutOfFrame rowError = "bounding box outside frame"
)
