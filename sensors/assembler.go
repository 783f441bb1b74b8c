package sensors

import (
	"github.com/samber/lo"
	goutils "go.viam.com/utils"

	"go.viam.com/mhe/logging"
	"go.viam.com/mhe/mhe"
	"go.viam.com/mhe/mhe/residual"
)

// Detection is one marker seen in a camera frame.
type Detection struct {
	ID      int     `json:"id"`
	Range   float64 `json:"range"`
	Bearing float64 `json:"bearing"`
}

// Assembler keeps the visibility window across cycles. The newest cycle is always on the last row.
type Assembler struct {
	registry *MarkerRegistry
	horizon  int
	vis      *mhe.Visibility
	unknown  map[int]int
	logger   logging.Logger
}

// NewAssembler returns an assembler with an empty horizon×Capacity() window.
func NewAssembler(registry *MarkerRegistry, horizon int, logger logging.Logger) *Assembler {
	if logger == nil {
		logger = logging.NewBlankLogger("sensors")
	}
	return &Assembler{
		registry: registry,
		horizon:  horizon,
		vis:      mhe.NewVisibility(horizon, registry.Capacity()),
		unknown:  map[int]int{},
		logger:   logger,
	}
}

// Next advances the window by one cycle and records detections on the newest row. Detections of
// unregistered markers are dropped. The returned visibility is a snapshot owned by the caller.
func (a *Assembler) Next(detections []Detection) (mhe.MeasurementTable, *mhe.Visibility) {
	a.vis.Shift()
	z := mhe.NewMeasurementTable(a.registry.Capacity())
	for _, d := range detections {
		slot, ok := a.registry.Slot(d.ID)
		if !ok {
			if a.unknown[d.ID] == 0 {
				a.logger.Debugw("dropping detection of unregistered marker", "id", d.ID)
			}
			a.unknown[d.ID]++
			continue
		}
		// slot and row are in range by construction
		goutils.UncheckedError(z.Set(slot, residual.RangeBearing{Range: d.Range, Bearing: d.Bearing}))
		goutils.UncheckedError(a.vis.Set(a.horizon-1, slot, true))
	}
	return z, a.vis.Clone()
}

// Dropped returns how many detections of unregistered markers have been discarded.
func (a *Assembler) Dropped() int {
	return lo.Sum(lo.Values(a.unknown))
}
