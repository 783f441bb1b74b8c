package mhe

import (
	"github.com/pkg/errors"

	"go.viam.com/mhe/mhe/residual"
)

// MeasurementTable holds one (range, bearing) pair per landmark slot for a single update cycle.
type MeasurementTable struct {
	obs []residual.RangeBearing
}

// NewMeasurementTable returns a zeroed table with numLandmarks slots.
func NewMeasurementTable(numLandmarks int) MeasurementTable {
	return MeasurementTable{obs: make([]residual.RangeBearing, numLandmarks)}
}

// Len returns the number of landmark slots.
func (t MeasurementTable) Len() int {
	return len(t.obs)
}

// At returns the observation for slot j.
func (t MeasurementTable) At(j int) (residual.RangeBearing, error) {
	if err := CheckIndex(j, len(t.obs)); err != nil {
		return residual.RangeBearing{}, err
	}
	return t.obs[j], nil
}

// Set writes the observation for slot j.
func (t MeasurementTable) Set(j int, rb residual.RangeBearing) error {
	if err := CheckIndex(j, len(t.obs)); err != nil {
		return err
	}
	t.obs[j] = rb
	return nil
}

// Clone returns a deep copy so the history never aliases caller memory.
func (t MeasurementTable) Clone() MeasurementTable {
	return MeasurementTable{obs: append([]residual.RangeBearing(nil), t.obs...)}
}

// Visibility marks which landmark slot was observed at which row of the horizon window. Row
// Rows()-1 is the most recent update cycle.
type Visibility struct {
	rows, cols int
	visible    []bool
}

// NewVisibility returns an all false horizon×numLandmarks matrix.
func NewVisibility(horizon, numLandmarks int) *Visibility {
	return &Visibility{rows: horizon, cols: numLandmarks, visible: make([]bool, horizon*numLandmarks)}
}

// Dims returns the number of rows and landmark columns.
func (v *Visibility) Dims() (int, int) {
	return v.rows, v.cols
}

// Visible reports whether landmark j was seen on row.
func (v *Visibility) Visible(row, j int) (bool, error) {
	if err := v.check(row, j); err != nil {
		return false, err
	}
	return v.visible[row*v.cols+j], nil
}

// Set marks landmark j on row.
func (v *Visibility) Set(row, j int, visible bool) error {
	if err := v.check(row, j); err != nil {
		return err
	}
	v.visible[row*v.cols+j] = visible
	return nil
}

// Shift drops row 0, moves every other row up by one and clears the last row.
func (v *Visibility) Shift() {
	if v.rows == 0 {
		return
	}
	copy(v.visible, v.visible[v.cols:])
	last := v.visible[(v.rows-1)*v.cols:]
	for j := range last {
		last[j] = false
	}
}

// Clone returns a deep copy.
func (v *Visibility) Clone() *Visibility {
	return &Visibility{rows: v.rows, cols: v.cols, visible: append([]bool(nil), v.visible...)}
}

func (v *Visibility) check(row, j int) error {
	if row < 0 || row >= v.rows {
		return errors.Errorf("visibility row %d out of range [0, %d)", row, v.rows)
	}
	return CheckIndex(j, v.cols)
}
