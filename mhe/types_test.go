package mhe

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/mhe/mhe/residual"
)

func TestMeasurementTable(t *testing.T) {
	z := NewMeasurementTable(3)
	test.That(t, z.Len(), test.ShouldEqual, 3)
	test.That(t, z.Set(2, residual.RangeBearing{Range: 1, Bearing: -0.5}), test.ShouldBeNil)
	rb, err := z.At(2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rb, test.ShouldResemble, residual.RangeBearing{Range: 1, Bearing: -0.5})

	var idxErr *IndexError
	test.That(t, errors.As(z.Set(3, residual.RangeBearing{}), &idxErr), test.ShouldBeTrue)
	_, err = z.At(-1)
	test.That(t, errors.As(err, &idxErr), test.ShouldBeTrue)
	test.That(t, idxErr.Error(), test.ShouldEqual, "landmark slot -1 out of range [0, 3)")

	clone := z.Clone()
	test.That(t, z.Set(2, residual.RangeBearing{}), test.ShouldBeNil)
	rb, err = clone.At(2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rb.Range, test.ShouldEqual, 1)
}

func TestVisibility(t *testing.T) {
	v := NewVisibility(3, 2)
	rows, cols := v.Dims()
	test.That(t, []int{rows, cols}, test.ShouldResemble, []int{3, 2})

	test.That(t, v.Set(2, 1, true), test.ShouldBeNil)
	test.That(t, v.Set(1, 0, true), test.ShouldBeNil)
	test.That(t, v.Set(3, 0, true), test.ShouldNotBeNil)
	_, err := v.Visible(0, 2)
	test.That(t, err, test.ShouldNotBeNil)

	v.Shift()
	for _, tc := range []struct {
		row, col int
		want     bool
	}{
		{0, 0, true}, {0, 1, false},
		{1, 0, false}, {1, 1, true},
		{2, 0, false}, {2, 1, false},
	} {
		got, err := v.Visible(tc.row, tc.col)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got, test.ShouldEqual, tc.want)
	}

	clone := v.Clone()
	test.That(t, v.Set(0, 0, false), test.ShouldBeNil)
	got, err := clone.Visible(0, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldBeTrue)
}

func TestIndexErrors(t *testing.T) {
	err := NewIndexError(2, 2)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldEqual, "landmark slot 2 out of range [0, 2)")
	test.That(t, NewIndexError(0, 2), test.ShouldNotBeNil)

	test.That(t, CheckIndex(0, 2), test.ShouldBeNil)
	test.That(t, CheckIndex(1, 2), test.ShouldBeNil)
	for _, idx := range []int{-1, 2} {
		var idxErr *IndexError
		test.That(t, errors.As(CheckIndex(idx, 2), &idxErr), test.ShouldBeTrue)
		test.That(t, idxErr.Index, test.ShouldEqual, idx)
	}
	test.That(t, CheckIndex(0, 0), test.ShouldNotBeNil)
}
