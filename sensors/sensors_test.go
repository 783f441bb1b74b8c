package sensors

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/mhe/kinematics"
	"go.viam.com/mhe/logging"
	"go.viam.com/mhe/mhe"
	"go.viam.com/mhe/mhe/residual"
	"go.viam.com/mhe/spatialmath"
)

func TestMarkerRegistry(t *testing.T) {
	r := NewMarkerRegistry(3)
	test.That(t, r.Register(42, 0), test.ShouldBeNil)
	test.That(t, r.Register(7, 2), test.ShouldBeNil)
	test.That(t, r.Register(42, 0), test.ShouldBeNil)

	err := r.Register(42, 1)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "already registered")
	err = r.Register(8, 2)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "already taken")

	var idxErr *mhe.IndexError
	test.That(t, errors.As(r.Register(9, 3), &idxErr), test.ShouldBeTrue)

	slot, ok := r.Slot(7)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, slot, test.ShouldEqual, 2)
	_, ok = r.Slot(8)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, r.IDs(), test.ShouldResemble, []int{7, 42})
}

func TestAssembler(t *testing.T) {
	r := NewMarkerRegistry(2)
	test.That(t, r.Register(10, 0), test.ShouldBeNil)
	test.That(t, r.Register(11, 1), test.ShouldBeNil)
	a := NewAssembler(r, 3, logging.NewTestLogger(t))

	visible := func(vis *mhe.Visibility, row, slot int) bool {
		v, err := vis.Visible(row, slot)
		test.That(t, err, test.ShouldBeNil)
		return v
	}

	z, vis := a.Next([]Detection{{ID: 10, Range: 2, Bearing: 0.1}, {ID: 99, Range: 1}})
	test.That(t, visible(vis, 2, 0), test.ShouldBeTrue)
	test.That(t, visible(vis, 2, 1), test.ShouldBeFalse)
	rb, err := z.At(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rb, test.ShouldResemble, residual.RangeBearing{Range: 2, Bearing: 0.1})
	test.That(t, a.Dropped(), test.ShouldEqual, 1)

	z, vis = a.Next([]Detection{{ID: 11, Range: 3}})
	test.That(t, visible(vis, 1, 0), test.ShouldBeTrue)
	test.That(t, visible(vis, 2, 0), test.ShouldBeFalse)
	test.That(t, visible(vis, 2, 1), test.ShouldBeTrue)
	rb, err = z.At(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rb, test.ShouldResemble, residual.RangeBearing{})

	// old rows fall off the top of the window
	_, vis = a.Next(nil)
	_, vis2 := a.Next([]Detection{{ID: 99}})
	test.That(t, visible(vis, 0, 0), test.ShouldBeTrue)
	test.That(t, visible(vis2, 0, 0), test.ShouldBeFalse)
	test.That(t, visible(vis2, 0, 1), test.ShouldBeTrue)
	test.That(t, a.Dropped(), test.ShouldEqual, 2)
}

func TestLogRoundTrip(t *testing.T) {
	truth := spatialmath.Pose{X: 1, Y: 2, Theta: 0.5}
	records := []Record{
		{V: 1, W: 0, Dt: 0.1},
		{V: 0.5, W: -0.2, Dt: 0.1, Detections: []Detection{{ID: 3, Range: 1.5, Bearing: -0.25}}, Truth: &truth},
	}
	var buf bytes.Buffer
	test.That(t, WriteLog(&buf, records), test.ShouldBeNil)
	test.That(t, strings.Count(buf.String(), "\n"), test.ShouldEqual, 2)

	read, err := ReadLog(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, read, test.ShouldResemble, records)
	test.That(t, read[1].Input(), test.ShouldResemble, kinematics.Input{V: 0.5, W: -0.2})

	_, err = ReadLog(strings.NewReader(`{"v": 1, "dt": 1}` + "\n" + `{"v": `))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "record 1")
}

func TestReplay(t *testing.T) {
	dir := t.TempDir()
	est, err := mhe.NewEstimator(mhe.Options{
		NumLandmarks:   1,
		LandmarksPath:  filepath.Join(dir, "l.txt"),
		TrajectoryPath: filepath.Join(dir, "t.txt"),
	}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, est.Configure(spatialmath.Pose{}, [3]float64{1, 1, 0.5}, [3]float64{1, 1, 0.5}, 0.35, 0.07), test.ShouldBeNil)
	landmark := r2.Point{X: 3, Y: 0}
	test.That(t, est.SeedLandmark(0, landmark), test.ShouldBeNil)

	reg := NewMarkerRegistry(1)
	test.That(t, reg.Register(5, 0), test.ShouldBeNil)
	records := []Record{
		{V: 1, Dt: 1},
		{V: 1, Dt: 1},
		{V: 1, Dt: 1, Detections: []Detection{{ID: 5}}},
	}
	var steps []Step
	err = Replay(est, NewAssembler(reg, mhe.DefaultHorizon, nil), records, func(s Step) { steps = append(steps, s) })
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(steps), test.ShouldEqual, 3)
	test.That(t, steps[2].Estimate.AlmostEqual(spatialmath.Pose{X: 3}, 1e-6), test.ShouldBeTrue)

	err = Replay(est, NewAssembler(reg, mhe.DefaultHorizon, nil), []Record{{V: 1, Dt: 0}}, nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "record 0")
}
