package simulation

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.viam.com/test"

	"go.viam.com/mhe/kinematics"
	"go.viam.com/mhe/logging"
	"go.viam.com/mhe/mhe"
	"go.viam.com/mhe/mhe/residual"
	"go.viam.com/mhe/sensors"
	"go.viam.com/mhe/spatialmath"
)

func noiseless() Scenario {
	s := DefaultScenario()
	s.Steps = 40
	s.RangeStd, s.BearingStd, s.VelocityStd = 0, 0, 0
	return s
}

func TestGenerateDeterministic(t *testing.T) {
	s := DefaultScenario()
	s.Steps = 25
	a, err := Generate(s)
	test.That(t, err, test.ShouldBeNil)
	b, err := Generate(s)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, a, test.ShouldResemble, b)

	s.Seed++
	c, err := Generate(s)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c[0].V, test.ShouldNotEqual, a[0].V)
}

func TestGenerateNoiseless(t *testing.T) {
	s := noiseless()
	records, err := Generate(s)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(records), test.ShouldEqual, s.Steps)

	truth := s.Start
	seen := 0
	for _, rec := range records {
		test.That(t, rec.Input(), test.ShouldResemble, s.Input)
		truth, _ = kinematics.PropagateState(truth, s.Input, s.Dt)
		test.That(t, *rec.Truth, test.ShouldResemble, truth)
		for _, d := range rec.Detections {
			expected := residual.Predict(truth, s.Landmarks[d.ID].Position)
			test.That(t, d.Range, test.ShouldAlmostEqual, expected.Range)
			test.That(t, d.Bearing, test.ShouldAlmostEqual, expected.Bearing)
			test.That(t, d.Range, test.ShouldBeLessThanOrEqualTo, s.MaxRange)
			test.That(t, math.Abs(d.Bearing), test.ShouldBeLessThanOrEqualTo, s.FieldOfView/2)
			seen++
		}
	}
	test.That(t, seen, test.ShouldBeGreaterThan, 0)
}

func TestFieldOfView(t *testing.T) {
	s := Scenario{
		Steps:       1,
		Dt:          1,
		Landmarks:   []Landmark{{ID: 0, Position: r2.Point{X: 5}}, {ID: 1, Position: r2.Point{X: -5}}, {ID: 2, Position: r2.Point{X: 50}}},
		MaxRange:    10,
		FieldOfView: math.Pi / 2,
	}
	records, err := Generate(s)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, records[0].Detections, test.ShouldResemble, []sensors.Detection{{ID: 0, Range: 5, Bearing: 0}})
}

func TestValidate(t *testing.T) {
	s := DefaultScenario()
	s.Dt = 0
	_, err := Generate(s)
	test.That(t, err, test.ShouldNotBeNil)

	s = DefaultScenario()
	s.RangeStd = -1
	test.That(t, s.Validate(), test.ShouldNotBeNil)
	test.That(t, DefaultScenario().Validate(), test.ShouldBeNil)
}

func TestEstimatorTracksNoiselessRun(t *testing.T) {
	s := noiseless()
	records, err := Generate(s)
	test.That(t, err, test.ShouldBeNil)

	dir := t.TempDir()
	est, err := mhe.NewEstimator(mhe.Options{
		NumLandmarks:   len(s.Landmarks),
		LandmarksPath:  filepath.Join(dir, "l.txt"),
		TrajectoryPath: filepath.Join(dir, "t.txt"),
	}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, est.Configure(s.Start, [3]float64{1, 1, 0.5}, [3]float64{1, 1, 0.5}, 0.35, 0.07), test.ShouldBeNil)
	registry := sensors.NewMarkerRegistry(len(s.Landmarks))
	for i, lm := range s.Landmarks {
		test.That(t, est.SeedLandmark(i, lm.Position), test.ShouldBeNil)
		test.That(t, registry.Register(lm.ID, i), test.ShouldBeNil)
	}

	asm := sensors.NewAssembler(registry, mhe.DefaultHorizon, nil)
	err = sensors.Replay(est, asm, records, func(step sensors.Step) {
		test.That(t, step.Estimate.AlmostEqual(*step.Record.Truth, 1e-6), test.ShouldBeTrue)
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, est.Poses()[0], test.ShouldResemble, spatialmath.Pose{X: 0, Y: -5})

	truths := make([]spatialmath.Pose, 0, len(records))
	for _, rec := range records {
		truths = append(truths, *rec.Truth)
	}
	test.That(t, cmp.Diff(truths, est.Poses()[1:], cmpopts.EquateApprox(0, 1e-6)), test.ShouldBeEmpty)
}
