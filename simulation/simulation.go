// Package simulation generates synthetic runs of a differential-drive robot observing landmarks,
// in the log format read by the estimator tools.
package simulation

import (
	"math"
	"math/rand/v2"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"

	"go.viam.com/mhe/kinematics"
	"go.viam.com/mhe/mhe/residual"
	"go.viam.com/mhe/sensors"
	"go.viam.com/mhe/spatialmath"
	"go.viam.com/mhe/utils"
)

// Landmark is a marker at a known position.
type Landmark struct {
	ID       int
	Position r2.Point
}

// Scenario describes a run. The robot drives with a constant command; noise with the given
// standard deviations is added to the reported command and to every observation.
type Scenario struct {
	Steps     int
	Dt        float64
	Start     spatialmath.Pose
	Input     kinematics.Input
	Landmarks []Landmark
	Seed      uint64

	RangeStd    float64
	BearingStd  float64
	VelocityStd float64
	// MaxRange limits detections, 0 means unlimited.
	MaxRange float64
	// FieldOfView is the full detection cone in radians around the heading, 0 means all around.
	FieldOfView float64
}

// DefaultScenario drives a circle of radius 5 through a 3×3 grid of markers.
func DefaultScenario() Scenario {
	s := Scenario{
		Steps:       200,
		Dt:          0.1,
		Start:       spatialmath.Pose{X: 0, Y: -5, Theta: 0},
		Input:       kinematics.Input{V: 1, W: 0.2},
		Seed:        1,
		RangeStd:    0.1,
		BearingStd:  0.02,
		VelocityStd: 0.05,
		MaxRange:    6,
		FieldOfView: utils.DegToRad(120),
	}
	id := 0
	for _, y := range []float64{-4, 0, 4} {
		for _, x := range []float64{-4, 0, 4} {
			s.Landmarks = append(s.Landmarks, Landmark{ID: id, Position: r2.Point{X: x, Y: y}})
			id++
		}
	}
	return s
}

// Validate checks the scenario.
func (s Scenario) Validate() error {
	if s.Steps < 0 {
		return errors.Errorf("steps must not be negative, got %d", s.Steps)
	}
	if !utils.IsFinite(s.Dt) || !(s.Dt > 0) {
		return errors.Errorf("dt must be positive, got %g", s.Dt)
	}
	for name, v := range map[string]float64{
		"range": s.RangeStd, "bearing": s.BearingStd, "velocity": s.VelocityStd,
		"max range": s.MaxRange, "field of view": s.FieldOfView,
	} {
		if !utils.IsFinite(v) || v < 0 {
			return errors.Errorf("%s must be non-negative, got %g", name, v)
		}
	}
	if !s.Start.IsFinite() || !utils.IsFinite(s.Input.V, s.Input.W) {
		return errors.New("start pose and input must be finite")
	}
	return nil
}

// visible reports whether rb falls inside the sensor's range and cone.
func (s Scenario) visible(rb residual.RangeBearing) bool {
	if s.MaxRange > 0 && rb.Range > s.MaxRange {
		return false
	}
	if s.FieldOfView > 0 && math.Abs(rb.Bearing) > s.FieldOfView/2 {
		return false
	}
	return true
}

// Generate runs the scenario. The same Seed always produces the same records.
func Generate(s Scenario) ([]sensors.Record, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	src := rand.NewPCG(s.Seed, s.Seed^0x9e3779b97f4a7c15)
	noise := func(sigma float64) distuv.Normal {
		return distuv.Normal{Mu: 0, Sigma: sigma, Src: src}
	}
	velocityNoise := noise(s.VelocityStd)
	rangeNoise := noise(s.RangeStd)
	bearingNoise := noise(s.BearingStd)

	truth := s.Start.Wrapped()
	records := make([]sensors.Record, 0, s.Steps)
	for step := 0; step < s.Steps; step++ {
		truth, _ = kinematics.PropagateState(truth, s.Input, s.Dt)
		rec := sensors.Record{
			V:  s.Input.V + velocityNoise.Rand(),
			W:  s.Input.W + velocityNoise.Rand(),
			Dt: s.Dt,
		}
		for _, lm := range s.Landmarks {
			rb := residual.Predict(truth, lm.Position)
			if !s.visible(rb) {
				continue
			}
			rec.Detections = append(rec.Detections, sensors.Detection{
				ID:      lm.ID,
				Range:   math.Max(0, rb.Range+rangeNoise.Rand()),
				Bearing: utils.Wrap(rb.Bearing + bearingNoise.Rand()),
			})
		}
		pose := truth
		rec.Truth = &pose
		records = append(records, rec)
	}
	return records, nil
}
