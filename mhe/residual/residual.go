// Package residual implements the whitened error terms minimized by the moving horizon estimator:
// pose priors, odometry between consecutive poses, and landmark range/bearing measurements.
// Every residual is a solver.CostFunction with analytic Jacobians.
package residual

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/mhe/spatialmath"
	"go.viam.com/mhe/utils"
)

// Kind tags the residual variants.
type Kind int

const (
	// PosePrior anchors one pose to a target.
	PosePrior Kind = iota
	// Odometry relates two consecutive poses through a measured motion increment.
	Odometry
	// Measurement relates one pose to a landmark through a range/bearing observation.
	Measurement
)

func (k Kind) String() string {
	switch k {
	case PosePrior:
		return "pose_prior"
	case Odometry:
		return "odometry"
	case Measurement:
		return "measurement"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Range and Bearing index a measurement residual.
const (
	Range = iota
	Bearing
	measurementDim
)

// degenerateRange is the distance below which the range/bearing Jacobian w.r.t. position is taken as zero.
const degenerateRange = 1e-12

// RangeBearing is one landmark observation relative to the robot.
type RangeBearing struct {
	Range   float64 `json:"range"`
	Bearing float64 `json:"bearing"`
}

// Predict returns the range and bearing at which pose would observe landmark.
func Predict(pose spatialmath.Pose, landmark r2.Point) RangeBearing {
	diff := landmark.Sub(pose.Point())
	return RangeBearing{
		Range:   diff.Norm(),
		Bearing: utils.Wrap(math.Atan2(diff.Y, diff.X) - pose.Theta),
	}
}

// Residual is one error term. Its constants are copied at construction and its whitener is
// immutable, so Evaluate may run concurrently with itself.
type Residual struct {
	kind     Kind
	target   spatialmath.Pose
	observed RangeBearing
	landmark r2.Point
	whitener *Whitener
}

// NewPosePrior returns target - p, heading wrapped, whitened by w.
func NewPosePrior(target spatialmath.Pose, w *Whitener) (*Residual, error) {
	if err := checkWhitener(w, spatialmath.PoseDoF); err != nil {
		return nil, err
	}
	return &Residual{kind: PosePrior, target: target, whitener: w}, nil
}

// NewOdometry returns measured - (p₂ - p₁), both headings wrapped, whitened by w.
func NewOdometry(measured spatialmath.Pose, w *Whitener) (*Residual, error) {
	if err := checkWhitener(w, spatialmath.PoseDoF); err != nil {
		return nil, err
	}
	return &Residual{kind: Odometry, target: measured, whitener: w}, nil
}

// NewMeasurement returns observed - Predict(p, landmark), bearing wrapped, whitened by w.
func NewMeasurement(observed RangeBearing, landmark r2.Point, w *Whitener) (*Residual, error) {
	if err := checkWhitener(w, measurementDim); err != nil {
		return nil, err
	}
	return &Residual{kind: Measurement, observed: observed, landmark: landmark, whitener: w}, nil
}

func checkWhitener(w *Whitener, dim int) error {
	if w == nil {
		return errors.New("whitener is nil")
	}
	if w.Dim() != dim {
		return errors.Errorf("whitener has dimension %d, need %d", w.Dim(), dim)
	}
	return nil
}

// Kind returns the variant tag.
func (r *Residual) Kind() Kind {
	return r.kind
}

// NumResiduals is 3 for pose terms and 2 for measurements.
func (r *Residual) NumResiduals() int {
	if r.kind == Measurement {
		return measurementDim
	}
	return spatialmath.PoseDoF
}

// ParameterBlockSizes is one pose, or two for odometry.
func (r *Residual) ParameterBlockSizes() []int {
	if r.kind == Odometry {
		return []int{spatialmath.PoseDoF, spatialmath.PoseDoF}
	}
	return []int{spatialmath.PoseDoF}
}

// RawError returns the error before whitening at the given poses.
func (r *Residual) RawError(poses ...spatialmath.Pose) ([]float64, error) {
	if len(poses) != len(r.ParameterBlockSizes()) {
		return nil, errors.Errorf("%v residual binds %d poses, got %d", r.kind, len(r.ParameterBlockSizes()), len(poses))
	}
	params := make([][]float64, len(poses))
	for i, p := range poses {
		params[i] = p.Slice()
	}
	e := make([]float64, r.NumResiduals())
	r.rawError(params, e, nil)
	return e, nil
}

// Evaluate implements solver.CostFunction.
func (r *Residual) Evaluate(parameters [][]float64, residuals []float64, jacobians [][]float64) error {
	sizes := r.ParameterBlockSizes()
	if len(parameters) != len(sizes) {
		return errors.Errorf("%v residual needs %d parameter blocks, got %d", r.kind, len(sizes), len(parameters))
	}
	for i, p := range parameters {
		if len(p) != sizes[i] {
			return errors.Errorf("%v residual parameter block %d has size %d", r.kind, i, len(p))
		}
	}

	var e [spatialmath.PoseDoF]float64
	m := r.NumResiduals()
	var raw [2][spatialmath.PoseDoF * spatialmath.PoseDoF]float64
	var rawJac [][]float64
	if jacobians != nil {
		rawJac = make([][]float64, len(sizes))
		for k := range sizes {
			if jacobians[k] != nil {
				rawJac[k] = raw[k][:m*sizes[k]]
			}
		}
	}
	r.rawError(parameters, e[:m], rawJac)

	r.whitener.Whiten(residuals, e[:m])
	for k := range rawJac {
		if rawJac[k] != nil {
			r.whitener.WhitenJacobian(jacobians[k], rawJac[k], sizes[k])
		}
	}
	return nil
}

// rawError fills e and any non-nil jacobian of e.
func (r *Residual) rawError(parameters [][]float64, e []float64, jacobians [][]float64) {
	jac := func(k int) []float64 {
		if jacobians == nil {
			return nil
		}
		return jacobians[k]
	}

	switch r.kind {
	case PosePrior:
		p := parameters[0]
		e[spatialmath.X] = r.target.X - p[spatialmath.X]
		e[spatialmath.Y] = r.target.Y - p[spatialmath.Y]
		e[spatialmath.Theta] = utils.Wrap(r.target.Theta - p[spatialmath.Theta])
		setDiagonal(jac(0), -1)
	case Odometry:
		p1, p2 := parameters[0], parameters[1]
		dTheta := utils.Wrap(p2[spatialmath.Theta] - p1[spatialmath.Theta])
		e[spatialmath.X] = r.target.X - (p2[spatialmath.X] - p1[spatialmath.X])
		e[spatialmath.Y] = r.target.Y - (p2[spatialmath.Y] - p1[spatialmath.Y])
		e[spatialmath.Theta] = utils.Wrap(r.target.Theta - dTheta)
		setDiagonal(jac(0), 1)
		setDiagonal(jac(1), -1)
	case Measurement:
		p := parameters[0]
		dx := r.landmark.X - p[spatialmath.X]
		dy := r.landmark.Y - p[spatialmath.Y]
		rng := math.Hypot(dx, dy)
		bearing := utils.Wrap(math.Atan2(dy, dx) - p[spatialmath.Theta])
		e[Range] = r.observed.Range - rng
		e[Bearing] = utils.Wrap(r.observed.Bearing - bearing)
		if j := jac(0); j != nil {
			// rows: range, bearing; columns: x, y, theta
			for i := range j {
				j[i] = 0
			}
			if rng > degenerateRange {
				rngSq := rng * rng
				j[0*spatialmath.PoseDoF+spatialmath.X] = dx / rng
				j[0*spatialmath.PoseDoF+spatialmath.Y] = dy / rng
				j[1*spatialmath.PoseDoF+spatialmath.X] = -dy / rngSq
				j[1*spatialmath.PoseDoF+spatialmath.Y] = dx / rngSq
			}
			j[1*spatialmath.PoseDoF+spatialmath.Theta] = 1
		}
	}
}

// setDiagonal writes v·I into a row-major 3×3 jacobian, if requested.
func setDiagonal(j []float64, v float64) {
	if j == nil {
		return
	}
	for i := range j {
		j[i] = 0
	}
	for i := 0; i < spatialmath.PoseDoF; i++ {
		j[i*spatialmath.PoseDoF+i] = v
	}
}
