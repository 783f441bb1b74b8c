// Package spatialmath defines the planar pose used throughout the estimator.
package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/mhe/utils"
)

// PoseDoF is the number of degrees of freedom of a planar pose.
const PoseDoF = 3

// Indices into the slice form of a Pose.
const (
	X = iota
	Y
	Theta
)

// Pose is a planar position with heading. Estimated poses keep Theta in (-π, π];
// a Pose used as a motion increment carries its raw, unwrapped heading change.
type Pose struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

// NewPose returns a pose with its heading wrapped.
func NewPose(x, y, theta float64) Pose {
	return Pose{X: x, Y: y, Theta: utils.Wrap(theta)}
}

// PoseFromSlice builds a Pose from a three element slice.
func PoseFromSlice(values []float64) (Pose, error) {
	if len(values) != PoseDoF {
		return Pose{}, errors.Errorf("pose needs %d values, got %d", PoseDoF, len(values))
	}
	return Pose{X: values[X], Y: values[Y], Theta: values[Theta]}, nil
}

// Slice returns the pose as a freshly allocated [x, y, theta] slice.
func (p Pose) Slice() []float64 {
	return []float64{p.X, p.Y, p.Theta}
}

// Point returns the translational part of the pose.
func (p Pose) Point() r2.Point {
	return r2.Point{X: p.X, Y: p.Y}
}

// Add returns the component-wise sum. The heading is not wrapped.
func (p Pose) Add(o Pose) Pose {
	return Pose{X: p.X + o.X, Y: p.Y + o.Y, Theta: p.Theta + o.Theta}
}

// Sub returns the component-wise difference. The heading is not wrapped.
func (p Pose) Sub(o Pose) Pose {
	return Pose{X: p.X - o.X, Y: p.Y - o.Y, Theta: p.Theta - o.Theta}
}

// Wrapped returns a copy with the heading in (-π, π].
func (p Pose) Wrapped() Pose {
	p.Theta = utils.Wrap(p.Theta)
	return p
}

// AlmostEqual compares translation component-wise and heading on the circle.
func (p Pose) AlmostEqual(o Pose, tol float64) bool {
	return math.Abs(p.X-o.X) <= tol &&
		math.Abs(p.Y-o.Y) <= tol &&
		math.Abs(utils.AngleDiff(p.Theta, o.Theta)) <= tol
}

// IsFinite reports whether all components are finite.
func (p Pose) IsFinite() bool {
	return utils.IsFinite(p.X, p.Y, p.Theta)
}

func (p Pose) String() string {
	return fmt.Sprintf("(%g, %g, %g)", p.X, p.Y, p.Theta)
}
