// Package kinematics implements the differential-drive motion model used to propagate pose estimates.
package kinematics

import (
	"math"

	"go.viam.com/mhe/spatialmath"
)

// Input is a velocity command for a differential-drive base.
type Input struct {
	// V is the linear velocity along the heading, in distance units per second.
	V float64 `json:"v"`
	// W is the angular velocity, in radians per second.
	W float64 `json:"w"`
}

// Increment returns the displacement produced by applying input for dt seconds starting at pose.
// The heading component is the raw w·dt and is never wrapped.
func Increment(pose spatialmath.Pose, input Input, dt float64) spatialmath.Pose {
	st, ct := math.Sincos(pose.Theta)
	return spatialmath.Pose{
		X:     input.V * ct * dt,
		Y:     input.V * st * dt,
		Theta: input.W * dt,
	}
}

// PropagateState steps pose forward by one Euler step of the unicycle model. It returns the
// propagated pose, with its heading wrapped, and the raw increment that produced it.
func PropagateState(pose spatialmath.Pose, input Input, dt float64) (spatialmath.Pose, spatialmath.Pose) {
	inc := Increment(pose, input, dt)
	return pose.Add(inc).Wrapped(), inc
}

// TwistToInput converts the planar part of an odometry twist (linear x, angular z) into a control input.
func TwistToInput(linearX, angularZ float64) Input {
	return Input{V: linearX, W: angularZ}
}
