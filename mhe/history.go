package mhe

import (
	"go.viam.com/mhe/spatialmath"
)

// History is the append-only log the window is cut from. Once the seed pose is appended,
// len(poses) == len(increments)+1 == len(measurements)+1, and increments[i] and measurements[i]
// both lead from poses[i] to poses[i+1].
type History struct {
	poses        []spatialmath.Pose
	increments   []spatialmath.Pose
	measurements []MeasurementTable
	// visibility is only the latest snapshot.
	visibility *Visibility

	// maxPoses caps the log, 0 means unbounded.
	maxPoses int
	dropped  int
}

func newHistory(maxPoses int) *History {
	return &History{maxPoses: maxPoses}
}

// seed appends the first pose.
func (h *History) seed(p spatialmath.Pose) {
	h.poses = append(h.poses, p.Wrapped())
}

// append logs one update cycle and trims the oldest entries if a cap is set.
func (h *History) append(p, increment spatialmath.Pose, z MeasurementTable, vis *Visibility) {
	h.poses = append(h.poses, p)
	h.increments = append(h.increments, increment)
	h.measurements = append(h.measurements, z)
	h.visibility = vis
	h.trim()
}

func (h *History) trim() {
	if h.maxPoses <= 0 || len(h.poses) <= h.maxPoses {
		return
	}
	d := len(h.poses) - h.maxPoses
	h.poses = h.poses[:copy(h.poses, h.poses[d:])]
	h.increments = h.increments[:copy(h.increments, h.increments[d:])]
	n := copy(h.measurements, h.measurements[d:])
	clear(h.measurements[n:])
	h.measurements = h.measurements[:n]
	h.dropped += d
}

// Len returns the number of logged poses N.
func (h *History) Len() int {
	return len(h.poses)
}

// Dropped returns how many of the oldest poses were discarded by the cap.
func (h *History) Dropped() int {
	return h.dropped
}

// Last returns the newest pose.
func (h *History) Last() spatialmath.Pose {
	return h.poses[len(h.poses)-1]
}

// window returns the half-open range of the trailing horizon entries of a log of length n.
func window(n, horizon int) (int, int) {
	return max(0, n-horizon), n
}

// priorWindow returns the pose indices anchored by a prior.
func (h *History) priorWindow(horizon int) (int, int) {
	return window(len(h.poses), horizon)
}

// odometryWindow returns the increment indices i binding poses i and i+1. Only pairs whose poses
// both lie in the prior window are used, so a full window has horizon-1 odometry residuals.
// This is intentionally one narrower than a horizon-wide increment window [M-T, M): that window
// would also bind pose N-T-1, which has no prior and would be left free in the solve.
func (h *History) odometryWindow(horizon int) (int, int) {
	return window(len(h.increments), horizon-1)
}

// measurementStep is one logged measurement table inside the window together with the row of the
// visibility snapshot it lines up with.
type measurementStep struct {
	index int
	row   int
}

// measurementSteps lists the measurement indices in the window. When fewer than horizon tables
// exist the first horizon-K visibility rows refer to cycles that never happened and are skipped.
func (h *History) measurementSteps(horizon int) []measurementStep {
	k := len(h.measurements)
	lo, hi := window(k, horizon)
	row := 0
	if k < horizon {
		row = horizon - k
	}
	steps := make([]measurementStep, 0, hi-lo)
	for i := lo; i < hi; i++ {
		steps = append(steps, measurementStep{index: i, row: row})
		row++
	}
	return steps
}
