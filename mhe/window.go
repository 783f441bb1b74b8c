package mhe

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/mhe/mhe/residual"
	"go.viam.com/mhe/solver"
	"go.viam.com/mhe/spatialmath"
)

// windowProblem is the least squares problem built over the tail of the history. params[k] is the
// parameter block of pose first+k.
type windowProblem struct {
	problem *solver.Problem
	first   int
	params  [][]float64

	numPriors       int
	numOdometry     int
	numMeasurements int
	unseeded        []int
}

func (w *windowProblem) block(poseIndex int) []float64 {
	return w.params[poseIndex-w.first]
}

// buildWindow assembles the residuals of the current window. Pose priors anchor every pose in
// [N-T, N) to its current value, odometry binds the consecutive pairs inside that range and
// measurements bind pose i+1 for every slot visible on the row matching measurement i.
func (e *Estimator) buildWindow() (*windowProblem, error) {
	h := e.history
	horizon := e.opts.Horizon

	priorLo, priorHi := h.priorWindow(horizon)
	odomLo, odomHi := h.odometryWindow(horizon)
	first := priorLo

	w := &windowProblem{problem: solver.NewProblem(), first: first}
	// blocks are added in history order so the normal equations stay banded
	for i := first; i < h.Len(); i++ {
		block := h.poses[i].Slice()
		if err := w.problem.AddParameterBlock(block); err != nil {
			return nil, err
		}
		w.params = append(w.params, block)
	}

	for i := priorLo; i < priorHi; i++ {
		r, err := residual.NewPosePrior(h.poses[i], e.priorWhitener)
		if err != nil {
			return nil, err
		}
		if err := w.problem.AddResidualBlock(r, w.block(i)); err != nil {
			return nil, errors.Wrapf(err, "pose prior %d", i)
		}
		w.numPriors++
	}

	for i := odomLo; i < odomHi; i++ {
		r, err := residual.NewOdometry(h.increments[i], e.odometryWhitener)
		if err != nil {
			return nil, err
		}
		if err := w.problem.AddResidualBlock(r, w.block(i), w.block(i+1)); err != nil {
			return nil, errors.Wrapf(err, "odometry %d", i)
		}
		w.numOdometry++
	}

	if h.visibility == nil {
		return w, nil
	}
	for _, step := range h.measurementSteps(horizon) {
		z := h.measurements[step.index]
		for j := 0; j < e.opts.NumLandmarks; j++ {
			visible, err := h.visibility.Visible(step.row, j)
			if err != nil {
				return nil, err
			}
			if !visible {
				continue
			}
			obs, err := z.At(j)
			if err != nil {
				return nil, err
			}
			if !e.seeded[j] {
				w.unseeded = append(w.unseeded, j)
			}
			r, err := residual.NewMeasurement(obs, e.landmarks[j], e.measurementWhitener)
			if err != nil {
				return nil, err
			}
			if err := w.problem.AddResidualBlock(r, w.block(step.index+1)); err != nil {
				return nil, errors.Wrapf(err, "measurement %d of landmark %d", step.index, j)
			}
			w.numMeasurements++
		}
	}
	return w, nil
}

// optimize refines the window in place. Solver outcomes are logged and recorded, never returned.
func (e *Estimator) optimize() *solver.Summary {
	w, err := e.buildWindow()
	if err != nil {
		e.logger.Errorw("failed to build window, keeping propagated estimate", "error", err)
		return &solver.Summary{Termination: solver.Failure, Message: err.Error()}
	}
	e.warnUnseeded(w.unseeded)

	summary, err := e.solver.Solve(w.problem)
	if err != nil {
		e.logger.Errorw("solve failed, keeping propagated estimate", "error", err)
		return &solver.Summary{
			Termination:        solver.Failure,
			NumParameterBlocks: w.problem.NumParameterBlocks(),
			NumResidualBlocks:  w.problem.NumResidualBlocks(),
			Message:            err.Error(),
		}
	}

	for k, block := range w.params {
		p, err := spatialmath.PoseFromSlice(block)
		if err != nil || !p.IsFinite() {
			continue
		}
		e.history.poses[w.first+k] = p.Wrapped()
	}

	fields := []interface{}{
		"termination", summary.Termination,
		"iterations", summary.Iterations,
		"initial_cost", summary.InitialCost,
		"final_cost", summary.FinalCost,
		"priors", w.numPriors,
		"odometry", w.numOdometry,
		"measurements", w.numMeasurements,
	}
	if summary.Termination == solver.Convergence {
		e.logger.Debugw("window optimized", fields...)
	} else {
		e.logger.Warnw("window optimization did not converge", append(fields, "message", summary.Message)...)
	}
	return summary
}

func (e *Estimator) warnUnseeded(slots []int) {
	for _, j := range slots {
		if e.warnedUnseeded[j] {
			continue
		}
		e.warnedUnseeded[j] = true
		e.logger.Warnw("landmark slot is visible but was never seeded, predicting from the origin", "slot", j)
	}
}

// landmarksCopy returns a snapshot of the landmark table.
func landmarksCopy(landmarks []r2.Point) []r2.Point {
	return append([]r2.Point(nil), landmarks...)
}
