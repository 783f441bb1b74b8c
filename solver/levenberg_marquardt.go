package solver

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"go.viam.com/mhe/logging"
)

// LevenbergMarquardt is a trust region Levenberg-Marquardt solver.
type LevenbergMarquardt struct {
	opts   Options
	logger logging.Logger
}

// NewLevenbergMarquardt returns a solver using opts; zero fields take their defaults.
func NewLevenbergMarquardt(opts Options, logger logging.Logger) *LevenbergMarquardt {
	if logger == nil {
		logger = logging.NewBlankLogger("solver")
	}
	return &LevenbergMarquardt{opts: opts.withDefaults(), logger: logger}
}

// Options returns the options in use, with defaults applied.
func (lm *LevenbergMarquardt) Options() Options {
	return lm.opts
}

// Solve minimizes problem in place. The parameter blocks always end up holding the lowest cost
// iterate accepted, whatever the termination type. An error is only returned for problems that
// cannot be evaluated at the starting point.
func (lm *LevenbergMarquardt) Solve(problem *Problem) (*Summary, error) {
	opts := lm.opts
	summary := &Summary{
		NumParameterBlocks: problem.NumParameterBlocks(),
		NumResidualBlocks:  problem.NumResidualBlocks(),
	}
	if problem.numResiduals == 0 || problem.numParams == 0 {
		summary.Termination = Convergence
		summary.Message = "nothing to optimize"
		return summary, nil
	}

	n := problem.numParams
	kd := problem.bandwidth()
	x := problem.state()
	ev, err := problem.evaluate(x, true, opts.NumThreads)
	if err != nil {
		return nil, err
	}
	summary.Evaluations++
	summary.InitialCost = ev.cost
	summary.FinalCost = ev.cost
	if !ev.finite() || !ev.finiteJacobians() {
		summary.Termination = Failure
		summary.Message = "residuals or jacobians are not finite at the initial point"
		return summary, nil
	}

	radius := opts.InitialTrustRegionRadius
	decreaseFactor := 2.0
	h, g := problem.normalEquations(ev)

	finish := func(t TerminationType, format string, args ...interface{}) (*Summary, error) {
		problem.setState(x)
		summary.Termination = t
		summary.FinalCost = ev.cost
		summary.Message = fmt.Sprintf(format, args...)
		lm.logger.Debugw("solve finished",
			"termination", t,
			"iterations", summary.Iterations,
			"evaluations", summary.Evaluations,
			"initial_cost", summary.InitialCost,
			"final_cost", summary.FinalCost,
			"message", summary.Message)
		return summary, nil
	}

	for summary.Iterations < opts.MaxIterations {
		if gmax := floats.Norm(g, math.Inf(1)); gmax <= opts.GradientTolerance {
			return finish(Convergence, "gradient tolerance reached: %g <= %g", gmax, opts.GradientTolerance)
		}
		summary.Iterations++

		diag := make([]float64, n)
		for i := range diag {
			diag[i] = math.Min(math.Max(h[i*n+i], minDiagonal), maxDiagonal) / radius
		}
		negG := make([]float64, n)
		floats.ScaleTo(negG, -1, g)
		step, err := solveNormal(opts.LinearSolver, h, n, kd, diag, negG)
		if err != nil {
			radius /= decreaseFactor
			decreaseFactor *= 2
			if radius < minTrustRegionRadius {
				return finish(Failure, "trust region collapsed after linear solve failure: %v", err)
			}
			continue
		}

		stepNorm := floats.Norm(step, 2)
		if stepNorm <= opts.ParameterTolerance*(floats.Norm(x, 2)+opts.ParameterTolerance) {
			return finish(Convergence, "parameter tolerance reached: step norm %g", stepNorm)
		}

		candidate := make([]float64, n)
		floats.AddTo(candidate, x, step)
		// model decrease: -(gᵀδ + ½δᵀHδ)
		hStep := make([]float64, n)
		for i := 0; i < n; i++ {
			hStep[i] = floats.Dot(h[i*n:(i+1)*n], step)
		}
		modelDecrease := -(floats.Dot(g, step) + 0.5*floats.Dot(step, hStep))

		next, err := problem.evaluate(candidate, false, opts.NumThreads)
		if err != nil {
			return nil, err
		}
		summary.Evaluations++

		actualDecrease := ev.cost - next.cost
		if next.finite() && modelDecrease > 0 && actualDecrease/modelDecrease > minRelativeDecrease {
			rho := actualDecrease / modelDecrease
			previousCost := ev.cost
			x = candidate
			next, err = problem.evaluate(x, true, opts.NumThreads)
			if err != nil {
				return nil, err
			}
			summary.Evaluations++
			ev = next
			summary.SuccessfulSteps++
			if !ev.finiteJacobians() {
				return finish(Failure, "jacobians are not finite at iteration %d", summary.Iterations)
			}
			h, g = problem.normalEquations(ev)
			radius /= math.Max(1.0/3.0, 1-math.Pow(2*rho-1, 3))
			decreaseFactor = 2

			if math.Abs(actualDecrease) <= opts.FunctionTolerance*previousCost {
				return finish(Convergence, "function tolerance reached: |Δcost| %g <= %g·cost", actualDecrease, opts.FunctionTolerance)
			}
			continue
		}

		radius /= decreaseFactor
		decreaseFactor *= 2
		if radius < minTrustRegionRadius {
			return finish(Convergence, "trust region radius %g below minimum", radius)
		}
	}

	return finish(NoConvergence, "maximum number of iterations reached (%d)", opts.MaxIterations)
}
