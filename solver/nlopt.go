//go:build !windows && !no_cgo

package solver

import (
	"math"

	"github.com/go-nlopt/nlopt"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/mhe/logging"
)

// Nlopt minimizes Σ‖r‖² with nlopt's L-BFGS, using the analytic gradient 2·Jᵀr.
type Nlopt struct {
	opts   Options
	logger logging.Logger
}

// NewNlopt returns an nlopt backed solver.
func NewNlopt(opts Options, logger logging.Logger) (*Nlopt, error) {
	if logger == nil {
		logger = logging.NewBlankLogger("solver")
	}
	return &Nlopt{opts: opts.withDefaults(), logger: logger}, nil
}

// Solve minimizes problem in place.
func (s *Nlopt) Solve(problem *Problem) (*Summary, error) {
	summary := &Summary{
		NumParameterBlocks: problem.NumParameterBlocks(),
		NumResidualBlocks:  problem.NumResidualBlocks(),
	}
	if problem.numResiduals == 0 || problem.numParams == 0 {
		summary.Termination = Convergence
		summary.Message = "nothing to optimize"
		return summary, nil
	}

	x0 := problem.state()
	start, err := problem.evaluate(x0, false, s.opts.NumThreads)
	if err != nil {
		return nil, err
	}
	summary.Evaluations = 1
	summary.InitialCost = start.cost
	summary.FinalCost = start.cost

	opt, err := nlopt.NewNLopt(nlopt.LD_LBFGS, uint(problem.numParams))
	if err != nil {
		return nil, errors.Wrap(err, "nlopt creation error")
	}
	defer opt.Destroy()

	// nlopt counts function evaluations, not iterations; allow a handful per iteration.
	maxEval := s.opts.MaxIterations * 10
	evaluations := 0
	improvements := 0
	best := start.cost
	var evalErr error
	objective := func(x, gradient []float64) float64 {
		evaluations++
		ev, err := problem.evaluate(x, len(gradient) > 0, s.opts.NumThreads)
		if err != nil {
			evalErr = err
			s.logger.Errorw("error evaluating residuals in nlopt", "error", err)
			if err := opt.ForceStop(); err != nil {
				s.logger.Errorw("forcestop error", "error", err)
			}
			return math.Inf(1)
		}
		if ev.cost < best {
			best = ev.cost
			improvements++
		}
		if len(gradient) > 0 {
			_, g := problem.normalEquations(ev)
			for i := range gradient {
				gradient[i] = 2 * g[i]
			}
		}
		return 2 * ev.cost
	}

	if err := multierr.Combine(
		opt.SetMinObjective(objective),
		opt.SetMaxEval(maxEval),
		opt.SetFtolRel(s.opts.FunctionTolerance),
		opt.SetXtolRel(s.opts.ParameterTolerance),
	); err != nil {
		return nil, errors.Wrap(err, "configuring nlopt")
	}

	solution, objectiveValue, optErr := opt.Optimize(x0)
	summary.Evaluations += evaluations
	summary.Iterations = improvements
	summary.SuccessfulSteps = improvements
	if evalErr != nil {
		return nil, evalErr
	}
	if optErr != nil || solution == nil || math.IsNaN(objectiveValue) {
		summary.Termination = Failure
		summary.Message = "nlopt did not return a solution"
		if optErr != nil {
			summary.Message = optErr.Error()
		}
		return summary, nil
	}
	if objectiveValue/2 > summary.InitialCost {
		// keep the starting point rather than a worse iterate
		summary.Termination = Failure
		summary.Message = "nlopt ended above the initial cost"
		return summary, nil
	}
	problem.setState(solution)
	summary.FinalCost = objectiveValue / 2
	summary.Termination = Convergence
	summary.Message = "nlopt tolerance reached"
	if evaluations >= maxEval {
		summary.Termination = NoConvergence
		summary.Message = "nlopt evaluation budget exhausted"
	}
	return summary, nil
}
