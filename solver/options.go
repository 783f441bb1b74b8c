package solver

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// LinearSolverType selects how the normal equations are factored at each iteration.
type LinearSolverType int

const (
	// SparseNormalCholesky factors the banded normal equations with a band Cholesky decomposition.
	SparseNormalCholesky LinearSolverType = iota
	// DenseNormalCholesky factors the full normal matrix.
	DenseNormalCholesky
)

func (t LinearSolverType) String() string {
	switch t {
	case SparseNormalCholesky:
		return "sparse_normal_cholesky"
	case DenseNormalCholesky:
		return "dense_normal_cholesky"
	}
	return fmt.Sprintf("LinearSolverType(%d)", int(t))
}

// LinearSolverTypeFromString parses names as printed by String.
func LinearSolverTypeFromString(name string) (LinearSolverType, error) {
	switch strings.ToLower(name) {
	case "", "sparse_normal_cholesky", "sparse":
		return SparseNormalCholesky, nil
	case "dense_normal_cholesky", "dense":
		return DenseNormalCholesky, nil
	}
	return SparseNormalCholesky, errors.Errorf("unknown linear solver %q", name)
}

// Defaults, matching the ceres defaults for the options we expose.
const (
	DefaultMaxIterations            = 50
	DefaultFunctionTolerance        = 1e-6
	DefaultGradientTolerance        = 1e-10
	DefaultParameterTolerance       = 1e-8
	DefaultInitialTrustRegionRadius = 1e4

	minTrustRegionRadius = 1e-32
	minRelativeDecrease  = 1e-3
	minDiagonal          = 1e-6
	maxDiagonal          = 1e32
)

// Options controls a solve.
type Options struct {
	MaxIterations            int
	LinearSolver             LinearSolverType
	FunctionTolerance        float64
	GradientTolerance        float64
	ParameterTolerance       float64
	InitialTrustRegionRadius float64
	// NumThreads bounds how many residual blocks are evaluated concurrently.
	NumThreads int
}

// DefaultOptions returns options with every field set to its default.
func DefaultOptions() Options {
	return Options{
		MaxIterations:            DefaultMaxIterations,
		LinearSolver:             SparseNormalCholesky,
		FunctionTolerance:        DefaultFunctionTolerance,
		GradientTolerance:        DefaultGradientTolerance,
		ParameterTolerance:       DefaultParameterTolerance,
		InitialTrustRegionRadius: DefaultInitialTrustRegionRadius,
		NumThreads:               1,
	}
}

// withDefaults fills zero fields.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxIterations <= 0 {
		o.MaxIterations = def.MaxIterations
	}
	if o.FunctionTolerance <= 0 {
		o.FunctionTolerance = def.FunctionTolerance
	}
	if o.GradientTolerance <= 0 {
		o.GradientTolerance = def.GradientTolerance
	}
	if o.ParameterTolerance <= 0 {
		o.ParameterTolerance = def.ParameterTolerance
	}
	if o.InitialTrustRegionRadius <= 0 {
		o.InitialTrustRegionRadius = def.InitialTrustRegionRadius
	}
	if o.NumThreads < 1 {
		o.NumThreads = 1
	}
	return o
}

// TerminationType reports why a solve stopped.
type TerminationType int

const (
	// Convergence means a function, gradient or parameter tolerance was met.
	Convergence TerminationType = iota
	// NoConvergence means the iteration budget ran out first.
	NoConvergence
	// Failure means the solver could not make progress, e.g. non-finite residuals.
	Failure
)

func (t TerminationType) String() string {
	switch t {
	case Convergence:
		return "CONVERGENCE"
	case NoConvergence:
		return "NO_CONVERGENCE"
	case Failure:
		return "FAILURE"
	}
	return fmt.Sprintf("TerminationType(%d)", int(t))
}

// Summary describes a finished solve.
type Summary struct {
	Termination TerminationType
	// Iterations counts outer iterations. nlopt does not expose its iteration count, so that
	// backend reports the number of evaluations that lowered the best cost so far.
	Iterations int
	// SuccessfulSteps counts iterations whose step was accepted.
	SuccessfulSteps int
	// Evaluations counts residual evaluations, with or without Jacobians.
	Evaluations        int
	InitialCost        float64
	FinalCost          float64
	NumParameterBlocks int
	NumResidualBlocks  int
	Message            string
}

// Usable reports whether the parameters hold a meaningful estimate. Only Failure is unusable, and
// even then the parameters hold the best iterate found.
func (s *Summary) Usable() bool {
	return s.Termination != Failure
}

// Solver minimizes a Problem in place.
type Solver interface {
	Solve(problem *Problem) (*Summary, error)
}
