//go:build !windows && !no_cgo

package solver

import (
	"testing"

	"go.viam.com/test"

	"go.viam.com/mhe/logging"
)

func TestNloptSolve(t *testing.T) {
	nl, err := NewNlopt(DefaultOptions(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	problem, blocks := chain(t, 4)
	summary, err := nl.Solve(problem)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary.Usable(), test.ShouldBeTrue)
	test.That(t, summary.FinalCost, test.ShouldBeLessThan, summary.InitialCost)
	test.That(t, summary.FinalCost, test.ShouldAlmostEqual, 0, 1e-6)
	for i, b := range blocks {
		test.That(t, b[0], test.ShouldAlmostEqual, float64(i), 1e-4)
		test.That(t, b[1], test.ShouldAlmostEqual, 0.5*float64(i), 1e-4)
	}

	// evaluations are reported apart from iterations
	test.That(t, summary.Iterations, test.ShouldBeGreaterThan, 0)
	test.That(t, summary.SuccessfulSteps, test.ShouldEqual, summary.Iterations)
	test.That(t, summary.Evaluations, test.ShouldBeGreaterThan, summary.Iterations)
}

func TestNloptEmptyProblem(t *testing.T) {
	nl, err := NewNlopt(DefaultOptions(), nil)
	test.That(t, err, test.ShouldBeNil)
	summary, err := nl.Solve(NewProblem())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary.Termination, test.ShouldEqual, Convergence)
}
