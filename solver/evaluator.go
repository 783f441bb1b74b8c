package solver

import (
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"go.viam.com/mhe/utils"
)

// evaluation holds residuals and, optionally, Jacobians for every residual block at one point.
type evaluation struct {
	residuals []float64
	// jacobians[i][k] is the Jacobian of residual block i with respect to its k-th parameter block.
	jacobians [][][]float64
	cost      float64
}

// evaluate runs every cost function at x. Each residual block writes only into its own slice of
// the output, so blocks can be evaluated concurrently.
func (p *Problem) evaluate(x []float64, withJacobians bool, numThreads int) (*evaluation, error) {
	ev := &evaluation{residuals: make([]float64, p.numResiduals)}
	if withJacobians {
		ev.jacobians = make([][][]float64, len(p.residuals))
	}

	evalBlock := func(i int) error {
		rb := p.residuals[i]
		params := make([][]float64, len(rb.blocks))
		for k, b := range rb.blocks {
			params[k] = x[b.offset : b.offset+len(b.values)]
		}
		m := rb.cost.NumResiduals()
		var jacs [][]float64
		if withJacobians {
			jacs = make([][]float64, len(rb.blocks))
			for k, b := range rb.blocks {
				jacs[k] = make([]float64, m*len(b.values))
			}
			ev.jacobians[i] = jacs
		}
		if err := rb.cost.Evaluate(params, ev.residuals[rb.offset:rb.offset+m], jacs); err != nil {
			return errors.Wrapf(err, "evaluating residual block %d", i)
		}
		return nil
	}

	if numThreads <= 1 {
		for i := range p.residuals {
			if err := evalBlock(i); err != nil {
				return nil, err
			}
		}
	} else {
		var g errgroup.Group
		g.SetLimit(numThreads)
		for i := range p.residuals {
			g.Go(func() error { return evalBlock(i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	for _, r := range ev.residuals {
		ev.cost += r * r
	}
	ev.cost *= 0.5
	return ev, nil
}

// normalEquations accumulates H = JᵀJ (dense, row-major) and g = Jᵀr block by block.
func (p *Problem) normalEquations(ev *evaluation) ([]float64, []float64) {
	n := p.numParams
	h := make([]float64, n*n)
	g := make([]float64, n)
	for i, rb := range p.residuals {
		m := rb.cost.NumResiduals()
		r := ev.residuals[rb.offset : rb.offset+m]
		for ka, a := range rb.blocks {
			ja := ev.jacobians[i][ka]
			na := len(a.values)
			for row := 0; row < m; row++ {
				for ca := 0; ca < na; ca++ {
					g[a.offset+ca] += ja[row*na+ca] * r[row]
				}
			}
			for kb, b := range rb.blocks {
				jb := ev.jacobians[i][kb]
				nb := len(b.values)
				for ca := 0; ca < na; ca++ {
					for cb := 0; cb < nb; cb++ {
						sum := 0.0
						for row := 0; row < m; row++ {
							sum += ja[row*na+ca] * jb[row*nb+cb]
						}
						h[(a.offset+ca)*n+b.offset+cb] += sum
					}
				}
			}
		}
	}
	return h, g
}

func (ev *evaluation) finite() bool {
	return utils.IsFinite(ev.cost)
}

// finiteJacobians reports whether every Jacobian entry is finite.
func (ev *evaluation) finiteJacobians() bool {
	for _, blocks := range ev.jacobians {
		for _, jac := range blocks {
			if !utils.IsFinite(jac...) {
				return false
			}
		}
	}
	return true
}
