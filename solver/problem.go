// Package solver is a small nonlinear least squares engine in the style of ceres: a Problem is a
// set of parameter blocks (caller owned float64 slices) and residual blocks binding a CostFunction
// to one or more of them. Solvers minimize ½·Σ‖r‖² and write the result back into the blocks.
package solver

import (
	"github.com/pkg/errors"
)

// CostFunction computes a residual vector and, on request, its Jacobians with respect to each
// bound parameter block. Implementations must be safe to call from several goroutines at once.
type CostFunction interface {
	NumResiduals() int
	ParameterBlockSizes() []int
	// Evaluate fills residuals (length NumResiduals). If jacobians is non-nil, each non-nil
	// jacobians[k] is a row-major NumResiduals×ParameterBlockSizes()[k] matrix to fill.
	Evaluate(parameters [][]float64, residuals []float64, jacobians [][]float64) error
}

type parameterBlock struct {
	values []float64
	offset int
}

type residualBlock struct {
	cost   CostFunction
	blocks []*parameterBlock
	offset int
}

// Problem collects parameter and residual blocks.
type Problem struct {
	blocks       []*parameterBlock
	byAddress    map[*float64]*parameterBlock
	residuals    []*residualBlock
	numParams    int
	numResiduals int
}

// NewProblem returns an empty problem.
func NewProblem() *Problem {
	return &Problem{byAddress: map[*float64]*parameterBlock{}}
}

// AddParameterBlock registers values as a parameter block. Blocks are identified by the address of
// their first element; adding the same block again is a no-op as long as its size agrees.
func (p *Problem) AddParameterBlock(values []float64) error {
	_, err := p.addParameterBlock(values)
	return err
}

func (p *Problem) addParameterBlock(values []float64) (*parameterBlock, error) {
	if len(values) == 0 {
		return nil, errors.New("cannot add an empty parameter block")
	}
	if existing, ok := p.byAddress[&values[0]]; ok {
		if len(existing.values) != len(values) {
			return nil, errors.Errorf("parameter block re-added with size %d, was %d", len(values), len(existing.values))
		}
		return existing, nil
	}
	block := &parameterBlock{values: values, offset: p.numParams}
	p.blocks = append(p.blocks, block)
	p.byAddress[&values[0]] = block
	p.numParams += len(values)
	return block, nil
}

// AddResidualBlock binds cost to the given parameter blocks, registering any that are new.
func (p *Problem) AddResidualBlock(cost CostFunction, blocks ...[]float64) error {
	if cost == nil {
		return errors.New("cost function is nil")
	}
	sizes := cost.ParameterBlockSizes()
	if len(sizes) != len(blocks) {
		return errors.Errorf("cost function expects %d parameter blocks, got %d", len(sizes), len(blocks))
	}
	if cost.NumResiduals() < 1 {
		return errors.New("cost function must have at least one residual")
	}
	rb := &residualBlock{cost: cost, offset: p.numResiduals}
	seen := map[*parameterBlock]bool{}
	for i, values := range blocks {
		if len(values) != sizes[i] {
			return errors.Errorf("parameter block %d has size %d, cost function expects %d", i, len(values), sizes[i])
		}
		block, err := p.addParameterBlock(values)
		if err != nil {
			return err
		}
		if seen[block] {
			return errors.Errorf("parameter block %d bound twice to the same residual block", i)
		}
		seen[block] = true
		rb.blocks = append(rb.blocks, block)
	}
	p.residuals = append(p.residuals, rb)
	p.numResiduals += cost.NumResiduals()
	return nil
}

// NumParameterBlocks returns the number of registered parameter blocks.
func (p *Problem) NumParameterBlocks() int {
	return len(p.blocks)
}

// NumParameters returns the total size of all parameter blocks.
func (p *Problem) NumParameters() int {
	return p.numParams
}

// NumResidualBlocks returns the number of residual blocks.
func (p *Problem) NumResidualBlocks() int {
	return len(p.residuals)
}

// NumResiduals returns the total residual dimension.
func (p *Problem) NumResiduals() int {
	return p.numResiduals
}

// Evaluate returns ½·Σ‖r‖² at the current parameter values.
func (p *Problem) Evaluate() (float64, error) {
	ev, err := p.evaluate(p.state(), false, 1)
	if err != nil {
		return 0, err
	}
	return ev.cost, nil
}

// state copies every parameter block into one flat vector, in order of registration.
func (p *Problem) state() []float64 {
	x := make([]float64, p.numParams)
	for _, b := range p.blocks {
		copy(x[b.offset:], b.values)
	}
	return x
}

// setState writes a flat vector back into the caller owned parameter blocks.
func (p *Problem) setState(x []float64) {
	for _, b := range p.blocks {
		copy(b.values, x[b.offset:b.offset+len(b.values)])
	}
}

// bandwidth is the largest |i-j| for which the normal equations can have a non-zero entry.
func (p *Problem) bandwidth() int {
	kd := 0
	for _, rb := range p.residuals {
		for _, a := range rb.blocks {
			for _, b := range rb.blocks {
				if d := a.offset + len(a.values) - 1 - b.offset; d > kd {
					kd = d
				}
			}
		}
	}
	return kd
}
