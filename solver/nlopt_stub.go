//go:build windows || no_cgo

package solver

import (
	"github.com/pkg/errors"

	"go.viam.com/mhe/logging"
)

// Nlopt mimics the cgo backed type.
type Nlopt struct{}

// NewNlopt is not supported without cgo.
func NewNlopt(opts Options, logger logging.Logger) (*Nlopt, error) {
	return nil, errors.New("nlopt is not supported on windows or no_cgo builds")
}

// Solve refuses to solve problems without nlopt.
func (s *Nlopt) Solve(problem *Problem) (*Summary, error) {
	return nil, errors.New("cannot solve without nlopt")
}
