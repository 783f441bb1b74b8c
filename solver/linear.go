package solver

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var errNotPositiveDefinite = errors.New("normal equations are not positive definite")

// solveNormal solves (H + diag(d))·δ = rhs, where h is a dense row-major n×n symmetric matrix
// whose non-zeros lie within kd of the diagonal.
func solveNormal(kind LinearSolverType, h []float64, n, kd int, d, rhs []float64) ([]float64, error) {
	b := mat.NewVecDense(n, append([]float64(nil), rhs...))
	var dst mat.VecDense
	switch kind {
	case SparseNormalCholesky:
		if kd > n-1 {
			kd = n - 1
		}
		band := mat.NewSymBandDense(n, kd, nil)
		for i := 0; i < n; i++ {
			for j := i; j <= i+kd && j < n; j++ {
				v := h[i*n+j]
				if i == j {
					v += d[i]
				}
				band.SetSymBand(i, j, v)
			}
		}
		var chol mat.BandCholesky
		if ok := chol.Factorize(band); !ok {
			return nil, errNotPositiveDefinite
		}
		if err := chol.SolveVecTo(&dst, b); err != nil {
			return nil, errors.Wrap(err, "band cholesky solve")
		}
	case DenseNormalCholesky:
		data := append([]float64(nil), h...)
		for i := 0; i < n; i++ {
			data[i*n+i] += d[i]
		}
		var chol mat.Cholesky
		if ok := chol.Factorize(mat.NewSymDense(n, data)); !ok {
			return nil, errNotPositiveDefinite
		}
		if err := chol.SolveVecTo(&dst, b); err != nil {
			return nil, errors.Wrap(err, "cholesky solve")
		}
	default:
		return nil, errors.Errorf("unsupported linear solver %v", kind)
	}
	return dst.RawVector().Data, nil
}
