package residual

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/mhe/utils"
)

// Whitener holds the lower Cholesky factor L of a precision matrix P = L·Lᵀ. It is immutable after
// construction and may be shared between residuals evaluated concurrently.
type Whitener struct {
	dim int
	// row-major lower triangular factor
	l []float64
}

// NewWhitener factors precision. It fails if the matrix is not symmetric positive-definite.
func NewWhitener(precision mat.Symmetric) (*Whitener, error) {
	n, _ := precision.Dims()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if !utils.IsFinite(precision.At(i, j)) {
				return nil, errors.Errorf("precision matrix has a non-finite entry at (%d, %d)", i, j)
			}
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(precision); !ok {
		return nil, errors.New("precision matrix is not positive definite")
	}
	var lower mat.TriDense
	chol.LTo(&lower)

	w := &Whitener{dim: n, l: make([]float64, n*n)}
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			w.l[i*n+j] = lower.At(i, j)
		}
	}
	return w, nil
}

// NewDiagonalWhitener builds the whitener of diag(precisions...).
func NewDiagonalWhitener(precisions ...float64) (*Whitener, error) {
	n := len(precisions)
	if n == 0 {
		return nil, errors.New("precision matrix must not be empty")
	}
	sym := mat.NewSymDense(n, nil)
	for i, p := range precisions {
		if !(p > 0) {
			return nil, errors.Errorf("precision %d must be positive, got %g", i, p)
		}
		sym.SetSym(i, i, p)
	}
	return NewWhitener(sym)
}

// Dim returns the size of the precision matrix.
func (w *Whitener) Dim() int {
	return w.dim
}

// Factor returns a copy of L.
func (w *Whitener) Factor() *mat.Dense {
	return mat.NewDense(w.dim, w.dim, append([]float64(nil), w.l...))
}

// Whiten writes e·L into dst, i.e. dst_j = Σ_i e_i·L_ij, so that ‖dst‖² = eᵀ·P·e.
func (w *Whitener) Whiten(dst, e []float64) {
	n := w.dim
	for j := 0; j < n; j++ {
		sum := 0.0
		for i := j; i < n; i++ {
			sum += e[i] * w.l[i*n+j]
		}
		dst[j] = sum
	}
}

// WhitenJacobian applies the whitening to a row-major n×cols Jacobian of the raw error.
func (w *Whitener) WhitenJacobian(dst, jac []float64, cols int) {
	n := w.dim
	for j := 0; j < n; j++ {
		for c := 0; c < cols; c++ {
			sum := 0.0
			for i := j; i < n; i++ {
				sum += w.l[i*n+j] * jac[i*cols+c]
			}
			dst[j*cols+c] = sum
		}
	}
}
