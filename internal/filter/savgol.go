package filter

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	apperrors "github.com/FabioSangalli/nTLCanalyzer/internal/errors"
)

// SavitzkyGolay fits a polynomial of degree Order to every Window samples by
// least squares and keeps the fitted value. The first and last Window/2
// samples are taken from the polynomial fitted to the outermost window, so the
// output length always equals the input length.
type SavitzkyGolay struct {
	Window int
	Order  int
}

func (SavitzkyGolay) sealed() {}

func (f SavitzkyGolay) String() string {
	return fmt.Sprintf("savgol(%d,%d)", f.Window, f.Order)
}

// Validate requires an odd Window greater than Order and Order >= 0.
func (f SavitzkyGolay) Validate() error {
	if f.Order < 0 {
		return apperrors.NewInvalidParameters("savgol order must be >= 0, got %d", f.Order)
	}
	if f.Window <= 0 || f.Window%2 == 0 {
		return apperrors.NewInvalidParameters("savgol window must be a positive odd number, got %d", f.Window)
	}
	if f.Window <= f.Order {
		return apperrors.NewInvalidParameters("savgol window %d must be greater than order %d", f.Window, f.Order)
	}
	return nil
}

// Apply smooths values. A window longer than the data is an
// INVALID_PARAMETERS error rather than a silent no-op.
func (f SavitzkyGolay) Apply(values []float64) ([]float64, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	n := len(values)
	if f.Window > n {
		return nil, apperrors.NewInvalidParameters("savgol window %d exceeds profile length %d", f.Window, n)
	}
	out := make([]float64, n)
	if f.Window == 1 {
		copy(out, values)
		return out, nil
	}

	proj, err := f.projection()
	if err != nil {
		return nil, err
	}
	half := f.Window / 2

	// interior: the fitted value at the window center is the constant term
	center := proj.RawRowView(0)
	for i := half; i < n-half; i++ {
		out[i] = floats.Dot(center, values[i-half:i+half+1])
	}

	// edges: evaluate the outermost windows' polynomials off-center
	first := values[:f.Window]
	last := values[n-f.Window:]
	for i := 0; i < half; i++ {
		out[i] = floats.Dot(f.weightsAt(proj, float64(i-half)/float64(half)), first)
		j := n - half + i
		out[j] = floats.Dot(f.weightsAt(proj, float64(i+1)/float64(half)), last)
	}
	return out, nil
}

// projection returns the (Order+1) x Window matrix mapping a window of samples
// to polynomial coefficients in z = (j-half)/half. Scaling z into [-1, 1]
// keeps the Vandermonde matrix well conditioned for high orders.
func (f SavitzkyGolay) projection() (*mat.Dense, error) {
	half := float64(f.Window / 2)
	cols := f.Order + 1
	a := mat.NewDense(f.Window, cols, nil)
	for j := 0; j < f.Window; j++ {
		z := (float64(j) - half) / half
		p := 1.0
		for k := 0; k < cols; k++ {
			a.Set(j, k, p)
			p *= z
		}
	}

	var qr mat.QR
	qr.Factorize(a)
	eye := mat.NewDiagDense(f.Window, nil)
	for j := 0; j < f.Window; j++ {
		eye.SetDiag(j, 1)
	}
	var proj mat.Dense
	if err := qr.SolveTo(&proj, false, eye); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeInvalidParameters, f.String()+" is ill-conditioned", err)
	}
	return &proj, nil
}

// weightsAt returns the sample weights that evaluate the fitted polynomial at z.
func (f SavitzkyGolay) weightsAt(proj *mat.Dense, z float64) []float64 {
	w := make([]float64, f.Window)
	p := 1.0
	for k := 0; k <= f.Order; k++ {
		floats.AddScaled(w, p, proj.RawRowView(k))
		p *= z
	}
	return w
}
