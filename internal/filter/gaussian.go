package filter

import (
	"fmt"
	"math"

	apperrors "github.com/FabioSangalli/nTLCanalyzer/internal/errors"
)

// DefaultTruncate is the Gaussian kernel radius in standard deviations.
const DefaultTruncate = 3.0

// Gaussian convolves with a normalized Gaussian kernel of radius
// ceil(Truncate*Sigma). The signal is extended by reflection at both ends
// (d c b a | a b c d | d c b a), so no artificial dip appears near the edges.
type Gaussian struct {
	Sigma float64
	// Truncate defaults to DefaultTruncate when zero.
	Truncate float64
}

func (Gaussian) sealed() {}

func (f Gaussian) String() string {
	return fmt.Sprintf("gaussian(%g)", f.Sigma)
}

func (f Gaussian) truncate() float64 {
	if f.Truncate == 0 {
		return DefaultTruncate
	}
	return f.Truncate
}

// Validate requires a finite Sigma > 0 and a positive Truncate.
func (f Gaussian) Validate() error {
	if !(f.Sigma > 0) || math.IsInf(f.Sigma, 0) {
		return apperrors.NewInvalidParameters("gaussian sigma must be finite and > 0, got %v", f.Sigma)
	}
	if t := f.truncate(); !(t > 0) || math.IsInf(t, 0) {
		return apperrors.NewInvalidParameters("gaussian truncate must be finite and > 0, got %v", t)
	}
	return nil
}

// Radius returns the kernel half-width in samples.
func (f Gaussian) Radius() int {
	return int(math.Ceil(f.truncate() * f.Sigma))
}

// Kernel returns the 2*Radius()+1 normalized weights.
func (f Gaussian) Kernel() []float64 {
	r := f.Radius()
	k := make([]float64, 2*r+1)
	var sum float64
	for j := -r; j <= r; j++ {
		w := math.Exp(-float64(j*j) / (2 * f.Sigma * f.Sigma))
		k[j+r] = w
		sum += w
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// Apply smooths values.
func (f Gaussian) Apply(values []float64) ([]float64, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	n := len(values)
	out := make([]float64, n)
	if n == 0 {
		return out, nil
	}
	kernel := f.Kernel()
	r := len(kernel) / 2
	for i := 0; i < n; i++ {
		var s float64
		for j, w := range kernel {
			s += w * values[reflect(i+j-r, n)]
		}
		out[i] = s
	}
	return out, nil
}

// reflect maps any index onto [0, n) by mirroring about the half-sample
// points outside each end, repeating with period 2n.
func reflect(i, n int) int {
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}
