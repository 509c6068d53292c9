package fitting

import (
	"math"

	apperrors "github.com/FabioSangalli/nTLCanalyzer/internal/errors"
)

// ModelMecozzi is the name of the Mecozzi asymmetric exponential model.
const ModelMecozzi = "mecozzi"

// seriesThreshold is the |asymmetry| below which the Mecozzi exponent is
// evaluated from its Taylor expansion; the closed form divides by a².
const seriesThreshold = 1e-4

// Params are the shape parameters of one peak component.
type Params struct {
	Amplitude float64 `json:"amplitude"`
	Center    float64 `json:"center"`
	Width     float64 `json:"width"`
	Asymmetry float64 `json:"asymmetry"`
}

// Model is a peak shape. The set of models is closed; every implementation
// lives in this package.
type Model interface {
	Name() string
	// Eval returns the model value at x.
	Eval(x float64, p Params) float64
	sealed()
}

// Mecozzi is the asymmetric exponential peak
//
//	f(x) = A · exp((4/a² − 1) · (ln(1+u) − u)),  u = 2a(x−t₀) / (τ(4−a²))
//
// with amplitude A at the apex t₀, width τ and asymmetry a in (−2, 2). At
// a = 0 it reduces to a Gaussian with standard deviation τ. Where 1+u ≤ 0 the
// function is zero.
type Mecozzi struct{}

func (Mecozzi) Name() string { return ModelMecozzi }

func (Mecozzi) Eval(x float64, p Params) float64 {
	a, w := p.Asymmetry, p.Width
	q := 4 - a*a
	if w <= 0 || q <= 0 {
		return 0
	}
	d := x - p.Center
	u := 2 * a * d / (w * q)
	if 1+u <= 0 {
		return 0
	}

	var e float64
	if math.Abs(a) < seriesThreshold {
		r := d / w
		r2 := r * r
		e = -2*r2/q + 8*a*r2*r/(3*q*q) - 4*a*a*r2*r2/(q*q*q)
	} else {
		e = (4/(a*a) - 1) * (math.Log1p(u) - u)
	}
	return p.Amplitude * math.Exp(e)
}

func (Mecozzi) sealed() {}

// ModelByName resolves a configured model name.
func ModelByName(name string) (Model, error) {
	switch name {
	case "", ModelMecozzi:
		return Mecozzi{}, nil
	default:
		return nil, apperrors.NewInvalidParameters("unknown fit model %q (want mecozzi)", name)
	}
}

// sum evaluates a packed parameter vector of len 4·k as the sum of k components.
func sum(m Model, x float64, packed []float64) float64 {
	var y float64
	for k := 0; k+3 < len(packed); k += 4 {
		y += m.Eval(x, unpack(packed[k:]))
	}
	return y
}

func unpack(v []float64) Params {
	return Params{Amplitude: v[0], Center: v[1], Width: v[2], Asymmetry: v[3]}
}
