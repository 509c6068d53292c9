package fitting

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"github.com/FabioSangalli/nTLCanalyzer/internal/chrom"
	apperrors "github.com/FabioSangalli/nTLCanalyzer/internal/errors"
)

const (
	maxAsymmetry = 1.9
	// curveSamples is the grid used to integrate a fitted component.
	curveSamples = 500
	// boundEps is the fraction of a parameter range within which a solution
	// counts as sitting on a bound.
	boundEps = 1e-6
)

// Options controls the fitter.
type Options struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Model    string `yaml:"model" json:"model"`
	JointFit bool   `yaml:"jointFit" json:"joint_fit"`
	// MaxIterations caps the solver's outer iterations.
	MaxIterations int     `yaml:"maxIterations" json:"max_iterations"`
	Tolerance     float64 `yaml:"tolerance" json:"tolerance"`
	// SubtractBaseline fits the signal above the integration baseline rather
	// than the raw filtered values.
	SubtractBaseline bool `yaml:"subtractBaseline" json:"subtract_baseline"`
	// MinRSquared marks fits with a lower coefficient of determination invalid.
	MinRSquared float64 `yaml:"minRSquared" json:"min_r_squared"`
}

// DefaultOptions returns single-peak Mecozzi fitting with baseline subtraction.
func DefaultOptions() Options {
	return Options{
		Enabled:          true,
		Model:            ModelMecozzi,
		MaxIterations:    200,
		Tolerance:        1e-8,
		SubtractBaseline: true,
	}
}

// Validate returns an INVALID_PARAMETERS error for unusable settings.
func (o Options) Validate() error {
	if _, err := ModelByName(o.Model); err != nil {
		return err
	}
	if o.MaxIterations < 1 || o.MaxIterations > 100000 {
		return apperrors.NewInvalidParameters("maxIterations must be in [1, 100000], got %d", o.MaxIterations)
	}
	if !(o.Tolerance > 0) || math.IsInf(o.Tolerance, 0) {
		return apperrors.NewInvalidParameters("tolerance must be finite and > 0, got %v", o.Tolerance)
	}
	if !(o.MinRSquared >= 0 && o.MinRSquared <= 1) {
		return apperrors.NewInvalidParameters("minRSquared must be in [0, 1], got %v", o.MinRSquared)
	}
	return nil
}

// FitPeak fits one integrated peak over its [Left, Right] window.
//
// The returned error is a FIT_NON_CONVERGENCE error when the solver ran out
// of iterations or ended on a bound or below MinRSquared; the FitResult is
// then marked invalid with zero parameters and the final residual retained.
// Other error types mean no fit was attempted. baseline is the profile-wide
// baseline, or nil for the peak's linear one.
func FitPeak(f *chrom.FilteredProfile, p chrom.Peak, baseline []float64, opts Options) (chrom.FitResult, error) {
	res, err := FitGroup(f, []chrom.Peak{p}, baseline, opts)
	if len(res) == 0 {
		return chrom.FitResult{}, err
	}
	return res[0], err
}

// FitGroup fits the sum of one component per peak over the union of their
// windows, returning one FitResult per peak in input order.
func FitGroup(f *chrom.FilteredProfile, peaks []chrom.Peak, baseline []float64, opts Options) ([]chrom.FitResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	model, _ := ModelByName(opts.Model)
	if f == nil || f.Len() == 0 {
		return nil, apperrors.NewEmptyProfile("cannot fit an empty profile")
	}
	if len(peaks) == 0 {
		return nil, apperrors.NewInvalidParameters("no peaks to fit")
	}
	if baseline != nil && len(baseline) != f.Len() {
		return nil, apperrors.NewInvalidParameters("baseline has %d samples, profile has %d", len(baseline), f.Len())
	}

	lo, hi := f.Len(), -1
	for i, p := range peaks {
		if !p.Integrated {
			return nil, apperrors.NewInvalidBoundary("peak at index %d has no boundaries; integrate before fitting", p.Apex).
				WithDetail("peak", strconv.Itoa(i))
		}
		if !(0 <= p.Left && p.Left < p.Apex && p.Apex < p.Right && p.Right < f.Len()) {
			return nil, apperrors.NewInvalidBoundary("peak boundaries %d..%d around apex %d are invalid", p.Left, p.Right, p.Apex)
		}
		lo, hi = min(lo, p.Left), max(hi, p.Right)
	}

	xs := f.Positions[lo : hi+1]
	ys := make([]float64, len(xs))
	copy(ys, f.Values[lo:hi+1])
	if opts.SubtractBaseline {
		window := chrom.Peak{
			Left: lo, Right: hi,
			BaselineLeft:  peaks[0].BaselineLeft,
			BaselineRight: peaks[len(peaks)-1].BaselineRight,
		}
		for _, p := range peaks {
			if p.Left == lo {
				window.BaselineLeft = p.BaselineLeft
			}
			if p.Right == hi {
				window.BaselineRight = p.BaselineRight
			}
		}
		for k := range ys {
			if baseline != nil {
				ys[k] -= baseline[lo+k]
			} else {
				ys[k] -= window.LinearBaseline(f.Positions, lo+k)
			}
		}
	}

	joint := len(peaks) > 1
	results := make([]chrom.FitResult, len(peaks))
	for i := range results {
		results[i] = chrom.FitResult{Model: model.Name(), Joint: joint}
	}
	fail := func(reason string) ([]chrom.FitResult, error) {
		for i := range results {
			invalidate(&results[i], reason)
		}
		return results, apperrors.NewFitNonConvergence("fit of %d peak(s) over %v..%v: %s", len(peaks), xs[0], xs[len(xs)-1], reason).
			WithDetail("apex", strconv.Itoa(peaks[0].Apex))
	}

	if len(xs) <= 4*len(peaks) {
		return fail(fmt.Sprintf("window of %d samples is too small for %d parameters", len(xs), 4*len(peaks)))
	}

	pr := &problem{xs: xs, ys: ys, model: model}
	x0 := make([]float64, 0, 4*len(peaks))
	span := xs[len(xs)-1] - xs[0]
	minWidth := 0.5 * math.Abs(xs[1]-xs[0])
	for _, p := range peaks {
		h := ys[p.Apex-lo]
		if !(h > 0) {
			return fail(fmt.Sprintf("apex at %v is not above the baseline", f.Positions[p.Apex]))
		}
		w := clamp(halfWidth(xs, ys, p.Apex-lo, p.Left-lo, p.Right-lo)/math.Sqrt(2*math.Ln2), minWidth, span)
		x0 = append(x0, h, f.Positions[p.Apex], w, 0)
		pr.lower = append(pr.lower, 0, f.Positions[p.Left], minWidth, -maxAsymmetry)
		pr.upper = append(pr.upper, 2*h, f.Positions[p.Right], span, maxAsymmetry)
	}

	sol := levenbergMarquardt(pr, x0, opts.Tolerance, opts.MaxIterations)
	r2 := rSquared(pr, sol.params)
	for i := range results {
		results[i].RSS = sol.rss
		results[i].RSquared = r2
		results[i].Iterations = sol.iterations
		results[i].Converged = sol.converged
	}

	if !sol.converged {
		return fail(fmt.Sprintf("no convergence in %d iterations", sol.iterations))
	}
	if name, ok := onBound(pr, sol.params); ok {
		return fail(name + " ended on its bound")
	}
	if r2 < opts.MinRSquared {
		return fail(fmt.Sprintf("r_squared %.4f below %.4f", r2, opts.MinRSquared))
	}

	grid := make([]float64, curveSamples)
	floats.Span(grid, xs[0], xs[len(xs)-1])
	curve := make([]float64, curveSamples)
	for i := range results {
		c := unpack(sol.params[4*i:])
		for k, x := range grid {
			curve[k] = model.Eval(x, c)
		}
		results[i].Amplitude = c.Amplitude
		results[i].Center = c.Center
		results[i].Width = c.Width
		results[i].Asymmetry = c.Asymmetry
		results[i].Area = integrate.Trapezoidal(grid, curve)
		results[i].Valid = true
	}
	return results, nil
}

// Groups partitions integrated peaks into sets whose windows touch or
// overlap, ordered by apex. Each group holds indices into peaks. Peaks
// without boundaries are left out.
func Groups(peaks []chrom.Peak) [][]int {
	order := make([]int, 0, len(peaks))
	for i, p := range peaks {
		if p.Integrated {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool { return peaks[order[a]].Apex < peaks[order[b]].Apex })

	var groups [][]int
	reach := -1
	for _, i := range order {
		if len(groups) > 0 && peaks[i].Left <= reach {
			last := len(groups) - 1
			groups[last] = append(groups[last], i)
		} else {
			groups = append(groups, []int{i})
		}
		reach = max(reach, peaks[i].Right)
	}
	return groups
}

// Curve samples a valid fit over the peak window for plotting.
func Curve(f *chrom.FilteredProfile, p chrom.Peak, baseline []float64, subtractBaseline bool) (xs, ys []float64) {
	if p.Fit == nil || !p.Fit.Valid {
		return nil, nil
	}
	model, err := ModelByName(p.Fit.Model)
	if err != nil {
		return nil, nil
	}
	c := Params{Amplitude: p.Fit.Amplitude, Center: p.Fit.Center, Width: p.Fit.Width, Asymmetry: p.Fit.Asymmetry}
	for i := p.Left; i <= p.Right; i++ {
		y := model.Eval(f.Positions[i], c)
		if subtractBaseline {
			if baseline != nil {
				y += baseline[i]
			} else {
				y += p.LinearBaseline(f.Positions, i)
			}
		}
		xs = append(xs, f.Positions[i])
		ys = append(ys, y)
	}
	return xs, ys
}

func invalidate(r *chrom.FitResult, reason string) {
	r.Amplitude, r.Center, r.Width, r.Asymmetry, r.Area = 0, 0, 0, 0, 0
	r.Valid = false
	r.Reason = reason
}

// halfWidth estimates the half width at half maximum around apex from the
// interpolated half-height crossings inside [left, right].
func halfWidth(xs, ys []float64, apex, left, right int) float64 {
	half := ys[apex] / 2
	cross := func(dir, stop int) (float64, bool) {
		for i := apex + dir; i != stop+dir; i += dir {
			if ys[i] <= half {
				prev := i - dir
				t := (ys[prev] - half) / (ys[prev] - ys[i])
				return math.Abs(xs[prev] + t*(xs[i]-xs[prev]) - xs[apex]), true
			}
		}
		return 0, false
	}
	l, lok := cross(-1, left)
	r, rok := cross(+1, right)
	switch {
	case lok && rok:
		return (l + r) / 2
	case lok:
		return l
	case rok:
		return r
	default:
		return (xs[right] - xs[left]) / 4
	}
}

// onBound reports the first parameter sitting on a bound.
func onBound(pr *problem, p []float64) (string, bool) {
	names := [4]string{"amplitude", "center", "width", "asymmetry"}
	for j, v := range p {
		eps := boundEps * (pr.upper[j] - pr.lower[j])
		if v-pr.lower[j] <= eps || pr.upper[j]-v <= eps {
			return names[j%4], true
		}
	}
	return "", false
}

func rSquared(pr *problem, p []float64) float64 {
	mean := stat.Mean(pr.ys, nil)
	var rss, tss float64
	for k, x := range pr.xs {
		r := sum(pr.model, x, p) - pr.ys[k]
		d := pr.ys[k] - mean
		rss += r * r
		tss += d * d
	}
	if tss > 0 {
		return 1 - rss/tss
	}
	return 0
}
