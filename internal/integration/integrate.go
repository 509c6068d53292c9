package integration

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/integrate"

	"github.com/FabioSangalli/nTLCanalyzer/internal/chrom"
	"github.com/FabioSangalli/nTLCanalyzer/internal/detection"
	apperrors "github.com/FabioSangalli/nTLCanalyzer/internal/errors"
)

// Mode selects how peak boundaries are found.
type Mode string

const (
	// ModeAutomatic walks from each apex to its valleys.
	ModeAutomatic Mode = "automatic"
	// ModeManual takes user-supplied boundary indices.
	ModeManual Mode = "manual"
)

// BaselineKind selects the baseline subtracted before integration.
type BaselineKind string

const (
	// BaselineLinear joins the two boundary samples of each peak.
	BaselineLinear BaselineKind = "linear"
	// BaselineRollingMinimum is a profile-wide baseline: the rolling minimum
	// over BaselineWindow samples, smoothed by a rolling mean of the same window.
	BaselineRollingMinimum BaselineKind = "rollingMinimum"
)

// Options controls integration.
type Options struct {
	Mode     Mode         `yaml:"mode" json:"mode"`
	Baseline BaselineKind `yaml:"baseline" json:"baseline"`
	// BaselineWindow is the rolling window in samples for BaselineRollingMinimum.
	BaselineWindow int `yaml:"baselineWindow" json:"baseline_window"`
	// ValleyTolerance lets a valley walk continue over rises smaller than this
	// fraction of the apex intensity, which steps over noise in the valley.
	ValleyTolerance float64 `yaml:"valleyTolerance" json:"valley_tolerance"`
}

// DefaultOptions returns automatic boundaries with a linear baseline.
func DefaultOptions() Options {
	return Options{
		Mode:           ModeAutomatic,
		Baseline:       BaselineLinear,
		BaselineWindow: 51,
	}
}

// Validate returns an INVALID_PARAMETERS error for unknown kinds or an
// unusable window.
func (o Options) Validate() error {
	switch o.Mode {
	case ModeAutomatic, ModeManual:
	default:
		return apperrors.NewInvalidParameters("unknown integration mode %q (want automatic or manual)", o.Mode)
	}
	switch o.Baseline {
	case BaselineLinear:
	case BaselineRollingMinimum:
		if o.BaselineWindow < 3 {
			return apperrors.NewInvalidParameters("baselineWindow must be >= 3, got %d", o.BaselineWindow)
		}
	default:
		return apperrors.NewInvalidParameters("unknown baseline %q (want linear or rollingMinimum)", o.Baseline)
	}
	if !(o.ValleyTolerance >= 0) || math.IsInf(o.ValleyTolerance, 0) {
		return apperrors.NewInvalidParameters("valleyTolerance must be finite and >= 0, got %v", o.ValleyTolerance)
	}
	return nil
}

// Bounds is a user-supplied boundary pair.
type Bounds struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

// Integrate finds boundaries for every peak by walking to its valleys, then
// integrates each peak in place. It returns the profile-wide baseline, or nil
// for the linear baseline.
//
// A valley walk moves outward from the apex while samples stay within the
// tolerance of the lowest sample seen, never stepping onto a neighbouring
// apex, and the boundary is that lowest sample. When the boundaries of two
// adjacent peaks would overlap, both move to the lowest sample between the two
// apexes and share it.
//
// On error no peak is modified.
func Integrate(f *chrom.FilteredProfile, peaks []chrom.Peak, opts Options) ([]float64, error) {
	if err := checkProfile(f); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	n := f.Len()
	values := f.Values

	order := make([]int, len(peaks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return peaks[order[a]].Apex < peaks[order[b]].Apex })

	bounds := make([]Bounds, len(peaks))
	for k, idx := range order {
		apex := peaks[idx].Apex
		if apex < 1 || apex > n-2 {
			return nil, apperrors.NewInvalidBoundary("apex %d has no room for boundaries in a profile of %d samples", apex, n).
				WithDetail("peak", itoa(idx))
		}
		lowStop, highStop := -1, n
		if k > 0 {
			lowStop = peaks[order[k-1]].Apex
			if apex-lowStop < 2 {
				return nil, apperrors.NewInvalidBoundary("apexes %d and %d leave no valley between them", lowStop, apex)
			}
		}
		if k < len(order)-1 {
			highStop = peaks[order[k+1]].Apex
		}
		tol := opts.ValleyTolerance * math.Abs(values[apex])
		bounds[idx] = Bounds{
			Left:  walk(values, apex, -1, lowStop, tol),
			Right: walk(values, apex, +1, highStop, tol),
		}
	}
	shareValleys(values, peaks, order, bounds)

	baseline := profileBaseline(values, opts)
	updated := make([]chrom.Peak, len(peaks))
	for i := range peaks {
		updated[i] = peaks[i]
		apply(f, &updated[i], bounds[i], baseline)
	}
	copy(peaks, updated)
	return baseline, nil
}

// walk returns the boundary index on one side of apex. dir is -1 or +1 and
// stop is the first index the walk may not enter.
func walk(values []float64, apex, dir, stop int, tol float64) int {
	best, bestVal := apex, values[apex]
	for i := apex + dir; i != stop && i >= 0 && i < len(values); i += dir {
		if values[i] > bestVal+tol {
			break
		}
		if values[i] < bestVal {
			best, bestVal = i, values[i]
		}
	}
	if best == apex {
		// the apex is not a local maximum on this side; take its neighbour
		best = apex + dir
	}
	return best
}

// shareValleys resolves overlapping boundaries of apex-adjacent peaks.
func shareValleys(values []float64, peaks []chrom.Peak, order []int, bounds []Bounds) {
	for k := 0; k+1 < len(order); k++ {
		a, b := order[k], order[k+1]
		if bounds[a].Right <= bounds[b].Left {
			continue
		}
		valley := peaks[a].Apex + 1
		for i := valley + 1; i < peaks[b].Apex; i++ {
			if values[i] < values[valley] {
				valley = i
			}
		}
		bounds[a].Right = valley
		bounds[b].Left = valley
	}
}

// IntegrateManual integrates one peak between user-supplied boundary indices.
// The boundaries must satisfy 0 <= left < apex < right < len; otherwise an
// INVALID_BOUNDARY error is returned and the peak is left untouched.
// baseline is the profile-wide baseline, or nil for a linear one.
func IntegrateManual(f *chrom.FilteredProfile, peak *chrom.Peak, b Bounds, baseline []float64) error {
	if err := checkProfile(f); err != nil {
		return err
	}
	if err := checkBounds(f.Len(), peak.Apex, b); err != nil {
		return err
	}
	if baseline != nil && len(baseline) != f.Len() {
		return apperrors.NewInvalidParameters("baseline has %d samples, profile has %d", len(baseline), f.Len())
	}
	updated := *peak
	apply(f, &updated, b, baseline)
	updated.Manual = true
	*peak = updated
	return nil
}

// IntegrateBounds integrates every peak with its own manual boundaries.
// All boundaries are validated before any peak is modified.
func IntegrateBounds(f *chrom.FilteredProfile, peaks []chrom.Peak, bounds []Bounds, opts Options) ([]float64, error) {
	if err := checkProfile(f); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(bounds) != len(peaks) {
		return nil, apperrors.NewInvalidBoundary("%d boundary pairs for %d peaks", len(bounds), len(peaks))
	}
	for i := range peaks {
		if err := checkBounds(f.Len(), peaks[i].Apex, bounds[i]); err != nil {
			return nil, err.WithDetail("peak", itoa(i))
		}
	}
	baseline := profileBaseline(f.Values, opts)
	for i := range peaks {
		apply(f, &peaks[i], bounds[i], baseline)
		peaks[i].Manual = true
	}
	return baseline, nil
}

// IntegrateRegion creates and integrates a peak over the samples nearest to
// the positions from and to. The apex is the highest sample strictly inside
// the region.
func IntegrateRegion(f *chrom.FilteredProfile, from, to float64, baseline []float64) (chrom.Peak, error) {
	if err := checkProfile(f); err != nil {
		return chrom.Peak{}, err
	}
	if from > to {
		from, to = to, from
	}
	b := Bounds{Left: IndexAt(f.Positions, from), Right: IndexAt(f.Positions, to)}
	if b.Right-b.Left < 2 {
		return chrom.Peak{}, apperrors.NewInvalidBoundary("region %v..%v spans fewer than 3 samples", from, to)
	}

	apex := b.Left + 1
	for i := apex + 1; i < b.Right; i++ {
		if f.Values[i] > f.Values[apex] {
			apex = i
		}
	}
	prom, _, _ := detection.Prominence(f.Values, apex)
	peak := chrom.Peak{
		Apex:       apex,
		Position:   f.Positions[apex],
		Intensity:  f.Values[apex],
		Prominence: prom,
	}
	if err := IntegrateManual(f, &peak, b, baseline); err != nil {
		return chrom.Peak{}, err
	}
	return peak, nil
}

// IndexAt returns the index of the position nearest to x. Ties go to the lower
// index.
func IndexAt(positions []float64, x float64) int {
	i := sort.SearchFloat64s(positions, x)
	if i == 0 {
		return 0
	}
	if i == len(positions) {
		return len(positions) - 1
	}
	if x-positions[i-1] <= positions[i]-x {
		return i - 1
	}
	return i
}

// apply sets boundaries, baseline endpoints, area and height on p.
func apply(f *chrom.FilteredProfile, p *chrom.Peak, b Bounds, baseline []float64) {
	p.Left, p.Right = b.Left, b.Right
	p.Integrated = true
	p.Position = f.Positions[p.Apex]
	p.Intensity = f.Values[p.Apex]

	if baseline != nil {
		p.BaselineLeft, p.BaselineRight = baseline[b.Left], baseline[b.Right]
	} else {
		p.BaselineLeft, p.BaselineRight = f.Values[b.Left], f.Values[b.Right]
	}
	base := func(i int) float64 {
		if baseline != nil {
			return baseline[i]
		}
		return p.LinearBaseline(f.Positions, i)
	}

	xs := f.Positions[b.Left : b.Right+1]
	residual := make([]float64, len(xs))
	for j := range residual {
		residual[j] = f.Values[b.Left+j] - base(b.Left+j)
	}
	p.Area = integrate.Trapezoidal(xs, residual)
	p.AreaClamped = p.Area < 0
	if p.AreaClamped {
		p.Area = 0
	}

	p.Height = f.Values[p.Apex] - base(p.Apex)
	p.HeightClamped = p.Height < 0
	if p.HeightClamped {
		p.Height = 0
	}
}

func checkProfile(f *chrom.FilteredProfile) error {
	if f == nil || f.Len() == 0 {
		return apperrors.NewEmptyProfile("cannot integrate an empty profile")
	}
	if len(f.Positions) != f.Len() {
		return apperrors.NewInvalidParameters("profile has %d positions for %d values", len(f.Positions), f.Len())
	}
	return nil
}

// ValidatePeaks checks peaks restored from a saved table against f: every
// apex inside the profile and every integrated peak's boundaries strictly
// around its apex.
func ValidatePeaks(f *chrom.FilteredProfile, peaks []chrom.Peak) error {
	n := f.Len()
	for i, p := range peaks {
		if p.Apex < 0 || p.Apex >= n {
			return apperrors.NewInvalidBoundary("peak %d apex %d outside profile of %d samples", i, p.Apex, n).
				WithDetail("peak", itoa(i))
		}
		if !p.Integrated {
			continue
		}
		if err := checkBounds(n, p.Apex, Bounds{Left: p.Left, Right: p.Right}); err != nil {
			return err.WithDetail("peak", itoa(i))
		}
	}
	return nil
}

func checkBounds(n, apex int, b Bounds) *apperrors.AppError {
	if b.Left < 0 || b.Right >= n {
		return apperrors.NewInvalidBoundary("boundaries %d..%d outside profile of %d samples", b.Left, b.Right, n)
	}
	if !(b.Left < apex && apex < b.Right) {
		return apperrors.NewInvalidBoundary("boundaries %d..%d must enclose apex %d strictly", b.Left, b.Right, apex)
	}
	return nil
}
