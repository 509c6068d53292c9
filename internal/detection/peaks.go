package detection

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/FabioSangalli/nTLCanalyzer/internal/chrom"
	apperrors "github.com/FabioSangalli/nTLCanalyzer/internal/errors"
)

// Params controls Detect.
type Params struct {
	// MinHeight is the lowest accepted apex value. With RelativeHeight it is a
	// fraction of the signal range above the minimum: min + MinHeight*(max-min).
	MinHeight      float64 `yaml:"minHeight" json:"min_height"`
	RelativeHeight bool    `yaml:"relativeHeight" json:"relative_height"`

	// MinDistance is the smallest index separation between accepted peaks.
	// Values below 2 disable suppression.
	MinDistance int `yaml:"minDistance" json:"min_distance"`

	// Sensitivity is the prominence a peak must exceed. With
	// RelativeProminence it is a fraction of the signal range.
	Sensitivity        float64 `yaml:"sensitivity" json:"sensitivity"`
	RelativeProminence bool    `yaml:"relativeProminence" json:"relative_prominence"`

	// MinWidth is the smallest accepted width at half prominence, in samples.
	// Zero disables the check.
	MinWidth float64 `yaml:"minWidth" json:"min_width"`
}

// DefaultParams returns thresholds suited to an 8-bit plate photograph.
func DefaultParams() Params {
	return Params{
		MinHeight:          0.1,
		RelativeHeight:     true,
		MinDistance:        10,
		Sensitivity:        0.02,
		RelativeProminence: true,
	}
}

// Validate returns an INVALID_PARAMETERS error for non-finite or negative
// thresholds.
func (p Params) Validate() error {
	if math.IsNaN(p.MinHeight) || math.IsInf(p.MinHeight, 0) {
		return apperrors.NewInvalidParameters("minHeight must be finite, got %v", p.MinHeight)
	}
	if p.MinDistance < 0 {
		return apperrors.NewInvalidParameters("minDistance must be >= 0, got %d", p.MinDistance)
	}
	if !(p.Sensitivity >= 0) || math.IsInf(p.Sensitivity, 0) {
		return apperrors.NewInvalidParameters("sensitivity must be finite and >= 0, got %v", p.Sensitivity)
	}
	if !(p.MinWidth >= 0) || math.IsInf(p.MinWidth, 0) {
		return apperrors.NewInvalidParameters("minWidth must be finite and >= 0, got %v", p.MinWidth)
	}
	return nil
}

// Rejections counts candidates discarded at each stage.
type Rejections struct {
	BelowHeight   int `json:"below_height"`
	TooClose      int `json:"too_close"`
	LowProminence int `json:"low_prominence"`
	TooNarrow     int `json:"too_narrow"`
}

// Result is the outcome of Detect.
type Result struct {
	// Peaks are ordered by apex index and carry apex data only.
	Peaks []chrom.Peak `json:"peaks"`
	// Candidates is the number of local maxima found before filtering.
	Candidates int        `json:"candidates"`
	Rejected   Rejections `json:"rejected"`
	// HeightThreshold and ProminenceThreshold are the absolute thresholds
	// that were applied.
	HeightThreshold     float64 `json:"height_threshold"`
	ProminenceThreshold float64 `json:"prominence_threshold"`
}

// Detect finds peaks in f.
//
// Candidates are local maxima; a flat top yields one candidate at the plateau
// midpoint, and samples at either end of the profile are never candidates.
// Filters run in this order:
//
//  1. apex value below the height threshold
//  2. minimum distance, suppressing lower peaks around higher ones first
//  3. prominence not above the sensitivity threshold
//  4. width at half prominence below MinWidth
//
// Step 3 runs after step 2 so that raising the sensitivity can only remove
// peaks. Finding nothing is not an error.
func Detect(f *chrom.FilteredProfile, params Params) (*Result, error) {
	if f == nil || f.Len() == 0 {
		return nil, apperrors.NewEmptyProfile("cannot detect peaks in an empty profile")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	values := f.Values
	lo, hi := floats.Min(values), floats.Max(values)
	res := &Result{
		Peaks:               []chrom.Peak{},
		HeightThreshold:     params.MinHeight,
		ProminenceThreshold: params.Sensitivity,
	}
	if params.RelativeHeight {
		res.HeightThreshold = lo + params.MinHeight*(hi-lo)
	}
	if params.RelativeProminence {
		res.ProminenceThreshold = params.Sensitivity * (hi - lo)
	}

	candidates := LocalMaxima(values)
	res.Candidates = len(candidates)

	tall := candidates[:0:0]
	for _, i := range candidates {
		if values[i] < res.HeightThreshold {
			res.Rejected.BelowHeight++
			continue
		}
		tall = append(tall, i)
	}

	spaced := suppressClose(values, tall, params.MinDistance)
	res.Rejected.TooClose = len(tall) - len(spaced)

	for _, i := range spaced {
		prom, leftBase, rightBase := Prominence(values, i)
		if !(prom > res.ProminenceThreshold) {
			res.Rejected.LowProminence++
			continue
		}
		if params.MinWidth > 0 && Width(values, i, prom, leftBase, rightBase) < params.MinWidth {
			res.Rejected.TooNarrow++
			continue
		}
		res.Peaks = append(res.Peaks, chrom.Peak{
			Apex:       i,
			Position:   f.Positions[i],
			Intensity:  values[i],
			Prominence: prom,
		})
	}
	return res, nil
}

// LocalMaxima returns the indices of local maxima in ascending order. A run of
// equal values counts when both neighbours of the run are strictly lower; its
// index is the run's midpoint, rounded down.
func LocalMaxima(values []float64) []int {
	var out []int
	last := len(values) - 1
	for i := 1; i < last; i++ {
		if !(values[i-1] < values[i]) {
			continue
		}
		ahead := i + 1
		for ahead < last && values[ahead] == values[i] {
			ahead++
		}
		if values[ahead] < values[i] {
			out = append(out, (i+ahead-1)/2)
			i = ahead - 1
		}
	}
	return out
}

// suppressClose keeps the highest candidates first and drops any candidate
// closer than minDistance to one already kept. Equal heights favour the lower
// index. The result is in ascending index order.
func suppressClose(values []float64, candidates []int, minDistance int) []int {
	if minDistance < 2 || len(candidates) < 2 {
		return candidates
	}

	order := append([]int(nil), candidates...)
	sort.SliceStable(order, func(a, b int) bool {
		return values[order[a]] > values[order[b]]
	})

	kept := make([]int, 0, len(order))
	for _, c := range order {
		tooClose := false
		for _, k := range kept {
			if abs(c-k) < minDistance {
				tooClose = true
				break
			}
		}
		if !tooClose {
			kept = append(kept, c)
		}
	}
	sort.Ints(kept)
	return kept
}

// Prominence returns the peak's height above the higher of its two valley
// minima, together with the indices of those minima. Each valley is searched
// outward from the apex until a strictly higher sample or the profile end.
func Prominence(values []float64, apex int) (prominence float64, leftBase, rightBase int) {
	top := values[apex]

	leftBase = apex
	leftMin := top
	for j := apex - 1; j >= 0 && values[j] <= top; j-- {
		if values[j] < leftMin {
			leftMin, leftBase = values[j], j
		}
	}

	rightBase = apex
	rightMin := top
	for j := apex + 1; j < len(values) && values[j] <= top; j++ {
		if values[j] < rightMin {
			rightMin, rightBase = values[j], j
		}
	}

	return top - math.Max(leftMin, rightMin), leftBase, rightBase
}

// Width returns the width of the peak at half its prominence, in samples,
// interpolating linearly between the samples that straddle the half level.
func Width(values []float64, apex int, prominence float64, leftBase, rightBase int) float64 {
	level := values[apex] - prominence/2

	i := apex
	for i > leftBase && values[i] > level {
		i--
	}
	left := float64(i)
	if values[i] < level {
		left += (level - values[i]) / (values[i+1] - values[i])
	}

	j := apex
	for j < rightBase && values[j] > level {
		j++
	}
	right := float64(j)
	if values[j] < level {
		right -= (level - values[j]) / (values[j-1] - values[j])
	}
	return right - left
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
