package detection

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FabioSangalli/nTLCanalyzer/internal/chrom"
	apperrors "github.com/FabioSangalli/nTLCanalyzer/internal/errors"
	"github.com/FabioSangalli/nTLCanalyzer/internal/filter"
)

func filtered(values []float64) *chrom.FilteredProfile {
	pos := make([]float64, len(values))
	for i := range pos {
		pos[i] = float64(i) * 0.5
	}
	return &chrom.FilteredProfile{Positions: pos, Values: values}
}

// absolute returns params with plain thresholds and no suppression.
func absolute(minHeight float64, minDistance int, sensitivity float64) Params {
	return Params{MinHeight: minHeight, MinDistance: minDistance, Sensitivity: sensitivity}
}

func apexes(peaks []chrom.Peak) []int {
	out := make([]int, len(peaks))
	for i, p := range peaks {
		out[i] = p.Apex
	}
	return out
}

func gaussians(n int, centers, heights []float64, sigma float64) []float64 {
	v := make([]float64, n)
	for i := range v {
		for k, c := range centers {
			d := float64(i) - c
			v[i] += heights[k] * math.Exp(-d*d/(2*sigma*sigma))
		}
	}
	return v
}

func TestLocalMaxima(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   []int
	}{
		{"single", []float64{0, 1, 0}, []int{1}},
		{"two", []float64{0, 2, 1, 3, 0}, []int{1, 3}},
		{"odd plateau", []float64{0, 1, 3, 3, 3, 1, 0}, []int{3}},
		{"even plateau", []float64{0, 3, 3, 0}, []int{1}},
		{"plateau at end", []float64{0, 1, 2, 2, 2}, nil},
		{"plateau at start", []float64{2, 2, 1, 0}, nil},
		{"edges are not peaks", []float64{5, 1, 5}, nil},
		{"step is not a peak", []float64{0, 2, 2, 3, 0}, []int{3}},
		{"flat", []float64{1, 1, 1, 1}, nil},
		{"too short", []float64{1, 2}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LocalMaxima(tt.values))
		})
	}
}

func TestProminence(t *testing.T) {
	values := []float64{0, 2, 1, 3, 0}

	prom, left, right := Prominence(values, 1)
	assert.Equal(t, 1.0, prom, "higher valley is the 1 between the peaks")
	assert.Equal(t, 0, left)
	assert.Equal(t, 2, right)

	prom, left, right = Prominence(values, 3)
	assert.Equal(t, 3.0, prom)
	assert.Equal(t, 0, left)
	assert.Equal(t, 4, right)
}

func TestWidth(t *testing.T) {
	// triangle of height 4 on a zero floor: half level 2 is crossed at 2 and 6
	values := []float64{0, 0, 2, 3, 4, 3, 2, 0, 0}
	prom, l, r := Prominence(values, 4)
	assert.InDelta(t, 4.0, Width(values, 4, prom, l, r), 1e-12)

	// interpolated crossings
	values = []float64{0, 1, 3, 1, 0}
	prom, l, r = Prominence(values, 2)
	assert.InDelta(t, 1.5, Width(values, 2, prom, l, r), 1e-12)
}

func TestDetect_Basic(t *testing.T) {
	f := filtered([]float64{0, 1, 5, 1, 0, 0, 2, 8, 2, 0})
	res, err := Detect(f, absolute(0, 0, 0))
	require.NoError(t, err)

	require.Len(t, res.Peaks, 2)
	assert.Equal(t, []int{2, 7}, apexes(res.Peaks))
	assert.Equal(t, 1.0, res.Peaks[0].Position)
	assert.Equal(t, 5.0, res.Peaks[0].Intensity)
	assert.Equal(t, 8.0, res.Peaks[1].Prominence)
	assert.False(t, res.Peaks[0].Integrated)
	assert.Nil(t, res.Peaks[0].Fit)
}

func TestDetect_MinHeight(t *testing.T) {
	f := filtered([]float64{0, 3, 0, 7, 0, 2, 0})
	res, err := Detect(f, absolute(2.5, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, apexes(res.Peaks))
	assert.Equal(t, 3, res.Candidates)
	assert.Equal(t, 1, res.Rejected.BelowHeight)
}

func TestDetect_RelativeHeight(t *testing.T) {
	// range 10..20; 50% threshold = 15
	f := filtered([]float64{10, 14, 10, 20, 10, 16, 10})
	res, err := Detect(f, Params{MinHeight: 0.5, RelativeHeight: true})
	require.NoError(t, err)
	assert.InDelta(t, 15.0, res.HeightThreshold, 1e-12)
	assert.Equal(t, []int{3, 5}, apexes(res.Peaks))
}

func TestDetect_MinDistanceHighestFirst(t *testing.T) {
	// the lower peak comes first; a left-to-right scan would keep it
	f := filtered([]float64{0, 5, 0, 9, 0, 0, 0, 0, 4, 0})
	res, err := Detect(f, absolute(0, 3, 0))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 8}, apexes(res.Peaks))
	assert.Equal(t, 1, res.Rejected.TooClose)
}

func TestDetect_MinDistanceTiesFavourLowerIndex(t *testing.T) {
	f := filtered([]float64{0, 5, 0, 5, 0})
	res, err := Detect(f, absolute(0, 3, 0))
	require.NoError(t, err)
	assert.Equal(t, []int{1}, apexes(res.Peaks))
}

func TestDetect_Prominence(t *testing.T) {
	// shoulder bump at 3 rises only 0.5 above its valley
	f := filtered([]float64{0, 4, 6, 6.5, 6, 9, 4, 0})
	res, err := Detect(f, absolute(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, []int{5}, apexes(res.Peaks))
	assert.Equal(t, 1, res.Rejected.LowProminence)

	res, err = Detect(f, absolute(0, 0, 0.4))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 5}, apexes(res.Peaks))
}

func TestDetect_RelativeProminence(t *testing.T) {
	f := filtered([]float64{0, 4, 6, 6.5, 6, 9, 4, 0})
	res, err := Detect(f, Params{Sensitivity: 0.1, RelativeProminence: true})
	require.NoError(t, err)
	assert.InDelta(t, 0.9, res.ProminenceThreshold, 1e-12)
	assert.Equal(t, []int{5}, apexes(res.Peaks))
}

func TestDetect_MinWidth(t *testing.T) {
	v := gaussians(100, []float64{30, 70}, []float64{10, 10}, 6)
	v[50] += 8 // one-sample spike

	res, err := Detect(filtered(v), Params{MinWidth: 3})
	require.NoError(t, err)
	assert.Equal(t, []int{30, 70}, apexes(res.Peaks))
	assert.Equal(t, 1, res.Rejected.TooNarrow)
}

func TestDetect_NoPeaks(t *testing.T) {
	res, err := Detect(filtered([]float64{1, 2, 3, 4, 5}), DefaultParams())
	require.NoError(t, err)
	assert.NotNil(t, res.Peaks)
	assert.Empty(t, res.Peaks)
}

func TestDetect_Errors(t *testing.T) {
	_, err := Detect(filtered(nil), DefaultParams())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeEmptyProfile))

	tests := []struct {
		name   string
		params Params
	}{
		{"nan height", Params{MinHeight: math.NaN()}},
		{"negative distance", Params{MinDistance: -1}},
		{"negative sensitivity", Params{Sensitivity: -0.1}},
		{"inf sensitivity", Params{Sensitivity: math.Inf(1)}},
		{"negative width", Params{MinWidth: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Detect(filtered([]float64{0, 1, 0}), tt.params)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidParameters), "got %v", err)
		})
	}
}

func TestDetect_SensitivityMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	v := gaussians(400, []float64{40, 90, 100, 200, 260, 330}, []float64{5, 9, 7, 3, 12, 1}, 6)
	for i := range v {
		v[i] += rng.Float64() * 0.8
	}
	f := filtered(v)

	prev := math.MaxInt
	for s := 0.0; s <= 13; s += 0.05 {
		res, err := Detect(f, Params{MinHeight: 0.5, MinDistance: 5, Sensitivity: s, MinWidth: 1})
		require.NoError(t, err)
		n := len(res.Peaks)
		require.LessOrEqual(t, n, prev, "sensitivity %.2f increased the peak count", s)
		prev = n
	}
	assert.Zero(t, prev)
}

func TestDetect_TwoGaussianScenario(t *testing.T) {
	raw := gaussians(200, []float64{50, 150}, []float64{1.0, 0.6}, 6)
	p := chrom.NewProfile(filtered(raw).Positions, raw)

	f, err := filter.Apply(p, filter.Gaussian{Sigma: 1})
	require.NoError(t, err)

	top := 0.0
	for _, v := range f.Values {
		top = math.Max(top, v)
	}
	res, err := Detect(f, absolute(0.1*top, 20, 0.05))
	require.NoError(t, err)

	require.Len(t, res.Peaks, 2)
	assert.InDelta(t, 50, res.Peaks[0].Apex, 2)
	assert.InDelta(t, 150, res.Peaks[1].Apex, 2)
}

func TestDetect_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	v := make([]float64, 500)
	for i := range v {
		v[i] = rng.Float64()
	}
	a, err := Detect(filtered(v), DefaultParams())
	require.NoError(t, err)
	b, err := Detect(filtered(v), DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
