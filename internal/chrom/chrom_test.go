package chrom

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProfile_AssignsID(t *testing.T) {
	a := NewProfile([]float64{0, 1}, []float64{3, 4})
	b := NewProfile([]float64{0, 1}, []float64{3, 4})
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, a.Len())
}

func TestClipFlags_Clipped(t *testing.T) {
	assert.False(t, ClipFlags{}.Clipped())
	assert.True(t, ClipFlags{ClampedSamples: 1}.Clipped())
	assert.True(t, ClipFlags{ExcludedSamples: 1}.Clipped())
	assert.True(t, ClipFlags{ExcludedPositions: 1}.Clipped())
}

func TestPeak_LinearBaseline(t *testing.T) {
	positions := []float64{0, 1, 2, 3, 4}
	p := Peak{Left: 0, Right: 4, BaselineLeft: 2, BaselineRight: 6}

	assert.InDelta(t, 2.0, p.LinearBaseline(positions, 0), 1e-12)
	assert.InDelta(t, 4.0, p.LinearBaseline(positions, 2), 1e-12)
	assert.InDelta(t, 6.0, p.LinearBaseline(positions, 4), 1e-12)
}

func TestChromatogram_CloneIsDeep(t *testing.T) {
	c := NewChromatogram("lane 1")
	c.Profile = NewProfile([]float64{0, 1, 2}, []float64{1, 5, 1})
	c.Filtered = &FilteredProfile{SourceID: c.Profile.ID, Positions: []float64{0, 1, 2}, Values: []float64{1, 4, 1}}
	c.Peaks = []Peak{{Apex: 1, Area: 3, Fit: &FitResult{Amplitude: 4, Valid: true}}}

	clone := c.Clone()
	require.Empty(t, cmp.Diff(c, clone))

	clone.Profile.Values[1] = 99
	clone.Filtered.Values[1] = 99
	clone.Peaks[0].Fit.Amplitude = 99
	clone.Peaks[0].Area = 99

	assert.Equal(t, 5.0, c.Profile.Values[1])
	assert.Equal(t, 4.0, c.Filtered.Values[1])
	assert.Equal(t, 4.0, c.Peaks[0].Fit.Amplitude)
	assert.Equal(t, 3.0, c.Peaks[0].Area)
}

func TestChromatogram_TotalArea(t *testing.T) {
	c := &Chromatogram{Peaks: []Peak{{Area: 1.5}, {Area: 2.5}}}
	assert.Equal(t, 4.0, c.TotalArea())
}
