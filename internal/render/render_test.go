package render

import (
	"bytes"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FabioSangalli/nTLCanalyzer/internal/chrom"
	apperrors "github.com/FabioSangalli/nTLCanalyzer/internal/errors"
)

func analyzed() *chrom.Chromatogram {
	n := 100
	pos := make([]float64, n)
	vals := make([]float64, n)
	for i := range pos {
		d := float64(i - 50)
		pos[i] = float64(i)
		vals[i] = 10 * math.Exp(-d*d/50)
	}
	c := chrom.NewChromatogram("lane")
	c.Profile = chrom.NewProfile(pos, vals)
	c.Filtered = &chrom.FilteredProfile{SourceID: c.Profile.ID, Positions: pos, Values: vals}
	c.Peaks = []chrom.Peak{{
		Label: "P1", Apex: 50, Position: 50, Intensity: 10, Integrated: true, Left: 20, Right: 80,
		Fit: &chrom.FitResult{Model: "mecozzi", Amplitude: 10, Center: 50, Width: 5, Valid: true},
	}}
	return c
}

func TestChromatogram(t *testing.T) {
	opts := DefaultOptions()
	opts.ShowRaw = true
	data, err := Chromatogram(analyzed(), opts)
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Greater(t, cfg.Width, cfg.Height)
}

func TestChromatogram_RollingBaseline(t *testing.T) {
	c := analyzed()
	c.Baseline = make([]float64, c.Filtered.Len())
	_, err := Chromatogram(c, Options{})
	assert.NoError(t, err)
}

func TestChromatogram_Empty(t *testing.T) {
	_, err := Chromatogram(chrom.NewChromatogram("empty"), DefaultOptions())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeEmptyProfile))
}

func TestOverlay(t *testing.T) {
	a, b := analyzed(), analyzed()
	b.Name = ""
	data, err := Overlay([]*chrom.Chromatogram{a, b}, "comparison", DefaultOptions())
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(data))
	assert.NoError(t, err)

	_, err = Overlay(nil, "none", DefaultOptions())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidParameters))
}

func TestPalette(t *testing.T) {
	colors := palette(3)
	require.Len(t, colors, 3)
	assert.NotEqual(t, colors[0], colors[1])
}
