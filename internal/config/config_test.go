package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/FabioSangalli/nTLCanalyzer/internal/errors"
	"github.com/FabioSangalli/nTLCanalyzer/internal/filter"
	"github.com/FabioSangalli/nTLCanalyzer/internal/imaging"
	"github.com/FabioSangalli/nTLCanalyzer/internal/integration"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, imaging.ReductionLuminance, cfg.Extraction.Reduction)
	assert.True(t, cfg.Extraction.Invert)
	assert.Equal(t, []filter.Spec{{Kind: "savgol", Window: 15, Order: 3}}, cfg.Filters)
	assert.Equal(t, 20, cfg.Detection.MinDistance)
	assert.Equal(t, integration.ModeAutomatic, cfg.Integration.Mode)
	assert.True(t, cfg.Fitting.Enabled)
	assert.Greater(t, cfg.WorkerCount(), 0)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(DefaultConfig(), cfg))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tlc.yaml")
	cfg := DefaultConfig()
	cfg.Filters = append(cfg.Filters, filter.Spec{Kind: "gaussian", Sigma: 1.5})
	cfg.Integration.Baseline = integration.BaselineRollingMinimum
	cfg.Fitting.JointFit = true
	cfg.Workers = 3

	require.NoError(t, SaveConfig(cfg, path))
	got, err := LoadConfig(path)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_PartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tlc.yaml")
	yaml := `
extraction:
  reduction: channel
  channel: green
  bounds: exclude
filters:
  - kind: gaussian
    sigma: 2
detection:
  minDistance: 5
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, imaging.ChannelGreen, cfg.Extraction.Channel)
	assert.EqualValues(t, "exclude", cfg.Extraction.Bounds)
	assert.True(t, cfg.Extraction.Invert, "unset keys keep defaults")
	assert.Equal(t, []filter.Spec{{Kind: "gaussian", Sigma: 2}}, cfg.Filters)
	assert.Equal(t, 5, cfg.Detection.MinDistance)
	assert.Equal(t, DefaultConfig().Detection.Sensitivity, cfg.Detection.Sensitivity)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("filters: [kind: savgol"), 0644))
	_, err := LoadConfig(bad)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidParameters))

	even := filepath.Join(dir, "even.yaml")
	require.NoError(t, os.WriteFile(even, []byte("filters:\n  - kind: savgol\n    window: 6\n    order: 2\n"), 0644))
	_, err = LoadConfig(even)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidParameters))
	assert.Contains(t, err.Error(), "filters")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		section string
	}{
		{"reduction", func(c *Config) { c.Extraction.Reduction = "sepia" }, "extraction"},
		{"median radius", func(c *Config) { c.Extraction.MedianRadius = -1 }, "extraction"},
		{"filter kind", func(c *Config) { c.Filters = []filter.Spec{{Kind: "boxcar"}} }, "filters"},
		{"min distance", func(c *Config) { c.Detection.MinDistance = -2 }, "detection"},
		{"baseline", func(c *Config) { c.Integration.Baseline = "spline" }, "integration"},
		{"iterations", func(c *Config) { c.Fitting.MaxIterations = 0 }, "fitting"},
		{"basis", func(c *Config) { c.Normalization.Basis = "median" }, "normalization"},
		{"workers", func(c *Config) { c.Workers = -1 }, "workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidParameters))
			assert.Contains(t, err.Error(), tt.section)
		})
	}
}

func TestClone(t *testing.T) {
	cfg := DefaultConfig()
	c := cfg.Clone()
	c.Filters[0].Window = 99
	assert.Equal(t, 15, cfg.Filters[0].Window)
}
