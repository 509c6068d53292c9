package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/FabioSangalli/nTLCanalyzer/internal/compare"
	"github.com/FabioSangalli/nTLCanalyzer/internal/detection"
	apperrors "github.com/FabioSangalli/nTLCanalyzer/internal/errors"
	"github.com/FabioSangalli/nTLCanalyzer/internal/extract"
	"github.com/FabioSangalli/nTLCanalyzer/internal/filter"
	"github.com/FabioSangalli/nTLCanalyzer/internal/fitting"
	"github.com/FabioSangalli/nTLCanalyzer/internal/imaging"
	"github.com/FabioSangalli/nTLCanalyzer/internal/integration"
)

// Config is the complete set of pipeline options. It is passed by value into
// every run; nothing in the pipeline keeps its own copy.
type Config struct {
	Extraction    Extraction          `yaml:"extraction" json:"extraction"`
	Filters       []filter.Spec       `yaml:"filters" json:"filters"`
	Detection     detection.Params    `yaml:"detection" json:"detection"`
	Integration   integration.Options `yaml:"integration" json:"integration"`
	Fitting       fitting.Options     `yaml:"fitting" json:"fitting"`
	Normalization compare.Options     `yaml:"normalization" json:"normalization"`
	// Workers bounds concurrent lanes and peak fits. Zero means one per CPU.
	Workers int `yaml:"workers" json:"workers"`
}

// Extraction groups plate reduction and profile sampling.
type Extraction struct {
	// Reduction turns a colour pixel into one intensity.
	Reduction imaging.Reduction `yaml:"reduction" json:"reduction"`
	// Channel is used when Reduction is "channel".
	Channel imaging.Channel `yaml:"channel,omitempty" json:"channel,omitempty"`
	// MedianRadius despeckles the plate before sampling; zero disables it.
	MedianRadius float64 `yaml:"medianRadius" json:"median_radius"`

	extract.Options `yaml:",inline"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Extraction.Reduction = imaging.ReductionLuminance
	cfg.Extraction.Options = extract.DefaultOptions()

	cfg.Filters = []filter.Spec{{Kind: "savgol", Window: 15, Order: 3}}

	cfg.Detection = detection.DefaultParams()
	cfg.Detection.MinDistance = 20

	cfg.Integration = integration.DefaultOptions()
	cfg.Fitting = fitting.DefaultOptions()
	cfg.Normalization = compare.DefaultOptions()

	return cfg
}

// LoadConfig loads configuration from a YAML file. Keys missing from the file
// keep their defaults. If the file doesn't exist, it returns the default
// configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeIO, "error reading config file", err).
			WithDetail("path", configPath)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeInvalidParameters, "error parsing config file", err).
			WithDetail("path", configPath)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", configPath, err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeIO, "error creating config directory", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeIO, "error marshaling config", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeIO, "error writing config file", err)
	}
	return nil
}

// Validate checks every section and returns the first INVALID_PARAMETERS
// error, prefixed with the section name.
func (c *Config) Validate() error {
	if err := imaging.ValidateReduction(c.Extraction.Reduction, c.Extraction.Channel); err != nil {
		return fmt.Errorf("extraction: %w", err)
	}
	if c.Extraction.MedianRadius < 0 {
		return fmt.Errorf("extraction: %w",
			apperrors.NewInvalidParameters("medianRadius must be >= 0, got %v", c.Extraction.MedianRadius))
	}
	if err := c.Extraction.Options.Validate(); err != nil {
		return fmt.Errorf("extraction: %w", err)
	}
	if _, err := filter.BuildChain(c.Filters); err != nil {
		return fmt.Errorf("filters: %w", err)
	}
	if err := c.Detection.Validate(); err != nil {
		return fmt.Errorf("detection: %w", err)
	}
	if err := c.Integration.Validate(); err != nil {
		return fmt.Errorf("integration: %w", err)
	}
	if err := c.Fitting.Validate(); err != nil {
		return fmt.Errorf("fitting: %w", err)
	}
	if err := c.Normalization.Validate(); err != nil {
		return fmt.Errorf("normalization: %w", err)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers: %w", apperrors.NewInvalidParameters("workers must be >= 0, got %d", c.Workers))
	}
	return nil
}

// WorkerCount resolves Workers to a positive number.
func (c *Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// Clone returns a copy that shares nothing mutable with c.
func (c *Config) Clone() *Config {
	out := *c
	out.Filters = append([]filter.Spec(nil), c.Filters...)
	return &out
}
