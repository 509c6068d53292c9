package filter

import (
	"fmt"
	"math"

	"github.com/FabioSangalli/nTLCanalyzer/internal/chrom"
	apperrors "github.com/FabioSangalli/nTLCanalyzer/internal/errors"
)

// Kind is one smoothing filter. The set of kinds is closed: only the types in
// this package implement it, so a type switch over SavitzkyGolay and Gaussian
// is exhaustive.
type Kind interface {
	// Validate checks the filter's own parameters.
	Validate() error
	// Apply returns a smoothed copy of values with the same length.
	Apply(values []float64) ([]float64, error)
	// String describes the filter, e.g. "savgol(11,3)".
	String() string

	sealed()
}

// Apply runs the chain over p in order and returns the FilteredProfile.
// An empty chain yields an unmodified copy.
//
// Errors:
//   - EMPTY_PROFILE when p has no samples
//   - INVALID_PARAMETERS when a filter is invalid for p or p holds non-finite values
func Apply(p *chrom.Profile, chain ...Kind) (*chrom.FilteredProfile, error) {
	if p == nil || p.Len() == 0 {
		return nil, apperrors.NewEmptyProfile("cannot filter an empty profile")
	}
	if err := checkFinite(p.Values); err != nil {
		return nil, err
	}

	values := append([]float64(nil), p.Values...)
	names := make([]string, 0, len(chain))
	for _, k := range chain {
		if err := k.Validate(); err != nil {
			return nil, err
		}
		out, err := k.Apply(values)
		if err != nil {
			return nil, err
		}
		if len(out) != len(values) {
			return nil, fmt.Errorf("%s changed profile length from %d to %d", k, len(values), len(out))
		}
		if err := checkFinite(out); err != nil {
			return nil, err
		}
		values = out
		names = append(names, k.String())
	}

	return &chrom.FilteredProfile{
		SourceID:  p.ID,
		Positions: append([]float64(nil), p.Positions...),
		Values:    values,
		Filters:   names,
	}, nil
}

func checkFinite(values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return apperrors.NewInvalidParameters("profile value %d is %v", i, v)
		}
	}
	return nil
}

// Spec is the serializable form of a Kind used in configuration files.
type Spec struct {
	Kind   string  `yaml:"kind" json:"kind"`
	Window int     `yaml:"window,omitempty" json:"window,omitempty"`
	Order  int     `yaml:"order,omitempty" json:"order,omitempty"`
	Sigma  float64 `yaml:"sigma,omitempty" json:"sigma,omitempty"`
	// Truncate is the Gaussian kernel radius in sigmas. Zero means 3.
	Truncate float64 `yaml:"truncate,omitempty" json:"truncate,omitempty"`
}

// Build converts a Spec into its Kind and validates it.
func (s Spec) Build() (Kind, error) {
	var k Kind
	switch s.Kind {
	case "savgol", "savitzky-golay", "savitzkygolay":
		k = SavitzkyGolay{Window: s.Window, Order: s.Order}
	case "gaussian":
		k = Gaussian{Sigma: s.Sigma, Truncate: s.Truncate}
	default:
		return nil, apperrors.NewInvalidParameters("unknown filter kind %q (want savgol or gaussian)", s.Kind)
	}
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return k, nil
}

// BuildChain converts specs in order.
func BuildChain(specs []Spec) ([]Kind, error) {
	chain := make([]Kind, 0, len(specs))
	for i, s := range specs {
		k, err := s.Build()
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
		chain = append(chain, k)
	}
	return chain, nil
}
