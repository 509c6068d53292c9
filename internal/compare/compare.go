package compare

import (
	"math"
	"strconv"

	"gonum.org/v1/gonum/floats"

	"github.com/FabioSangalli/nTLCanalyzer/internal/chrom"
	apperrors "github.com/FabioSangalli/nTLCanalyzer/internal/errors"
)

// Basis selects the reference value each chromatogram is divided by.
type Basis string

const (
	BasisNone          Basis = "none"
	BasisMax           Basis = "max"
	BasisTotalArea     Basis = "totalArea"
	BasisReferencePeak Basis = "referencePeak"
)

// Options controls normalization and alignment.
type Options struct {
	Basis Basis `yaml:"basis" json:"basis"`
	// ReferenceLabel picks the reference peak by label. When empty the peak
	// nearest to ReferencePosition is used.
	ReferenceLabel    string  `yaml:"referenceLabel" json:"reference_label,omitempty"`
	ReferencePosition float64 `yaml:"referencePosition" json:"reference_position"`
	// ReferenceTolerance bounds the distance to ReferencePosition; zero means
	// any distance.
	ReferenceTolerance float64 `yaml:"referenceTolerance" json:"reference_tolerance"`
	// Align shifts every chromatogram so its reference peak sits where the
	// reference peak of chromatogram ReferenceIndex sits.
	Align          bool `yaml:"align" json:"align"`
	ReferenceIndex int  `yaml:"referenceIndex" json:"reference_index"`
}

// DefaultOptions normalizes by maximum intensity without alignment.
func DefaultOptions() Options {
	return Options{Basis: BasisMax}
}

// Validate returns an INVALID_PARAMETERS error for an unknown basis or a
// negative tolerance.
func (o Options) Validate() error {
	switch o.Basis {
	case BasisNone, BasisMax, BasisTotalArea, BasisReferencePeak:
	default:
		return apperrors.NewInvalidParameters("unknown normalization basis %q (want none, max, totalArea or referencePeak)", o.Basis)
	}
	if o.ReferenceTolerance < 0 || math.IsNaN(o.ReferenceTolerance) {
		return apperrors.NewInvalidParameters("referenceTolerance must be >= 0, got %v", o.ReferenceTolerance)
	}
	return nil
}

// Compare normalizes and, when configured, aligns copies of chroms. The
// inputs are not modified.
func Compare(chroms []*chrom.Chromatogram, opts Options) ([]*chrom.Chromatogram, error) {
	out, err := Normalize(chroms, opts)
	if err != nil {
		return nil, err
	}
	if !opts.Align {
		return out, nil
	}
	return Align(out, opts)
}

// Normalize returns copies of chroms with every intensity-valued field divided
// by the chromatogram's reference value. Indices, flags, labels and positions
// are unchanged.
func Normalize(chroms []*chrom.Chromatogram, opts Options) ([]*chrom.Chromatogram, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	out := make([]*chrom.Chromatogram, len(chroms))
	for i, c := range chroms {
		if opts.Basis == BasisNone {
			out[i] = c.Clone()
			continue
		}
		ref, err := referenceValue(c, opts)
		if err != nil {
			return nil, err.WithDetail("chromatogram", strconv.Itoa(i))
		}
		if !(ref > 0) || math.IsInf(ref, 0) {
			return nil, apperrors.NewInvalidParameters("%s reference of %q is %v; cannot normalize", opts.Basis, c.Name, ref).
				WithDetail("chromatogram", strconv.Itoa(i))
		}
		out[i] = scaled(c, ref)
	}
	return out, nil
}

// Align returns copies of chroms shifted along the position axis so each
// reference peak lands on the reference position of chroms[opts.ReferenceIndex].
func Align(chroms []*chrom.Chromatogram, opts Options) ([]*chrom.Chromatogram, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(chroms) == 0 {
		return nil, nil
	}
	if opts.ReferenceIndex < 0 || opts.ReferenceIndex >= len(chroms) {
		return nil, apperrors.NewInvalidParameters("referenceIndex %d out of range for %d chromatograms", opts.ReferenceIndex, len(chroms))
	}

	targets := make([]float64, len(chroms))
	for i, c := range chroms {
		k, err := referencePeak(c, opts)
		if err != nil {
			return nil, err.WithDetail("chromatogram", strconv.Itoa(i))
		}
		targets[i] = c.Peaks[k].Position
	}

	out := make([]*chrom.Chromatogram, len(chroms))
	for i, c := range chroms {
		out[i] = shifted(c, targets[opts.ReferenceIndex]-targets[i])
	}
	return out, nil
}

// ReferencePeak returns the index of c's reference peak: the first peak
// carrying ReferenceLabel, or the peak nearest ReferencePosition.
func ReferencePeak(c *chrom.Chromatogram, opts Options) (int, error) {
	k, err := referencePeak(c, opts)
	if err != nil {
		return -1, err
	}
	return k, nil
}

func referencePeak(c *chrom.Chromatogram, opts Options) (int, *apperrors.AppError) {
	if opts.ReferenceLabel != "" {
		for i, p := range c.Peaks {
			if p.Label == opts.ReferenceLabel {
				return i, nil
			}
		}
		return -1, apperrors.NewInvalidParameters("no peak labelled %q in %q", opts.ReferenceLabel, c.Name)
	}

	best, dist := -1, math.Inf(1)
	for i, p := range c.Peaks {
		if d := math.Abs(p.Position - opts.ReferencePosition); d < dist {
			best, dist = i, d
		}
	}
	if best < 0 || (opts.ReferenceTolerance > 0 && dist > opts.ReferenceTolerance) {
		return -1, apperrors.NewInvalidParameters("no peak within %v of position %v in %q",
			opts.ReferenceTolerance, opts.ReferencePosition, c.Name)
	}
	return best, nil
}

func referenceValue(c *chrom.Chromatogram, opts Options) (float64, *apperrors.AppError) {
	switch opts.Basis {
	case BasisMax:
		switch {
		case c.Filtered != nil && c.Filtered.Len() > 0:
			return floats.Max(c.Filtered.Values), nil
		case c.Profile != nil && c.Profile.Len() > 0:
			return floats.Max(c.Profile.Values), nil
		}
		return 0, apperrors.NewEmptyProfile("chromatogram %q has no profile", c.Name)
	case BasisTotalArea:
		return c.TotalArea(), nil
	default:
		k, err := referencePeak(c, opts)
		if err != nil {
			return 0, err
		}
		return c.Peaks[k].Area, nil
	}
}

func scaled(c *chrom.Chromatogram, ref float64) *chrom.Chromatogram {
	out := c.Clone()
	inv := 1 / ref
	if out.Profile != nil {
		floats.Scale(inv, out.Profile.Values)
	}
	if out.Filtered != nil {
		floats.Scale(inv, out.Filtered.Values)
	}
	floats.Scale(inv, out.Baseline)
	for i := range out.Peaks {
		p := &out.Peaks[i]
		p.Intensity *= inv
		p.Prominence *= inv
		p.BaselineLeft *= inv
		p.BaselineRight *= inv
		p.Area *= inv
		p.Height *= inv
		if p.Fit != nil {
			p.Fit.Amplitude *= inv
			p.Fit.Area *= inv
			p.Fit.RSS *= inv * inv
		}
	}
	out.Scale = c.Scale * ref
	return out
}

func shifted(c *chrom.Chromatogram, by float64) *chrom.Chromatogram {
	out := c.Clone()
	if out.Profile != nil {
		floats.AddConst(by, out.Profile.Positions)
	}
	if out.Filtered != nil {
		floats.AddConst(by, out.Filtered.Positions)
	}
	for i := range out.Peaks {
		p := &out.Peaks[i]
		p.Position += by
		if p.Fit != nil && p.Fit.Valid {
			p.Fit.Center += by
		}
	}
	out.Shift = c.Shift + by
	return out
}
