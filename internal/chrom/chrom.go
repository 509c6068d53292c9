package chrom

import (
	"github.com/google/uuid"
)

// Point is a sub-pixel image coordinate. X grows rightward and Y downward.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ProfileLine is an ordered path over an image plus the perpendicular band width
// averaged at every sample. BandWidth 0 samples the path itself.
type ProfileLine struct {
	Name      string  `json:"name,omitempty"`
	Points    []Point `json:"points"`
	BandWidth float64 `json:"band_width"`
}

// ClipFlags reports band samples that fell outside the image.
type ClipFlags struct {
	// ClampedSamples counts band samples moved onto the image edge.
	ClampedSamples int `json:"clamped_samples"`
	// ExcludedSamples counts band samples that were skipped.
	ExcludedSamples int `json:"excluded_samples"`
	// ExcludedPositions counts path positions with no sample left inside the
	// image. These positions are absent from the Profile.
	ExcludedPositions int `json:"excluded_positions"`
}

// Clipped reports whether any sample was clamped or excluded.
func (f ClipFlags) Clipped() bool {
	return f.ClampedSamples > 0 || f.ExcludedSamples > 0 || f.ExcludedPositions > 0
}

// Profile is the raw intensity sequence of one lane.
type Profile struct {
	ID string `json:"id"`
	// Positions holds the cumulative arc length of each sample, in pixels.
	Positions []float64 `json:"positions"`
	Values    []float64 `json:"values"`
	Inverted  bool      `json:"inverted"`
	Clip      ClipFlags `json:"clip"`
}

// NewProfile wraps positions and values in a Profile with a fresh ID.
func NewProfile(positions, values []float64) *Profile {
	return &Profile{
		ID:        uuid.New().String(),
		Positions: positions,
		Values:    values,
	}
}

// Len returns the number of samples.
func (p *Profile) Len() int { return len(p.Values) }

// FilteredProfile is a smoothed Profile of identical length.
type FilteredProfile struct {
	// SourceID is the ID of the Profile these values were computed from.
	SourceID  string    `json:"source_id"`
	Positions []float64 `json:"positions"`
	Values    []float64 `json:"values"`
	// Filters describes the applied chain in order, e.g. "savgol(11,3)".
	Filters []string `json:"filters,omitempty"`
}

// Len returns the number of samples.
func (f *FilteredProfile) Len() int { return len(f.Values) }

// Peak is one detected or user-selected compound spot.
type Peak struct {
	// Apex indexes into the FilteredProfile the Peak was detected on.
	Apex       int     `json:"apex"`
	Position   float64 `json:"position"`
	Intensity  float64 `json:"intensity"`
	Prominence float64 `json:"prominence"`
	Label      string  `json:"label,omitempty"`

	Integrated    bool    `json:"integrated"`
	Manual        bool    `json:"manual"`
	Left          int     `json:"left"`
	Right         int     `json:"right"`
	BaselineLeft  float64 `json:"baseline_left"`
	BaselineRight float64 `json:"baseline_right"`
	Area          float64 `json:"area"`
	Height        float64 `json:"height"`
	AreaClamped   bool    `json:"area_clamped"`
	HeightClamped bool    `json:"height_clamped"`

	Fit *FitResult `json:"fit,omitempty"`
}

// LinearBaseline evaluates the straight baseline between the Peak's boundary
// samples at sample i of positions.
func (p *Peak) LinearBaseline(positions []float64, i int) float64 {
	x0, x1 := positions[p.Left], positions[p.Right]
	if x1 == x0 {
		return p.BaselineLeft
	}
	t := (positions[i] - x0) / (x1 - x0)
	return p.BaselineLeft + t*(p.BaselineRight-p.BaselineLeft)
}

// FitResult holds Mecozzi parameters and fit diagnostics. When Valid is false
// the parameters are zero and only the diagnostics carry information.
type FitResult struct {
	Model      string  `json:"model"`
	Amplitude  float64 `json:"amplitude"`
	Center     float64 `json:"center"`
	Width      float64 `json:"width"`
	Asymmetry  float64 `json:"asymmetry"`
	Area       float64 `json:"area"`
	RSS        float64 `json:"rss"`
	RSquared   float64 `json:"r_squared"`
	Iterations int     `json:"iterations"`
	Converged  bool    `json:"converged"`
	Valid      bool    `json:"valid"`
	Joint      bool    `json:"joint"`
	Reason     string  `json:"reason,omitempty"`
}

// Chromatogram is one lane's complete analysis.
type Chromatogram struct {
	ID       string           `json:"id"`
	Name     string           `json:"name,omitempty"`
	Line     *ProfileLine     `json:"line,omitempty"`
	Profile  *Profile         `json:"profile"`
	Filtered *FilteredProfile `json:"filtered"`
	// Baseline is the profile-wide baseline when one was configured.
	Baseline []float64 `json:"baseline,omitempty"`
	Peaks    []Peak    `json:"peaks"`
	// Scale and Shift are set by the comparator: values were divided by Scale
	// and positions moved by Shift.
	Scale    float64  `json:"scale"`
	Shift    float64  `json:"shift"`
	Warnings []string `json:"warnings,omitempty"`
}

// NewChromatogram creates an empty Chromatogram with a fresh ID.
func NewChromatogram(name string) *Chromatogram {
	return &Chromatogram{
		ID:    uuid.New().String(),
		Name:  name,
		Scale: 1,
	}
}

// Clone returns a deep copy.
func (c *Chromatogram) Clone() *Chromatogram {
	out := *c
	if c.Line != nil {
		line := *c.Line
		line.Points = append([]Point(nil), c.Line.Points...)
		out.Line = &line
	}
	if c.Profile != nil {
		p := *c.Profile
		p.Positions = cloneFloats(c.Profile.Positions)
		p.Values = cloneFloats(c.Profile.Values)
		out.Profile = &p
	}
	if c.Filtered != nil {
		f := *c.Filtered
		f.Positions = cloneFloats(c.Filtered.Positions)
		f.Values = cloneFloats(c.Filtered.Values)
		f.Filters = append([]string(nil), c.Filtered.Filters...)
		out.Filtered = &f
	}
	out.Baseline = cloneFloats(c.Baseline)
	if c.Peaks != nil {
		out.Peaks = make([]Peak, len(c.Peaks))
		for i, pk := range c.Peaks {
			if pk.Fit != nil {
				fit := *pk.Fit
				pk.Fit = &fit
			}
			out.Peaks[i] = pk
		}
	}
	out.Warnings = append([]string(nil), c.Warnings...)
	return &out
}

// TotalArea sums the integrated areas of all peaks.
func (c *Chromatogram) TotalArea() float64 {
	var total float64
	for _, p := range c.Peaks {
		total += p.Area
	}
	return total
}

func cloneFloats(v []float64) []float64 {
	if v == nil {
		return nil
	}
	return append([]float64(nil), v...)
}
