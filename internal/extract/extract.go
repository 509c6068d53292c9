package extract

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"

	"github.com/FabioSangalli/nTLCanalyzer/internal/chrom"
	apperrors "github.com/FabioSangalli/nTLCanalyzer/internal/errors"
	"github.com/FabioSangalli/nTLCanalyzer/internal/imaging"
)

// BoundsPolicy decides what happens to band samples outside the image.
type BoundsPolicy string

const (
	// BoundsClamp moves out-of-range samples onto the nearest edge pixel.
	BoundsClamp BoundsPolicy = "clamp"
	// BoundsExclude drops out-of-range samples. A position that loses every
	// sample is dropped from the Profile and counted in ClipFlags.
	BoundsExclude BoundsPolicy = "exclude"
)

// Aggregate combines the band samples of one position into one value.
type Aggregate string

const (
	AggregateMean   Aggregate = "mean"
	AggregateMedian Aggregate = "median"
	AggregateMax    Aggregate = "max"
)

// Options controls Extract.
type Options struct {
	Bounds    BoundsPolicy `yaml:"bounds" json:"bounds"`
	Aggregate Aggregate    `yaml:"aggregate" json:"aggregate"`
	// SamplesPerPixel is the sampling density along the path, at least 1.
	SamplesPerPixel float64 `yaml:"samplesPerPixel" json:"samples_per_pixel"`
	// Invert replaces every value v with max(values)-v so that dark spots on a
	// bright plate become peaks.
	Invert bool `yaml:"invert" json:"invert"`
}

// DefaultOptions returns clamp bounds, mean aggregation, one sample per pixel
// and inversion on.
func DefaultOptions() Options {
	return Options{
		Bounds:          BoundsClamp,
		Aggregate:       AggregateMean,
		SamplesPerPixel: 1,
		Invert:          true,
	}
}

// Validate checks the options. It returns an INVALID_PARAMETERS error.
func (o Options) Validate() error {
	switch o.Bounds {
	case BoundsClamp, BoundsExclude:
	default:
		return apperrors.NewInvalidParameters("unknown bounds policy %q (want clamp or exclude)", o.Bounds)
	}
	switch o.Aggregate {
	case AggregateMean, AggregateMedian, AggregateMax:
	default:
		return apperrors.NewInvalidParameters("unknown aggregate %q (want mean, median or max)", o.Aggregate)
	}
	if !(o.SamplesPerPixel >= 1) || math.IsInf(o.SamplesPerPixel, 0) {
		return apperrors.NewInvalidParameters("samplesPerPixel must be >= 1, got %v", o.SamplesPerPixel)
	}
	return nil
}

// Extract samples field along line and returns the raw Profile.
//
// Positions are spaced evenly along the path's arc length with at least one
// sample per pixel. At each position a segment of length line.BandWidth is laid
// perpendicular to the path, sampled with bilinear interpolation every pixel,
// and aggregated.
//
// Errors:
//   - INVALID_GEOMETRY for fewer than two distinct points, a zero-length
//     path, a negative band width or a path entirely outside the field
//   - INVALID_PARAMETERS for invalid options
//   - EMPTY_PROFILE when exclusion leaves no position
func Extract(field imaging.Field, line chrom.ProfileLine, opts Options) (*chrom.Profile, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	path, err := newPath(line)
	if err != nil {
		return nil, err
	}
	if !path.overlaps(field) {
		return nil, apperrors.NewInvalidGeometry("profile line lies entirely outside the %dx%d image", field.Width(), field.Height())
	}

	n := int(math.Ceil(path.length*opts.SamplesPerPixel)) + 1
	offsets := bandOffsets(line.BandWidth)

	var clip chrom.ClipFlags
	positions := make([]float64, 0, n)
	values := make([]float64, 0, n)
	samples := make([]float64, 0, len(offsets))

	for i := 0; i < n; i++ {
		s := path.length * float64(i) / float64(n-1)
		x, y := path.at(s)
		nx, ny := path.normal(s)

		samples = samples[:0]
		for _, o := range offsets {
			v, clamped, ok := sample(field, x+o*nx, y+o*ny, opts.Bounds)
			if clamped {
				clip.ClampedSamples++
			}
			if !ok {
				clip.ExcludedSamples++
				continue
			}
			samples = append(samples, v)
		}
		if len(samples) == 0 {
			clip.ExcludedPositions++
			continue
		}
		positions = append(positions, s)
		values = append(values, aggregate(samples, opts.Aggregate))
	}

	if len(values) == 0 {
		return nil, apperrors.NewEmptyProfile("every position along the profile line was excluded")
	}

	if opts.Invert {
		top := floats.Max(values)
		for i, v := range values {
			values[i] = top - v
		}
	}

	p := chrom.NewProfile(positions, values)
	p.Inverted = opts.Invert
	p.Clip = clip
	return p, nil
}

// path is a polyline parameterized by arc length.
type path struct {
	cum    []float64
	points []chrom.Point
	length float64
	px, py interp.PiecewiseLinear
}

func newPath(line chrom.ProfileLine) (*path, error) {
	if math.IsNaN(line.BandWidth) || line.BandWidth < 0 || math.IsInf(line.BandWidth, 0) {
		return nil, apperrors.NewInvalidGeometry("band width must be finite and >= 0, got %v", line.BandWidth)
	}

	// Repeated points would give zero-length segments, which break both the
	// interpolation and the normal.
	pts := make([]chrom.Point, 0, len(line.Points))
	for _, p := range line.Points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return nil, apperrors.NewInvalidGeometry("profile line point (%v,%v) is not finite", p.X, p.Y)
		}
		if len(pts) > 0 && pts[len(pts)-1] == p {
			continue
		}
		pts = append(pts, p)
	}
	if len(pts) < 2 {
		return nil, apperrors.NewInvalidGeometry("profile line has zero length")
	}

	cum := imaging.CumulativeLength(pts)
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		xs[i], ys[i] = p.X, p.Y
	}

	pa := &path{cum: cum, points: pts, length: cum[len(cum)-1]}
	if err := pa.px.Fit(cum, xs); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeInvalidGeometry, "cannot parameterize profile line", err)
	}
	if err := pa.py.Fit(cum, ys); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeInvalidGeometry, "cannot parameterize profile line", err)
	}
	return pa, nil
}

func (p *path) at(s float64) (float64, float64) {
	return p.px.Predict(s), p.py.Predict(s)
}

// normal returns the unit normal of the segment containing arc length s.
func (p *path) normal(s float64) (float64, float64) {
	k := sort.SearchFloat64s(p.cum, s)
	if k == 0 {
		k = 1
	}
	if k >= len(p.cum) {
		k = len(p.cum) - 1
	}
	a, b := p.points[k-1], p.points[k]
	l := p.cum[k] - p.cum[k-1]
	return -(b.Y - a.Y) / l, (b.X - a.X) / l
}

func (p *path) overlaps(field imaging.Field) bool {
	maxX, maxY := float64(field.Width()-1), float64(field.Height()-1)
	minPX, minPY := math.Inf(1), math.Inf(1)
	maxPX, maxPY := math.Inf(-1), math.Inf(-1)
	for _, pt := range p.points {
		minPX, maxPX = math.Min(minPX, pt.X), math.Max(maxPX, pt.X)
		minPY, maxPY = math.Min(minPY, pt.Y), math.Max(maxPY, pt.Y)
	}
	return maxPX >= 0 && minPX <= maxX && maxPY >= 0 && minPY <= maxY
}

// bandOffsets returns floor(w)+1 offsets spread evenly over [-w/2, w/2].
func bandOffsets(width float64) []float64 {
	m := int(math.Floor(width)) + 1
	if m == 1 {
		return []float64{0}
	}
	out := make([]float64, m)
	step := width / float64(m-1)
	for j := range out {
		out[j] = -width/2 + float64(j)*step
	}
	return out
}

// boundsEps absorbs rounding in positions that sit exactly on an edge.
const boundsEps = 1e-9

// sample reads field at (x, y) with bilinear interpolation. Integer
// coordinates are pixel centers. clamped reports that the point was moved onto
// the edge; ok is false when the point was excluded.
func sample(field imaging.Field, x, y float64, policy BoundsPolicy) (v float64, clamped, ok bool) {
	maxX, maxY := float64(field.Width()-1), float64(field.Height()-1)
	if x < -boundsEps || y < -boundsEps || x > maxX+boundsEps || y > maxY+boundsEps {
		if policy == BoundsExclude {
			return 0, false, false
		}
		clamped = true
	}
	x = math.Max(0, math.Min(maxX, x))
	y = math.Max(0, math.Min(maxY, y))

	x0, y0 := int(math.Floor(x)), int(math.Floor(y))
	x1, y1 := min(x0+1, field.Width()-1), min(y0+1, field.Height()-1)
	fx, fy := x-float64(x0), y-float64(y0)

	top := field.At(x0, y0)*(1-fx) + field.At(x1, y0)*fx
	bottom := field.At(x0, y1)*(1-fx) + field.At(x1, y1)*fx
	return top*(1-fy) + bottom*fy, clamped, true
}

func aggregate(samples []float64, how Aggregate) float64 {
	switch how {
	case AggregateMedian:
		sorted := append([]float64(nil), samples...)
		sort.Float64s(sorted)
		return stat.Quantile(0.5, stat.Empirical, sorted, nil)
	case AggregateMax:
		return floats.Max(samples)
	default:
		return stat.Mean(samples, nil)
	}
}
