package render

import (
	"bytes"
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/FabioSangalli/nTLCanalyzer/internal/chrom"
	apperrors "github.com/FabioSangalli/nTLCanalyzer/internal/errors"
	"github.com/FabioSangalli/nTLCanalyzer/internal/fitting"
)

// Options controls plot size and content.
type Options struct {
	// Width and Height are in inches.
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	// ShowRaw draws the unfiltered profile behind the filtered one.
	ShowRaw bool `json:"show_raw"`
	// FitOnBaseline adds the integration baseline back to fitted curves; set
	// it when fits were made with baseline subtraction.
	FitOnBaseline bool `json:"fit_on_baseline"`
}

// DefaultOptions returns an 8x4 inch plot.
func DefaultOptions() Options {
	return Options{Width: 8, Height: 4, FitOnBaseline: true}
}

var (
	rawColor      = color.NRGBA{R: 160, G: 160, B: 160, A: 255}
	profileColor  = color.NRGBA{R: 20, G: 60, B: 160, A: 255}
	apexColor     = color.NRGBA{R: 200, G: 30, B: 30, A: 255}
	baselineColor = color.NRGBA{R: 30, G: 140, B: 60, A: 255}
	fitColor      = color.NRGBA{R: 230, G: 130, B: 0, A: 255}
)

// Chromatogram plots c as PNG: the filtered profile, apex markers, each
// peak's baseline and its valid fitted curve.
func Chromatogram(c *chrom.Chromatogram, opts Options) ([]byte, error) {
	if c.Filtered == nil || c.Filtered.Len() == 0 {
		return nil, apperrors.NewEmptyProfile("chromatogram %q has no filtered profile to plot", c.Name)
	}
	f := c.Filtered

	p := plot.New()
	p.Title.Text = c.Name
	p.X.Label.Text = "Distance (px)"
	p.Y.Label.Text = "Intensity"

	if opts.ShowRaw && c.Profile != nil {
		raw, err := line(xys(c.Profile.Positions, c.Profile.Values), rawColor, 0.75)
		if err != nil {
			return nil, err
		}
		p.Add(raw)
		p.Legend.Add("raw", raw)
	}

	profile, err := line(xys(f.Positions, f.Values), profileColor, 1)
	if err != nil {
		return nil, err
	}
	p.Add(profile)
	p.Legend.Add("filtered", profile)

	if len(c.Peaks) > 0 {
		apexes := make(plotter.XYs, len(c.Peaks))
		for i, pk := range c.Peaks {
			apexes[i] = plotter.XY{X: f.Positions[pk.Apex], Y: f.Values[pk.Apex]}
		}
		sc, err := plotter.NewScatter(apexes)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrorTypeIO, "building apex markers", err)
		}
		sc.GlyphStyle.Color = apexColor
		sc.GlyphStyle.Shape = draw.TriangleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(3)
		p.Add(sc)
		p.Legend.Add("apex", sc)
	}

	baselineLegend, fitLegend := false, false
	for _, pk := range c.Peaks {
		if !pk.Integrated {
			continue
		}
		pts := plotter.XYs{{X: f.Positions[pk.Left], Y: pk.BaselineLeft}, {X: f.Positions[pk.Right], Y: pk.BaselineRight}}
		if c.Baseline != nil {
			pts = xys(f.Positions[pk.Left:pk.Right+1], c.Baseline[pk.Left:pk.Right+1])
		}
		bl, err := line(pts, baselineColor, 1)
		if err != nil {
			return nil, err
		}
		bl.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(bl)
		if !baselineLegend {
			p.Legend.Add("baseline", bl)
			baselineLegend = true
		}

		xs, ys := fitting.Curve(f, pk, c.Baseline, opts.FitOnBaseline)
		if xs == nil {
			continue
		}
		fl, err := line(xys(xs, ys), fitColor, 1)
		if err != nil {
			return nil, err
		}
		p.Add(fl)
		if !fitLegend {
			p.Legend.Add("fit", fl)
			fitLegend = true
		}
	}

	p.Legend.Top = true
	p.Legend.Left = false
	return encode(p, opts)
}

// Overlay plots several chromatograms on one axis, one colour each. It is
// meant for the output of the comparator.
func Overlay(chroms []*chrom.Chromatogram, title string, opts Options) ([]byte, error) {
	if len(chroms) == 0 {
		return nil, apperrors.NewInvalidParameters("nothing to overlay")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Distance (px)"
	p.Y.Label.Text = "Intensity"

	colors := palette(len(chroms))
	for i, c := range chroms {
		if c.Filtered == nil {
			return nil, apperrors.NewEmptyProfile("chromatogram %q has no filtered profile to plot", c.Name)
		}
		l, err := line(xys(c.Filtered.Positions, c.Filtered.Values), colors[i], 1)
		if err != nil {
			return nil, err
		}
		p.Add(l)
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("lane %d", i+1)
		}
		p.Legend.Add(name, l)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	return encode(p, opts)
}

func encode(p *plot.Plot, opts Options) ([]byte, error) {
	w, h := opts.Width, opts.Height
	if w <= 0 {
		w = 8
	}
	if h <= 0 {
		h = 4
	}
	wt, err := p.WriterTo(vg.Length(w)*vg.Inch, vg.Length(h)*vg.Inch, "png")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeIO, "rendering plot", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeIO, "encoding plot", err)
	}
	return buf.Bytes(), nil
}

func line(pts plotter.XYs, c color.Color, width float64) (*plotter.Line, error) {
	l, err := plotter.NewLine(pts)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeInvalidParameters, "building plot line", err)
	}
	l.Color = c
	l.Width = vg.Points(width)
	return l, nil
}

func xys(xs, ys []float64) plotter.XYs {
	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i] = plotter.XY{X: xs[i], Y: ys[i]}
	}
	return pts
}

// palette spreads n hues evenly at fixed chroma and lightness.
func palette(n int) []color.Color {
	out := make([]color.Color, n)
	for i := range out {
		out[i] = colorful.Hcl(360*float64(i)/float64(n), 0.6, 0.55).Clamped()
	}
	return out
}
