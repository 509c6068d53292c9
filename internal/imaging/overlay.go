package imaging

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/FabioSangalli/nTLCanalyzer/internal/chrom"
	apperrors "github.com/FabioSangalli/nTLCanalyzer/internal/errors"
)

// PreviewOptions controls LanePreview.
type PreviewOptions struct {
	// Color is the path color as "#RRGGBB". Band edges use a lighter tint.
	// Defaults to red when empty or invalid.
	Color string
	// Margin is the number of pixels kept around the band. Default 10.
	Margin int
	// Scale resizes the crop. Default 1.
	Scale float64
}

// PreviewResult is an encoded lane preview with the measured lane geometry.
type PreviewResult struct {
	CropResult
	Lane *LaneMeasure `json:"lane"`
}

// LanePreview draws a profile line and its band edges onto a copy of the plate
// and returns the crop around the band.
//
// The source image is not modified. Returns an INVALID_GEOMETRY error when the
// line has fewer than two points or lies outside the image.
func LanePreview(img image.Image, line chrom.ProfileLine, opts PreviewOptions) (*PreviewResult, error) {
	if len(line.Points) < 2 {
		return nil, apperrors.NewInvalidGeometry("lane needs at least 2 points, got %d", len(line.Points))
	}
	if opts.Margin <= 0 {
		opts.Margin = 10
	}
	if opts.Scale <= 0 {
		opts.Scale = 1
	}

	pathColor, err := colorful.Hex(opts.Color)
	if err != nil {
		pathColor = colorful.Color{R: 1, G: 0, B: 0}
	}
	white := colorful.Color{R: 1, G: 1, B: 1}
	edgeColor := pathColor.BlendLab(white, 0.5).Clamped()

	// Clone rebases the canvas at (0,0), matching the Field coordinates.
	canvas := imaging.Clone(img)
	half := line.BandWidth / 2
	for i := 1; i < len(line.Points); i++ {
		p0, p1 := line.Points[i-1], line.Points[i]
		drawSegment(canvas, p0, p1, toNRGBA(pathColor))
		if half <= 0 {
			continue
		}
		nx, ny, ok := unitNormal(p0, p1)
		if !ok {
			continue
		}
		for _, side := range []float64{-half, half} {
			a := chrom.Point{X: p0.X + side*nx, Y: p0.Y + side*ny}
			b := chrom.Point{X: p1.X + side*nx, Y: p1.Y + side*ny}
			drawSegment(canvas, a, b, toNRGBA(edgeColor))
		}
	}

	minX, minY, maxX, maxY := bandBounds(line)
	rect := image.Rect(
		int(math.Floor(minX))-opts.Margin, int(math.Floor(minY))-opts.Margin,
		int(math.Ceil(maxX))+opts.Margin+1, int(math.Ceil(maxY))+opts.Margin+1,
	)

	cropped, used, err := cropScaled(canvas, rect, opts.Scale)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeInvalidGeometry, "lane lies outside the plate", err)
	}
	encoded, err := encodeCrop(cropped, used.Min)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeIO, "failed to encode preview", err)
	}
	return &PreviewResult{
		CropResult: *encoded,
		Lane:       MeasureLane(line, img.Bounds().Dy()),
	}, nil
}

func toNRGBA(c colorful.Color) color.NRGBA {
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// unitNormal returns the unit vector perpendicular to p0->p1, rotated
// counter-clockwise in image coordinates.
func unitNormal(p0, p1 chrom.Point) (float64, float64, bool) {
	dx, dy := p1.X-p0.X, p1.Y-p0.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return 0, 0, false
	}
	return -dy / l, dx / l, true
}

// drawSegment rasterizes a line with one pixel per step along its major axis.
// Pixels outside the canvas are skipped.
func drawSegment(dst *image.NRGBA, p0, p1 chrom.Point, c color.NRGBA) {
	b := dst.Bounds()
	steps := int(math.Ceil(math.Max(math.Abs(p1.X-p0.X), math.Abs(p1.Y-p0.Y))))
	if steps == 0 {
		steps = 1
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := int(math.Round(p0.X+t*(p1.X-p0.X)))
		y := int(math.Round(p0.Y+t*(p1.Y-p0.Y)))
		if x >= b.Min.X && x < b.Max.X && y >= b.Min.Y && y < b.Max.Y {
			dst.SetNRGBA(x, y, c)
		}
	}
}
