package imaging

import (
	"image"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	apperrors "github.com/FabioSangalli/nTLCanalyzer/internal/errors"
)

// Reduction selects how a multi-channel pixel is reduced to one intensity.
type Reduction string

const (
	// ReductionMean averages R, G and B. This is the classic densitometry choice.
	ReductionMean Reduction = "mean"
	// ReductionMax takes the brightest of R, G and B.
	ReductionMax Reduction = "max"
	// ReductionLuminance uses CIE L* lightness, scaled to 0-255.
	ReductionLuminance Reduction = "luminance"
	// ReductionChannel selects a single channel.
	ReductionChannel Reduction = "channel"
)

// Channel names the channel used by ReductionChannel.
type Channel string

const (
	ChannelRed   Channel = "red"
	ChannelGreen Channel = "green"
	ChannelBlue  Channel = "blue"
	ChannelAlpha Channel = "alpha"
)

// Field is a read-only grid of scalar intensities in the range 0-255.
// Coordinates are 0-based with the origin at the top-left pixel.
type Field interface {
	Width() int
	Height() int
	At(x, y int) float64
}

type reducer func(r, g, b, a uint32) float64

// ImageField presents an image.Image as a Field. Pixels are reduced on every
// access, so the image is referenced and never copied.
type ImageField struct {
	img    image.Image
	origin image.Point
	width  int
	height int
	reduce reducer
}

// NewImageField wraps img with the given reduction policy. channel is only
// consulted for ReductionChannel.
//
// Returns an INVALID_PARAMETERS error for an unknown policy or channel and an
// INVALID_GEOMETRY error for an empty image.
func NewImageField(img image.Image, reduction Reduction, channel Channel) (*ImageField, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, apperrors.NewInvalidGeometry("image has no pixels")
	}
	reduce, err := reducerFor(reduction, channel)
	if err != nil {
		return nil, err
	}
	return &ImageField{
		img:    img,
		origin: b.Min,
		width:  b.Dx(),
		height: b.Dy(),
		reduce: reduce,
	}, nil
}

func (f *ImageField) Width() int  { return f.width }
func (f *ImageField) Height() int { return f.height }

// At returns the reduced intensity of pixel (x, y).
func (f *ImageField) At(x, y int) float64 {
	r, g, b, a := f.img.At(f.origin.X+x, f.origin.Y+y).RGBA()
	return f.reduce(r, g, b, a)
}

// scale16 maps a 16-bit color component onto 0-255 without losing precision.
const scale16 = 65535.0 / 255.0

func reducerFor(reduction Reduction, channel Channel) (reducer, error) {
	switch reduction {
	case ReductionMean, "":
		return func(r, g, b, _ uint32) float64 {
			return (float64(r) + float64(g) + float64(b)) / 3 / scale16
		}, nil
	case ReductionMax:
		return func(r, g, b, _ uint32) float64 {
			return float64(max(r, g, b)) / scale16
		}, nil
	case ReductionLuminance:
		return func(r, g, b, _ uint32) float64 {
			c := colorful.Color{R: float64(r) / 65535, G: float64(g) / 65535, B: float64(b) / 65535}
			l, _, _ := c.Lab()
			return clamp01(l) * 255
		}, nil
	case ReductionChannel:
		switch channel {
		case ChannelRed:
			return func(r, _, _, _ uint32) float64 { return float64(r) / scale16 }, nil
		case ChannelGreen:
			return func(_, g, _, _ uint32) float64 { return float64(g) / scale16 }, nil
		case ChannelBlue:
			return func(_, _, b, _ uint32) float64 { return float64(b) / scale16 }, nil
		case ChannelAlpha:
			return func(_, _, _, a uint32) float64 { return float64(a) / scale16 }, nil
		default:
			return nil, apperrors.NewInvalidParameters("unknown channel %q (want red, green, blue or alpha)", channel)
		}
	default:
		return nil, apperrors.NewInvalidParameters("unknown reduction policy %q (want mean, max, luminance or channel)", reduction)
	}
}

// ValidateReduction reports whether reduction and channel name a known policy.
func ValidateReduction(reduction Reduction, channel Channel) error {
	_, err := reducerFor(reduction, channel)
	return err
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Plane is a Field backed by a row-major slice, for intensity data that does
// not come from an image file (scanner exports, synthetic plates).
type Plane struct {
	width  int
	height int
	values []float64
}

// NewPlane creates a Plane of width*height values. Values must be finite and
// non-negative.
func NewPlane(width, height int, values []float64) (*Plane, error) {
	if width <= 0 || height <= 0 {
		return nil, apperrors.NewInvalidGeometry("plane must be at least 1x1, got %dx%d", width, height)
	}
	if len(values) != width*height {
		return nil, apperrors.NewInvalidGeometry("plane %dx%d needs %d values, got %d", width, height, width*height, len(values))
	}
	for i, v := range values {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, apperrors.NewInvalidParameters("plane value %d is %v; intensities must be finite and >= 0", i, v)
		}
	}
	return &Plane{width: width, height: height, values: values}, nil
}

func (p *Plane) Width() int  { return p.width }
func (p *Plane) Height() int { return p.height }

// At returns the value at (x, y).
func (p *Plane) At(x, y int) float64 { return p.values[y*p.width+x] }
