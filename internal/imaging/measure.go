package imaging

import (
	"math"

	"github.com/FabioSangalli/nTLCanalyzer/internal/chrom"
)

// CumulativeLength returns the arc length from points[0] to every point.
// The result has len(points) entries and starts at 0.
func CumulativeLength(points []chrom.Point) []float64 {
	out := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		out[i] = out[i-1] + math.Hypot(points[i].X-points[i-1].X, points[i].Y-points[i-1].Y)
	}
	return out
}

// LaneMeasure describes the geometry of a profile line relative to its plate.
type LaneMeasure struct {
	LengthPixels        float64 `json:"length_pixels"`
	Segments            int     `json:"segments"`
	AngleDegrees        float64 `json:"angle_degrees"`
	LengthPercentHeight float64 `json:"length_percent_height"`
	BandWidth           float64 `json:"band_width"`
}

// MeasureLane measures a profile line drawn on an image of the given height.
// AngleDegrees is the start-to-end direction (0 = rightward, 90 = down).
func MeasureLane(line chrom.ProfileLine, imageHeight int) *LaneMeasure {
	m := &LaneMeasure{BandWidth: line.BandWidth}
	if len(line.Points) == 0 {
		return m
	}
	cum := CumulativeLength(line.Points)
	m.LengthPixels = math.Round(cum[len(cum)-1]*100) / 100
	m.Segments = len(line.Points) - 1

	first, last := line.Points[0], line.Points[len(line.Points)-1]
	angle := math.Atan2(last.Y-first.Y, last.X-first.X) * 180 / math.Pi
	m.AngleDegrees = math.Round(angle*10) / 10
	if imageHeight > 0 {
		m.LengthPercentHeight = math.Round(cum[len(cum)-1]/float64(imageHeight)*1000) / 10
	}
	return m
}

// bandBounds returns the axis-aligned box covering the line and its band.
func bandBounds(line chrom.ProfileLine) (minX, minY, maxX, maxY float64) {
	half := line.BandWidth / 2
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, p := range line.Points {
		minX = math.Min(minX, p.X-half)
		minY = math.Min(minY, p.Y-half)
		maxX = math.Max(maxX, p.X+half)
		maxY = math.Max(maxY, p.Y+half)
	}
	return minX, minY, maxX, maxY
}
