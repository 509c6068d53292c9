package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/FabioSangalli/nTLCanalyzer/internal/chrom"
	apperrors "github.com/FabioSangalli/nTLCanalyzer/internal/errors"
)

// PeakHeader is the column layout of the peak table, one row per peak.
var PeakHeader = []string{
	"label", "apex", "position", "intensity", "prominence",
	"integrated", "manual", "left", "right", "baseline_left", "baseline_right",
	"area", "height", "area_clamped", "height_clamped",
	"fit_model", "fit_amplitude", "fit_center", "fit_width", "fit_asymmetry", "fit_area",
	"fit_rss", "fit_r_squared", "fit_iterations", "fit_converged", "fit_valid", "fit_joint", "fit_reason",
}

// WritePeaksCSV writes the peak table of peaks. Fit columns are empty for
// peaks that were never fitted.
func WritePeaksCSV(w io.Writer, peaks []chrom.Peak) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(PeakHeader); err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeIO, "writing peak header", err)
	}
	for _, p := range peaks {
		row := []string{
			p.Label, itoa(p.Apex), ftoa(p.Position), ftoa(p.Intensity), ftoa(p.Prominence),
			btoa(p.Integrated), btoa(p.Manual), itoa(p.Left), itoa(p.Right), ftoa(p.BaselineLeft), ftoa(p.BaselineRight),
			ftoa(p.Area), ftoa(p.Height), btoa(p.AreaClamped), btoa(p.HeightClamped),
		}
		if f := p.Fit; f != nil {
			row = append(row, f.Model, ftoa(f.Amplitude), ftoa(f.Center), ftoa(f.Width), ftoa(f.Asymmetry), ftoa(f.Area),
				ftoa(f.RSS), ftoa(f.RSquared), itoa(f.Iterations), btoa(f.Converged), btoa(f.Valid), btoa(f.Joint), f.Reason)
		} else {
			row = append(row, make([]string, len(PeakHeader)-len(row))...)
		}
		if err := cw.Write(row); err != nil {
			return apperrors.Wrap(apperrors.ErrorTypeIO, "writing peak row", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeIO, "flushing peak table", err)
	}
	return nil
}

// ReadPeaksCSV parses a table written by WritePeaksCSV.
func ReadPeaksCSV(r io.Reader) ([]chrom.Peak, error) {
	rows, err := readAll(r, PeakHeader)
	if err != nil {
		return nil, err
	}
	peaks := make([]chrom.Peak, 0, len(rows))
	for i, row := range rows {
		p := &parser{row: row, line: i + 2}
		pk := chrom.Peak{
			Label:         row[0],
			Apex:          p.intAt(1),
			Position:      p.floatAt(2),
			Intensity:     p.floatAt(3),
			Prominence:    p.floatAt(4),
			Integrated:    p.boolAt(5),
			Manual:        p.boolAt(6),
			Left:          p.intAt(7),
			Right:         p.intAt(8),
			BaselineLeft:  p.floatAt(9),
			BaselineRight: p.floatAt(10),
			Area:          p.floatAt(11),
			Height:        p.floatAt(12),
			AreaClamped:   p.boolAt(13),
			HeightClamped: p.boolAt(14),
		}
		if row[15] != "" {
			pk.Fit = &chrom.FitResult{
				Model:      row[15],
				Amplitude:  p.floatAt(16),
				Center:     p.floatAt(17),
				Width:      p.floatAt(18),
				Asymmetry:  p.floatAt(19),
				Area:       p.floatAt(20),
				RSS:        p.floatAt(21),
				RSquared:   p.floatAt(22),
				Iterations: p.intAt(23),
				Converged:  p.boolAt(24),
				Valid:      p.boolAt(25),
				Joint:      p.boolAt(26),
				Reason:     row[27],
			}
		}
		if p.err != nil {
			return nil, p.err
		}
		peaks = append(peaks, pk)
	}
	return peaks, nil
}

// readAll reads a CSV stream and checks its header.
func readAll(r io.Reader, header []string) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeIO, "reading csv", err)
	}
	if len(records) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrorTypeIO, "reading csv", io.ErrUnexpectedEOF)
	}
	for i, col := range header {
		if records[0][i] != col {
			return nil, apperrors.Wrap(apperrors.ErrorTypeIO, "unexpected csv header", nil).
				WithDetail("column", strconv.Itoa(i)).WithDetail("want", col).WithDetail("got", records[0][i])
		}
	}
	return records[1:], nil
}

// parser converts cells of one row, keeping the first error.
type parser struct {
	row  []string
	line int
	err  error
}

func (p *parser) fail(col int, err error) {
	if p.err == nil {
		p.err = apperrors.Wrap(apperrors.ErrorTypeIO, "invalid csv cell", err).
			WithDetail("line", strconv.Itoa(p.line)).WithDetail("column", strconv.Itoa(col))
	}
}

func (p *parser) floatAt(col int) float64 {
	v, err := strconv.ParseFloat(p.row[col], 64)
	if err != nil {
		p.fail(col, err)
	}
	return v
}

func (p *parser) intAt(col int) int {
	v, err := strconv.Atoi(p.row[col])
	if err != nil {
		p.fail(col, err)
	}
	return v
}

func (p *parser) boolAt(col int) bool {
	v, err := strconv.ParseBool(p.row[col])
	if err != nil {
		p.fail(col, err)
	}
	return v
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
func itoa(v int) string     { return strconv.Itoa(v) }
func btoa(v bool) string    { return strconv.FormatBool(v) }
