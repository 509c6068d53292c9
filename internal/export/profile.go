package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"

	"github.com/FabioSangalli/nTLCanalyzer/internal/chrom"
	apperrors "github.com/FabioSangalli/nTLCanalyzer/internal/errors"
)

// ProfileHeader is the column layout of a saved profile.
var ProfileHeader = []string{"position", "raw", "filtered", "is_peak"}

// WriteProfileCSV writes one row per sample of c: position, raw value,
// filtered value, and 1 where a peak apex sits.
func WriteProfileCSV(w io.Writer, c *chrom.Chromatogram) error {
	if c.Profile == nil || c.Profile.Len() == 0 {
		return apperrors.NewEmptyProfile("chromatogram %q has no profile to save", c.Name)
	}
	apex := make(map[int]bool, len(c.Peaks))
	for _, p := range c.Peaks {
		apex[p.Apex] = true
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(ProfileHeader); err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeIO, "writing profile header", err)
	}
	for i := 0; i < c.Profile.Len(); i++ {
		filtered := ""
		if c.Filtered != nil && i < c.Filtered.Len() {
			filtered = ftoa(c.Filtered.Values[i])
		}
		isPeak := "0"
		if apex[i] {
			isPeak = "1"
		}
		row := []string{ftoa(c.Profile.Positions[i]), ftoa(c.Profile.Values[i]), filtered, isPeak}
		if err := cw.Write(row); err != nil {
			return apperrors.Wrap(apperrors.ErrorTypeIO, "writing profile row", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeIO, "flushing profile", err)
	}
	return nil
}

// ReadProfileCSV restores a chromatogram from a saved profile. Peaks are
// apex-only, taken from the is_peak column. The filtered profile is present
// when every row carries a filtered value.
func ReadProfileCSV(r io.Reader, name string) (*chrom.Chromatogram, error) {
	rows, err := readAll(r, ProfileHeader)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperrors.NewEmptyProfile("saved profile %q has no samples", name)
	}

	positions := make([]float64, len(rows))
	raw := make([]float64, len(rows))
	filtered := make([]float64, len(rows))
	hasFiltered := true
	var apexes []int
	for i, row := range rows {
		p := &parser{row: row, line: i + 2}
		positions[i] = p.floatAt(0)
		raw[i] = p.floatAt(1)
		if row[2] == "" {
			hasFiltered = false
		} else {
			filtered[i] = p.floatAt(2)
		}
		if p.boolAt(3) {
			apexes = append(apexes, i)
		}
		if p.err != nil {
			return nil, p.err
		}
	}

	c := chrom.NewChromatogram(name)
	c.Profile = chrom.NewProfile(positions, raw)
	values := raw
	if hasFiltered {
		c.Filtered = &chrom.FilteredProfile{
			SourceID:  c.Profile.ID,
			Positions: append([]float64(nil), positions...),
			Values:    filtered,
		}
		values = filtered
	}
	c.Peaks = make([]chrom.Peak, 0, len(apexes))
	for _, a := range apexes {
		c.Peaks = append(c.Peaks, chrom.Peak{Apex: a, Position: positions[a], Intensity: values[a]})
	}
	return c, nil
}

// WriteComparisonCSV writes chromatograms side by side: a position and a
// value column per chromatogram, using the filtered profile when present.
// Shorter chromatograms are padded with empty cells.
func WriteComparisonCSV(w io.Writer, chroms []*chrom.Chromatogram) error {
	header := make([]string, 0, 2*len(chroms))
	series := make([]*chrom.FilteredProfile, len(chroms))
	rows := 0
	for i, c := range chroms {
		name := c.Name
		if name == "" {
			name = c.ID
		}
		header = append(header, name+"_position", name+"_value")
		switch {
		case c.Filtered != nil:
			series[i] = c.Filtered
		case c.Profile != nil:
			series[i] = &chrom.FilteredProfile{Positions: c.Profile.Positions, Values: c.Profile.Values}
		default:
			series[i] = &chrom.FilteredProfile{}
		}
		rows = max(rows, series[i].Len())
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeIO, "writing comparison header", err)
	}
	row := make([]string, len(header))
	for i := 0; i < rows; i++ {
		for k, s := range series {
			row[2*k], row[2*k+1] = "", ""
			if i < s.Len() {
				row[2*k], row[2*k+1] = ftoa(s.Positions[i]), ftoa(s.Values[i])
			}
		}
		if err := cw.Write(row); err != nil {
			return apperrors.Wrap(apperrors.ErrorTypeIO, "writing comparison row", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeIO, "flushing comparison", err)
	}
	return nil
}

// MarshalChromatogram encodes the full record as indented JSON.
func MarshalChromatogram(c *chrom.Chromatogram) ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeIO, "encoding chromatogram", err)
	}
	return data, nil
}

// UnmarshalChromatogram decodes a record written by MarshalChromatogram.
func UnmarshalChromatogram(data []byte) (*chrom.Chromatogram, error) {
	var c chrom.Chromatogram
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeIO, "decoding chromatogram", err)
	}
	return &c, nil
}

// WriteFile creates path and streams write into it.
func WriteFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeIO, "creating export file", err).WithDetail("path", path)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeIO, "closing export file", err).WithDetail("path", path)
	}
	return nil
}

// ReadFile opens path and streams it into read.
func ReadFile(path string, read func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeIO, "opening saved record", err).WithDetail("path", path)
	}
	defer f.Close()
	return read(f)
}
