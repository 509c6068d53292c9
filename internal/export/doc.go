// Package export writes and reads chromatogram records.
//
//   - Peak table CSV: one row per peak with boundaries, area, height, clamp
//     flags and every fit parameter including the validity flag.
//   - Profile CSV: position, raw, filtered, is_peak per sample.
//   - Comparison CSV: several lanes side by side.
//   - JSON: the complete Chromatogram, lossless.
//
// Floats are written in shortest round-trip form, so reading a file back
// yields the same values.
package export
