// Package integration assigns boundaries to detected peaks and measures their
// area and height above a baseline.
//
// Automatic boundaries come from a valley walk outward from each apex.
// Manual boundaries are validated against 0 <= left < apex < right < len
// before anything is changed. The area is the trapezoidal integral, over
// positions, of the signal minus the baseline. Negative areas and heights are
// clamped to zero and flagged on the peak.
package integration
