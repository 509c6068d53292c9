// Package compare rescales and aligns finished chromatograms so several lanes
// can be overlaid. It never detects, integrates or fits; it only divides
// intensities by a reference value and shifts positions.
package compare
