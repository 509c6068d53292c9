// Package filter smooths profiles before peak work.
//
// Two filters exist, Savitzky-Golay and Gaussian, both implementing the sealed
// Kind interface. Filters are chained in order and every filter keeps the
// profile length: Savitzky-Golay extends the outermost polynomial fits over the
// edges and Gaussian reflects the signal at both ends.
//
// Filters are pure functions of their input and parameters.
package filter
