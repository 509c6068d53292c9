// Package detection locates peaks in a filtered profile.
//
// # Algorithm
//
//  1. Local maxima: samples strictly above both neighbours. A flat top counts
//     once, at its midpoint, when both sides of the run are strictly lower.
//  2. Height: apexes below the height threshold are discarded.
//  3. Distance: candidates are visited from highest to lowest and any
//     candidate closer than MinDistance to an accepted one is discarded, so a
//     tall peak is never lost to a smaller neighbour that happens to come first.
//  4. Prominence: the apex must rise more than Sensitivity above the higher of
//     its two valley minima.
//  5. Width: optionally, the width at half prominence must reach MinWidth.
//
// Thresholds are absolute by default. RelativeHeight and RelativeProminence
// scale them by the signal range instead.
//
// Detect returns the peaks with apex data only, plus counts of candidates
// rejected at each step.
package detection
