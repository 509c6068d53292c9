// Package extract turns a profile line drawn over a plate into a raw intensity
// Profile.
//
// # Sampling
//
// The path is resampled at evenly spaced arc-length positions, at least one per
// pixel. Each position is sampled across the band, perpendicular to the local
// segment, with bilinear interpolation, and the band samples are aggregated by
// mean, median or max.
//
// # Image Edges
//
// Band samples outside the image are either clamped onto the edge or excluded.
// Both cases are counted in the Profile's ClipFlags; an excluded position is
// absent from the Profile and its arc length is skipped.
package extract
