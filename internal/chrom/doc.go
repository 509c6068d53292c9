// Package chrom holds the records that flow through the quantification pipeline.
//
// # Records
//
//   - ProfileLine: the sampling path drawn over a plate image plus its band width.
//   - Profile: intensities sampled along a ProfileLine with the cumulative arc
//     length of every sample.
//   - FilteredProfile: a smoothed copy of a Profile. It refers back to its source
//     by ID rather than by pointer.
//   - Peak: an apex index into a FilteredProfile together with its boundaries,
//     baseline, area, height and optional FitResult.
//   - Chromatogram: one lane's Profile, FilteredProfile and ordered Peaks.
//
// # Indices
//
// Peaks never hold pointers into profile data. Apex, Left and Right are indices
// into the profile that is passed next to them, so one profile can be read by
// many goroutines while each worker owns its own Peak values.
//
// # Flags
//
// Nothing is clamped or dropped silently. Extraction records clipped band
// samples in ClipFlags, integration records AreaClamped and HeightClamped on
// the Peak, and fitting records Valid and Reason on the FitResult.
package chrom
