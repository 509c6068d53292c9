// Package imaging loads plate photographs and exposes them as scalar intensity
// fields for profile extraction.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based and relative to the
// top-left pixel of the image, whatever the image's own bounds are:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//
// Profile lines use sub-pixel chrom.Point coordinates in the same system.
//
// # Intensity Fields
//
// A Field is the read-only view the extractor samples. ImageField reduces each
// pixel of an image.Image on access according to a Reduction policy:
//   - mean: (R+G+B)/3
//   - max: max(R, G, B)
//   - luminance: CIE L* lightness
//   - channel: one of red, green, blue or alpha
//
// Intensities are scaled to 0-255 regardless of bit depth; 16-bit images keep
// their full precision as fractional values. Plane is a Field backed by a
// plain slice.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Cached images and the fields
// built over them are never modified, so any number of pipeline runs may read
// the same plate concurrently.
//
// # Previews
//
// LanePreview draws a profile line and its band edges on a copy of the plate and
// returns a PNG crop around the lane, which lets a user confirm the sampling
// geometry before quantifying.
package imaging
