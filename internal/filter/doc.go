// Package filter implements the pixel transforms of the post-processing
// pipeline:
//   - general 2D convolution (used for sharpening)
//   - luminance-pivoted saturation
//   - linear brightness/contrast
//   - horizontal and vertical mirroring
//
// Every transform is a pure function from one raster.Buffer to a freshly
// allocated one of the same shape. Color channels are rounded half away from
// zero and clamped to [0, 255]. Alpha is never altered, only moved by flips.
// Work is split into row bands processed concurrently.
package filter
