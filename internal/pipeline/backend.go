package pipeline

import "github.com/dunamismax/pixelpost/internal/raster"

// Decoder turns encoded bytes into a pixel buffer. The returned string is the
// detected source format.
type Decoder interface {
	Decode(data []byte) (*raster.Buffer, string, error)
}

// Resampler produces a new buffer of exactly width x height. It does not
// release src.
type Resampler interface {
	Resample(src *raster.Buffer, width, height int) (*raster.Buffer, error)
}

// Encoder serializes a buffer with the given codec.
type Encoder interface {
	Encode(src *raster.Buffer, codec Codec, opts EncodeOptions) ([]byte, error)
}

// EncodeOptions carries codec parameters. Quality is zero for lossless codecs.
type EncodeOptions struct {
	Quality int
}

// Backend bundles the three imaging primitives.
type Backend interface {
	Decoder
	Resampler
	Encoder
	Name() string
}

// NewBackend returns the imaging backend selected at build time.
func NewBackend() (Backend, error) {
	return newBackend()
}
