package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/dunamismax/pixelpost/internal/raster"
	"golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// stdlibBackend decodes and encodes with image/* and golang.org/x/image and
// resamples with a Catmull-Rom (bicubic) kernel.
type stdlibBackend struct{}

func (stdlibBackend) Name() string { return "stdlib" }

func (stdlibBackend) Decode(data []byte) (*raster.Buffer, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty input", ErrDecodeFailure)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: decode source image: %v", ErrDecodeFailure, err)
	}

	buf, err := raster.FromImage(img)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	return buf, format, nil
}

func (stdlibBackend) Resample(src *raster.Buffer, width, height int) (*raster.Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}

	in := src.ToNRGBA()
	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(out, out.Bounds(), in, in.Bounds(), xdraw.Src, nil)

	return raster.FromNRGBA(out, src.Channels)
}

func (stdlibBackend) Encode(src *raster.Buffer, codec Codec, opts EncodeOptions) ([]byte, error) {
	return encodeImage(encodableImage(src, codec), codec, opts)
}

// encodableImage converts src for codec. Translucent pixels are composited
// over white when the codec drops alpha, so color hidden under transparent
// pixels never shows.
func encodableImage(src *raster.Buffer, codec Codec) image.Image {
	img := src.ToNRGBA()
	if !src.HasAlpha() || codec.KeepsAlpha() || img.Opaque() {
		return img
	}
	out := image.NewRGBA(img.Bounds())
	xdraw.Draw(out, out.Bounds(), image.White, image.Point{}, xdraw.Src)
	xdraw.Draw(out, out.Bounds(), img, img.Bounds().Min, xdraw.Over)
	return out
}

func encodeImage(img image.Image, codec Codec, opts EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer

	switch codec {
	case CodecJPEG:
		quality := opts.Quality
		if quality <= 0 || quality > 100 {
			quality = jpeg.DefaultQuality
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("%w: encode jpeg: %v", ErrEncodeFailure, err)
		}
	case CodecPNG:
		encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
		if err := encoder.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("%w: encode png: %v", ErrEncodeFailure, err)
		}
	case CodecBMP:
		if err := bmp.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("%w: encode bmp: %v", ErrEncodeFailure, err)
		}
	case CodecGIF:
		if err := gif.Encode(&buf, img, &gif.Options{NumColors: 256, Drawer: draw.FloydSteinberg}); err != nil {
			return nil, fmt.Errorf("%w: encode gif: %v", ErrEncodeFailure, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, codec)
	}

	return buf.Bytes(), nil
}
