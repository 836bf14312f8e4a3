//go:build govips && cgo

package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/dunamismax/pixelpost/internal/raster"
)

// govipsBackend runs decode, resample and export through libvips. Buffers
// cross the boundary as lossless PNG.
type govipsBackend struct{}

func (govipsBackend) Name() string { return "govips" }

func (govipsBackend) Decode(data []byte) (*raster.Buffer, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty input", ErrDecodeFailure)
	}

	img, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, "", fmt.Errorf("%w: decode source image: %v", ErrDecodeFailure, err)
	}
	defer img.Close()

	channels := raster.ChannelsBGR
	if img.HasAlpha() {
		channels = raster.ChannelsBGRA
	}

	buf, err := bufferFromVips(img, channels)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	return buf, formatName(vips.DetermineImageType(data)), nil
}

func (govipsBackend) Resample(src *raster.Buffer, width, height int) (*raster.Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}

	encoded, err := encodeImage(src.ToNRGBA(), CodecPNG, EncodeOptions{})
	if err != nil {
		return nil, err
	}

	img, err := vips.NewThumbnailWithSizeFromBuffer(encoded, width, height, vips.InterestingNone, vips.SizeForce)
	if err != nil {
		return nil, fmt.Errorf("resize image: %w", err)
	}
	defer img.Close()

	return bufferFromVips(img, src.Channels)
}

func (govipsBackend) Encode(src *raster.Buffer, codec Codec, opts EncodeOptions) ([]byte, error) {
	// libvips has no BMP saver.
	if codec == CodecBMP {
		return encodeImage(encodableImage(src, codec), codec, opts)
	}

	encoded, err := encodeImage(encodableImage(src, codec), CodecPNG, EncodeOptions{})
	if err != nil {
		return nil, err
	}
	img, err := vips.NewImageFromBuffer(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: load intermediate: %v", ErrEncodeFailure, err)
	}
	defer img.Close()

	switch codec {
	case CodecJPEG:
		params := vips.NewJpegExportParams()
		if opts.Quality > 0 && opts.Quality <= 100 {
			params.Quality = opts.Quality
		}
		data, _, err := img.ExportJpeg(params)
		if err != nil {
			return nil, fmt.Errorf("%w: encode jpeg: %v", ErrEncodeFailure, err)
		}
		return data, nil
	case CodecPNG:
		data, _, err := img.ExportPng(vips.NewPngExportParams())
		if err != nil {
			return nil, fmt.Errorf("%w: encode png: %v", ErrEncodeFailure, err)
		}
		return data, nil
	case CodecGIF:
		data, _, err := img.ExportGIF(vips.NewGifExportParams())
		if err != nil {
			return nil, fmt.Errorf("%w: encode gif: %v", ErrEncodeFailure, err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, codec)
	}
}

func bufferFromVips(img *vips.ImageRef, channels int) (*raster.Buffer, error) {
	data, _, err := img.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return nil, fmt.Errorf("export intermediate png: %w", err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode intermediate png: %w", err)
	}

	nrgba, ok := decoded.(*image.NRGBA)
	if !ok {
		nrgba = image.NewNRGBA(decoded.Bounds())
		for y := decoded.Bounds().Min.Y; y < decoded.Bounds().Max.Y; y++ {
			for x := decoded.Bounds().Min.X; x < decoded.Bounds().Max.X; x++ {
				nrgba.Set(x, y, decoded.At(x, y))
			}
		}
	}
	return raster.FromNRGBA(nrgba, channels)
}

func formatName(t vips.ImageType) string {
	switch t {
	case vips.ImageTypeJPEG:
		return "jpeg"
	case vips.ImageTypePNG:
		return "png"
	case vips.ImageTypeGIF:
		return "gif"
	case vips.ImageTypeWEBP:
		return "webp"
	case vips.ImageTypeTIFF:
		return "tiff"
	case vips.ImageTypeBMP:
		return "bmp"
	default:
		return "unknown"
	}
}
