package raster

import (
	"image"
	"image/color"
)

type opaquer interface {
	Opaque() bool
}

// FromImage copies a decoded image into a new Buffer. Images that report
// themselves opaque become 3-channel buffers; everything else keeps alpha.
func FromImage(src image.Image) (*Buffer, error) {
	bounds := src.Bounds()
	channels := ChannelsBGRA
	if o, ok := src.(opaquer); ok && o.Opaque() {
		channels = ChannelsBGR
	}

	if img, ok := src.(*image.NRGBA); ok {
		return FromNRGBA(img, channels)
	}

	dst, err := NewBuffer(bounds.Dx(), bounds.Dy(), channels)
	if err != nil {
		return nil, err
	}
	for y := 0; y < dst.Height; y++ {
		dstRow := dst.Row(y)
		for x := 0; x < dst.Width; x++ {
			c := color.NRGBAModel.Convert(src.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			di := x * channels
			dstRow[di+0] = c.B
			dstRow[di+1] = c.G
			dstRow[di+2] = c.R
			if channels == ChannelsBGRA {
				dstRow[di+3] = c.A
			}
		}
	}

	return dst, nil
}

// ToNRGBA copies the buffer into a freshly allocated *image.NRGBA. Opaque
// buffers get alpha 255.
func (b *Buffer) ToNRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	for y := 0; y < b.Height; y++ {
		srcRow := b.Row(y)
		dstRow := img.Pix[y*img.Stride : y*img.Stride+b.Width*4]
		for x := 0; x < b.Width; x++ {
			si, di := x*b.Channels, x*4
			dstRow[di+0] = srcRow[si+2]
			dstRow[di+1] = srcRow[si+1]
			dstRow[di+2] = srcRow[si+0]
			if b.Channels == ChannelsBGRA {
				dstRow[di+3] = srcRow[si+3]
			} else {
				dstRow[di+3] = 0xff
			}
		}
	}
	return img
}

// FromNRGBA copies img into a buffer with the requested channel count,
// dropping alpha when channels is 3.
func FromNRGBA(img *image.NRGBA, channels int) (*Buffer, error) {
	bounds := img.Bounds()
	dst, err := NewBuffer(bounds.Dx(), bounds.Dy(), channels)
	if err != nil {
		return nil, err
	}
	for y := 0; y < dst.Height; y++ {
		srcRow := img.Pix[img.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
		dstRow := dst.Row(y)
		for x := 0; x < dst.Width; x++ {
			si, di := x*4, x*channels
			dstRow[di+0] = srcRow[si+2]
			dstRow[di+1] = srcRow[si+1]
			dstRow[di+2] = srcRow[si+0]
			if channels == ChannelsBGRA {
				dstRow[di+3] = srcRow[si+3]
			}
		}
	}
	return dst, nil
}
