package filter

import (
	"github.com/dunamismax/pixelpost/internal/raster"
)

// Luminance weights applied to red, green and blue.
const (
	lumR = 0.3086
	lumG = 0.6094
	lumB = 0.0820
)

// Saturate rescales each pixel's chroma around its luminance. s = 1 leaves the
// image unchanged, s = 0 yields grayscale, s > 1 boosts and may clip.
func Saturate(src *raster.Buffer, s float64) *raster.Buffer {
	return mapPixels(src, func(px, out []byte) {
		b := float64(px[0]) / 255
		g := float64(px[1]) / 255
		r := float64(px[2]) / 255
		l := lumR*r + lumG*g + lumB*b

		out[0] = clampRound(clampUnit(l+(b-l)*s) * 255)
		out[1] = clampRound(clampUnit(l+(g-l)*s) * 255)
		out[2] = clampRound(clampUnit(l+(r-l)*s) * 255)
	})
}

// AdjustBrightnessContrast applies v*(1+contrast) + brightness*255 to every
// color channel independently. Both inputs are expected in [-1, 1].
func AdjustBrightnessContrast(src *raster.Buffer, brightness, contrast float64) *raster.Buffer {
	c := 1 + contrast
	off := brightness * 255
	return mapPixels(src, func(px, out []byte) {
		out[0] = clampRound(float64(px[0])*c + off)
		out[1] = clampRound(float64(px[1])*c + off)
		out[2] = clampRound(float64(px[2])*c + off)
	})
}

// mapPixels runs fn over every pixel, handing it the source pixel and the
// destination pixel. fn writes the three color bytes; alpha is copied here.
func mapPixels(src *raster.Buffer, fn func(px, out []byte)) *raster.Buffer {
	dst := src.NewLike()
	ch := src.Channels

	forEachRowBand(src.Height, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			srcRow := src.Row(y)
			dstRow := dst.Row(y)
			for i := 0; i < len(srcRow); i += ch {
				px := srcRow[i : i+ch]
				out := dstRow[i : i+ch]
				fn(px, out)
				if ch == raster.ChannelsBGRA {
					out[raster.AlphaChannel] = px[raster.AlphaChannel]
				}
			}
		}
	})

	return dst
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
