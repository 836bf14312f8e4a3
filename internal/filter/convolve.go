package filter

import (
	"math"

	"github.com/dunamismax/pixelpost/internal/raster"
)

// Convolve applies k to every pixel of src and returns a new buffer with the
// same shape. Color channels are convolved independently with border
// replication; alpha is copied from the source pixel.
func Convolve(src *raster.Buffer, k Kernel) *raster.Buffer {
	dst := src.NewLike()
	ch := src.Channels
	center := k.Center()

	forEachRowBand(src.Height, func(y0, y1 int) {
		var acc [3]float64
		for y := y0; y < y1; y++ {
			dstRow := dst.Row(y)
			for x := 0; x < src.Width; x++ {
				acc = [3]float64{}
				for ky := 0; ky < k.Size; ky++ {
					for kx := 0; kx < k.Size; kx++ {
						w := k.Weights[ky*k.Size+kx]
						if w == 0 {
							continue
						}
						off := src.ClampedOffset(x+kx-center, y+ky-center)
						acc[0] += w * float64(src.Pix[off])
						acc[1] += w * float64(src.Pix[off+1])
						acc[2] += w * float64(src.Pix[off+2])
					}
				}

				di := x * ch
				dstRow[di+0] = clampRound(acc[0])
				dstRow[di+1] = clampRound(acc[1])
				dstRow[di+2] = clampRound(acc[2])
				if ch == raster.ChannelsBGRA {
					dstRow[di+3] = src.Pix[src.Offset(x, y)+raster.AlphaChannel]
				}
			}
		}
	})

	return dst
}

// Sharpen convolves src with SharpenKernel(strength).
func Sharpen(src *raster.Buffer, strength float64) *raster.Buffer {
	return Convolve(src, SharpenKernel(strength))
}

// clampRound rounds half away from zero and clamps to a byte.
func clampRound(v float64) uint8 {
	r := math.Round(v)
	if r <= 0 || math.IsNaN(r) {
		return 0
	}
	if r >= 255 {
		return 255
	}
	return uint8(r)
}
