package filter

import "github.com/dunamismax/pixelpost/internal/raster"

// Flip mirrors src horizontally and/or vertically into a new buffer. Pixel
// (x, y) lands on (W-1-x, y) for horizontal and (x, H-1-y) for vertical.
func Flip(src *raster.Buffer, horizontal, vertical bool) *raster.Buffer {
	dst := src.NewLike()
	ch := src.Channels
	w := src.Width

	forEachRowBand(src.Height, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			srcY := y
			if vertical {
				srcY = src.Height - 1 - y
			}
			srcRow := src.Row(srcY)
			dstRow := dst.Row(y)
			if !horizontal {
				copy(dstRow, srcRow)
				continue
			}
			for x := 0; x < w; x++ {
				copy(dstRow[x*ch:(x+1)*ch], srcRow[(w-1-x)*ch:(w-x)*ch])
			}
		}
	})

	return dst
}

// FlipHorizontal mirrors left to right.
func FlipHorizontal(src *raster.Buffer) *raster.Buffer {
	return Flip(src, true, false)
}

// FlipVertical mirrors top to bottom.
func FlipVertical(src *raster.Buffer) *raster.Buffer {
	return Flip(src, false, true)
}
