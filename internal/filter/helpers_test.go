package filter

import (
	"testing"

	"github.com/dunamismax/pixelpost/internal/raster"
)

// Test helpers shared across filter tests.

// solidBuffer creates a buffer filled with one BGR(A) value.
func solidBuffer(t testing.TB, w, h int, px ...byte) *raster.Buffer {
	t.Helper()

	buf, err := raster.NewBuffer(w, h, len(px))
	if err != nil {
		t.Fatalf("new buffer: %v", err)
	}
	for y := 0; y < h; y++ {
		row := buf.Row(y)
		for i := 0; i < len(row); i += len(px) {
			copy(row[i:], px)
		}
	}
	return buf
}

// noiseBuffer fills a buffer with a deterministic pseudo-random pattern,
// including varied alpha when channels is 4.
func noiseBuffer(t testing.TB, w, h, channels int) *raster.Buffer {
	t.Helper()

	buf, err := raster.NewBuffer(w, h, channels)
	if err != nil {
		t.Fatalf("new buffer: %v", err)
	}
	state := uint32(2463534242)
	for i := range buf.Pix {
		state ^= state << 13
		state ^= state >> 17
		state ^= state << 5
		buf.Pix[i] = byte(state)
	}
	return buf
}

func pixelAt(buf *raster.Buffer, x, y int) []byte {
	off := buf.Offset(x, y)
	return buf.Pix[off : off+buf.Channels]
}

func assertAlphaPreserved(t *testing.T, src, dst *raster.Buffer) {
	t.Helper()

	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			want := pixelAt(src, x, y)[raster.AlphaChannel]
			got := pixelAt(dst, x, y)[raster.AlphaChannel]
			if got != want {
				t.Fatalf("alpha changed at (%d,%d): want %d, got %d", x, y, want, got)
			}
		}
	}
}
