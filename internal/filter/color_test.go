package filter

import (
	"testing"

	"github.com/dunamismax/pixelpost/internal/raster"
)

func TestSaturateIdentity(t *testing.T) {
	src := noiseBuffer(t, 31, 29, raster.ChannelsBGRA)
	dst := Saturate(src, 1)
	if !dst.Equal(src) {
		t.Fatal("expected saturation 1.0 to be the identity")
	}
}

func TestSaturateZeroIsGrayscale(t *testing.T) {
	src := noiseBuffer(t, 31, 29, raster.ChannelsBGR)
	dst := Saturate(src, 0)
	for y := 0; y < dst.Height; y++ {
		for x := 0; x < dst.Width; x++ {
			px := pixelAt(dst, x, y)
			if px[0] != px[1] || px[1] != px[2] {
				t.Fatalf("expected gray at (%d,%d), got %v", x, y, px)
			}
		}
	}
}

func TestSaturateUsesLuminanceWeights(t *testing.T) {
	// Pure red (BGR 0,0,255) desaturates to 0.3086*255 = 78.69 -> 79.
	src := solidBuffer(t, 2, 2, 0, 0, 255)
	dst := Saturate(src, 0)
	if got := pixelAt(dst, 0, 0); got[0] != 79 || got[2] != 79 {
		t.Fatalf("expected 79 gray, got %v", got)
	}

	// Pure blue desaturates to 0.0820*255 = 20.91 -> 21.
	dst = Saturate(solidBuffer(t, 2, 2, 255, 0, 0), 0)
	if got := pixelAt(dst, 1, 1); got[1] != 21 {
		t.Fatalf("expected 21 gray, got %v", got)
	}
}

func TestSaturatePreservesAlpha(t *testing.T) {
	src := noiseBuffer(t, 20, 20, raster.ChannelsBGRA)
	assertAlphaPreserved(t, src, Saturate(src, 3.3))
	assertAlphaPreserved(t, src, Saturate(src, 0))
}

func TestBrightnessContrastIdentity(t *testing.T) {
	src := noiseBuffer(t, 25, 19, raster.ChannelsBGRA)
	if !AdjustBrightnessContrast(src, 0, 0).Equal(src) {
		t.Fatal("expected brightness=0 contrast=0 to be bit-identical")
	}
}

func TestBrightnessContrastLinearRemap(t *testing.T) {
	src := solidBuffer(t, 2, 2, 100, 10, 250, 42)

	// c = 1.5, b = 0.1*255 = 25.5: 100 -> 175.5 -> 176, 10 -> 40.5 -> 41, 250 -> 400.5 -> 255.
	dst := AdjustBrightnessContrast(src, 0.1, 0.5)
	got := pixelAt(dst, 1, 0)
	if got[0] != 176 || got[1] != 41 || got[2] != 255 || got[3] != 42 {
		t.Fatalf("unexpected remap %v", got)
	}

	// Full negative contrast collapses everything to the brightness offset.
	dst = AdjustBrightnessContrast(src, -1, -1)
	got = pixelAt(dst, 0, 1)
	if got[0] != 0 || got[1] != 0 || got[2] != 0 || got[3] != 42 {
		t.Fatalf("expected black with alpha kept, got %v", got)
	}
}

func TestBrightnessContrastPreservesAlpha(t *testing.T) {
	src := noiseBuffer(t, 20, 20, raster.ChannelsBGRA)
	assertAlphaPreserved(t, src, AdjustBrightnessContrast(src, 0.7, -0.4))
}

func TestClampingInvariantUnderExtremeInputs(t *testing.T) {
	// Bytes cannot leave [0,255]; this guards against wraparound instead.
	src := noiseBuffer(t, 64, 48, raster.ChannelsBGRA)

	out := Sharpen(src, 10)
	out = Saturate(out, 5)
	out = AdjustBrightnessContrast(out, 1, 1)
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			px := pixelAt(out, x, y)
			if px[0] != 255 || px[1] != 255 || px[2] != 255 {
				t.Fatalf("expected saturation to white at (%d,%d), got %v", x, y, px)
			}
		}
	}
	assertAlphaPreserved(t, src, out)

	dark := AdjustBrightnessContrast(Saturate(Sharpen(src, 10), 5), -1, -1)
	for i := 0; i < len(dark.Pix); i += 4 {
		if dark.Pix[i] != 0 || dark.Pix[i+1] != 0 || dark.Pix[i+2] != 0 {
			t.Fatalf("expected black at byte %d, got %v", i, dark.Pix[i:i+3])
		}
	}
}
