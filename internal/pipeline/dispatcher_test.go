package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/dunamismax/pixelpost/internal/domain"
	"github.com/dunamismax/pixelpost/internal/raster"
	"go.uber.org/zap"
	"golang.org/x/image/bmp"
)

type recordingBackend struct {
	stdlibBackend
	resamples int
	opts      []EncodeOptions
	encodeErr error
}

func (r *recordingBackend) Resample(src *raster.Buffer, width, height int) (*raster.Buffer, error) {
	r.resamples++
	return r.stdlibBackend.Resample(src, width, height)
}

func (r *recordingBackend) Encode(src *raster.Buffer, codec Codec, opts EncodeOptions) ([]byte, error) {
	r.opts = append(r.opts, opts)
	if r.encodeErr != nil {
		return nil, r.encodeErr
	}
	return r.stdlibBackend.Encode(src, codec, opts)
}

func newRecordingDispatcher(t *testing.T) (*Dispatcher, *recordingBackend) {
	t.Helper()

	backend := &recordingBackend{}
	d, err := NewDispatcher(backend, backend)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return d, backend
}

func TestTargetSize(t *testing.T) {
	cases := []struct {
		w, h  int
		f     float64
		wantW int
		wantH int
	}{
		{100, 100, 2, 200, 200},
		{10, 10, 1.5, 15, 15},
		{3, 5, 0.5, 2, 3},
		{1, 1, 0.01, 1, 1},
		{640, 480, 0.1, 64, 48},
	}
	for _, tc := range cases {
		w, h := TargetSize(tc.w, tc.h, tc.f)
		if w != tc.wantW || h != tc.wantH {
			t.Fatalf("TargetSize(%d,%d,%v) = %dx%d, want %dx%d", tc.w, tc.h, tc.f, w, h, tc.wantW, tc.wantH)
		}
	}
}

func TestDispatchPNGDoublesWithoutQuality(t *testing.T) {
	d, backend := newRecordingDispatcher(t)

	out, err := d.Dispatch(context.Background(), gradientBuffer(t, 100, 100), "out.png", 2.0, 85)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if out.Codec != CodecPNG || out.Width != 200 || out.Height != 200 {
		t.Fatalf("unexpected output %s %dx%d", out.Codec, out.Width, out.Height)
	}
	if len(backend.opts) != 1 || backend.opts[0].Quality != 0 {
		t.Fatalf("expected png to be encoded without quality, got %+v", backend.opts)
	}

	img, err := png.Decode(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 200 {
		t.Fatalf("expected 200x200 png, got %v", b)
	}
}

func TestDispatchJPEGPassesQuality(t *testing.T) {
	d, backend := newRecordingDispatcher(t)

	out, err := d.Dispatch(context.Background(), gradientBuffer(t, 10, 10), "photo.jpeg", 1.5, 42)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if out.Width != 15 || out.Height != 15 {
		t.Fatalf("expected 15x15, got %dx%d", out.Width, out.Height)
	}
	if len(backend.opts) != 1 || backend.opts[0].Quality != 42 {
		t.Fatalf("expected jpeg quality 42, got %+v", backend.opts)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if format != "jpeg" || cfg.Width != 15 || cfg.Height != 15 {
		t.Fatalf("unexpected output %s %dx%d", format, cfg.Width, cfg.Height)
	}
}

func TestDispatchUnsupportedFormatFailsFast(t *testing.T) {
	d, backend := newRecordingDispatcher(t)

	_, err := d.Dispatch(context.Background(), gradientBuffer(t, 10, 10), "out.tiff", 1, 85)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if backend.resamples != 0 || len(backend.opts) != 0 {
		t.Fatalf("expected no resample or encode, got %d resamples %d encodes", backend.resamples, len(backend.opts))
	}
}

func TestDispatchWrapsEncoderErrors(t *testing.T) {
	d, backend := newRecordingDispatcher(t)
	backend.encodeErr = errors.New("disk on fire")

	_, err := d.Dispatch(context.Background(), gradientBuffer(t, 4, 4), "out.bmp", 1, 85)
	if !errors.Is(err, ErrEncodeFailure) {
		t.Fatalf("expected ErrEncodeFailure, got %v", err)
	}
}

func TestDispatchEveryCodec(t *testing.T) {
	d, _ := newRecordingDispatcher(t)

	for _, dest := range []string{"a.jpg", "a.png", "a.bmp", "a.gif"} {
		out, err := d.Dispatch(context.Background(), gradientBuffer(t, 12, 9), dest, 1, 90)
		if err != nil {
			t.Fatalf("%s: dispatch: %v", dest, err)
		}
		cfg, _, err := image.DecodeConfig(bytes.NewReader(out.Data))
		if err != nil {
			t.Fatalf("%s: decode output: %v", dest, err)
		}
		if cfg.Width != 12 || cfg.Height != 9 {
			t.Fatalf("%s: expected 12x9, got %dx%d", dest, cfg.Width, cfg.Height)
		}
	}
}

func TestEngineRunRejectsBeforeDecoding(t *testing.T) {
	backend, err := NewBackend()
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	engine, err := NewEngine(backend, zap.NewNop())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	_, err = engine.Run(context.Background(), []byte("garbage"), "out.tiff", domain.DefaultTransformRequest())
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}

	_, err = engine.Run(context.Background(), []byte("garbage"), "out.png", domain.DefaultTransformRequest())
	if !errors.Is(err, ErrDecodeFailure) {
		t.Fatalf("expected ErrDecodeFailure, got %v", err)
	}
}

func TestEngineRunKeepsAlphaForTransparentSources(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 6, 6))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 10, 200, 30, 128
	}
	var src bytes.Buffer
	if err := png.Encode(&src, img); err != nil {
		t.Fatalf("encode source: %v", err)
	}

	engine, err := NewEngine(stdlibBackend{}, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	req := domain.DefaultTransformRequest()
	req.Scale = 1
	out, err := engine.Run(context.Background(), src.Bytes(), "out.png", req)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	decoded, err := png.Decode(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	_, _, _, a := decoded.At(3, 3).RGBA()
	if a>>8 != 128 {
		t.Fatalf("expected alpha 128, got %d", a>>8)
	}
}

func bgraBuffer(t *testing.T, w, h int, pixels ...[4]byte) *raster.Buffer {
	t.Helper()

	buf, err := raster.NewBuffer(w, h, raster.ChannelsBGRA)
	if err != nil {
		t.Fatalf("new buffer: %v", err)
	}
	for i := 0; i < w*h; i++ {
		copy(buf.Pix[i*4:], pixels[i%len(pixels)][:])
	}
	return buf
}

func near(got uint32, want, tolerance int) bool {
	d := int(got>>8) - want
	return d >= -tolerance && d <= tolerance
}

func TestEncodeFlattensTransparencyForJPEG(t *testing.T) {
	// Fully transparent, with red stored under the alpha.
	src := bgraBuffer(t, 8, 8, [4]byte{0, 0, 255, 0})
	defer src.Release()

	data, err := stdlibBackend{}.Encode(src, CodecJPEG, EncodeOptions{Quality: 95})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	r, g, b, _ := img.At(4, 4).RGBA()
	if !near(r, 255, 6) || !near(g, 255, 6) || !near(b, 255, 6) {
		t.Fatalf("expected white, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestEncodeFlattensTransparencyForBMP(t *testing.T) {
	src := bgraBuffer(t, 2, 1, [4]byte{0, 0, 255, 0}, [4]byte{30, 200, 10, 128})
	defer src.Release()

	data, err := stdlibBackend{}.Encode(src, CodecBMP, EncodeOptions{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	img, err := bmp.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	r, g, b, _ := img.At(0, 0).RGBA()
	if r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
		t.Fatalf("expected transparent pixel to become white, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
	r, g, b, _ = img.At(1, 0).RGBA()
	if !near(r, 132, 2) || !near(g, 227, 2) || !near(b, 142, 2) {
		t.Fatalf("expected half-transparent pixel blended over white, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestEncodeKeepsTransparencyForPNG(t *testing.T) {
	src := bgraBuffer(t, 2, 2, [4]byte{0, 0, 255, 0})
	defer src.Release()

	data, err := stdlibBackend{}.Encode(src, CodecPNG, EncodeOptions{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, _, _, a := img.At(1, 1).RGBA(); a != 0 {
		t.Fatalf("expected alpha 0, got %d", a>>8)
	}
}
