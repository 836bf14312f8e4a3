package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/dunamismax/pixelpost/internal/raster"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Encoded is the final artifact of a run.
type Encoded struct {
	Data   []byte
	Codec  Codec
	Width  int
	Height int
}

// Dispatcher resamples a buffer to its output size and encodes it.
type Dispatcher struct {
	resampler Resampler
	encoder   Encoder
}

func NewDispatcher(resampler Resampler, encoder Encoder) (*Dispatcher, error) {
	if resampler == nil || encoder == nil {
		return nil, errors.New("resampler and encoder are required")
	}
	return &Dispatcher{resampler: resampler, encoder: encoder}, nil
}

// TargetSize scales both dimensions by f, rounding to nearest, with a 1x1
// floor.
func TargetSize(width, height int, f float64) (int, int) {
	w := int(math.Round(float64(width) * f))
	h := int(math.Round(float64(height) * f))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// Dispatch takes ownership of buf. The codec is resolved from dest before any
// pixel work, so an unsupported extension fails without resampling.
func (d *Dispatcher) Dispatch(ctx context.Context, buf *raster.Buffer, dest string, scale float64, quality int) (Encoded, error) {
	codec, err := CodecForPath(dest)
	if err != nil {
		buf.Release()
		return Encoded{}, err
	}
	return d.DispatchCodec(ctx, buf, codec, scale, quality)
}

// DispatchCodec is Dispatch with the codec already resolved.
func (d *Dispatcher) DispatchCodec(ctx context.Context, buf *raster.Buffer, codec Codec, scale float64, quality int) (Encoded, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "pipeline.dispatch")
	defer span.End()

	width, height := TargetSize(buf.Width, buf.Height, scale)
	span.SetAttributes(
		attribute.String("image.codec", string(codec)),
		attribute.Int("image.target_width", width),
		attribute.Int("image.target_height", height),
	)

	resized, err := d.resampler.Resample(buf, width, height)
	buf.Release()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Encoded{}, fmt.Errorf("%w: resample to %dx%d: %v", ErrEncodeFailure, width, height, err)
	}
	defer resized.Release()

	var opts EncodeOptions
	if codec.Lossy() {
		opts.Quality = quality
	}

	data, err := d.encoder.Encode(resized, codec, opts)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, ErrEncodeFailure) {
			return Encoded{}, err
		}
		return Encoded{}, fmt.Errorf("%w: %s: %v", ErrEncodeFailure, codec, err)
	}

	return Encoded{
		Data:   data,
		Codec:  codec,
		Width:  resized.Width,
		Height: resized.Height,
	}, nil
}
