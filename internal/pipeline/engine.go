package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dunamismax/pixelpost/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Engine runs decode, the transform stages and the resample/encode step over
// an in-memory image.
type Engine struct {
	backend    Backend
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// RunResult describes one successful Engine run.
type RunResult struct {
	Encoded
	SourceFormat string
	SourceWidth  int
	SourceHeight int
	Stages       []string
	Duration     time.Duration
}

func NewEngine(backend Backend, logger *zap.Logger) (*Engine, error) {
	if backend == nil {
		return nil, errors.New("imaging backend is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher, err := NewDispatcher(backend, backend)
	if err != nil {
		return nil, err
	}
	return &Engine{
		backend:    backend,
		dispatcher: dispatcher,
		logger:     logger.Named("engine"),
	}, nil
}

// Run processes data and encodes it for dest. The codec is resolved from
// dest before decoding.
func (e *Engine) Run(ctx context.Context, data []byte, dest string, req domain.TransformRequest) (RunResult, error) {
	codec, err := CodecForPath(dest)
	if err != nil {
		return RunResult{}, err
	}
	return e.RunCodec(ctx, data, codec, req)
}

func (e *Engine) RunCodec(ctx context.Context, data []byte, codec Codec, req domain.TransformRequest) (RunResult, error) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("pipeline.backend", e.backend.Name()),
		attribute.String("image.codec", string(codec)),
		attribute.Int("image.source_bytes", len(data)),
	)

	fail := func(err error) (RunResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return RunResult{}, err
	}

	src, format, err := e.backend.Decode(data)
	if err != nil {
		if !errors.Is(err, ErrDecodeFailure) {
			err = fmt.Errorf("%w: %v", ErrDecodeFailure, err)
		}
		return fail(err)
	}
	srcW, srcH := src.Width, src.Height

	out, stages, err := Apply(ctx, src, req)
	if err != nil {
		return fail(err)
	}
	e.logger.Debug("stages applied",
		zap.Strings("stages", stages),
		zap.Int("width", srcW),
		zap.Int("height", srcH),
		zap.Int("channels", out.Channels),
	)

	if err := ctx.Err(); err != nil {
		out.Release()
		return fail(err)
	}

	encoded, err := e.dispatcher.DispatchCodec(ctx, out, codec, req.Scale, req.Quality)
	if err != nil {
		return fail(err)
	}

	return RunResult{
		Encoded:      encoded,
		SourceFormat: format,
		SourceWidth:  srcW,
		SourceHeight: srcH,
		Stages:       stages,
		Duration:     time.Since(start),
	}, nil
}

func (e *Engine) BackendName() string {
	return e.backend.Name()
}
