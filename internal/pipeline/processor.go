package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dunamismax/pixelpost/internal/domain"
	"go.uber.org/zap"
)

const (
	SchemeFile = "file"
	SchemeS3   = "s3"
)

// Location is a parsed source or destination: a local path or s3://bucket/key.
type Location struct {
	Scheme string
	Bucket string
	Key    string
	Path   string
}

func (l Location) String() string {
	if l.Scheme == SchemeS3 {
		return "s3://" + l.Bucket + "/" + l.Key
	}
	return l.Path
}

// ParseLocation accepts a filesystem path or an s3://bucket/key URI.
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, fmt.Errorf("%w: empty location", ErrUnsupportedLocation)
	}

	if rest, ok := strings.CutPrefix(raw, "s3://"); ok {
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" || key == "" {
			return Location{}, fmt.Errorf("%w: %q must be s3://bucket/key", ErrUnsupportedLocation, raw)
		}
		return Location{Scheme: SchemeS3, Bucket: bucket, Key: key}, nil
	}
	if strings.Contains(raw, "://") {
		return Location{}, fmt.Errorf("%w: %q", ErrUnsupportedLocation, raw)
	}
	return Location{Scheme: SchemeFile, Path: raw}, nil
}

// Job is one image to process.
type Job struct {
	ID          string
	Source      string
	Destination string
	Request     domain.TransformRequest
}

type Output struct {
	Location string
	Codec    Codec
	Bytes    int
	Width    int
	Height   int
}

type Result struct {
	Output       Output
	SourceFormat string
	SourceWidth  int
	SourceHeight int
	SourceBytes  int
	Stages       []string
}

type Fetcher interface {
	Fetch(ctx context.Context, loc Location) ([]byte, error)
}

type Emitter interface {
	Emit(ctx context.Context, loc Location, encoded Encoded) (Output, error)
}

// Processor runs fetch, transform and emit for a Job.
type Processor struct {
	engine   *Engine
	fetchers map[string]Fetcher
	emitters map[string]Emitter
	logger   *zap.Logger
}

// NewLocalProcessor builds a processor over the local filesystem.
func NewLocalProcessor(logger *zap.Logger, overwrite bool) (*Processor, error) {
	backend, err := NewBackend()
	if err != nil {
		return nil, fmt.Errorf("build backend: %w", err)
	}
	engine, err := NewEngine(backend, logger)
	if err != nil {
		return nil, err
	}
	return NewProcessor(engine, logger, LocalFileFetcher{}, LocalFileEmitter{Overwrite: overwrite}), nil
}

func NewProcessor(engine *Engine, logger *zap.Logger, fetcher Fetcher, emitter Emitter) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		engine:   engine,
		fetchers: map[string]Fetcher{SchemeFile: fetcher},
		emitters: map[string]Emitter{SchemeFile: emitter},
		logger:   logger.Named("processor"),
	}
}

// WithObjectStore enables s3:// sources and destinations.
func (p *Processor) WithObjectStore(fetcher Fetcher, emitter Emitter) *Processor {
	p.fetchers[SchemeS3] = fetcher
	p.emitters[SchemeS3] = emitter
	return p
}

func (p *Processor) Engine() *Engine {
	return p.engine
}

func (p *Processor) Process(ctx context.Context, job Job) (Result, error) {
	src, err := ParseLocation(job.Source)
	if err != nil {
		return Result{}, fmt.Errorf("source: %w", err)
	}
	dst, err := ParseLocation(job.Destination)
	if err != nil {
		return Result{}, fmt.Errorf("destination: %w", err)
	}

	codec, err := CodecForPath(dst.String())
	if err != nil {
		return Result{}, err
	}

	fetcher, ok := p.fetchers[src.Scheme]
	if !ok {
		return Result{}, fmt.Errorf("%w: no fetcher for %s", ErrUnsupportedLocation, src.Scheme)
	}
	emitter, ok := p.emitters[dst.Scheme]
	if !ok {
		return Result{}, fmt.Errorf("%w: no emitter for %s", ErrUnsupportedLocation, dst.Scheme)
	}

	data, err := fetcher.Fetch(ctx, src)
	if err != nil {
		return Result{}, fmt.Errorf("fetch stage: %w", err)
	}

	run, err := p.engine.RunCodec(ctx, data, codec, job.Request)
	if err != nil {
		return Result{}, fmt.Errorf("transform stage: %w", err)
	}

	written, err := emitter.Emit(ctx, dst, run.Encoded)
	if err != nil {
		return Result{}, fmt.Errorf("emit stage: %w", err)
	}

	p.logger.Info("image processed",
		zap.String("job_id", job.ID),
		zap.String("source", src.String()),
		zap.String("destination", written.Location),
		zap.Strings("stages", run.Stages),
		zap.Int("width", written.Width),
		zap.Int("height", written.Height),
		zap.Duration("duration", run.Duration),
	)

	return Result{
		Output:       written,
		SourceFormat: run.SourceFormat,
		SourceWidth:  run.SourceWidth,
		SourceHeight: run.SourceHeight,
		SourceBytes:  len(data),
		Stages:       run.Stages,
	}, nil
}

type LocalFileFetcher struct{}

func (LocalFileFetcher) Fetch(ctx context.Context, loc Location) ([]byte, error) {
	if loc.Scheme != SchemeFile {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLocation, loc.Scheme)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	data, err := os.ReadFile(loc.Path)
	if err != nil {
		return nil, fmt.Errorf("read input file %s: %w", loc.Path, err)
	}
	return data, nil
}

// LocalFileEmitter writes through a temp file in the destination directory,
// so a failed run never leaves a partial file. Without Overwrite an existing
// destination gets a numeric suffix.
type LocalFileEmitter struct {
	Overwrite bool
}

func (e LocalFileEmitter) Emit(ctx context.Context, loc Location, encoded Encoded) (Output, error) {
	if loc.Scheme != SchemeFile {
		return Output{}, fmt.Errorf("%w: %s", ErrUnsupportedLocation, loc.Scheme)
	}
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	if err := os.MkdirAll(filepath.Dir(loc.Path), 0o755); err != nil {
		return Output{}, fmt.Errorf("%w: create output dir: %v", ErrEncodeFailure, err)
	}

	target, err := writeOutputFile(loc.Path, encoded.Data, e.Overwrite)
	if err != nil {
		return Output{}, fmt.Errorf("%w: %v", ErrEncodeFailure, err)
	}

	return Output{
		Location: target,
		Codec:    encoded.Codec,
		Bytes:    len(encoded.Data),
		Width:    encoded.Width,
		Height:   encoded.Height,
	}, nil
}

const maxCollisionSuffix = 10000

// numberedName returns name for n == 0 and name_n.ext otherwise.
func numberedName(name string, n int) string {
	if n == 0 {
		return name
	}
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "_" + strconv.Itoa(n) + ext
}

// writeOutputFile stages data in a temp file next to path. With overwrite the
// temp file is renamed over path. Otherwise it is hard-linked to the first
// free numbered name; a link never replaces a file created concurrently.
func writeOutputFile(path string, data []byte, overwrite bool) (target string, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".pixelpost-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if err != nil || !overwrite {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return "", fmt.Errorf("write output file: %w", err)
	}
	if err = tmp.Chmod(0o644); err != nil {
		return "", fmt.Errorf("chmod output file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("close output file: %w", err)
	}

	if overwrite {
		if err = os.Rename(tmpName, path); err != nil {
			return "", fmt.Errorf("rename output file: %w", err)
		}
		return path, nil
	}

	for i := 0; i < maxCollisionSuffix; i++ {
		candidate := numberedName(path, i)
		linkErr := os.Link(tmpName, candidate)
		if linkErr == nil {
			return candidate, nil
		}
		if !errors.Is(linkErr, os.ErrExist) {
			err = fmt.Errorf("claim output file %s: %w", candidate, linkErr)
			return "", err
		}
	}
	err = fmt.Errorf("no free name for %s", path)
	return "", err
}
