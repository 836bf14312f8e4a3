package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dunamismax/pixelpost/internal/domain"
	"github.com/dunamismax/pixelpost/internal/id"
	"github.com/dunamismax/pixelpost/internal/pipeline"
	"github.com/dunamismax/pixelpost/internal/store"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	HeaderRunID   = "X-Pixelpost-Run-Id"
	HeaderWarning = "X-Pixelpost-Warning"
	HeaderStages  = "X-Pixelpost-Stages"

	defaultMaxBodyBytes = 32 << 20
	notifyTimeout       = 30 * time.Second
)

type imageEngine interface {
	RunCodec(ctx context.Context, data []byte, codec pipeline.Codec, req domain.TransformRequest) (pipeline.RunResult, error)
}

type runNotifier interface {
	NotifyRun(ctx context.Context, endpoint string, run domain.Run, warnings []string) error
}

type Options struct {
	Logger                *zap.Logger
	Engine                imageEngine
	RunStore              store.RunStore
	Notifier              runNotifier
	RateLimiter           RateLimiter
	RateLimitUserIDHeader string
	// RateLimitCostUnit is the upload size charged as one rate limit unit.
	RateLimitCostUnit int64
	Tracer            trace.Tracer
	MaxBodyBytes      int64
}

type Server struct {
	logger                *zap.Logger
	engine                imageEngine
	runStore              store.RunStore
	notifier              runNotifier
	rateLimiter           RateLimiter
	rateLimitUserIDHeader string
	rateLimitCostUnit     int64
	tracer                trace.Tracer
	maxBodyBytes          int64
	metrics               *metrics
	mux                   *http.ServeMux
	notifications         sync.WaitGroup
}

func NewServer(opts Options) (*Server, error) {
	if opts.Engine == nil {
		return nil, errors.New("image engine is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RunStore == nil {
		opts.RunStore = store.NewMemoryRunStore(0)
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if strings.TrimSpace(opts.RateLimitUserIDHeader) == "" {
		opts.RateLimitUserIDHeader = "X-User-ID"
	}
	if opts.RateLimitCostUnit <= 0 {
		opts.RateLimitCostUnit = defaultRateLimitCostUnit
	}

	s := &Server{
		logger:                opts.Logger.Named("api"),
		engine:                opts.Engine,
		runStore:              opts.RunStore,
		notifier:              opts.Notifier,
		rateLimiter:           opts.RateLimiter,
		rateLimitUserIDHeader: opts.RateLimitUserIDHeader,
		rateLimitCostUnit:     opts.RateLimitCostUnit,
		tracer:                opts.Tracer,
		maxBodyBytes:          opts.MaxBodyBytes,
		metrics:               newMetrics(),
		mux:                   http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.metrics.withHTTPMetrics(s.withTracing(s.withRateLimit(s.mux)))
}

// Close waits for in-flight webhook deliveries.
func (s *Server) Close() {
	s.notifications.Wait()
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("POST /v1/process", s.handleProcess)
	s.mux.HandleFunc("GET /v1/runs", s.handleListRuns)
	s.mux.HandleFunc("GET /v1/runs/{id}", s.handleGetRun)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	format := strings.TrimSpace(query.Get("format"))
	if format == "" {
		format = string(pipeline.CodecPNG)
	}
	codec, err := pipeline.CodecForName(format)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	params, warnings := parseParams(query)
	req, rangeWarnings := domain.NewTransformRequest(params)
	warnings = append(warnings, rangeWarnings...)
	warningText := make([]string, 0, len(warnings))
	for _, warning := range warnings {
		warningText = append(warningText, warning.Error())
		s.logger.Warn("parameter replaced by default",
			zap.String("name", warning.Name),
			zap.String("value", warning.Value),
			zap.String("default", warning.Default),
		)
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
		return
	}

	run := domain.Run{
		ID:          id.New("run"),
		Origin:      domain.RunOriginHTTP,
		Source:      "request-body",
		Destination: "response." + codec.Extension(),
		Codec:       string(codec),
		Request:     req,
		SourceBytes: len(body),
		CreatedAt:   time.Now().UTC(),
	}

	result, err := s.engine.RunCodec(r.Context(), body, codec, req)
	if err != nil {
		run.Status = domain.RunStatusFailed
		run.Error = err.Error()
		run.DurationMS = time.Since(run.CreatedAt).Milliseconds()
		s.finishRun(r.Context(), run, query.Get("webhook_url"), warningText)

		w.Header().Set(HeaderRunID, run.ID)
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, pipeline.ErrDecodeFailure):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, pipeline.ErrUnsupportedFormat):
			status = http.StatusBadRequest
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			status = http.StatusServiceUnavailable
		}
		if status == http.StatusInternalServerError {
			s.logger.Error("process image failed", zap.String("run_id", run.ID), zap.Error(err))
		}
		writeJSON(w, status, map[string]string{"error": err.Error(), "run_id": run.ID})
		return
	}

	run.Status = domain.RunStatusSucceeded
	run.Stages = result.Stages
	run.SourceWidth = result.SourceWidth
	run.SourceHeight = result.SourceHeight
	run.OutputWidth = result.Width
	run.OutputHeight = result.Height
	run.OutputBytes = len(result.Data)
	run.DurationMS = result.Duration.Milliseconds()
	s.finishRun(r.Context(), run, query.Get("webhook_url"), warningText)

	header := w.Header()
	header.Set("Content-Type", codec.ContentType())
	header.Set("Content-Length", strconv.Itoa(len(result.Data)))
	header.Set(HeaderRunID, run.ID)
	header.Set(HeaderStages, strings.Join(result.Stages, ","))
	for _, warning := range warningText {
		header.Add(HeaderWarning, warning)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Data); err != nil {
		s.logger.Debug("write response failed", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func (s *Server) finishRun(ctx context.Context, run domain.Run, webhookURL string, warnings []string) {
	s.metrics.observeRun(run)

	if err := s.runStore.Create(ctx, run); err != nil {
		s.logger.Error("record run failed", zap.String("run_id", run.ID), zap.Error(err))
	}

	webhookURL = strings.TrimSpace(webhookURL)
	if webhookURL == "" || s.notifier == nil {
		return
	}

	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := s.notifier.NotifyRun(notifyCtx, webhookURL, run, warnings); err != nil {
			s.logger.Warn("webhook delivery failed", zap.String("run_id", run.ID), zap.Error(err))
		}
	}()
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.PathValue("id"))
	if !id.Valid(runID) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid run id"})
		return
	}

	run, ok, err := s.runStore.Get(r.Context(), runID)
	if err != nil {
		s.logger.Error("load run failed", zap.String("run_id", runID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load run"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 500"})
			return
		}
		limit = parsed
	}

	runs, err := s.runStore.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("list runs failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list runs"})
		return
	}
	if runs == nil {
		runs = []domain.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// parseParams reads transform parameters from the query string. Values that
// do not parse are reported like out-of-range values and left unset.
func parseParams(query map[string][]string) (domain.Params, []domain.ParameterWarning) {
	numeric := make(map[string]string, 6)
	for _, name := range []string{
		domain.ParamScale, domain.ParamQuality, domain.ParamSaturation,
		domain.ParamSharpen, domain.ParamBrightness, domain.ParamContrast,
	} {
		if values := query[name]; len(values) > 0 {
			numeric[name] = values[0]
		}
	}
	params, warnings := domain.ParseParams(numeric)

	get := func(name string) (string, bool) {
		values, ok := query[name]
		if !ok || len(values) == 0 {
			return "", false
		}
		return strings.TrimSpace(values[0]), true
	}

	boolParam := func(name string) bool {
		raw, ok := get(name)
		if !ok {
			return false
		}
		if raw == "" {
			return true
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			warnings = append(warnings, domain.ParameterWarning{Name: name, Value: raw, Default: "false", Accepted: "true|false"})
			return false
		}
		return v
	}

	params.MirrorHorizontal = boolParam("mirror")
	params.MirrorVertical = boolParam("flip_vertical")

	return params, warnings
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
