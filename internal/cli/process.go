package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dunamismax/pixelpost/internal/domain"
	"github.com/dunamismax/pixelpost/internal/id"
	"github.com/dunamismax/pixelpost/internal/pipeline"
	"github.com/dunamismax/pixelpost/internal/storage"
	"github.com/dunamismax/pixelpost/internal/store"
	"github.com/dunamismax/pixelpost/internal/webhook"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Numeric flags are kept as text so a malformed value falls back to its
// default with a warning instead of aborting the run.
type processOptions struct {
	scale        string
	quality      string
	saturation   string
	sharpen      string
	brightness   string
	contrast     string
	mirror       bool
	flipVertical bool
	overwrite    bool
	notifyURL    string
}

func (o *processOptions) bindFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.scale, domain.ParamScale, "2.0", "resize factor, exclusive range (0, 10)")
	f.StringVar(&o.quality, domain.ParamQuality, "85", "JPEG quality 1-100, ignored by lossless formats")
	f.StringVar(&o.saturation, domain.ParamSaturation, "1.0", "saturation factor 0-10, 1 leaves colors unchanged")
	f.StringVar(&o.sharpen, domain.ParamSharpen, "0", "sharpen strength 0-10, 0 disables sharpening")
	f.StringVar(&o.brightness, domain.ParamBrightness, "0", "brightness offset -1 to 1")
	f.StringVar(&o.contrast, domain.ParamContrast, "0", "contrast offset -1 to 1")
	f.BoolVar(&o.mirror, "mirror", false, "mirror horizontally")
	f.BoolVar(&o.flipVertical, "flip-vertical", false, "flip vertically")
	f.BoolVar(&o.overwrite, "overwrite", false, "replace an existing output instead of picking a numbered name")
	f.StringVar(&o.notifyURL, "notify-url", "", "POST a signed run.completed or run.failed event to this URL")
}

// params forwards only flags the user set, so untouched flags keep the
// request defaults.
func (o *processOptions) params(cmd *cobra.Command) (domain.Params, []domain.ParameterWarning) {
	f := cmd.Flags()
	raw := make(map[string]string, 6)
	for name, value := range map[string]string{
		domain.ParamScale:      o.scale,
		domain.ParamQuality:    o.quality,
		domain.ParamSaturation: o.saturation,
		domain.ParamSharpen:    o.sharpen,
		domain.ParamBrightness: o.brightness,
		domain.ParamContrast:   o.contrast,
	} {
		if f.Changed(name) {
			raw[name] = value
		}
	}

	p, warnings := domain.ParseParams(raw)
	p.MirrorHorizontal = o.mirror
	p.MirrorVertical = o.flipVertical
	return p, warnings
}

func runProcess(cmd *cobra.Command, globals *globalOptions, opts *processOptions, input, output string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer rt.close(context.Background())
	logger := rt.logger.Named("cli")

	src, err := pipeline.ParseLocation(input)
	if err != nil {
		return err
	}
	dst, err := pipeline.ParseLocation(output)
	if err != nil {
		return err
	}
	if src.Scheme == pipeline.SchemeFile {
		if _, err := os.Stat(src.Path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("input file not found: %s", src.Path)
			}
			return fmt.Errorf("check input file: %w", err)
		}
	}

	params, warnings := opts.params(cmd)
	req, rangeWarnings := domain.NewTransformRequest(params)
	warnings = append(warnings, rangeWarnings...)
	warningText := make([]string, 0, len(warnings))
	for _, w := range warnings {
		logger.Warn("parameter replaced by default",
			zap.String("name", w.Name),
			zap.String("value", w.Value),
			zap.String("default", w.Default),
			zap.String("accepted", w.Accepted),
		)
		warningText = append(warningText, w.Error())
	}

	overwrite := opts.overwrite || rt.cfg.Pipeline.Overwrite
	processor, err := pipeline.NewLocalProcessor(rt.logger, overwrite)
	if err != nil {
		return err
	}
	defer pipeline.Shutdown()
	logger.Debug("processor ready", zap.String("backend", processor.Engine().BackendName()))
	if src.Scheme == pipeline.SchemeS3 || dst.Scheme == pipeline.SchemeS3 {
		client, err := storage.NewClient(storage.Config{
			Endpoint: rt.cfg.Storage.Endpoint,
			Access:   rt.cfg.Storage.AccessKey,
			Secret:   rt.cfg.Storage.SecretKey,
			Bucket:   rt.cfg.Storage.Bucket,
			UseSSL:   rt.cfg.Storage.UseSSL,
			Region:   rt.cfg.Storage.Region,
		})
		if err != nil {
			return err
		}
		processor.WithObjectStore(pipeline.ObjectStoreFetcher{Storage: client}, pipeline.ObjectStoreEmitter{
			Storage:   client,
			Overwrite: overwrite,
		})
	}

	run := domain.Run{
		ID:          id.New("run"),
		Origin:      domain.RunOriginCLI,
		Source:      src.String(),
		Destination: dst.String(),
		Request:     req,
		CreatedAt:   time.Now().UTC(),
	}

	result, procErr := processor.Process(ctx, pipeline.Job{
		ID:          run.ID,
		Source:      input,
		Destination: output,
		Request:     req,
	})
	run.DurationMS = time.Since(run.CreatedAt).Milliseconds()
	if procErr != nil {
		run.Status = domain.RunStatusFailed
		run.Error = procErr.Error()
	} else {
		run.Status = domain.RunStatusSucceeded
		run.Destination = result.Output.Location
		run.Codec = string(result.Output.Codec)
		run.Stages = result.Stages
		run.SourceWidth = result.SourceWidth
		run.SourceHeight = result.SourceHeight
		run.SourceBytes = result.SourceBytes
		run.OutputWidth = result.Output.Width
		run.OutputHeight = result.Output.Height
		run.OutputBytes = result.Output.Bytes
	}

	recordRun(ctx, rt, logger, run)
	notifyRun(ctx, rt, logger, opts.notifyURL, run, warningText)

	if procErr != nil {
		return procErr
	}

	stages := "none"
	if len(result.Stages) > 0 {
		stages = strings.Join(result.Stages, ", ")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%dx%d %s, stages: %s)\n",
		result.Output.Location, result.Output.Width, result.Output.Height, result.Output.Codec, stages)
	return nil
}

// recordRun persists CLI runs only when a database is configured.
func recordRun(ctx context.Context, rt *session, logger *zap.Logger, run domain.Run) {
	if strings.TrimSpace(rt.cfg.Database.DSN) == "" {
		return
	}
	runs, err := store.NewPostgresRunStore(ctx, rt.cfg.Database.DSN)
	if err != nil {
		logger.Warn("run store unavailable", zap.Error(err))
		return
	}
	defer runs.Close()
	if err := runs.Create(ctx, run); err != nil {
		logger.Warn("record run failed", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func notifyRun(ctx context.Context, rt *session, logger *zap.Logger, endpoint string, run domain.Run, warnings []string) {
	if strings.TrimSpace(endpoint) == "" {
		return
	}
	client := webhook.NewClient(webhook.Config{
		SigningSecret: rt.cfg.Webhook.Secret,
		Timeout:       rt.cfg.Webhook.Timeout,
		MaxAttempts:   rt.cfg.Webhook.MaxAttempts,
	})
	if err := client.NotifyRun(ctx, endpoint, run, warnings); err != nil {
		logger.Warn("webhook delivery failed", zap.String("run_id", run.ID), zap.Error(err))
	}
}
