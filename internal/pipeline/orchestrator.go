package pipeline

import (
	"context"
	"math"

	"github.com/dunamismax/pixelpost/internal/domain"
	"github.com/dunamismax/pixelpost/internal/filter"
	"github.com/dunamismax/pixelpost/internal/raster"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const tracerName = "github.com/dunamismax/pixelpost/internal/pipeline"

// Parameters closer than epsilon to their identity value skip the stage.
const epsilon = 0.01

const (
	StageSharpen          = "sharpen"
	StageSaturation       = "saturation"
	StageBrightness       = "brightness_contrast"
	StageMirrorHorizontal = "mirror_horizontal"
	StageMirrorVertical   = "mirror_vertical"
)

// Stage is one buffer-to-buffer transform. Run never modifies its input.
type Stage struct {
	Name string
	Run  func(src *raster.Buffer) *raster.Buffer
}

// Plan lists the stages req enables, in execution order.
func Plan(req domain.TransformRequest) []Stage {
	stages := make([]Stage, 0, 5)

	if req.Sharpen && math.Abs(req.SharpenStrength) > epsilon {
		strength := req.SharpenStrength
		stages = append(stages, Stage{Name: StageSharpen, Run: func(src *raster.Buffer) *raster.Buffer {
			return filter.Sharpen(src, strength)
		}})
	}
	if math.Abs(req.Saturation-1) > epsilon {
		s := req.Saturation
		stages = append(stages, Stage{Name: StageSaturation, Run: func(src *raster.Buffer) *raster.Buffer {
			return filter.Saturate(src, s)
		}})
	}
	if math.Abs(req.Brightness) > epsilon || math.Abs(req.Contrast) > epsilon {
		b, k := req.Brightness, req.Contrast
		stages = append(stages, Stage{Name: StageBrightness, Run: func(src *raster.Buffer) *raster.Buffer {
			return filter.AdjustBrightnessContrast(src, b, k)
		}})
	}
	if req.MirrorHorizontal {
		stages = append(stages, Stage{Name: StageMirrorHorizontal, Run: filter.FlipHorizontal})
	}
	if req.MirrorVertical {
		stages = append(stages, Stage{Name: StageMirrorVertical, Run: filter.FlipVertical})
	}

	return stages
}

// Apply runs the planned stages over src and returns the final buffer with
// the names of the stages that ran. Apply owns src: each consumed buffer is
// released once its successor exists. When no stage runs, src itself is
// returned. Cancellation is observed between stages; on cancellation the
// current buffer is released and ctx.Err() returned.
func Apply(ctx context.Context, src *raster.Buffer, req domain.TransformRequest) (*raster.Buffer, []string, error) {
	stages := Plan(req)
	applied := make([]string, 0, len(stages))
	tracer := otel.Tracer(tracerName)

	cur := src
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			cur.Release()
			return nil, applied, err
		}

		_, span := tracer.Start(ctx, "pipeline.stage."+stage.Name)
		span.SetAttributes(
			attribute.Int("image.width", cur.Width),
			attribute.Int("image.height", cur.Height),
			attribute.Int("image.channels", cur.Channels),
		)
		next := stage.Run(cur)
		span.End()

		cur.Release()
		cur = next
		applied = append(applied, stage.Name)
	}

	return cur, applied, nil
}
