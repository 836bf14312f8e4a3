package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/dunamismax/pixelpost/internal/domain"
	"github.com/dunamismax/pixelpost/internal/filter"
	"github.com/dunamismax/pixelpost/internal/raster"
)

func stageNames(stages []Stage) []string {
	names := make([]string, 0, len(stages))
	for _, s := range stages {
		names = append(names, s.Name)
	}
	return names
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPlanFixedOrder(t *testing.T) {
	req := domain.TransformRequest{
		Sharpen:          true,
		SharpenStrength:  0.5,
		Saturation:       0.2,
		Brightness:       0.3,
		MirrorHorizontal: true,
		MirrorVertical:   true,
		Scale:            1,
		Quality:          85,
	}
	got := stageNames(Plan(req))
	want := []string{StageSharpen, StageSaturation, StageBrightness, StageMirrorHorizontal, StageMirrorVertical}
	if !equalNames(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestPlanEpsilonThresholds(t *testing.T) {
	cases := []struct {
		name string
		req  domain.TransformRequest
		want []string
	}{
		{"defaults", domain.DefaultTransformRequest(), []string{}},
		{"sharpen flag without strength", domain.TransformRequest{Sharpen: true, SharpenStrength: 0, Saturation: 1}, []string{}},
		{"sharpen below epsilon", domain.TransformRequest{Sharpen: true, SharpenStrength: 0.01, Saturation: 1}, []string{}},
		{"sharpen strength without flag", domain.TransformRequest{SharpenStrength: 2, Saturation: 1}, []string{}},
		{"saturation within epsilon", domain.TransformRequest{Saturation: 1.005}, []string{}},
		{"saturation beyond epsilon", domain.TransformRequest{Saturation: 1.02}, []string{StageSaturation}},
		{"contrast only", domain.TransformRequest{Saturation: 1, Contrast: -0.02}, []string{StageBrightness}},
		{"brightness within epsilon", domain.TransformRequest{Saturation: 1, Brightness: 0.009}, []string{}},
		{"vertical only", domain.TransformRequest{Saturation: 1, MirrorVertical: true}, []string{StageMirrorVertical}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := stageNames(Plan(tc.req))
			if !equalNames(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestApplyWithoutStagesReturnsSource(t *testing.T) {
	src, err := raster.NewBuffer(4, 4, raster.ChannelsBGR)
	if err != nil {
		t.Fatalf("new buffer: %v", err)
	}

	out, applied, err := Apply(context.Background(), src, domain.DefaultTransformRequest())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out != src {
		t.Fatal("expected the source buffer back when nothing runs")
	}
	if len(applied) != 0 {
		t.Fatalf("expected no stages, got %v", applied)
	}
}

func TestApplyMatchesDirectFilters(t *testing.T) {
	src := gradientBuffer(t, 23, 17)
	req := domain.TransformRequest{
		Sharpen:          true,
		SharpenStrength:  0.7,
		Saturation:       1.6,
		Brightness:       -0.1,
		Contrast:         0.3,
		MirrorHorizontal: true,
		Scale:            1,
		Quality:          85,
	}

	want := filter.FlipHorizontal(
		filter.AdjustBrightnessContrast(
			filter.Saturate(filter.Sharpen(src, 0.7), 1.6), -0.1, 0.3))

	got, applied, err := Apply(context.Background(), src.Clone(), req)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(applied) != 4 {
		t.Fatalf("expected 4 stages, got %v", applied)
	}
	if !got.Equal(want) {
		t.Fatal("pipeline output differs from composing the filters directly")
	}
}

func TestApplyStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, applied, err := Apply(ctx, gradientBuffer(t, 8, 8), domain.TransformRequest{Saturation: 1, MirrorVertical: true})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if out != nil || len(applied) != 0 {
		t.Fatalf("expected no output, got %v %v", out, applied)
	}
}

func gradientBuffer(t testing.TB, w, h int) *raster.Buffer {
	t.Helper()

	buf, err := raster.NewBuffer(w, h, raster.ChannelsBGRA)
	if err != nil {
		t.Fatalf("new buffer: %v", err)
	}
	for y := 0; y < h; y++ {
		row := buf.Row(y)
		for x := 0; x < w; x++ {
			i := x * buf.Channels
			row[i+0] = uint8((x * 255) / w)
			row[i+1] = uint8((y * 255) / h)
			row[i+2] = uint8(((x + y) * 97) % 256)
			row[i+3] = uint8(200 + x%50)
		}
	}
	return buf
}
