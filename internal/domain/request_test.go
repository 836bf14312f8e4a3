package domain

import (
	"errors"
	"math"
	"testing"
)

func ptr[T any](v T) *T { return &v }

func TestNewTransformRequestDefaults(t *testing.T) {
	req, warnings := NewTransformRequest(Params{})
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	if req != DefaultTransformRequest() {
		t.Fatalf("expected defaults, got %+v", req)
	}
	if req.Scale != 2.0 || req.Quality != 85 || req.Saturation != 1.0 || req.Sharpen {
		t.Fatalf("unexpected default values %+v", req)
	}
}

func TestNewTransformRequestAcceptsValidValues(t *testing.T) {
	req, warnings := NewTransformRequest(Params{
		Scale:            ptr(1.5),
		Quality:          ptr(100),
		Saturation:       ptr(0.0),
		Sharpen:          ptr(0.8),
		Brightness:       ptr(-1.0),
		Contrast:         ptr(0.25),
		MirrorHorizontal: true,
	})
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	if req.Scale != 1.5 || req.Quality != 100 || req.Saturation != 0 {
		t.Fatalf("unexpected request %+v", req)
	}
	if !req.Sharpen || req.SharpenStrength != 0.8 {
		t.Fatalf("expected sharpen enabled at 0.8, got %+v", req)
	}
	if req.Brightness != -1 || req.Contrast != 0.25 || !req.MirrorHorizontal || req.MirrorVertical {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestNewTransformRequestFallsBackWithWarnings(t *testing.T) {
	req, warnings := NewTransformRequest(Params{
		Scale:      ptr(10.0),
		Quality:    ptr(0),
		Saturation: ptr(math.NaN()),
		Sharpen:    ptr(-2.0),
		Brightness: ptr(1.5),
		Contrast:   ptr(math.Inf(-1)),
	})
	if req != DefaultTransformRequest() {
		t.Fatalf("expected every value to fall back, got %+v", req)
	}
	if len(warnings) != 6 {
		t.Fatalf("expected 6 warnings, got %d: %v", len(warnings), warnings)
	}

	names := map[string]bool{}
	for _, w := range warnings {
		if !errors.Is(w, ErrInvalidParameter) {
			t.Fatalf("warning %v does not wrap ErrInvalidParameter", w)
		}
		names[w.Name] = true
	}
	for _, name := range []string{"scale", "quality", "saturation", "sharpen", "brightness", "contrast"} {
		if !names[name] {
			t.Fatalf("missing warning for %s", name)
		}
	}
}

func TestScaleBoundsAreExclusive(t *testing.T) {
	for _, v := range []float64{0, -1, 10, 10.5} {
		req, warnings := NewTransformRequest(Params{Scale: ptr(v)})
		if len(warnings) != 1 || req.Scale != DefaultScale {
			t.Fatalf("scale=%v: expected fallback with one warning, got %v %v", v, req.Scale, warnings)
		}
	}
	req, warnings := NewTransformRequest(Params{Scale: ptr(9.99)})
	if len(warnings) != 0 || req.Scale != 9.99 {
		t.Fatalf("expected 9.99 to be accepted, got %v %v", req.Scale, warnings)
	}
}

func TestParseParams(t *testing.T) {
	p, warnings := ParseParams(map[string]string{
		ParamScale:      " 1.5 ",
		ParamQuality:    "70",
		ParamSaturation: "",
		ParamContrast:   "-0.5",
	})
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	if p.Scale == nil || *p.Scale != 1.5 || p.Quality == nil || *p.Quality != 70 {
		t.Fatalf("unexpected params %+v", p)
	}
	if p.Saturation != nil || p.Sharpen != nil || p.Brightness != nil {
		t.Fatalf("expected empty and missing values to stay unset, got %+v", p)
	}
	if p.Contrast == nil || *p.Contrast != -0.5 {
		t.Fatalf("unexpected contrast %v", p.Contrast)
	}
}

func TestParseParamsUnparseableFallsBack(t *testing.T) {
	p, warnings := ParseParams(map[string]string{
		ParamScale:      "abc",
		ParamQuality:    "85.5",
		ParamSaturation: "x",
		ParamSharpen:    "lots",
	})
	if len(warnings) != 4 {
		t.Fatalf("expected 4 warnings, got %d: %v", len(warnings), warnings)
	}
	for _, w := range warnings {
		if !errors.Is(w, ErrInvalidParameter) {
			t.Fatalf("warning %v does not wrap ErrInvalidParameter", w)
		}
	}
	if warnings[0].Name != ParamScale || warnings[0].Value != "abc" || warnings[0].Default != "2" {
		t.Fatalf("unexpected scale warning %+v", warnings[0])
	}
	if warnings[1].Name != ParamQuality || warnings[1].Default != "85" {
		t.Fatalf("unexpected quality warning %+v", warnings[1])
	}

	req, more := NewTransformRequest(p)
	if len(more) != 0 || req != DefaultTransformRequest() {
		t.Fatalf("expected defaults after unparseable input, got %+v %v", req, more)
	}
}
