package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Defaults substituted when a caller omits or mangles a parameter.
const (
	DefaultScale      = 2.0
	DefaultQuality    = 85
	DefaultSaturation = 1.0
	DefaultSharpen    = 0.0

	MaxScale      = 10.0
	MaxSaturation = 10.0
	MaxSharpen    = 10.0
)

var ErrInvalidParameter = errors.New("invalid parameter")

// TransformRequest describes one pipeline run. It is built once at the
// boundary by NewTransformRequest and not modified afterwards.
type TransformRequest struct {
	Sharpen          bool    `json:"sharpen"`
	SharpenStrength  float64 `json:"sharpen_strength"`
	Saturation       float64 `json:"saturation"`
	Brightness       float64 `json:"brightness"`
	Contrast         float64 `json:"contrast"`
	MirrorHorizontal bool    `json:"mirror_horizontal"`
	MirrorVertical   bool    `json:"mirror_vertical"`
	Scale            float64 `json:"scale"`
	Quality          int     `json:"quality"`
}

// Params is the raw, unvalidated input collected by a boundary (flags, query
// string). Nil pointers mean "not supplied".
type Params struct {
	Scale            *float64
	Quality          *int
	Saturation       *float64
	Sharpen          *float64
	Brightness       *float64
	Contrast         *float64
	MirrorHorizontal bool
	MirrorVertical   bool
}

// ParameterWarning reports a value that was replaced by its default.
type ParameterWarning struct {
	Name     string
	Value    string
	Default  string
	Accepted string
}

func (w ParameterWarning) Error() string {
	return fmt.Sprintf("%s: %s=%s outside %s, using default %s", ErrInvalidParameter, w.Name, w.Value, w.Accepted, w.Default)
}

func (w ParameterWarning) Unwrap() error {
	return ErrInvalidParameter
}

// DefaultTransformRequest is the request produced by empty Params.
func DefaultTransformRequest() TransformRequest {
	return TransformRequest{
		SharpenStrength: DefaultSharpen,
		Saturation:      DefaultSaturation,
		Scale:           DefaultScale,
		Quality:         DefaultQuality,
	}
}

// NewTransformRequest validates p and substitutes defaults for anything out of
// range. It never fails: each substitution is reported as a warning.
func NewTransformRequest(p Params) (TransformRequest, []ParameterWarning) {
	req := DefaultTransformRequest()
	var warnings []ParameterWarning

	if p.Scale != nil {
		v := *p.Scale
		if isFinite(v) && v > 0 && v < MaxScale {
			req.Scale = v
		} else {
			warnings = append(warnings, floatWarning("scale", v, DefaultScale, "(0, 10)"))
		}
	}

	if p.Quality != nil {
		v := *p.Quality
		if v >= 1 && v <= 100 {
			req.Quality = v
		} else {
			warnings = append(warnings, ParameterWarning{
				Name:     "quality",
				Value:    fmt.Sprintf("%d", v),
				Default:  fmt.Sprintf("%d", DefaultQuality),
				Accepted: "[1, 100]",
			})
		}
	}

	if p.Saturation != nil {
		v := *p.Saturation
		if isFinite(v) && v >= 0 && v <= MaxSaturation {
			req.Saturation = v
		} else {
			warnings = append(warnings, floatWarning("saturation", v, DefaultSaturation, "[0, 10]"))
		}
	}

	if p.Sharpen != nil {
		v := *p.Sharpen
		if isFinite(v) && v >= 0 && v <= MaxSharpen {
			req.SharpenStrength = v
		} else {
			warnings = append(warnings, floatWarning("sharpen", v, DefaultSharpen, "[0, 10]"))
		}
	}
	req.Sharpen = req.SharpenStrength > 0

	if p.Brightness != nil {
		v := *p.Brightness
		if isFinite(v) && v >= -1 && v <= 1 {
			req.Brightness = v
		} else {
			warnings = append(warnings, floatWarning("brightness", v, 0, "[-1, 1]"))
		}
	}

	if p.Contrast != nil {
		v := *p.Contrast
		if isFinite(v) && v >= -1 && v <= 1 {
			req.Contrast = v
		} else {
			warnings = append(warnings, floatWarning("contrast", v, 0, "[-1, 1]"))
		}
	}

	req.MirrorHorizontal = p.MirrorHorizontal
	req.MirrorVertical = p.MirrorVertical

	return req, warnings
}

// Names of the numeric parameters accepted by ParseParams.
const (
	ParamScale      = "scale"
	ParamQuality    = "quality"
	ParamSaturation = "saturation"
	ParamSharpen    = "sharpen"
	ParamBrightness = "brightness"
	ParamContrast   = "contrast"
)

// ParseParams converts numeric parameters given as text, keyed by the Param*
// names. Empty values count as not supplied. A value that does not parse is
// reported as a warning and left unset, so the default applies.
func ParseParams(raw map[string]string) (Params, []ParameterWarning) {
	var (
		p        Params
		warnings []ParameterWarning
	)
	float := func(name string, def float64, accepted string) *float64 {
		text := strings.TrimSpace(raw[name])
		if text == "" {
			return nil
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			warnings = append(warnings, ParameterWarning{
				Name:     name,
				Value:    text,
				Default:  fmt.Sprintf("%g", def),
				Accepted: accepted,
			})
			return nil
		}
		return &v
	}

	p.Scale = float(ParamScale, DefaultScale, "(0, 10)")
	if text := strings.TrimSpace(raw[ParamQuality]); text != "" {
		v, err := strconv.Atoi(text)
		if err != nil {
			warnings = append(warnings, ParameterWarning{
				Name:     ParamQuality,
				Value:    text,
				Default:  strconv.Itoa(DefaultQuality),
				Accepted: "[1, 100]",
			})
		} else {
			p.Quality = &v
		}
	}
	p.Saturation = float(ParamSaturation, DefaultSaturation, "[0, 10]")
	p.Sharpen = float(ParamSharpen, DefaultSharpen, "[0, 10]")
	p.Brightness = float(ParamBrightness, 0, "[-1, 1]")
	p.Contrast = float(ParamContrast, 0, "[-1, 1]")

	return p, warnings
}

func floatWarning(name string, v, def float64, accepted string) ParameterWarning {
	return ParameterWarning{
		Name:     name,
		Value:    fmt.Sprintf("%g", v),
		Default:  fmt.Sprintf("%g", def),
		Accepted: accepted,
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
