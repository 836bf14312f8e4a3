package domain

import "time"

const (
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"

	RunOriginCLI  = "cli"
	RunOriginHTTP = "http"
)

// Run is the audit record of one pipeline invocation.
type Run struct {
	ID           string           `json:"id"`
	Origin       string           `json:"origin"`
	Status       string           `json:"status"`
	Source       string           `json:"source"`
	Destination  string           `json:"destination"`
	Codec        string           `json:"codec,omitempty"`
	Request      TransformRequest `json:"request"`
	Stages       []string         `json:"stages"`
	SourceWidth  int              `json:"source_width"`
	SourceHeight int              `json:"source_height"`
	OutputWidth  int              `json:"output_width"`
	OutputHeight int              `json:"output_height"`
	SourceBytes  int              `json:"source_bytes"`
	OutputBytes  int              `json:"output_bytes"`
	DurationMS   int64            `json:"duration_ms"`
	Error        string           `json:"error,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// PixelsProcessed counts output pixels, the unit the server meters on.
func (r Run) PixelsProcessed() int64 {
	return int64(r.OutputWidth) * int64(r.OutputHeight)
}
