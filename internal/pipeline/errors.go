package pipeline

import "errors"

var (
	ErrUnsupportedFormat   = errors.New("unsupported output format")
	ErrDecodeFailure       = errors.New("decode failure")
	ErrEncodeFailure       = errors.New("encode failure")
	ErrUnsupportedLocation = errors.New("unsupported location")
)
