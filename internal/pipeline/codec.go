package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Codec names an output encoding.
type Codec string

const (
	CodecJPEG Codec = "jpeg"
	CodecPNG  Codec = "png"
	CodecBMP  Codec = "bmp"
	CodecGIF  Codec = "gif"
)

// CodecForPath picks the codec from the destination's extension,
// case-insensitively. There is no fallback: an unknown extension is
// ErrUnsupportedFormat.
func CodecForPath(dest string) (Codec, error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(dest)))
	switch ext {
	case ".jpg", ".jpeg":
		return CodecJPEG, nil
	case ".png":
		return CodecPNG, nil
	case ".bmp":
		return CodecBMP, nil
	case ".gif":
		return CodecGIF, nil
	default:
		if ext == "" {
			return "", fmt.Errorf("%w: %q has no extension", ErrUnsupportedFormat, dest)
		}
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// CodecForName resolves a bare format name such as "jpg" or "PNG".
func CodecForName(name string) (Codec, error) {
	name = strings.TrimPrefix(strings.TrimSpace(name), ".")
	if name == "" {
		return "", fmt.Errorf("%w: empty format", ErrUnsupportedFormat)
	}
	return CodecForPath("output." + name)
}

// Lossy reports whether the codec honours a quality setting.
func (c Codec) Lossy() bool {
	return c == CodecJPEG
}

// KeepsAlpha reports whether decoders of the written file see transparency.
// BMP output is 32-bit but uses a header that readers treat as opaque.
func (c Codec) KeepsAlpha() bool {
	return c == CodecPNG || c == CodecGIF
}

func (c Codec) Extension() string {
	if c == CodecJPEG {
		return "jpg"
	}
	return string(c)
}

func (c Codec) ContentType() string {
	switch c {
	case CodecJPEG:
		return "image/jpeg"
	case CodecPNG:
		return "image/png"
	case CodecBMP:
		return "image/bmp"
	case CodecGIF:
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}
