// Package raster holds the addressable pixel buffer shared by every pipeline stage.
//
// Pixels are stored as interleaved bytes in blue, green, red order with an
// optional trailing alpha byte. Alpha is straight (not premultiplied).
package raster

import (
	"errors"
	"fmt"
)

const (
	// ChannelsBGR is an opaque buffer: blue, green, red.
	ChannelsBGR = 3
	// ChannelsBGRA carries a straight alpha byte at channel index 3.
	ChannelsBGRA = 4

	// AlphaChannel is the index of alpha within a 4-channel pixel.
	AlphaChannel = 3
)

var (
	ErrInvalidDimensions = errors.New("raster: invalid dimensions")
	ErrInvalidChannels   = errors.New("raster: channel count must be 3 or 4")
	ErrInvalidStride     = errors.New("raster: stride too small for width")
	ErrDataTooSmall      = errors.New("raster: data buffer too small")
)

// Buffer is a rectangular grid of pixels with a fixed channel layout.
//
// Pixel (x, y) starts at Pix[y*Stride+x*Channels]. A Buffer is owned by one
// stage at a time; Release hands its storage back once nobody reads it.
type Buffer struct {
	Width    int
	Height   int
	Channels int
	Stride   int
	Pix      []byte

	pooled bool
}

// NewBuffer allocates a zeroed buffer with a tight stride.
func NewBuffer(width, height, channels int) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if channels != ChannelsBGR && channels != ChannelsBGRA {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChannels, channels)
	}

	stride := width * channels
	return &Buffer{
		Width:    width,
		Height:   height,
		Channels: channels,
		Stride:   stride,
		Pix:      defaultPool.get(stride * height),
		pooled:   true,
	}, nil
}

// FromRaw wraps existing bytes without copying. The caller keeps pix alive for
// the lifetime of the buffer.
func FromRaw(pix []byte, width, height, channels, stride int) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if channels != ChannelsBGR && channels != ChannelsBGRA {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChannels, channels)
	}
	if stride < width*channels {
		return nil, fmt.Errorf("%w: stride=%d width=%d channels=%d", ErrInvalidStride, stride, width, channels)
	}
	if len(pix) < stride*(height-1)+width*channels {
		return nil, fmt.Errorf("%w: have %d bytes", ErrDataTooSmall, len(pix))
	}

	return &Buffer{
		Width:    width,
		Height:   height,
		Channels: channels,
		Stride:   stride,
		Pix:      pix,
	}, nil
}

// NewLike allocates an empty buffer with the same shape as b.
func (b *Buffer) NewLike() *Buffer {
	return b.newSized(b.Width, b.Height)
}

func (b *Buffer) newSized(width, height int) *Buffer {
	stride := width * b.Channels
	return &Buffer{
		Width:    width,
		Height:   height,
		Channels: b.Channels,
		Stride:   stride,
		Pix:      defaultPool.get(stride * height),
		pooled:   true,
	}
}

// HasAlpha reports whether the buffer carries an alpha channel.
func (b *Buffer) HasAlpha() bool {
	return b.Channels == ChannelsBGRA
}

// Offset returns the byte offset of pixel (x, y). The coordinate must be in range.
func (b *Buffer) Offset(x, y int) int {
	return y*b.Stride + x*b.Channels
}

// Clamp maps a coordinate to the nearest valid one, each axis independently,
// so border pixels are replicated instead of read out of bounds.
func (b *Buffer) Clamp(x, y int) (int, int) {
	return clampInt(x, 0, b.Width-1), clampInt(y, 0, b.Height-1)
}

// ClampedOffset is Offset after Clamp.
func (b *Buffer) ClampedOffset(x, y int) int {
	cx, cy := b.Clamp(x, y)
	return b.Offset(cx, cy)
}

// Row returns the pixel bytes of row y, excluding stride padding.
func (b *Buffer) Row(y int) []byte {
	start := y * b.Stride
	return b.Pix[start : start+b.Width*b.Channels]
}

// Clone returns a deep copy with a tight stride.
func (b *Buffer) Clone() *Buffer {
	out := b.NewLike()
	for y := 0; y < b.Height; y++ {
		copy(out.Row(y), b.Row(y))
	}
	return out
}

// Equal reports whether both buffers have the same shape and pixel bytes.
// Stride padding is ignored.
func (b *Buffer) Equal(other *Buffer) bool {
	if b == nil || other == nil {
		return b == other
	}
	if b.Width != other.Width || b.Height != other.Height || b.Channels != other.Channels {
		return false
	}
	for y := 0; y < b.Height; y++ {
		if string(b.Row(y)) != string(other.Row(y)) {
			return false
		}
	}
	return true
}

// Release returns the pixel storage to the pool. The buffer must not be used
// afterwards. Releasing twice is a no-op, and storage wrapped by FromRaw is
// never pooled.
func (b *Buffer) Release() {
	if b == nil || b.Pix == nil {
		return
	}
	if b.pooled {
		defaultPool.put(b.Pix)
	}
	b.Pix = nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
