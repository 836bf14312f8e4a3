package filter

import (
	"errors"
	"fmt"
)

var ErrInvalidKernel = errors.New("filter: kernel must be square with odd size")

// Kernel is an N×N matrix of weights stored row-major. N is odd and the
// center cell anchors the accumulation.
type Kernel struct {
	Size    int
	Weights []float64
}

// NewKernel validates size and weight count.
func NewKernel(size int, weights []float64) (Kernel, error) {
	if size < 1 || size%2 == 0 {
		return Kernel{}, fmt.Errorf("%w: size=%d", ErrInvalidKernel, size)
	}
	if len(weights) != size*size {
		return Kernel{}, fmt.Errorf("%w: want %d weights, got %d", ErrInvalidKernel, size*size, len(weights))
	}

	w := make([]float64, len(weights))
	copy(w, weights)
	return Kernel{Size: size, Weights: w}, nil
}

// Center returns the anchor index along either axis.
func (k Kernel) Center() int {
	return k.Size / 2
}

// At returns the weight at column kx, row ky.
func (k Kernel) At(kx, ky int) float64 {
	return k.Weights[ky*k.Size+kx]
}

// Scale returns a copy with every weight multiplied by s.
func (k Kernel) Scale(s float64) Kernel {
	w := make([]float64, len(k.Weights))
	for i, v := range k.Weights {
		w[i] = v * s
	}
	return Kernel{Size: k.Size, Weights: w}
}

// Sum returns the total of all weights.
func (k Kernel) Sum() float64 {
	var sum float64
	for _, v := range k.Weights {
		sum += v
	}
	return sum
}

// sharpenBase is the unsharp pattern: 9 in the middle, -1 around it.
var sharpenBase = Kernel{
	Size: 3,
	Weights: []float64{
		-1, -1, -1,
		-1, 9, -1,
		-1, -1, -1,
	},
}

// SharpenKernel scales the 3×3 sharpen pattern by strength. Strength 1 is the
// plain pattern; strength 0 yields an all-zero kernel, so callers skip the
// stage instead of convolving with it.
func SharpenKernel(strength float64) Kernel {
	return sharpenBase.Scale(strength)
}

// IdentityKernel passes every pixel through unchanged.
func IdentityKernel(size int) (Kernel, error) {
	if size < 1 || size%2 == 0 {
		return Kernel{}, fmt.Errorf("%w: size=%d", ErrInvalidKernel, size)
	}
	w := make([]float64, size*size)
	c := size / 2
	w[c*size+c] = 1
	return Kernel{Size: size, Weights: w}, nil
}
