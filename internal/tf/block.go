// internal/tf/block.go
// Package tf provides the time-frequency containers consumed by the RFI detectors.
//
// A Block is laid out row-major: each row is one spectrum (a time sample across
// all channels), each column one frequency channel.
package tf

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch indicates two containers (or a container and its backing slice) disagree on shape
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrInvalidDimensions indicates spectra and channels must be non-negative
	ErrInvalidDimensions = errors.New("number of spectra and channels must be non-negative")
)

// Sample is the set of element types a Block may hold.
type Sample interface {
	~uint8 | ~uint16 | ~uint32 | ~int8 | ~int16 | ~int32 | ~float32 | ~float64
}

// Block is a Time x Frequency array of samples.
type Block[T Sample] struct {
	nspectra  int
	nchannels int
	data      []T
}

// NewBlock allocates a zeroed block. Negative dimensions are treated as zero.
func NewBlock[T Sample](nspectra, nchannels int) *Block[T] {
	nspectra = max(nspectra, 0)
	nchannels = max(nchannels, 0)
	return &Block[T]{
		nspectra:  nspectra,
		nchannels: nchannels,
		data:      make([]T, nspectra*nchannels),
	}
}

// FromSlice wraps data (spectrum-major) without copying.
func FromSlice[T Sample](nspectra, nchannels int, data []T) (*Block[T], error) {
	if nspectra < 0 || nchannels < 0 {
		return nil, ErrInvalidDimensions
	}
	if len(data) != nspectra*nchannels {
		return nil, fmt.Errorf("%w: %d samples for %dx%d block", ErrDimensionMismatch, len(data), nspectra, nchannels)
	}
	return &Block[T]{nspectra: nspectra, nchannels: nchannels, data: data}, nil
}

// NumberOfSpectra returns the number of time samples (rows)
func (b *Block[T]) NumberOfSpectra() int { return b.nspectra }

// NumberOfChannels returns the number of frequency channels (columns)
func (b *Block[T]) NumberOfChannels() int { return b.nchannels }

// Len returns the total number of samples
func (b *Block[T]) Len() int { return len(b.data) }

// Data exposes the backing storage for linear iteration.
func (b *Block[T]) Data() []T { return b.data }

// At returns the sample at spectrum s, channel c.
func (b *Block[T]) At(s, c int) T { return b.data[s*b.nchannels+c] }

// Set stores v at spectrum s, channel c.
func (b *Block[T]) Set(s, c int, v T) { b.data[s*b.nchannels+c] = v }

// Spectrum returns the samples of spectrum s. The slice aliases the block.
func (b *Block[T]) Spectrum(s int) []T {
	off := s * b.nchannels
	return b.data[off : off+b.nchannels : off+b.nchannels]
}

// Channel returns a strided view over channel c.
func (b *Block[T]) Channel(c int) Channel[T] {
	return Channel[T]{block: b, index: c}
}

// Clone returns a deep copy of the block.
func (b *Block[T]) Clone() *Block[T] {
	data := make([]T, len(b.data))
	copy(data, b.data)
	return &Block[T]{nspectra: b.nspectra, nchannels: b.nchannels, data: data}
}

// Channel is a view of one frequency channel across all spectra of a block.
type Channel[T Sample] struct {
	block *Block[T]
	index int
}

// Index returns the channel number within its block
func (c Channel[T]) Index() int { return c.index }

// Len returns the number of spectra covered by the channel
func (c Channel[T]) Len() int { return c.block.nspectra }

// At returns the sample of spectrum s
func (c Channel[T]) At(s int) T { return c.block.At(s, c.index) }

// Set stores v at spectrum s
func (c Channel[T]) Set(s int, v T) { c.block.Set(s, c.index, v) }

// Values copies the channel into dst as float64, growing dst if needed.
func (c Channel[T]) Values(dst []float64) []float64 {
	n := c.block.nspectra
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]
	for s := 0; s < n; s++ {
		dst[s] = float64(c.block.data[s*c.block.nchannels+c.index])
	}
	return dst
}
