package tf

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Statistics holds the mean and (population) standard deviation of a sample set.
type Statistics struct {
	Mean   float64
	StdDev float64
}

// Variance returns StdDev squared.
func (s Statistics) Variance() float64 { return s.StdDev * s.StdDev }

// ChannelStats computes per-channel statistics over all spectra of b.
// An empty block yields a zero Statistics per channel.
func ChannelStats[T Sample](b *Block[T]) []Statistics {
	out := make([]Statistics, b.NumberOfChannels())
	if b.NumberOfSpectra() == 0 {
		return out
	}
	var scratch []float64
	for c := range out {
		scratch = b.Channel(c).Values(scratch)
		out[c] = statsOf(scratch)
	}
	return out
}

// BlockStats computes statistics over every sample of b.
func BlockStats[T Sample](b *Block[T]) Statistics {
	return statsOf(ToFloat64(nil, b.Data()))
}

// ToFloat64 converts samples into dst, growing dst if needed.
func ToFloat64[T Sample](dst []float64, src []T) []float64 {
	if cap(dst) < len(src) {
		dst = make([]float64, len(src))
	}
	dst = dst[:len(src)]
	for i, v := range src {
		dst[i] = float64(v)
	}
	return dst
}

func statsOf(x []float64) Statistics {
	if len(x) == 0 {
		return Statistics{}
	}
	mean, std := stat.PopMeanStdDev(x, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return Statistics{Mean: mean, StdDev: std}
}
