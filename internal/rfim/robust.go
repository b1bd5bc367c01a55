package rfim

import (
	"math"
	"slices"
)

// IQRToSigma converts an inter-quartile range into a Gaussian-equivalent standard deviation.
const IQRToSigma = 1.349

// RobustStats is a median and IQR-derived standard deviation pair.
type RobustStats struct {
	Median float64
	StdDev float64
}

// ComputeRobustStats returns the median and (Q3-Q1)/1.349 of x.
// Quantiles interpolate linearly between the bracketing order statistics.
// An empty input yields NaN for both fields; callers must guard n == 0.
// x is not modified.
func ComputeRobustStats(x []float64) RobustStats {
	switch len(x) {
	case 0:
		return RobustStats{Median: math.NaN(), StdDev: math.NaN()}
	case 1:
		return RobustStats{Median: x[0]}
	}
	sorted := slices.Clone(x)
	slices.Sort(sorted)
	q1 := quantileSorted(sorted, 0.25)
	q2 := quantileSorted(sorted, 0.50)
	q3 := quantileSorted(sorted, 0.75)
	return RobustStats{Median: q2, StdDev: (q3 - q1) / IQRToSigma}
}

// Median returns the interpolated median of x, or NaN when x is empty.
func Median(x []float64) float64 {
	return ComputeRobustStats(x).Median
}

// quantileSorted interpolates quantile q of ascending data.
// The lerp is evaluated from the nearer end so results match the common
// numerical libraries bit for bit.
func quantileSorted(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := min(lo+1, len(sorted)-1)
	t := pos - float64(lo)
	a, b := sorted[lo], sorted[hi]
	diff := b - a
	if t >= 0.5 {
		return b - diff*(1-t)
	}
	return a + diff*t
}

// LaggedDiff writes x[i] - x[clamp(i-lag, 0, n-1)] into dst, growing dst if
// needed. Out-of-range partners replicate the edge sample.
func LaggedDiff(dst, x []float64, lag int) []float64 {
	n := len(x)
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]
	for i := 0; i < n; i++ {
		dst[i] = x[i] - x[clampIndex(i-lag, n)]
	}
	return dst
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
