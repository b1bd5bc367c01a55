package tf

import "math"

// Convert turns a float64 into a sample of type T. Integer types are
// rounded toward zero and clamped to their range; NaN becomes zero.
func Convert[T Sample](v float64) T {
	var zero T
	if math.IsNaN(v) {
		return zero
	}
	switch any(zero).(type) {
	case uint8:
		return T(clamp(v, 0, math.MaxUint8))
	case uint16:
		return T(clamp(v, 0, math.MaxUint16))
	case uint32:
		return T(clamp(v, 0, math.MaxUint32))
	case int8:
		return T(clamp(v, math.MinInt8, math.MaxInt8))
	case int16:
		return T(clamp(v, math.MinInt16, math.MaxInt16))
	case int32:
		return T(clamp(v, math.MinInt32, math.MaxInt32))
	}
	return T(v)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
