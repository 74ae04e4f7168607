// Package normalize rescales batches of raw feature values into [0, 1].
package normalize

// Neutral is the value assigned to every element of a batch whose values
// are all identical. No candidate is favoured.
const Neutral = 0.5

// MinMax rescales values to [0, 1] using (x - min) / (max - min). When every
// value is the same each result is Neutral. The input is not modified.
func MinMax(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	lo, hi := Range(values)
	if hi == lo {
		for i := range out {
			out[i] = Neutral
		}
		return out
	}
	span := hi - lo
	for i, v := range values {
		out[i] = Clamp01((v - lo) / span)
	}
	return out
}

// Range returns the minimum and maximum of values. It returns zeros for an
// empty slice.
func Range(values []float64) (lo, hi float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Clamp01 bounds x to [0, 1].
func Clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
