package util

import "math"

// Epsilon guards normalizations against a zero range.
const Epsilon = 1e-10

// Clamp limits v to [lo, hi]. NaN clamps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampInt limits v to [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ToByte scales a [0,1] level to a color channel.
func ToByte(v float64) uint8 {
	return uint8(math.Round(Clamp(v, 0, 1) * 255))
}

// Normalize min-max scales xs into [0,1] in place. A constant series becomes all zeros.
func Normalize(xs []float64) []float64 {
	if len(xs) == 0 {
		return xs
	}
	lo, hi := xs[0], xs[0]
	for _, x := range xs {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	span := math.Max(hi-lo, Epsilon)
	for i, x := range xs {
		xs[i] = Clamp((x-lo)/span, 0, 1)
	}
	return xs
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Lerp interpolates between a and b.
func Lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

// Frac returns the fractional part of x in [0,1).
func Frac(x float64) float64 {
	return x - math.Floor(x)
}
