package model

import "math"

// ClampScore bounds v to the [0,100] score range.
func ClampScore(v float64) float64 {
	return Clamp(v, 0, 100)
}

// Clamp bounds v to [lo,hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
