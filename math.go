package aviary

import "math"

/* Small numerical helpers. */

// linspace returns count evenly spaced values from start to stop, inclusive.
func linspace(start, stop float64, count int) []float64 {
	out := make([]float64, count)
	if count == 1 {
		out[0] = start
		return out
	}
	step := (stop - start) / float64(count-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

// norm2 returns the Euclidean norm of a slice.
func norm2(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// clamp bounds a value into [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// trapezoid integrates sampled rates over a (possibly non uniform) grid.
func trapezoid(x, y []float64) float64 {
	sum := 0.0
	for i := 1; i < len(x); i++ {
		sum += 0.5 * (y[i] + y[i-1]) * (x[i] - x[i-1])
	}
	return sum
}
