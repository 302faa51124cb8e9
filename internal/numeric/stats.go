package numeric

import (
	"math"
	"sort"
)

// Percentile returns the p-th quantile (0..1) of an ascending sample, interpolating
// linearly between the order statistics at rank (n-1)*p.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	k := float64(n-1) * p
	f := math.Floor(k)
	c := math.Ceil(k)
	if f == c {
		return sorted[int(k)]
	}
	lo := sorted[int(f)]
	hi := sorted[int(c)]
	return lo + (hi-lo)*(k-f)
}

// Median returns the median of values; even-sized samples average the two middle values.
// The input slice is not modified.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	s := Sorted(values)
	if n%2 == 1 {
		return s[n/2]
	}
	return 0.5 * (s[n/2-1] + s[n/2])
}

// Sorted returns an ascending copy of values.
func Sorted(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}
