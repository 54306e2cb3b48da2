package history

import "golang.org/x/exp/constraints"

type Numeric interface {
	constraints.Integer | constraints.Float
}

// Mean returns the arithmetic mean of vals, or 0 for an empty slice.
func Mean[T Numeric](vals []T) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += float64(v)
	}
	return sum / float64(len(vals))
}

// MeanDelta returns the mean of successive differences (newer minus older)
// across vals, oldest first. Fewer than two values yield 0.
func MeanDelta[T Numeric](vals []T) float64 {
	if len(vals) < 2 {
		return 0
	}
	return SumDelta(vals) / float64(len(vals)-1)
}

// SumDelta returns the sum of successive differences across vals.
func SumDelta[T Numeric](vals []T) float64 {
	var sum float64
	for i := 1; i < len(vals); i++ {
		sum += float64(vals[i]) - float64(vals[i-1])
	}
	return sum
}
