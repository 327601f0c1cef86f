package math

import "golang.org/x/exp/constraints"

// Clamp bounds v to [lo, hi]. lo wins when the range is inverted.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	return max(min(v, hi), lo)
}
