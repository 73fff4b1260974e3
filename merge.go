package parsort

import (
	"cmp"

	"golang.org/x/exp/constraints"
)

// Merge merges two sorted runs into a new sorted run of len(a)+len(b).
// Ties take from a, so the merge is stable when a precedes b in the input.
func Merge[T constraints.Ordered](a, b []T) []T {
	return MergeFunc(a, b, cmp.Compare[T])
}

// MergeFunc is Merge with an explicit comparator. cmp(x, y) must return a
// negative number when x < y, zero when equal and a positive number when x > y.
// An element of a is taken whenever cmp(a[i], b[j]) <= 0.
func MergeFunc[T any](a, b []T, cmp func(x, y T) int) []T {
	out := make([]T, 0, len(a)+len(b))

	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if cmp(a[i], b[j]) <= 0 {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}

	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// mergePair is the pool function merging the two runs of a pair.
func mergePair[T any](cmp func(x, y T) int) Func[[2][]T, []T] {
	return Pure(func(p [2][]T) []T { return MergeFunc(p[0], p[1], cmp) })
}
