package grouping

import (
	"slices"
	"strings"
	"time"
)

// SortByTimeDesc returns a copy of records ordered newest first. Ties keep
// their input order.
func SortByTimeDesc[T any](records []T, at func(T) time.Time) []T {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b T) int {
		return at(b).Compare(at(a))
	})
	return out
}

// SortByTimeAsc returns a copy of records ordered oldest first.
func SortByTimeAsc[T any](records []T, at func(T) time.Time) []T {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b T) int {
		return at(a).Compare(at(b))
	})
	return out
}

// NewestKeyFirst orders ISO date/month keys descending with sentinels last.
func NewestKeyFirst(a, b string) int {
	sa, sb := IsSentinel(a), IsSentinel(b)
	switch {
	case sa && !sb:
		return 1
	case sb && !sa:
		return -1
	}
	return strings.Compare(b, a)
}

// Alphabetical orders keys ascending with sentinels last.
func Alphabetical(a, b string) int {
	sa, sb := IsSentinel(a), IsSentinel(b)
	switch {
	case sa && !sb:
		return 1
	case sb && !sa:
		return -1
	}
	return strings.Compare(a, b)
}

func sortNodes[T any](nodes []*Node[T], cmp func(a, b string) int) {
	slices.SortStableFunc(nodes, func(a, b *Node[T]) int {
		return cmp(a.Key, b.Key)
	})
}
