package helpers

import (
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"
)

// IfElse returns valueIfTrue or valueIfFalse depending on isTrue.
func IfElse[V any](isTrue bool, valueIfTrue, valueIfFalse V) V {
	if isTrue {
		return valueIfTrue
	}
	return valueIfFalse
}

// CopyOf returns a shallow copy of s, or nil if s is empty.
func CopyOf[V any](s []V) []V {
	if len(s) == 0 {
		return nil
	}
	return append([]V(nil), s...)
}

// Sorted returns a sorted copy of s.
func Sorted[V constraints.Ordered](s []V) []V {
	ret := CopyOf(s)
	slices.Sort(ret)
	return ret
}
