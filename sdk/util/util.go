// Copyright 2022, Pulumi Corporation.  All rights reserved.

package util

// Map f over arr.
func MapOver[T any, U any, F func(T) U](arr []T, f F) []U {
	l := make([]U, len(arr))
	for i, t := range arr {
		l[i] = f(t)
	}
	return l
}

// Check if slice contains the element.
func SliceContains[T comparable](slice []T, element T) bool {
	for _, t := range slice {
		if t == element {
			return true
		}
	}
	return false
}

// Check if the two slices share at least one element.
func SliceIntersects[T comparable](a, b []T) bool {
	for _, t := range a {
		if SliceContains(b, t) {
			return true
		}
	}
	return false
}

// UTF16Offset converts an LSP character offset, counted in UTF-16 code units,
// to a byte offset into line. An offset inside a surrogate pair rounds up to
// the end of the rune. ok is false if character lies past the end of line, in
// which case len(line) is returned.
func UTF16Offset(line string, character uint32) (offset int, ok bool) {
	var units uint32
	for i, r := range line {
		if units >= character {
			return i, true
		}
		units++
		if r >= 0x10000 {
			units++
		}
	}
	return len(line), units >= character
}
