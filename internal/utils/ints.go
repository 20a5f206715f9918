// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strconv"

// AtoiDefault converts s to an int, returning def when s is empty or not a
// valid integer. No trimming is applied.
//
//	utils.AtoiDefault("42", 0) // 42
//	utils.AtoiDefault("", 10)  // 10
//	utils.AtoiDefault("x", 5)  // 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// CanonicalPositiveInt parses s as a positive decimal integer written in its
// canonical form: no sign, no leading zeros, no spaces. "4" is accepted;
// "04", "+4", "0" and "4.0" are not.
func CanonicalPositiveInt(s string) (int, bool) {
	n := AtoiDefault(s, 0)
	if n <= 0 || strconv.Itoa(n) != s {
		return 0, false
	}
	return n, true
}
