// Package utils provides small helpers for parsing and bounding the numeric
// query parameters of paginated endpoints. They carry no domain logic.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault parses s as a base-10 int, ignoring surrounding spaces. Empty
// or malformed input (including overflow) yields def.
//
//	utils.AtoiDefault("2", 1)   // 2
//	utils.AtoiDefault(" 3 ", 1) // 3
//	utils.AtoiDefault("dos", 1) // 1
func AtoiDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampInt bounds n to [lo, hi]. hi < lo means no upper bound.
func ClampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if hi >= lo && n > hi {
		return hi
	}
	return n
}
