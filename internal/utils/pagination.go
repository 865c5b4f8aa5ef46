// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import (
	"math"
	"strconv"
)

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
//
// Example:
//
//	n := utils.AtoiDefault("42", 0) // returns 42
//	n = utils.AtoiDefault("", 10)   // returns 10
//	n = utils.AtoiDefault("x", 5)   // returns 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Clamp bounds n to [lo, hi]. hi <= 0 means no upper bound.
func Clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if hi > 0 && n > hi {
		return hi
	}
	return n
}

// PageParams parses raw page and limit query values. Missing or non-numeric
// values take the defaults (page 1, defLimit); the results are then clamped
// to 1 <= limit <= maxLimit and 1 <= page <= MaxPage(limit), so the offset
// (page-1)*limit always fits in an int.
func PageParams(rawPage, rawLimit string, defLimit, maxLimit int) (page, limit int) {
	limit = Clamp(AtoiDefault(rawLimit, defLimit), 1, maxLimit)
	page = Clamp(AtoiDefault(rawPage, 1), 1, MaxPage(limit))
	return page, limit
}

// MaxPage is the largest page whose offset (page-1)*size does not overflow.
func MaxPage(size int) int {
	if size <= 1 {
		return math.MaxInt
	}
	return math.MaxInt/size + 1
}

// TotalPages is ceil(total / size), 0 when there is nothing to show.
func TotalPages(total int64, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}
