// Package utils holds small helpers shared by the HTTP and service layers.
package utils

import "strconv"

// DefaultPageSize is used when a listing request does not name a page size.
const DefaultPageSize = 20

// AtoiDefault converts s with strconv.Atoi, returning def when s is empty or
// not an integer.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampPage bounds a 1-based page number and a page size. A non-positive size
// becomes DefaultPageSize; sizes above max are cut to max.
func ClampPage(page, size, max int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if max > 0 && size > max {
		size = max
	}
	return page, size
}

// Offset is the row offset of a clamped page.
func Offset(page, size int) int { return (page - 1) * size }

// TotalPages is the number of pages needed for total rows.
func TotalPages(total int64, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}
