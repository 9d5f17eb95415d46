// Package utils holds small paging helpers shared by the HTTP handlers and
// the in-memory reminder registry.
package utils

import "strconv"

// DefaultPageSize applies when a caller gives no usable page size.
const DefaultPageSize = 20

// AtoiClamp parses s and bounds the result to [lo, hi]. Empty or malformed
// input yields def, bounded the same way. hi <= 0 leaves the top open.
//
//	utils.AtoiClamp("500", 20, 1, 100) // 100
//	utils.AtoiClamp("x", 20, 1, 100)   // 20
func AtoiClamp(s string, def, lo, hi int) int {
	n := def
	if v, err := strconv.Atoi(s); err == nil {
		n = v
	}
	if n < lo {
		n = lo
	}
	if hi > 0 && n > hi {
		n = hi
	}
	return n
}

// Normalize fixes page to >= 1 and pageSize to DefaultPageSize when it is
// not positive.
func Normalize(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return page, pageSize
}

// Bounds returns the half-open range [start, end) that a 1-based page covers
// over n items. A page past the end yields start == end == n.
func Bounds(n, page, pageSize int) (start, end int) {
	page, pageSize = Normalize(page, pageSize)
	start = (page - 1) * pageSize
	if start >= n {
		return n, n
	}
	return start, min(start+pageSize, n)
}

// Offset is the number of items before a 1-based page.
func Offset(page, pageSize int) int {
	page, pageSize = Normalize(page, pageSize)
	return (page - 1) * pageSize
}
