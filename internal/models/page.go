package models

import "math"

// Page is a validated page/limit pair. Page is 1-based.
type Page struct {
	Page  int64
	Limit int64
}

// Skip returns the number of documents before the page.
func (p Page) Skip() int64 {
	if p.Page < 1 {
		return 0
	}
	if p.Limit > 0 && p.Page-1 > math.MaxInt64/p.Limit {
		return math.MaxInt64
	}
	return (p.Page - 1) * p.Limit
}

// TotalPages returns ceil(total/limit).
func TotalPages(total, limit int64) int64 {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
