// Package pagination normalizes offset-based page requests.
package pagination

import (
	"fmt"
	"math"
)

// PageSizeConfig configures page size normalization.
type PageSizeConfig struct {
	Default int
	Max     int
}

// ClampPageSize applies defaults and limits for page sizes.
func ClampPageSize(value int, cfg PageSizeConfig) int {
	pageSize := value
	if pageSize <= 0 {
		pageSize = cfg.Default
	}
	if cfg.Max > 0 && pageSize > cfg.Max {
		pageSize = cfg.Max
	}
	if pageSize <= 0 {
		pageSize = 1
	}
	return pageSize
}

// Offset returns the row offset of a zero-based page.
func Offset(page, pageSize int) (int, error) {
	if page < 0 {
		return 0, fmt.Errorf("page must be >= 0, got %d", page)
	}
	if pageSize <= 0 {
		return 0, fmt.Errorf("page size must be > 0, got %d", pageSize)
	}
	if page > math.MaxInt/pageSize {
		return 0, fmt.Errorf("page %d is out of range for page size %d", page, pageSize)
	}
	return page * pageSize, nil
}
