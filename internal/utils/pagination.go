package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// Page is a parsed page/page_size pair
type Page struct {
	Page     int
	PageSize int
}

// Offset returns the row offset of the page
func (p Page) Offset() int { return (p.Page - 1) * p.PageSize }

// TotalPages returns how many pages total rows span
func (p Page) TotalPages(total int64) int {
	return (int(total) + p.PageSize - 1) / p.PageSize
}

// ParsePage reads page and page_size from the query, defaulting to 1 and 20, capped at 100
func ParsePage(c *gin.Context) Page {
	p := Page{Page: 1, PageSize: 20}
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		p.Page = v // Set page if valid
	}
	if v, err := strconv.Atoi(c.Query("page_size")); err == nil && v > 0 && v <= 100 {
		p.PageSize = v // Set page size if valid
	}
	return p
}
