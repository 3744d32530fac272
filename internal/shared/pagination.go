package shared

import (
	"math"
	"net/http"
	"strconv"
	"strings"
)

// ListFilters carries search and paging parameters shared by list endpoints.
type ListFilters struct {
	Search  string
	Page    int
	PerPage int
}

// Offset returns the SQL offset for the current page.
func (f ListFilters) Offset() int {
	return (f.normalizedPage() - 1) * f.Limit()
}

// Limit returns the page size, defaulting to 20 and capped at 200.
func (f ListFilters) Limit() int {
	switch {
	case f.PerPage <= 0:
		return 20
	case f.PerPage > 200:
		return 200
	default:
		return f.PerPage
	}
}

func (f ListFilters) normalizedPage() int {
	if f.Page <= 0 {
		return 1
	}
	return f.Page
}

// ParseListFilters reads q, page and per_page from the query string.
func ParseListFilters(r *http.Request) ListFilters {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	return ListFilters{
		Search:  strings.TrimSpace(q.Get("q")),
		Page:    page,
		PerPage: perPage,
	}
}

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}
