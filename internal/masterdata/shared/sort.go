package shared

import (
	"net/http"
	"strings"

	core "github.com/tillpoint/tillpoint/internal/shared"
)

// Sort directions
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// ListFilters represents standard list page filters
type ListFilters struct {
	core.ListFilters
	SortBy  string
	SortDir string
}

// ParseListFilters reads paging plus sort and dir from the query string.
func ParseListFilters(r *http.Request) ListFilters {
	q := r.URL.Query()
	return ListFilters{
		ListFilters: core.ParseListFilters(r),
		SortBy:      strings.ToLower(q.Get("sort")),
		SortDir:     strings.ToLower(q.Get("dir")),
	}
}

// OrderBy renders an ORDER BY clause limited to the allowed columns.
func (f ListFilters) OrderBy(allowed []string, fallback string) string {
	dir := "ASC"
	if f.SortDir == SortDesc {
		dir = "DESC"
	}
	col := fallback
	for _, a := range allowed {
		if a == f.SortBy {
			col = a
			break
		}
	}
	return col + " " + dir + ", id " + dir
}
