package request

import (
	"net/http"
	"strconv"
)

// Pagination holds parsed cursor pagination parameters.
type Pagination struct {
	Limit  int
	Cursor string
}

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// ParsePagination extracts limit and cursor from query parameters. An
// unparseable or out-of-range limit falls back to the default rather than
// failing the request.
func ParsePagination(r *http.Request) Pagination {
	q := r.URL.Query()
	limit := DefaultLimit
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		limit = min(v, MaxLimit)
	}
	return Pagination{Limit: limit, Cursor: q.Get("cursor")}
}
