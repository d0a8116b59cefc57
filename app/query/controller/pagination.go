package controller

import (
	"errors"
	"net/http"
	"strconv"
)

// Query-string paging shared by the list endpoints: ?limit= caps the page,
// ?cursor= is the row offset to resume from, ?sort= flips the direction.

const (
	defaultLimit = 50
	maxLimit     = 100
)

// SortOrder is the sort direction accepted by list queries.
type SortOrder string

const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

var (
	errInvalidLimit  = errors.New("invalid limit")
	errInvalidCursor = errors.New("invalid cursor")
	errInvalidSort   = errors.New("invalid sort, must be 'asc' or 'desc'")
)

// pageSpec carries limit, offset cursor and sort direction. The cursor is
// the offset of the first row to return within the sorted result set.
type pageSpec struct {
	Limit  int
	Cursor uint64
	Sort   SortOrder
}

func parsePageSpec(r *http.Request) (pageSpec, error) {
	// Descending default puts the freshest or highest-ranked rows first.
	spec := pageSpec{Limit: defaultLimit, Sort: SortOrderDesc}
	qs := r.URL.Query()

	if v := qs.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return pageSpec{}, errInvalidLimit
		}
		spec.Limit = min(n, maxLimit)
	}

	if v := qs.Get("cursor"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return pageSpec{}, errInvalidCursor
		}
		spec.Cursor = n
	}

	switch qs.Get("sort") {
	case "", "desc":
	case "asc":
		spec.Sort = SortOrderAsc
	default:
		return pageSpec{}, errInvalidSort
	}

	return spec, nil
}
