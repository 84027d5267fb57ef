package api

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/nvisycom/server/db"
)

// Pagination bounds for all collection endpoints.
const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// cursorPagination parses ?limit, ?after and ?include_count. A limit below 1
// or above the maximum is a validation error; a cursor that fails to decode
// is a bad request.
func cursorPagination(c echo.Context) (db.CursorPagination, error) {
	pagination := db.CursorPagination{Limit: defaultPageLimit}

	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxPageLimit {
			return pagination, ErrValidation().WithValidationErrors([]ValidationErrorDetail{{
				Field:   "limit",
				Code:    "range",
				Message: "limit must be between 1 and 100",
			}})
		}
		pagination.Limit = limit
	}

	if raw := c.QueryParam("after"); raw != "" {
		cursor, err := db.DecodeCursor(raw)
		if err != nil {
			return pagination, ErrBadRequest().WithMessage("Invalid pagination cursor")
		}
		pagination.After = &cursor
	}

	pagination.IncludeCount = c.QueryParam("include_count") == "true"
	return pagination, nil
}

// pageResponse is the wire shape of a cursor page.
type pageResponse[T any] struct {
	Items      []T     `json:"items"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor,omitempty"`
	Total      *int64  `json:"total,omitempty"`
}

func toPageResponse[T any](page db.CursorPage[T]) pageResponse[T] {
	items := page.Items
	if items == nil {
		items = []T{}
	}
	return pageResponse[T]{
		Items:      items,
		HasMore:    page.HasMore,
		NextCursor: page.NextCursor,
		Total:      page.Total,
	}
}
