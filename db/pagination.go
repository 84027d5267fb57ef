package db

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrBadCursor is returned when a pagination cursor fails to decode.
var ErrBadCursor = errors.New("db: malformed pagination cursor")

// Cursor is an opaque (timestamp, id) continuation point. Listings order by
// (timestamp DESC, id DESC); the cursor names the last row already seen.
type Cursor struct {
	Timestamp time.Time
	ID        uuid.UUID
}

// Encode serializes the cursor to a URL-safe opaque string.
func (c Cursor) Encode() string {
	raw := fmt.Sprintf("%d:%s", c.Timestamp.UnixMicro(), c.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses an encoded cursor. Truncated or otherwise malformed
// input yields ErrBadCursor.
func DecodeCursor(encoded string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Cursor{}, ErrBadCursor
	}

	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return Cursor{}, ErrBadCursor
	}

	micros, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Cursor{}, ErrBadCursor
	}

	id, err := uuid.Parse(parts[1])
	if err != nil {
		return Cursor{}, ErrBadCursor
	}

	return Cursor{Timestamp: time.UnixMicro(micros).UTC(), ID: id}, nil
}

// CursorPagination is the request shape for cursor-based listings.
type CursorPagination struct {
	Limit        int
	After        *Cursor
	IncludeCount bool
}

// OffsetPagination is the request shape for offset-based listings.
type OffsetPagination struct {
	Limit        int
	Offset       int
	IncludeCount bool
}

// CursorPage is one page of a cursor-paginated listing.
type CursorPage[T any] struct {
	Items      []T
	HasMore    bool
	NextCursor *string
	Total      *int64
}

// newCursorPage assembles a page from limit+1 fetched rows. The presence of
// the extra row dictates HasMore; keyOf extracts the (timestamp, id) pair of
// the last returned row for the next cursor.
func newCursorPage[T any](rows []T, total *int64, limit int, keyOf func(*T) (time.Time, uuid.UUID)) CursorPage[T] {
	page := CursorPage[T]{Total: total}

	if len(rows) > limit {
		page.HasMore = true
		rows = rows[:limit]
	}
	page.Items = rows

	if page.HasMore && len(rows) > 0 {
		last := &rows[len(rows)-1]
		ts, id := keyOf(last)
		encoded := Cursor{Timestamp: ts, ID: id}.Encode()
		page.NextCursor = &encoded
	}

	return page
}
