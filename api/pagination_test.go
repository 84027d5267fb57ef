package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvisycom/server/db"
)

func paginationContext(t *testing.T, query url.Values) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?"+query.Encode(), nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestCursorPaginationDefaults(t *testing.T) {
	pagination, err := cursorPagination(paginationContext(t, url.Values{}))
	require.NoError(t, err)

	assert.Equal(t, defaultPageLimit, pagination.Limit)
	assert.Nil(t, pagination.After)
	assert.False(t, pagination.IncludeCount)
}

func TestCursorPaginationRejectsZeroLimit(t *testing.T) {
	_, err := cursorPagination(paginationContext(t, url.Values{"limit": {"0"}}))

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "validation_error", apiErr.Name)
	require.Len(t, apiErr.ValidationErrors, 1)
	assert.Equal(t, "limit", apiErr.ValidationErrors[0].Field)
}

func TestCursorPaginationRejectsOversizedLimit(t *testing.T) {
	_, err := cursorPagination(paginationContext(t, url.Values{"limit": {"101"}}))
	assert.Error(t, err)
}

func TestCursorPaginationParsesCursor(t *testing.T) {
	cursor := db.Cursor{Timestamp: time.Now().UTC(), ID: uuid.New()}
	query := url.Values{
		"limit":         {"50"},
		"after":         {cursor.Encode()},
		"include_count": {"true"},
	}

	pagination, err := cursorPagination(paginationContext(t, query))
	require.NoError(t, err)

	assert.Equal(t, 50, pagination.Limit)
	require.NotNil(t, pagination.After)
	assert.Equal(t, cursor.ID, pagination.After.ID)
	assert.True(t, pagination.IncludeCount)
}

func TestCursorPaginationRejectsBadCursor(t *testing.T) {
	_, err := cursorPagination(paginationContext(t, url.Values{"after": {"garbage!!"}}))

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "bad_request", apiErr.Name)
}

func TestToPageResponseNeverReturnsNilItems(t *testing.T) {
	page := db.CursorPage[db.Document]{}
	response := toPageResponse(page)

	assert.NotNil(t, response.Items)
	assert.Empty(t, response.Items)
}
