package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvisycom/server/auth"
	"github.com/nvisycom/server/db"
)

func TestTranslateDomainSentinels(t *testing.T) {
	cases := []struct {
		err    error
		name   string
		status int
	}{
		{db.ErrNotFound, "not_found", http.StatusNotFound},
		{db.ErrLastAdmin, "bad_request", http.StatusBadRequest},
		{db.ErrLatestVersion, "bad_request", http.StatusBadRequest},
		{db.ErrBadCursor, "bad_request", http.StatusBadRequest},
		{db.ErrConflict, "conflict", http.StatusConflict},
		{auth.ErrForbidden, "forbidden", http.StatusForbidden},
		{auth.ErrInvalidCredentials, "unauthorized", http.StatusUnauthorized},
		{auth.ErrExpiredToken, "token_expired", http.StatusUnauthorized},
		{auth.ErrInvalidToken, "malformed_auth_token", http.StatusUnauthorized},
	}

	for _, tc := range cases {
		translated := translateError(tc.err)
		assert.Equal(t, tc.name, translated.Name, "error %v", tc.err)
		assert.Equal(t, tc.status, translated.Status, "error %v", tc.err)
	}
}

func TestTranslateWrappedSentinel(t *testing.T) {
	wrapped := fmt.Errorf("removing member: %w", db.ErrLastAdmin)
	translated := translateError(wrapped)

	assert.Equal(t, "bad_request", translated.Name)
	assert.Equal(t, "Cannot demote an admin", translated.Message)
}

func TestTranslateUnknownErrorScrubsMessage(t *testing.T) {
	translated := translateError(fmt.Errorf("pq: connection refused to 10.0.0.5"))

	assert.Equal(t, "internal_server_error", translated.Name)
	assert.NotContains(t, translated.Message, "10.0.0.5", "internal details must not leak")
	assert.Equal(t, http.StatusInternalServerError, translated.Status)
}

func TestHTTPErrorHandlerWritesTaxonomyBody(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/xyz/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Response().Header().Set(echo.HeaderXRequestID, "corr-42")

	HTTPErrorHandler(db.ErrNotFound, c)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_found", body["name"])
	assert.Equal(t, "not_found", body["category"])
	assert.Equal(t, "corr-42", body["correlation_id"])
}

func TestHTTPErrorHandlerLastAdminScenario(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/workspaces/w1/members/a1/role", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	HTTPErrorHandler(fmt.Errorf("update role: %w", db.ErrLastAdmin), c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "bad_request", body["name"])
	assert.Equal(t, "Cannot demote an admin", body["message"])
}

func TestTranslateEchoErrors(t *testing.T) {
	assert.Equal(t, "not_found", translateError(echo.NewHTTPError(http.StatusNotFound)).Name)
	assert.Equal(t, "payload_too_large", translateError(echo.NewHTTPError(http.StatusRequestEntityTooLarge)).Name)
	assert.Equal(t, "unsupported_media_type", translateError(echo.NewHTTPError(http.StatusUnsupportedMediaType)).Name)
	assert.Equal(t, "too_many_requests", translateError(echo.NewHTTPError(http.StatusTooManyRequests)).Name)
}

func TestErrorDecoration(t *testing.T) {
	err := ErrNotFound().WithResource("document").WithSuggestion("Check the id")

	assert.Equal(t, "document", err.Resource)
	assert.Equal(t, "Check the id", err.Suggestion)

	// Constructors return fresh values; decoration must not leak.
	assert.Empty(t, ErrNotFound().Resource)
}
