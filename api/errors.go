// Package api exposes the Nvisy HTTP surface: the Echo server, request
// binding and validation, the user-visible error taxonomy, authentication
// middleware, and the REST handlers under /api/v1.
package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/nvisycom/server/auth"
	"github.com/nvisycom/server/common"
	"github.com/nvisycom/server/db"
)

var log = common.Component("api")

// Category groups errors for clients and logging.
type Category string

// Error categories.
const (
	CategoryAuthentication Category = "authentication"
	CategoryValidation     Category = "validation"
	CategoryBusiness       Category = "business"
	CategoryExternal       Category = "external"
	CategoryInternal       Category = "internal"
	CategoryRateLimit      Category = "rate_limit"
	CategoryNotFound       Category = "not_found"
	CategoryPermission     Category = "permission"
)

// ValidationErrorDetail describes one field-level validation failure.
type ValidationErrorDetail struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error is the JSON error body of every failed request. The status code is
// carried out of band.
type Error struct {
	Name             string                  `json:"name"`
	Message          string                  `json:"message"`
	Category         Category                `json:"category"`
	Resource         string                  `json:"resource,omitempty"`
	Context          string                  `json:"context,omitempty"`
	Suggestion       string                  `json:"suggestion,omitempty"`
	ValidationErrors []ValidationErrorDetail `json:"validation_errors,omitempty"`
	CorrelationID    string                  `json:"correlation_id,omitempty"`

	Status int `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Name + ": " + e.Message
}

// newError builds a taxonomy entry.
func newError(name, message string, status int, category Category) *Error {
	return &Error{Name: name, Message: message, Status: status, Category: category}
}

// Taxonomy constructors. Each returns a fresh value so handler-level
// decoration never mutates shared state.
func ErrBadRequest() *Error {
	return newError("bad_request", "The request could not be processed due to invalid data", http.StatusBadRequest, CategoryValidation)
}

func ErrValidation() *Error {
	return newError("validation_error", "Request validation failed", http.StatusBadRequest, CategoryValidation)
}

func ErrMissingAuthToken() *Error {
	return newError("missing_auth_token", "Authentication is required to access this resource", http.StatusUnauthorized, CategoryAuthentication)
}

func ErrMalformedAuthToken() *Error {
	return newError("malformed_auth_token", "The authentication token format is invalid", http.StatusUnauthorized, CategoryAuthentication)
}

func ErrTokenExpired() *Error {
	return newError("token_expired", "Authentication token has expired", http.StatusUnauthorized, CategoryAuthentication)
}

func ErrUnauthorized() *Error {
	return newError("unauthorized", "Invalid or expired authentication credentials", http.StatusUnauthorized, CategoryAuthentication)
}

func ErrForbidden() *Error {
	return newError("forbidden", "You don't have permission to access this resource", http.StatusForbidden, CategoryPermission)
}

func ErrNotFound() *Error {
	return newError("not_found", "The requested resource was not found", http.StatusNotFound, CategoryNotFound)
}

func ErrConflict() *Error {
	return newError("conflict", "The request conflicts with the current state of the resource", http.StatusConflict, CategoryBusiness)
}

func ErrPayloadTooLarge() *Error {
	return newError("payload_too_large", "Request payload exceeds size limits", http.StatusRequestEntityTooLarge, CategoryValidation)
}

func ErrUnsupportedMediaType() *Error {
	return newError("unsupported_media_type", "The media type of the request is not supported", http.StatusUnsupportedMediaType, CategoryValidation)
}

func ErrTooManyRequests() *Error {
	return newError("too_many_requests", "Too many requests. Please slow down and try again later", http.StatusTooManyRequests, CategoryRateLimit)
}

func ErrInternal() *Error {
	return newError("internal_server_error", "An internal server error occurred. Please try again later", http.StatusInternalServerError, CategoryInternal)
}

func ErrNotImplemented() *Error {
	return newError("not_implemented", "This feature is not yet available", http.StatusNotImplemented, CategoryInternal)
}

func ErrServiceUnavailable() *Error {
	return newError("service_unavailable", "Service is temporarily unavailable. Please try again later", http.StatusServiceUnavailable, CategoryExternal)
}

func ErrGatewayTimeout() *Error {
	return newError("gateway_timeout", "The request timed out. Please try again", http.StatusGatewayTimeout, CategoryExternal)
}

// WithMessage replaces the human-readable message.
func (e *Error) WithMessage(message string) *Error {
	e.Message = message
	return e
}

// WithResource names the resource the error relates to.
func (e *Error) WithResource(resource string) *Error {
	e.Resource = resource
	return e
}

// WithSuggestion attaches a resolution hint.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// WithValidationErrors attaches field-level details.
func (e *Error) WithValidationErrors(details []ValidationErrorDetail) *Error {
	e.ValidationErrors = details
	return e
}

// HTTPErrorHandler is the single mapping point from internal errors to the
// wire taxonomy. Infrastructure errors become internal_server_error with the
// cause logged; known domain sentinels map to their taxonomy entries.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	apiErr := translateError(err)
	apiErr.CorrelationID = c.Response().Header().Get(echo.HeaderXRequestID)

	if apiErr.Status >= http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.Path()).Error("request failed")
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(apiErr.Status)
		return
	}
	if err := c.JSON(apiErr.Status, apiErr); err != nil {
		log.WithError(err).Warn("could not write error response")
	}
}

func translateError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		return translateEchoError(echoErr)
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return ErrValidation().WithValidationErrors(validationDetails(validationErrs))
	}

	switch {
	case errors.Is(err, db.ErrNotFound):
		return ErrNotFound()
	case errors.Is(err, db.ErrLastAdmin):
		return ErrBadRequest().WithMessage("Cannot demote an admin")
	case errors.Is(err, db.ErrLatestVersion):
		return ErrBadRequest().WithMessage("Cannot delete the latest version")
	case errors.Is(err, db.ErrBadCursor):
		return ErrBadRequest().WithMessage("Invalid pagination cursor")
	case errors.Is(err, db.ErrConflict):
		return ErrConflict()
	case errors.Is(err, auth.ErrForbidden):
		return ErrForbidden()
	case errors.Is(err, auth.ErrInvalidCredentials):
		return ErrUnauthorized()
	case errors.Is(err, auth.ErrExpiredToken):
		return ErrTokenExpired()
	case errors.Is(err, auth.ErrInvalidToken):
		return ErrMalformedAuthToken()
	default:
		return ErrInternal()
	}
}

func translateEchoError(echoErr *echo.HTTPError) *Error {
	switch echoErr.Code {
	case http.StatusNotFound:
		return ErrNotFound()
	case http.StatusMethodNotAllowed:
		return ErrBadRequest().WithMessage("Method not allowed")
	case http.StatusRequestEntityTooLarge:
		return ErrPayloadTooLarge()
	case http.StatusUnsupportedMediaType:
		return ErrUnsupportedMediaType()
	case http.StatusUnauthorized:
		return ErrUnauthorized()
	case http.StatusBadRequest:
		return ErrBadRequest()
	case http.StatusTooManyRequests:
		return ErrTooManyRequests()
	default:
		return ErrInternal()
	}
}

func validationDetails(errs validator.ValidationErrors) []ValidationErrorDetail {
	details := make([]ValidationErrorDetail, 0, len(errs))
	for _, fe := range errs {
		details = append(details, ValidationErrorDetail{
			Field:   fe.Field(),
			Code:    fe.Tag(),
			Message: "Validation failed on '" + fe.Tag() + "'",
		})
	}
	return details
}
