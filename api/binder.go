package api

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// RequestValidator wires go-playground/validator into Echo so handlers can
// declare validation rules on request structs with `validate` tags.
type RequestValidator struct {
	validate *validator.Validate
}

// NewRequestValidator builds the validator instance.
func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate implements echo.Validator.
func (v *RequestValidator) Validate(i any) error {
	return v.validate.Struct(i)
}

// bindAndValidate decodes the request body into dst and runs the
// declarative validation set. Failures short-circuit into the validation
// taxonomy before the handler body executes.
func bindAndValidate(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return ErrBadRequest().WithMessage("Malformed request body")
	}
	if err := c.Validate(dst); err != nil {
		return err
	}
	return nil
}
