// Package httperror turns handler errors into response bodies. It is the
// single place where validation, authentication and unexpected failures
// are mapped to status codes.
package httperror

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"conduit-backend/internal/auth"
	"conduit-backend/internal/validation"
)

// GenericMessage is the only detail exposed for server-side failures
const GenericMessage = "Something went wrong"

// Body is the JSON shape of every error response
type Body struct {
	Errors  validation.FieldErrors `json:"errors"`
	Message string                 `json:"message,omitempty"`
}

// Map returns the status and body for err. It never exposes the error's
// text for anything outside the validation and authentication taxonomy.
func Map(err error) (int, Body) {
	var (
		verr *validation.ValidationError
		aerr *auth.AuthenticationError
		herr *echo.HTTPError
	)

	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, Body{Errors: nonNil(verr.Fields)}
	case errors.As(err, &aerr):
		return http.StatusUnauthorized, Body{Errors: nonNil(aerr.Fields)}
	case errors.As(err, &herr) && herr.Code < http.StatusInternalServerError:
		return herr.Code, Body{Errors: validation.FieldErrors{}}
	case errors.As(err, &herr):
		return http.StatusInternalServerError, Body{Errors: validation.FieldErrors{}, Message: GenericMessage}
	default:
		return http.StatusBadRequest, Body{Errors: validation.FieldErrors{}}
	}
}

// Expected reports whether err is a user-correctable outcome that should
// not be logged as an incident.
func Expected(err error) bool {
	var (
		verr *validation.ValidationError
		aerr *auth.AuthenticationError
		herr *echo.HTTPError
	)
	if errors.As(err, &verr) || errors.As(err, &aerr) {
		return true
	}
	return errors.As(err, &herr) && herr.Code < http.StatusInternalServerError
}

// Handler returns an echo.HTTPErrorHandler writing Map's result
func Handler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := Map(err)
		if !Expected(err) {
			logger.Error("request failed",
				"method", c.Request().Method,
				"path", c.Path(),
				"status", status,
				"error", internalError(err),
			)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.Error("write error response", "error", err)
		}
	}
}

func internalError(err error) error {
	var herr *echo.HTTPError
	if errors.As(err, &herr) && herr.Internal != nil {
		return herr.Internal
	}
	return err
}

func nonNil(fe validation.FieldErrors) validation.FieldErrors {
	if fe == nil {
		return validation.FieldErrors{}
	}
	return fe
}
