package httperror

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"conduit-backend/internal/auth"
	"conduit-backend/internal/validation"
)

func TestMap(t *testing.T) {
	_, verr := validation.Validate(map[string]string{}, validation.CommentSchema)
	aerr := &auth.AuthenticationError{Fields: validation.FieldErrors{"email or password": {"is invalid"}}}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"validation", verr, 422, `{"errors":{"comment":["can't be blank"]}}`},
		{"wrapped validation", fmt.Errorf("register: %w", verr), 422, `{"errors":{"comment":["can't be blank"]}}`},
		{"authentication", aerr, 401, `{"errors":{"email or password":["is invalid"]}}`},
		{"not found", echo.ErrNotFound, 404, `{"errors":{}}`},
		{"rate limited", echo.NewHTTPError(http.StatusTooManyRequests, "slow down"), 429, `{"errors":{}}`},
		{"internal", echo.NewHTTPError(500).SetInternal(errors.New("disk I/O error")), 500, `{"errors":{},"message":"Something went wrong"}`},
		{"unknown", errors.New("sql: no rows in result set"), 400, `{"errors":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)

			status, body := Map(tt.err)
			if status != tt.wantStatus {
				t.Errorf("Map() status = %d, want %d", status, tt.wantStatus)
			}
			if err := c.JSON(status, body); err != nil {
				t.Fatal(err)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != tt.wantBody {
				t.Errorf("body = %s, want %s", got, tt.wantBody)
			}
		})
	}
}

func TestHandler_LogsOnlyUnexpectedErrors(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	e := echo.New()
	e.HTTPErrorHandler = Handler(logger)
	e.GET("/invalid", func(c echo.Context) error {
		return validation.NewError("title", "can't be blank")
	})
	e.GET("/broken", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(errors.New("database is locked"))
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/invalid", nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
	if logs.Len() != 0 {
		t.Errorf("validation failure was logged: %s", logs.String())
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/broken", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "locked") {
		t.Errorf("internal detail leaked: %s", rec.Body.String())
	}
	if !strings.Contains(logs.String(), "database is locked") {
		t.Errorf("internal error not logged: %s", logs.String())
	}
}
