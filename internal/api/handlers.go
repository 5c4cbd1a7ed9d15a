package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"conduit-backend/internal/auth"
	"conduit-backend/internal/database"
	"conduit-backend/internal/httperror"
	"conduit-backend/internal/live"
	"conduit-backend/internal/session"
)

// DefaultPageSize is the number of previews per feed page
const DefaultPageSize = 10

// Deps are the collaborators handlers need. Everything is built once in
// main and shared by all requests.
type Deps struct {
	Logger   *slog.Logger
	Sessions *session.Manager
	Auth     *auth.Service
	Users    *database.UserRepo
	Articles *database.ArticleRepo
	Comments *database.CommentRepo
	Tags     *database.TagRepo
	Audit    *database.AuditRepo
	Hub      *live.Hub

	// LoginLimiter throttles POST /login; nil disables throttling
	LoginLimiter *auth.RateLimiter

	// OIDC enables provider sign-in when non-nil
	OIDC *auth.OIDCClient

	PageSize int

	// AllowedOrigins for CORS; empty disables the CORS middleware
	AllowedOrigins []string
}

// Handler serves the Conduit routes
type Handler struct {
	Deps
}

// NewHandler creates a handler
func NewHandler(d Deps) *Handler {
	if d.PageSize <= 0 {
		d.PageSize = DefaultPageSize
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Hub == nil {
		d.Hub = live.NewHub(0)
	}
	return &Handler{Deps: d}
}

// Health check
func healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// idParam parses a numeric path parameter; malformed ids are reported as
// missing resources.
func idParam(c echo.Context, name string) (int64, error) {
	id, err := parseID(c.Param(name))
	if err != nil || id <= 0 {
		return 0, echo.ErrNotFound
	}
	return id, nil
}

// pageParam returns the 1-based page from ?page=, defaulting to 1
func pageParam(c echo.Context) int {
	page, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// notFound converts repository not-found sentinels to a 404; anything
// else goes through failed
func notFound(err error) error {
	switch {
	case errors.Is(err, database.ErrUserNotFound),
		errors.Is(err, database.ErrArticleNotFound),
		errors.Is(err, database.ErrCommentNotFound):
		return echo.ErrNotFound
	}
	return failed(err)
}

// failed passes validation, authentication and client errors through and
// reports everything else (storage, hashing) as a 500
func failed(err error) error {
	if httperror.Expected(err) {
		return err
	}
	return internal(err)
}

// internal wraps an unexpected failure so it maps to a 500
func internal(err error) error {
	return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
}

// currentSession returns the request's session; LoadSession guarantees it
func currentSession(c echo.Context) *session.Session {
	return auth.GetSessionFromContext(c)
}

// saveSession commits s and attaches the cookie to the response
func (h *Handler) saveSession(c echo.Context, s *session.Session) error {
	cookie, err := h.Sessions.Commit(c.Request().Context(), s)
	if err != nil {
		return internal(err)
	}
	c.SetCookie(cookie)
	return nil
}

// redirectWithFlash stores a flash message and redirects to location
func (h *Handler) redirectWithFlash(c echo.Context, kind session.FlashKind, message, location string) error {
	s := currentSession(c)
	s.Flash(kind, message)
	if err := h.saveSession(c, s); err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, location)
}
