package auth

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"conduit-backend/internal/database"
	"conduit-backend/internal/models"
	"conduit-backend/internal/session"
)

// Context keys for storing request state
const (
	ContextKeyUser    = "user"
	ContextKeySession = "session"
)

// LoginPath is where RequireLogin sends anonymous visitors
const LoginPath = "/login"

// LoadSession resolves the request's session and, when it names an
// existing user, the signed-in user. Session storage failures abort the
// request with a 500.
func LoadSession(sessions *session.Manager, users *database.UserRepo) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s, err := sessions.Get(c.Request())
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
			}
			c.Set(ContextKeySession, s)

			if id, ok := s.UserID(); ok {
				user, err := users.GetByID(c.Request().Context(), id)
				switch {
				case errors.Is(err, database.ErrUserNotFound):
					// Account was removed; treat the visitor as signed out
					s.ClearUserID()
				case err != nil:
					return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
				default:
					c.Set(ContextKeyUser, user)
				}
			}

			return next(c)
		}
	}
}

// RequireLogin redirects anonymous visitors to the sign-in page.
// Must be used after LoadSession.
func RequireLogin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if GetUserFromContext(c) == nil {
				return c.Redirect(http.StatusFound, LoginPath)
			}
			return next(c)
		}
	}
}

// GetUserFromContext retrieves the signed-in user, or nil
func GetUserFromContext(c echo.Context) *models.User {
	user, ok := c.Get(ContextKeyUser).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// GetSessionFromContext retrieves the current session, or nil when
// LoadSession has not run
func GetSessionFromContext(c echo.Context) *session.Session {
	s, ok := c.Get(ContextKeySession).(*session.Session)
	if !ok {
		return nil
	}
	return s
}

// ViewerID returns the signed-in user's id, or zero for anonymous visitors
func ViewerID(c echo.Context) int64 {
	if user := GetUserFromContext(c); user != nil {
		return user.ID
	}
	return 0
}
