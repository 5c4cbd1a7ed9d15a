package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"conduit-backend/internal/auth"
	"conduit-backend/internal/models"
	"conduit-backend/internal/session"
)

const oidcStateKey = "oidcState"

// authFormHandler handles GET /login and GET /register
func (h *Handler) authFormHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"oidcEnabled": h.OIDC != nil,
	})
}

// registerHandler handles POST /register
func (h *Handler) registerHandler(c echo.Context) error {
	user, err := h.Auth.Register(c.Request().Context(),
		c.FormValue("name"),
		c.FormValue("email"),
		c.FormValue("password"),
	)
	if err != nil {
		return failed(err)
	}
	return h.login(c, user, "Registration successful", models.ActionRegister)
}

// loginHandler handles POST /login
func (h *Handler) loginHandler(c echo.Context) error {
	user, err := h.Auth.Authenticate(c.Request().Context(), c.FormValue("email"), c.FormValue("password"))
	if err != nil {
		return failed(err)
	}
	if h.LoginLimiter != nil {
		h.LoginLimiter.RecordSuccess(c.RealIP())
	}
	return h.login(c, user, fmt.Sprintf("Welcome back %s!", user.Name), models.ActionLogin)
}

// login signs the session in as user and redirects home with a greeting.
// The session gets a new id so a token held before sign-in stays anonymous.
func (h *Handler) login(c echo.Context, user *models.User, message, action string) error {
	s := currentSession(c)
	if err := h.Sessions.Regenerate(c.Request().Context(), s); err != nil {
		return internal(err)
	}
	s.SetUserID(user.ID)
	s.Flash(session.FlashSuccess, message)
	if err := h.saveSession(c, s); err != nil {
		return err
	}

	h.audit(c, user.ID, action, user.Email, nil)
	return c.Redirect(http.StatusFound, "/")
}

// logoutHandler handles POST /logout
func (h *Handler) logoutHandler(c echo.Context) error {
	s := currentSession(c)
	userID, signedIn := s.UserID()

	cookie, err := h.Sessions.Destroy(c.Request().Context(), s)
	if err != nil {
		return internal(err)
	}
	c.SetCookie(cookie)

	if signedIn {
		h.audit(c, userID, models.ActionLogout, "", nil)
	}
	return c.Redirect(http.StatusFound, "/")
}

type messagesResponse struct {
	Success string `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}

// messagesHandler handles GET /messages. Messages are returned once and
// removed from the session.
func (h *Handler) messagesHandler(c echo.Context) error {
	msgs, cookie, err := h.Sessions.Messages(c.Request().Context(), currentSession(c))
	if err != nil {
		return internal(err)
	}
	if cookie != nil {
		c.SetCookie(cookie)
	}

	if len(msgs) == 0 {
		return c.JSON(http.StatusOK, nil)
	}
	return c.JSON(http.StatusOK, messagesResponse{
		Success: msgs[session.FlashSuccess],
		Error:   msgs[session.FlashError],
	})
}

// oidcLoginHandler handles GET /auth/oidc/login
func (h *Handler) oidcLoginHandler(c echo.Context) error {
	state := auth.NewState()

	s := currentSession(c)
	s.Set(oidcStateKey, state)
	if err := h.saveSession(c, s); err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, h.OIDC.AuthURL(state))
}

// oidcCallbackHandler handles GET /auth/oidc/callback
func (h *Handler) oidcCallbackHandler(c echo.Context) error {
	s := currentSession(c)
	want, ok := s.Get(oidcStateKey)
	if ok {
		// A state is good for one callback whatever the outcome
		s.Unset(oidcStateKey)
		if err := h.saveSession(c, s); err != nil {
			return err
		}
	}
	if !ok || want == "" || c.QueryParam("state") != want {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid state")
	}

	if errParam := c.QueryParam("error"); errParam != "" {
		h.Logger.Warn("oidc provider returned an error", "error", errParam)
		return h.redirectWithFlash(c, session.FlashError, "Sign-in was cancelled", auth.LoginPath)
	}

	info, err := h.OIDC.Exchange(c.Request().Context(), c.QueryParam("code"))
	if err != nil {
		h.Logger.Warn("oidc exchange failed", "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized).SetInternal(err)
	}

	user, err := h.Auth.FindOrCreateOIDCUser(c.Request().Context(), info)
	if err != nil {
		return failed(err)
	}
	return h.login(c, user, fmt.Sprintf("Welcome back %s!", user.Name), models.ActionLoginOIDC)
}
