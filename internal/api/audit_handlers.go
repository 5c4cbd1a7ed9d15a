package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"conduit-backend/internal/auth"
	"conduit-backend/internal/models"
)

// audit records an account event. Failures are logged and never fail the
// request.
func (h *Handler) audit(c echo.Context, userID int64, action, target string, details interface{}) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Log(c.Request().Context(), userID, action, target, details, c.RealIP()); err != nil {
		h.Logger.Warn("audit log failed", "action", action, "user_id", userID, "error", err)
	}
}

// activityHandler handles GET /settings/activity
func (h *Handler) activityHandler(c echo.Context) error {
	limit := 50
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 200 {
		limit = l
	}

	user := auth.GetUserFromContext(c)
	logs, err := h.Audit.ListByUser(c.Request().Context(), user.ID, limit)
	if err != nil {
		return internal(err)
	}
	if logs == nil {
		logs = []*models.AuditLog{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"activity": logs,
	})
}
