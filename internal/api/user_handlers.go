package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"conduit-backend/internal/auth"
	"conduit-backend/internal/models"
)

type profileResponse struct {
	Profile *models.Profile `json:"profile"`
	feedResponse
}

// profileHandler handles GET /profiles/:id and GET /profiles/:id/favorited
func (h *Handler) profileHandler(favorited bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := idParam(c, "id")
		if err != nil {
			return err
		}
		ctx := c.Request().Context()
		viewerID := auth.ViewerID(c)

		profile, err := h.Users.Profile(ctx, id, viewerID)
		if err != nil {
			return notFound(err)
		}

		filter := models.ArticleFilter{
			ViewerID: viewerID,
			Page:     pageParam(c),
			PageSize: h.PageSize,
		}
		if favorited {
			filter.FavoritedBy = id
		} else {
			filter.AuthorID = id
		}

		articles, err := h.Articles.Previews(ctx, filter)
		if err != nil {
			return internal(err)
		}
		count, err := h.Articles.Count(ctx, filter)
		if err != nil {
			return internal(err)
		}

		return c.JSON(http.StatusOK, profileResponse{
			Profile: profile,
			feedResponse: feedResponse{
				Articles:      articles,
				ArticlesCount: count,
				Page:          filter.Page,
				PageSize:      filter.PageSize,
				UserID:        viewerID,
			},
		})
	}
}

// followHandler handles POST /api/users/:id/follow and /unfollow
func (h *Handler) followHandler(follow bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := idParam(c, "id")
		if err != nil {
			return err
		}
		ctx := c.Request().Context()
		viewerID := auth.ViewerID(c)

		if follow {
			if id == viewerID {
				return echo.NewHTTPError(http.StatusBadRequest, "cannot follow yourself")
			}
			err = h.Users.Follow(ctx, viewerID, id)
		} else {
			err = h.Users.Unfollow(ctx, viewerID, id)
		}
		if err != nil {
			return notFound(err)
		}

		profile, err := h.Users.Profile(ctx, id, viewerID)
		if err != nil {
			return notFound(err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"user":    profile,
			"success": true,
		})
	}
}

// settingsHandler handles GET /settings
func settingsHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"user": auth.GetUserFromContext(c),
	})
}

// updateSettingsHandler handles POST /settings
func (h *Handler) updateSettingsHandler(c echo.Context) error {
	user := auth.GetUserFromContext(c)

	updated, err := h.Auth.UpdateSettings(c.Request().Context(), user.ID, models.UserSettings{
		Name:     c.FormValue("name"),
		Email:    c.FormValue("email"),
		Bio:      c.FormValue("bio"),
		Avatar:   c.FormValue("avatar"),
		Password: c.FormValue("password"),
	})
	if err != nil {
		return notFound(err)
	}

	changes := map[string]interface{}{
		"email_changed":    updated.Email != user.Email,
		"password_changed": c.FormValue("password") != "",
	}
	h.audit(c, user.ID, models.ActionUserUpdate, updated.Email, changes)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"user":    updated,
		"success": true,
	})
}
