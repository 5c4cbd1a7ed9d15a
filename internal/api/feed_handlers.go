package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"conduit-backend/internal/auth"
	"conduit-backend/internal/models"
)

// popularTagsLimit caps the tag cloud shown next to feeds
const popularTagsLimit = 20

type feedResponse struct {
	Articles      []*models.Article `json:"articles"`
	ArticlesCount int               `json:"articlesCount"`
	Page          int               `json:"page"`
	PageSize      int               `json:"pageSize"`
	Tags          []*models.Tag     `json:"tags,omitempty"`
	UserID        int64             `json:"userId,omitempty"`
}

// indexHandler handles GET /
func indexHandler(c echo.Context) error {
	if auth.GetUserFromContext(c) != nil {
		return c.Redirect(http.StatusFound, "/feed/user")
	}
	return c.Redirect(http.StatusFound, "/feed/global")
}

// feed loads one page of previews matching filter
func (h *Handler) feed(c echo.Context, filter models.ArticleFilter, withTags bool) error {
	ctx := c.Request().Context()

	filter.ViewerID = auth.ViewerID(c)
	filter.Page = pageParam(c)
	filter.PageSize = h.PageSize

	articles, err := h.Articles.Previews(ctx, filter)
	if err != nil {
		return internal(err)
	}
	count, err := h.Articles.Count(ctx, filter)
	if err != nil {
		return internal(err)
	}

	resp := feedResponse{
		Articles:      articles,
		ArticlesCount: count,
		Page:          filter.Page,
		PageSize:      filter.PageSize,
		UserID:        filter.ViewerID,
	}
	if withTags {
		resp.Tags, err = h.Tags.Popular(ctx, popularTagsLimit)
		if err != nil {
			return internal(err)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// globalFeedHandler handles GET /feed/global
func (h *Handler) globalFeedHandler(c echo.Context) error {
	return h.feed(c, models.ArticleFilter{}, true)
}

// userFeedHandler handles GET /feed/user
func (h *Handler) userFeedHandler(c echo.Context) error {
	return h.feed(c, models.ArticleFilter{FollowedBy: auth.ViewerID(c)}, true)
}

// tagFeedHandler handles GET /feed/tags/:tag
func (h *Handler) tagFeedHandler(c echo.Context) error {
	return h.feed(c, models.ArticleFilter{Tag: c.Param("tag")}, true)
}

// tagsHandler handles GET /tags
func (h *Handler) tagsHandler(c echo.Context) error {
	tags, err := h.Tags.Popular(c.Request().Context(), popularTagsLimit)
	if err != nil {
		return internal(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tags": tags,
	})
}
