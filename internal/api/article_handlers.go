package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"conduit-backend/internal/auth"
	"conduit-backend/internal/models"
	"conduit-backend/internal/session"
	"conduit-backend/internal/validation"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type articleResponse struct {
	Article     *models.Article   `json:"article"`
	Comments    []*models.Comment `json:"comments"`
	CurrentUser *models.Author    `json:"currentUser"`
}

// splitTags parses the comma or space separated tag input
func splitTags(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

func articleForm(c echo.Context) (map[string]string, error) {
	return validation.Validate(map[string]string{
		"title":       strings.TrimSpace(c.FormValue("title")),
		"description": strings.TrimSpace(c.FormValue("description")),
		"body":        c.FormValue("body"),
		"tags":        c.FormValue("tags"),
	}, validation.ArticleSchema)
}

// loadOwnArticle fetches an article the signed-in user wrote
func (h *Handler) loadOwnArticle(c echo.Context) (*models.Article, error) {
	id, err := idParam(c, "id")
	if err != nil {
		return nil, err
	}
	user := auth.GetUserFromContext(c)
	article, err := h.Articles.GetByID(c.Request().Context(), id, user.ID)
	if err != nil {
		return nil, notFound(err)
	}
	if article.AuthorID != user.ID {
		return nil, echo.ErrForbidden
	}
	return article, nil
}

// getArticleHandler handles GET /articles/:id
func (h *Handler) getArticleHandler(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	article, err := h.Articles.GetByID(ctx, id, auth.ViewerID(c))
	if err != nil {
		return notFound(err)
	}
	comments, err := h.Comments.ListByArticle(ctx, id)
	if err != nil {
		return internal(err)
	}

	resp := articleResponse{Article: article, Comments: comments}
	if user := auth.GetUserFromContext(c); user != nil {
		resp.CurrentUser = &models.Author{ID: user.ID, Name: user.Name, Avatar: user.Avatar}
	}
	return c.JSON(http.StatusOK, resp)
}

// newArticleFormHandler handles GET /articles/new
func newArticleFormHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, nil)
}

// createArticleHandler handles POST /articles/new
func (h *Handler) createArticleHandler(c echo.Context) error {
	form, err := articleForm(c)
	if err != nil {
		return err
	}

	article := &models.Article{
		Title:       form["title"],
		Description: form["description"],
		Body:        form["body"],
		AuthorID:    auth.ViewerID(c),
	}
	if err := h.Articles.Create(c.Request().Context(), article, splitTags(form["tags"])); err != nil {
		return internal(err)
	}

	return h.redirectWithFlash(c, session.FlashSuccess,
		fmt.Sprintf("Article %q was created successfully", article.Title), "/")
}

// updateArticleHandler handles POST /articles/:id/edit
func (h *Handler) updateArticleHandler(c echo.Context) error {
	article, err := h.loadOwnArticle(c)
	if err != nil {
		return err
	}
	form, err := articleForm(c)
	if err != nil {
		return err
	}

	article.Title = form["title"]
	article.Description = form["description"]
	article.Body = form["body"]
	if err := h.Articles.Update(c.Request().Context(), article, splitTags(form["tags"])); err != nil {
		return notFound(err)
	}

	return h.redirectWithFlash(c, session.FlashSuccess,
		fmt.Sprintf("Article %q was updated successfully", article.Title),
		fmt.Sprintf("/articles/%d", article.ID))
}

// deleteArticleHandler handles POST /articles/:id/delete
func (h *Handler) deleteArticleHandler(c echo.Context) error {
	article, err := h.loadOwnArticle(c)
	if err != nil {
		return err
	}
	if err := h.Articles.Delete(c.Request().Context(), article.ID); err != nil {
		return notFound(err)
	}

	return h.redirectWithFlash(c, session.FlashSuccess,
		fmt.Sprintf("Article %q was deleted", article.Title), "/")
}

// createCommentHandler handles POST /articles/:id
func (h *Handler) createCommentHandler(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	form, err := validation.Validate(map[string]string{
		"comment": strings.TrimSpace(c.FormValue("comment")),
	}, validation.CommentSchema)
	if err != nil {
		return err
	}

	comment := &models.Comment{
		Body:      form["comment"],
		ArticleID: id,
		UserID:    auth.ViewerID(c),
	}
	if err := h.Comments.Create(c.Request().Context(), comment); err != nil {
		return notFound(err)
	}
	h.Hub.Publish(comment)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"comment": comment,
		"success": true,
	})
}

// deleteCommentHandler handles POST /articles/:id/comments/:commentId/delete
func (h *Handler) deleteCommentHandler(c echo.Context) error {
	articleID, err := idParam(c, "id")
	if err != nil {
		return err
	}
	commentID, err := idParam(c, "commentId")
	if err != nil {
		return err
	}
	if err := h.Comments.Delete(c.Request().Context(), commentID, articleID, auth.ViewerID(c)); err != nil {
		return notFound(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
	})
}

// favoriteHandler handles POST /api/articles/:id/favorite and /unfavorite
func (h *Handler) favoriteHandler(favorite bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := idParam(c, "id")
		if err != nil {
			return err
		}
		ctx := c.Request().Context()
		userID := auth.ViewerID(c)

		if favorite {
			err = h.Articles.Favorite(ctx, id, userID)
		} else {
			err = h.Articles.Unfavorite(ctx, id, userID)
		}
		if err != nil {
			return notFound(err)
		}

		article, err := h.Articles.GetByID(ctx, id, userID)
		if err != nil {
			return notFound(err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"article": article,
			"success": true,
		})
	}
}

// liveCommentsHandler streams comments posted to an article over a
// WebSocket until the client disconnects.
func (h *Handler) liveCommentsHandler(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if _, err := h.Articles.GetByID(c.Request().Context(), id, 0); err != nil {
		return notFound(err)
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the error response
		h.Logger.Debug("websocket upgrade failed", "error", err)
		return nil
	}
	defer ws.Close()

	comments, cancelSub := h.Hub.Subscribe(id)
	defer cancelSub()

	// Create context that cancels when WebSocket closes
	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case comment, ok := <-comments:
			if !ok {
				return nil
			}
			if err := ws.WriteJSON(comment); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					h.Logger.Debug("websocket write failed", "article_id", id, "error", err)
				}
				return nil
			}
		}
	}
}
