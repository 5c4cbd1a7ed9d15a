package api

import (
	"github.com/labstack/echo/v4"

	"conduit-backend/internal/auth"
)

// RegisterRoutes sets up all routes
func RegisterRoutes(e *echo.Echo, h *Handler) {
	requireLogin := auth.RequireLogin()

	// Health check (public)
	e.GET("/health", healthCheck)

	e.GET("/", indexHandler)
	e.GET("/messages", h.messagesHandler)

	// Feeds
	e.GET("/feed/global", h.globalFeedHandler)
	e.GET("/feed/user", h.userFeedHandler, requireLogin)
	e.GET("/feed/tags/:tag", h.tagFeedHandler)
	e.GET("/tags", h.tagsHandler)

	// Auth routes
	e.GET("/register", h.authFormHandler)
	e.POST("/register", h.registerHandler)
	e.GET("/login", h.authFormHandler)
	if h.LoginLimiter != nil {
		e.POST("/login", h.loginHandler, h.LoginLimiter.Middleware())
	} else {
		e.POST("/login", h.loginHandler)
	}
	e.POST("/logout", h.logoutHandler)

	if h.OIDC != nil {
		e.GET("/auth/oidc/login", h.oidcLoginHandler)
		e.GET("/auth/oidc/callback", h.oidcCallbackHandler)
	}

	// Articles
	articles := e.Group("/articles")
	articles.GET("/new", newArticleFormHandler, requireLogin)
	articles.POST("/new", h.createArticleHandler, requireLogin)
	articles.GET("/:id", h.getArticleHandler)
	articles.POST("/:id", h.createCommentHandler, requireLogin)
	articles.GET("/:id/comments/live", h.liveCommentsHandler)
	articles.POST("/:id/comments/:commentId/delete", h.deleteCommentHandler, requireLogin)
	articles.POST("/:id/edit", h.updateArticleHandler, requireLogin)
	articles.POST("/:id/delete", h.deleteArticleHandler, requireLogin)

	// Profiles
	e.GET("/profiles/:id", h.profileHandler(false))
	e.GET("/profiles/:id/favorited", h.profileHandler(true))

	// Settings (login required)
	settings := e.Group("/settings", requireLogin)
	settings.GET("", settingsHandler)
	settings.POST("", h.updateSettingsHandler)
	if h.Audit != nil {
		settings.GET("/activity", h.activityHandler)
	}

	// JSON actions (login required)
	api := e.Group("/api", requireLogin)
	api.POST("/articles/:id/favorite", h.favoriteHandler(true))
	api.POST("/articles/:id/unfavorite", h.favoriteHandler(false))
	api.POST("/users/:id/follow", h.followHandler(true))
	api.POST("/users/:id/unfollow", h.followHandler(false))
}
