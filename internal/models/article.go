package models

import "time"

// Article represents a published post
type Article struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Body           string    `json:"body"`
	AuthorID       int64     `json:"authorId"`
	Author         Author    `json:"author"`
	Tags           []string  `json:"tags"`
	FavoritesCount int       `json:"favoritesCount"`
	Favorited      bool      `json:"favorited"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ArticleFilter narrows article listings. Zero values mean "no filter".
type ArticleFilter struct {
	Tag         string
	AuthorID    int64
	FavoritedBy int64
	FollowedBy  int64

	// ViewerID decides the Favorited flag on each result
	ViewerID int64

	Page     int
	PageSize int
}

// Offset returns the row offset for the filter's page (pages are 1-based)
func (f ArticleFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// Comment is a reply attached to an article
type Comment struct {
	ID        int64     `json:"id"`
	Body      string    `json:"body"`
	ArticleID int64     `json:"articleId"`
	UserID    int64     `json:"userId"`
	Author    Author    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// Tag is a topic label shared between articles
type Tag struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Articles int    `json:"articles,omitempty"`
}
