package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"conduit-backend/internal/models"
)

var ErrCommentNotFound = errors.New("comment not found")

// CommentRepo handles comment database operations
type CommentRepo struct {
	db *sql.DB
}

// NewCommentRepo creates a new comment repository
func NewCommentRepo(db *sql.DB) *CommentRepo {
	return &CommentRepo{db: db}
}

// Create adds a comment to an article and fills in its author
func (r *CommentRepo) Create(ctx context.Context, comment *models.Comment) error {
	var exists int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles WHERE id = ?", comment.ArticleID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrArticleNotFound
	}

	comment.CreatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO comments (body, article_id, user_id, created_at) VALUES (?, ?, ?, ?)
	`, comment.Body, comment.ArticleID, comment.UserID, comment.CreatedAt)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	comment.ID = id

	err = r.db.QueryRowContext(ctx, "SELECT id, name, avatar FROM users WHERE id = ?", comment.UserID).
		Scan(&comment.Author.ID, &comment.Author.Name, &comment.Author.Avatar)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	return err
}

// ListByArticle returns an article's comments, newest first
func (r *CommentRepo) ListByArticle(ctx context.Context, articleID int64) ([]*models.Comment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.body, c.article_id, c.user_id, c.created_at, u.name, u.avatar
		FROM comments c JOIN users u ON u.id = c.user_id
		WHERE c.article_id = ?
		ORDER BY c.created_at DESC, c.id DESC
	`, articleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := []*models.Comment{}
	for rows.Next() {
		c := &models.Comment{}
		err := rows.Scan(&c.ID, &c.Body, &c.ArticleID, &c.UserID, &c.CreatedAt, &c.Author.Name, &c.Author.Avatar)
		if err != nil {
			return nil, err
		}
		c.Author.ID = c.UserID
		comments = append(comments, c)
	}

	return comments, rows.Err()
}

// Delete removes a comment on articleID written by userID
func (r *CommentRepo) Delete(ctx context.Context, id, articleID, userID int64) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM comments WHERE id = ? AND article_id = ? AND user_id = ?", id, articleID, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrCommentNotFound
	}
	return nil
}
