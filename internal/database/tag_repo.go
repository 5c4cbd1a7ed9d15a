package database

import (
	"context"
	"database/sql"

	"conduit-backend/internal/models"
)

// TagRepo handles tag queries
type TagRepo struct {
	db *sql.DB
}

// NewTagRepo creates a new tag repository
func NewTagRepo(db *sql.DB) *TagRepo {
	return &TagRepo{db: db}
}

// Popular returns the most used tags. A non-positive limit returns all of them.
func (r *TagRepo) Popular(ctx context.Context, limit int) ([]*models.Tag, error) {
	query := `
		SELECT t.id, t.title, COUNT(at.article_id) AS uses
		FROM tags t LEFT JOIN article_tags at ON at.tag_id = t.id
		GROUP BY t.id, t.title
		ORDER BY uses DESC, t.title ASC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []*models.Tag{}
	for rows.Next() {
		t := &models.Tag{}
		if err := rows.Scan(&t.ID, &t.Title, &t.Articles); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}
