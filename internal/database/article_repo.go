package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"conduit-backend/internal/models"
)

var ErrArticleNotFound = errors.New("article not found")

// ArticleRepo handles article, tag link and favorite operations
type ArticleRepo struct {
	db *sql.DB
}

// NewArticleRepo creates a new article repository
func NewArticleRepo(db *sql.DB) *ArticleRepo {
	return &ArticleRepo{db: db}
}

// Create inserts an article together with its tags. Unknown tags are created.
func (r *ArticleRepo) Create(ctx context.Context, article *models.Article, tags []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, `
		INSERT INTO articles (title, description, body, author_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, article.Title, article.Description, article.Body, article.AuthorID, now, now)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	if err := linkTags(ctx, tx, id, tags); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	article.ID = id
	article.Tags = normalizeTags(tags)
	article.CreatedAt = now
	article.UpdatedAt = now
	return nil
}

// Update replaces an article's content and tag set
func (r *ArticleRepo) Update(ctx context.Context, article *models.Article, tags []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	article.UpdatedAt = time.Now().UTC()
	result, err := tx.ExecContext(ctx, `
		UPDATE articles SET title = ?, description = ?, body = ?, updated_at = ? WHERE id = ?
	`, article.Title, article.Description, article.Body, article.UpdatedAt, article.ID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrArticleNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM article_tags WHERE article_id = ?", article.ID); err != nil {
		return err
	}
	if err := linkTags(ctx, tx, article.ID, tags); err != nil {
		return err
	}

	article.Tags = normalizeTags(tags)
	return tx.Commit()
}

// Delete removes an article; comments, favorites and tag links cascade
func (r *ArticleRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM articles WHERE id = ?", id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrArticleNotFound
	}
	return nil
}

const articleSelect = `
	SELECT a.id, a.title, a.description, a.body, a.author_id, a.created_at, a.updated_at,
	       u.name, u.avatar,
	       (SELECT COUNT(*) FROM favorites f WHERE f.article_id = a.id),
	       EXISTS(SELECT 1 FROM favorites f WHERE f.article_id = a.id AND f.user_id = ?),
	       EXISTS(SELECT 1 FROM follows fo WHERE fo.followed_id = a.author_id AND fo.follower_id = ?)
	FROM articles a JOIN users u ON u.id = a.author_id`

func scanArticle(row interface{ Scan(...any) error }) (*models.Article, error) {
	a := &models.Article{Tags: []string{}}
	err := row.Scan(
		&a.ID, &a.Title, &a.Description, &a.Body, &a.AuthorID, &a.CreatedAt, &a.UpdatedAt,
		&a.Author.Name, &a.Author.Avatar, &a.FavoritesCount, &a.Favorited, &a.Author.IsFollowing,
	)
	if err != nil {
		return nil, err
	}
	a.Author.ID = a.AuthorID
	return a, nil
}

// GetByID retrieves a single article as seen by viewerID (zero for anonymous)
func (r *ArticleRepo) GetByID(ctx context.Context, id, viewerID int64) (*models.Article, error) {
	a, err := scanArticle(r.db.QueryRowContext(ctx, articleSelect+" WHERE a.id = ?", viewerID, viewerID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrArticleNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := r.attachTags(ctx, []*models.Article{a}); err != nil {
		return nil, err
	}
	return a, nil
}

// filterClause builds the WHERE clause shared by Previews and Count
func filterClause(filter models.ArticleFilter) (string, []any) {
	clause := " WHERE 1=1"
	args := []any{}

	if filter.Tag != "" {
		clause += ` AND EXISTS (
			SELECT 1 FROM article_tags at JOIN tags t ON t.id = at.tag_id
			WHERE at.article_id = a.id AND t.title = ?)`
		args = append(args, filter.Tag)
	}
	if filter.AuthorID != 0 {
		clause += " AND a.author_id = ?"
		args = append(args, filter.AuthorID)
	}
	if filter.FavoritedBy != 0 {
		clause += " AND EXISTS (SELECT 1 FROM favorites fb WHERE fb.article_id = a.id AND fb.user_id = ?)"
		args = append(args, filter.FavoritedBy)
	}
	if filter.FollowedBy != 0 {
		clause += " AND a.author_id IN (SELECT followed_id FROM follows WHERE follower_id = ?)"
		args = append(args, filter.FollowedBy)
	}

	return clause, args
}

// Previews lists one page of articles, newest first
func (r *ArticleRepo) Previews(ctx context.Context, filter models.ArticleFilter) ([]*models.Article, error) {
	clause, whereArgs := filterClause(filter)

	args := append([]any{filter.ViewerID, filter.ViewerID}, whereArgs...)
	query := articleSelect + clause + " ORDER BY a.created_at DESC, a.id DESC"
	if filter.PageSize > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.PageSize, filter.Offset())
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	articles := []*models.Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachTags(ctx, articles); err != nil {
		return nil, err
	}
	return articles, nil
}

// Count returns how many articles match the filter, ignoring pagination
func (r *ArticleRepo) Count(ctx context.Context, filter models.ArticleFilter) (int, error) {
	clause, args := filterClause(filter)

	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles a"+clause, args...).Scan(&count)
	return count, err
}

// Favorite marks an article as favorited by userID. Repeating it is a no-op.
func (r *ArticleRepo) Favorite(ctx context.Context, articleID, userID int64) error {
	if err := r.ensureExists(ctx, articleID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO favorites (user_id, article_id, created_at) VALUES (?, ?, ?)
	`, userID, articleID, time.Now().UTC())
	return err
}

// Unfavorite removes userID's favorite from an article
func (r *ArticleRepo) Unfavorite(ctx context.Context, articleID, userID int64) error {
	if err := r.ensureExists(ctx, articleID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM favorites WHERE user_id = ? AND article_id = ?", userID, articleID)
	return err
}

func (r *ArticleRepo) ensureExists(ctx context.Context, id int64) error {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles WHERE id = ?", id).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return ErrArticleNotFound
	}
	return nil
}

// attachTags loads tag titles for a batch of articles in one query
func (r *ArticleRepo) attachTags(ctx context.Context, articles []*models.Article) error {
	if len(articles) == 0 {
		return nil
	}

	byID := make(map[int64]*models.Article, len(articles))
	placeholders := make([]string, 0, len(articles))
	args := make([]any, 0, len(articles))
	for _, a := range articles {
		byID[a.ID] = a
		placeholders = append(placeholders, "?")
		args = append(args, a.ID)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT at.article_id, t.title
		FROM article_tags at JOIN tags t ON t.id = at.tag_id
		WHERE at.article_id IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY t.title
	`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var articleID int64
		var title string
		if err := rows.Scan(&articleID, &title); err != nil {
			return err
		}
		if a, ok := byID[articleID]; ok {
			a.Tags = append(a.Tags, title)
		}
	}
	return rows.Err()
}

func linkTags(ctx context.Context, tx *sql.Tx, articleID int64, tags []string) error {
	for _, title := range normalizeTags(tags) {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO tags (title) VALUES (?)", title); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO article_tags (article_id, tag_id)
			SELECT ?, id FROM tags WHERE title = ?
		`, articleID, title)
		if err != nil {
			return err
		}
	}
	return nil
}

// normalizeTags trims, drops empties and de-duplicates while keeping order
func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
