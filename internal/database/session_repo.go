package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SessionRepo stores server-side session payloads keyed by an opaque id.
// It satisfies session.Store; expiry policy is enforced by the caller.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo creates a new session repository
func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Get retrieves the payload and expiry of a session row. found is false
// when no row has the given id.
func (r *SessionRepo) Get(ctx context.Context, id string) (data []byte, expiresAt time.Time, found bool, err error) {
	var expiresUnix int64
	err = r.db.QueryRowContext(ctx,
		"SELECT data, expires_at FROM sessions WHERE id = ?", id,
	).Scan(&data, &expiresUnix)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, err
	}
	return data, time.Unix(expiresUnix, 0), true, nil
}

// Set inserts or replaces a session row
func (r *SessionRepo) Set(ctx context.Context, id string, data []byte, expiresAt time.Time) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, data, expires_at, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at, updated_at = excluded.updated_at
	`, id, data, expiresAt.Unix(), now, now)
	return err
}

// Delete deletes a session row. Deleting a missing row is not an error.
func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	return err
}
