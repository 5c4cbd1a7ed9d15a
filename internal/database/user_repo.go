package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"conduit-backend/internal/models"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
)

// UserRepo handles user database operations
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo creates a new user repository
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, email, name, password_hash, bio, avatar, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.Name, &user.PasswordHash,
		&user.Bio, &user.Avatar, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Create creates a new user. Emails are unique.
func (r *UserRepo) Create(ctx context.Context, user *models.User) error {
	exists, err := r.ExistsByEmail(ctx, user.Email)
	if err != nil {
		return err
	}
	if exists {
		return ErrUserAlreadyExists
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO users (email, name, password_hash, bio, avatar, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, user.Email, user.Name, user.PasswordHash, user.Bio, user.Avatar, now, now)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

// GetByEmail retrieves a user by email
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email))
}

// Update updates a user's profile fields and password hash
func (r *UserRepo) Update(ctx context.Context, user *models.User) error {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE email = ? AND id != ?", user.Email, user.ID,
	).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrUserAlreadyExists
	}

	user.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET
			email = ?,
			name = ?,
			password_hash = ?,
			bio = ?,
			avatar = ?,
			updated_at = ?
		WHERE id = ?
	`, user.Email, user.Name, user.PasswordHash, user.Bio, user.Avatar, user.UpdatedAt, user.ID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

// Count returns the total number of users
func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

// ExistsByEmail checks if a user with the given email exists
func (r *UserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE email = ?", email).Scan(&count)
	return count > 0, err
}

// Profile returns the public view of a user. viewerID may be zero for
// anonymous visitors, in which case IsFollowing is always false.
func (r *UserRepo) Profile(ctx context.Context, id, viewerID int64) (*models.Profile, error) {
	p := &models.Profile{}
	err := r.db.QueryRowContext(ctx, `
		SELECT u.id, u.name, u.bio, u.avatar,
		       EXISTS(SELECT 1 FROM follows f WHERE f.followed_id = u.id AND f.follower_id = ?)
		FROM users u WHERE u.id = ?
	`, viewerID, id).Scan(&p.ID, &p.Name, &p.Bio, &p.Avatar, &p.IsFollowing)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Follow makes followerID follow followedID. Following twice is a no-op.
func (r *UserRepo) Follow(ctx context.Context, followerID, followedID int64) error {
	if _, err := r.GetByID(ctx, followedID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO follows (follower_id, followed_id, created_at) VALUES (?, ?, ?)
	`, followerID, followedID, time.Now().UTC())
	return err
}

// Unfollow removes a follow relation if it exists
func (r *UserRepo) Unfollow(ctx context.Context, followerID, followedID int64) error {
	if _, err := r.GetByID(ctx, followedID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM follows WHERE follower_id = ? AND followed_id = ?", followerID, followedID)
	return err
}
