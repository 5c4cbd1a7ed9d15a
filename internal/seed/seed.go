// Package seed loads demo users, articles and tags from a YAML fixtures
// file into the database.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"conduit-backend/internal/auth"
	"conduit-backend/internal/database"
	"conduit-backend/internal/models"
	"conduit-backend/internal/validation"
)

// Fixtures is the root of a fixtures file
type Fixtures struct {
	Users []UserFixture `yaml:"users"`
}

// UserFixture describes one account and the content it owns
type UserFixture struct {
	Email    string           `yaml:"email"`
	Name     string           `yaml:"name"`
	Password string           `yaml:"password"`
	Bio      string           `yaml:"bio"`
	Avatar   string           `yaml:"avatar"`
	Follows  []string         `yaml:"follows"` // emails
	Articles []ArticleFixture `yaml:"articles"`
}

// ArticleFixture describes one article
type ArticleFixture struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Body        string   `yaml:"body"`
	Tags        []string `yaml:"tags"`
}

// Result counts what Apply created
type Result struct {
	Users    int
	Articles int
	Follows  int
}

// Load decodes fixtures from r. Unknown keys are rejected.
func Load(r io.Reader) (*Fixtures, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f Fixtures
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	return &f, nil
}

// LoadFile decodes the fixtures file at path
func LoadFile(path string) (*Fixtures, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Load(file)
}

// Seeder writes fixtures through the repositories
type Seeder struct {
	users      *database.UserRepo
	articles   *database.ArticleRepo
	bcryptCost int
	logger     *slog.Logger
}

// NewSeeder creates a seeder
func NewSeeder(users *database.UserRepo, articles *database.ArticleRepo, bcryptCost int, logger *slog.Logger) *Seeder {
	return &Seeder{users: users, articles: articles, bcryptCost: bcryptCost, logger: logger}
}

// Apply creates every user in f that does not exist yet, together with
// their articles, then links follows. Users that already exist keep their
// content, so applying the same file twice creates nothing new.
func (s *Seeder) Apply(ctx context.Context, f *Fixtures) (Result, error) {
	var res Result
	ids := make(map[string]int64, len(f.Users))

	for i, uf := range f.Users {
		if _, err := validation.Validate(map[string]string{
			"name":  uf.Name,
			"email": uf.Email,
		}, validation.BaseUserSchema); err != nil {
			return res, fmt.Errorf("user %d: %w", i, err)
		}

		existing, err := s.users.GetByEmail(ctx, uf.Email)
		if err == nil {
			ids[uf.Email] = existing.ID
			s.logger.Debug("fixture user exists", "email", uf.Email)
			continue
		}
		if !errors.Is(err, database.ErrUserNotFound) {
			return res, err
		}

		hash, err := auth.HashPassword(uf.Password, s.bcryptCost)
		if err != nil {
			return res, err
		}
		user := &models.User{
			Email:        uf.Email,
			Name:         uf.Name,
			PasswordHash: hash,
			Bio:          uf.Bio,
			Avatar:       uf.Avatar,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return res, fmt.Errorf("create user %s: %w", uf.Email, err)
		}
		ids[uf.Email] = user.ID
		res.Users++

		for _, af := range uf.Articles {
			article := &models.Article{
				Title:       af.Title,
				Description: af.Description,
				Body:        af.Body,
				AuthorID:    user.ID,
			}
			if err := s.articles.Create(ctx, article, af.Tags); err != nil {
				return res, fmt.Errorf("create article %q: %w", af.Title, err)
			}
			res.Articles++
		}
	}

	for _, uf := range f.Users {
		for _, email := range uf.Follows {
			followed, ok := ids[email]
			if !ok {
				return res, fmt.Errorf("user %s follows unknown user %s", uf.Email, email)
			}
			if err := s.users.Follow(ctx, ids[uf.Email], followed); err != nil {
				return res, err
			}
			res.Follows++
		}
	}

	s.logger.Info("fixtures applied", "users", res.Users, "articles", res.Articles, "follows", res.Follows)
	return res, nil
}
