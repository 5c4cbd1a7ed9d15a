package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"conduit-backend/internal/database"
	"conduit-backend/internal/models"
	"conduit-backend/internal/validation"
)

// Service handles authentication and account management
type Service struct {
	users      *database.UserRepo
	bcryptCost int

	// dummyHash is compared against when the email is unknown so both
	// failure paths spend the same time in bcrypt.
	dummyHash string
}

// NewService creates a new auth service. bcryptCost of zero selects the
// bcrypt default.
func NewService(users *database.UserRepo, bcryptCost int) (*Service, error) {
	dummy, err := HashPassword(uuid.NewString(), bcryptCost)
	if err != nil {
		return nil, err
	}
	return &Service{
		users:      users,
		bcryptCost: bcryptCost,
		dummyHash:  dummy,
	}, nil
}

// Authenticate checks an email and password pair. Unknown emails and wrong
// passwords produce the same *AuthenticationError.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	if _, err := validation.Validate(map[string]string{
		"email":    email,
		"password": password,
	}, validation.LoginSchema); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, database.ErrUserNotFound) {
			return nil, fmt.Errorf("lookup user: %w", err)
		}
		// Burn the same bcrypt time as a real comparison
		_, _ = VerifyPassword(password, s.dummyHash)
		return nil, invalidCredentials()
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, invalidCredentials()
	}

	return user, nil
}

// Register validates the sign-up form and creates the user
func (s *Service) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	form, err := validation.Validate(map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	}, validation.CreateUserSchema)
	if err != nil {
		return nil, err
	}

	hash, err := HashPassword(form["password"], s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:         form["name"],
		Email:        form["email"],
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, database.ErrUserAlreadyExists) {
			return nil, validation.NewError("email", "has already been taken")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// UpdateSettings applies the settings form to userID. A blank password
// keeps the current one.
func (s *Service) UpdateSettings(ctx context.Context, userID int64, settings models.UserSettings) (*models.User, error) {
	form, err := validation.Validate(map[string]string{
		"name":     settings.Name,
		"email":    settings.Email,
		"bio":      settings.Bio,
		"avatar":   settings.Avatar,
		"password": settings.Password,
	}, validation.UpdateUserSchema)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.Name = form["name"]
	user.Email = form["email"]
	user.Bio = form["bio"]
	user.Avatar = form["avatar"]
	if form["password"] != "" {
		user.PasswordHash, err = HashPassword(form["password"], s.bcryptCost)
		if err != nil {
			return nil, err
		}
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, database.ErrUserAlreadyExists) {
			return nil, validation.NewError("email", "has already been taken")
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	return user, nil
}

// FindOrCreateOIDCUser returns the local account for an identity provider
// user, creating one on first sign-in. The account gets a random password
// so it can only sign in through the provider until the user sets one.
func (s *Service) FindOrCreateOIDCUser(ctx context.Context, info *OIDCUserInfo) (*models.User, error) {
	if info.Email == "" {
		return nil, validation.NewError("email", "can't be blank")
	}

	user, err := s.users.GetByEmail(ctx, info.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, database.ErrUserNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := HashPassword(uuid.NewString(), s.bcryptCost)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(info.Name)
	if name == "" {
		name = strings.SplitN(info.Email, "@", 2)[0]
	}

	user = &models.User{
		Name:         name,
		Email:        info.Email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}
