package auth

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"conduit-backend/internal/database"
	"conduit-backend/internal/models"
	"conduit-backend/internal/validation"
)

func newTestService(t *testing.T) (*Service, *database.UserRepo) {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "conduit.db")})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := database.NewUserRepo(db)
	svc, err := NewService(users, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc, users
}

func TestRegister_HashesPassword(t *testing.T) {
	svc, users := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Jake", "jake@example.com", "Aa123456!")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	stored, err := users.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.PasswordHash == "Aa123456!" {
		t.Fatal("password stored in plain text")
	}
	if ok, err := VerifyPassword("Aa123456!", stored.PasswordHash); err != nil || !ok {
		t.Errorf("VerifyPassword() = %v, %v, want true", ok, err)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "Jake", "jake@example.com", "Aa123456!"); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Register(ctx, "Jacob", "jake@example.com", "Aa123456!")

	var verr *validation.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Register() error = %v, want *ValidationError", err)
	}
	if got := verr.Fields["email"]; !reflect.DeepEqual(got, []string{"has already been taken"}) {
		t.Errorf("email errors = %v", got)
	}
}

func TestRegister_ShortPassword(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Register(context.Background(), "Jake", "jake@example.com", "short")

	var verr *validation.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Register() error = %v, want *ValidationError", err)
	}
	if len(verr.Fields["password"]) != 2 {
		t.Errorf("password errors = %v, want length and composition messages", verr.Fields["password"])
	}
}

func TestAuthenticate_Success(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	registered, err := svc.Register(ctx, "Jake", "jake@example.com", "Aa123456!")
	if err != nil {
		t.Fatal(err)
	}

	user, err := svc.Authenticate(ctx, "jake@example.com", "Aa123456!")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if user.ID != registered.ID {
		t.Errorf("Authenticate() user = %d, want %d", user.ID, registered.ID)
	}
}

func TestAuthenticate_FailuresAreIndistinguishable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "Jake", "jake@example.com", "Aa123456!"); err != nil {
		t.Fatal(err)
	}

	_, unknownErr := svc.Authenticate(ctx, "nobody@example.com", "Aa123456!")
	_, wrongErr := svc.Authenticate(ctx, "jake@example.com", "Wrong123!")

	var unknown, wrong *AuthenticationError
	if !errors.As(unknownErr, &unknown) {
		t.Fatalf("unknown email error = %v, want *AuthenticationError", unknownErr)
	}
	if !errors.As(wrongErr, &wrong) {
		t.Fatalf("wrong password error = %v, want *AuthenticationError", wrongErr)
	}

	a, _ := json.Marshal(unknown.Fields)
	b, _ := json.Marshal(wrong.Fields)
	if string(a) != string(b) {
		t.Errorf("error bodies differ: %s vs %s", a, b)
	}
	if string(a) != `{"email or password":["is invalid"]}` {
		t.Errorf("error body = %s", a)
	}
}

func TestAuthenticate_ValidatesInput(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Authenticate(context.Background(), "not-an-email", "")

	var verr *validation.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Authenticate() error = %v, want *ValidationError", err)
	}
	if _, ok := verr.Fields["email"]; !ok {
		t.Error("missing email error")
	}
	if _, ok := verr.Fields["password"]; !ok {
		t.Error("missing password error")
	}
}

func TestUpdateSettings(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	user, err := svc.Register(ctx, "Jake", "jake@example.com", "Aa123456!")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Register(ctx, "Anne", "anne@example.com", "Aa123456!"); err != nil {
		t.Fatal(err)
	}

	updated, err := svc.UpdateSettings(ctx, user.ID, models.UserSettings{
		Name:  "Jacob",
		Email: "jacob@example.com",
		Bio:   "I work at statefarm",
	})
	if err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}
	if updated.Name != "Jacob" || updated.Bio != "I work at statefarm" {
		t.Errorf("UpdateSettings() = %+v", updated)
	}
	// Blank password keeps the old one
	if _, err := svc.Authenticate(ctx, "jacob@example.com", "Aa123456!"); err != nil {
		t.Errorf("Authenticate() with old password error = %v", err)
	}

	if _, err := svc.UpdateSettings(ctx, user.ID, models.UserSettings{
		Name:     "Jacob",
		Email:    "jacob@example.com",
		Password: "Bb654321?",
	}); err != nil {
		t.Fatalf("UpdateSettings() password change error = %v", err)
	}
	if _, err := svc.Authenticate(ctx, "jacob@example.com", "Bb654321?"); err != nil {
		t.Errorf("Authenticate() with new password error = %v", err)
	}

	_, err = svc.UpdateSettings(ctx, user.ID, models.UserSettings{Name: "Jacob", Email: "anne@example.com"})
	var verr *validation.ValidationError
	if !errors.As(err, &verr) || verr.Fields["email"][0] != "has already been taken" {
		t.Errorf("UpdateSettings() taken email error = %v", err)
	}
}

func TestFindOrCreateOIDCUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	info := &OIDCUserInfo{Subject: "sub-1", Email: "sso@example.com"}
	first, err := svc.FindOrCreateOIDCUser(ctx, info)
	if err != nil {
		t.Fatalf("FindOrCreateOIDCUser() error = %v", err)
	}
	if first.Name != "sso" {
		t.Errorf("Name = %q, want local part of the email", first.Name)
	}

	again, err := svc.FindOrCreateOIDCUser(ctx, info)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != first.ID {
		t.Errorf("second sign-in created user %d, want %d", again.ID, first.ID)
	}

	if _, err := svc.FindOrCreateOIDCUser(ctx, &OIDCUserInfo{Subject: "sub-2"}); err == nil {
		t.Error("FindOrCreateOIDCUser() without email should fail")
	}
}

func TestOIDCConfig_UserInfo(t *testing.T) {
	tests := []struct {
		name   string
		cfg    OIDCConfig
		claims map[string]interface{}
		want   OIDCUserInfo
	}{
		{
			name:   "defaults",
			claims: map[string]interface{}{"email": "a@example.com", "name": "Ann Lee"},
			want:   OIDCUserInfo{Subject: "s", Email: "a@example.com", Name: "Ann Lee"},
		},
		{
			name:   "given and family names",
			claims: map[string]interface{}{"email": "a@example.com", "given_name": "Ann", "family_name": "Lee"},
			want:   OIDCUserInfo{Subject: "s", Email: "a@example.com", Name: "Ann Lee"},
		},
		{
			name:   "custom claims",
			cfg:    OIDCConfig{EmailClaim: "mail", NameClaim: "display"},
			claims: map[string]interface{}{"mail": "b@example.com", "display": "Bo"},
			want:   OIDCUserInfo{Subject: "s", Email: "b@example.com", Name: "Bo"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.userInfo("s", tt.claims)
			if *got != tt.want {
				t.Errorf("userInfo() = %+v, want %+v", *got, tt.want)
			}
		})
	}
}
