package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DefaultCookieName is the cookie used when Config.CookieName is empty
const DefaultCookieName = "real_world_remix_session"

// DefaultMaxAge is the session lifetime used when Config.MaxAge is zero
const DefaultMaxAge = 7 * 24 * time.Hour

// Config controls the session cookie
type Config struct {
	CookieName string
	Secrets    []string
	MaxAge     time.Duration
	Secure     bool

	// Now overrides the clock, for tests
	Now func() time.Time
}

// Manager resolves, commits and destroys sessions. With a nil Store the
// whole payload travels in the cookie; otherwise the cookie carries only
// the row id. A Manager is safe for concurrent use.
type Manager struct {
	cfg   Config
	codec *codec
	store Store
}

// NewManager creates a manager. store may be nil for cookie-backed sessions.
func NewManager(cfg Config, store Store) (*Manager, error) {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	c, err := newCodec(cfg.Secrets, cfg.Now)
	if err != nil {
		return nil, err
	}
	return &Manager{cfg: cfg, codec: c, store: store}, nil
}

// CookieName returns the name of the session cookie
func (m *Manager) CookieName() string {
	return m.cfg.CookieName
}

// Get resolves the session carried by r. A missing, malformed, tampered or
// expired cookie or row yields a fresh anonymous session. Only Store
// failures are returned as errors.
func (m *Manager) Get(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		return newSession(), nil
	}

	cl, err := m.codec.decode(cookie.Value)
	if err != nil {
		return newSession(), nil
	}

	if m.store == nil {
		s := &Session{ID: cl.ID}
		if cl.Data != nil {
			s.data = *cl.Data
		}
		s.data.normalize()
		if cl.ExpiresAt != nil {
			s.ExpiresAt = cl.ExpiresAt.Time
		}
		return s, nil
	}

	if cl.ID == "" {
		return newSession(), nil
	}
	return m.load(r.Context(), cl.ID)
}

func (m *Manager) load(ctx context.Context, id string) (*Session, error) {
	raw, expiresAt, found, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !found {
		return newSession(), nil
	}

	if !m.cfg.Now().Before(expiresAt) {
		if err := m.store.Delete(ctx, id); err != nil {
			return nil, fmt.Errorf("delete expired session: %w", err)
		}
		return newSession(), nil
	}

	s := &Session{ID: id, ExpiresAt: expiresAt}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return newSession(), nil
	}
	s.data.normalize()
	return s, nil
}

// Commit persists s and returns the cookie to send with the response.
// Flash messages popped during this request are not persisted.
func (m *Manager) Commit(ctx context.Context, s *Session) (*http.Cookie, error) {
	expiresAt := m.cfg.Now().Add(m.cfg.MaxAge)
	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	var (
		value string
		err   error
	)
	if m.store == nil {
		value, err = m.codec.encode(s.ID, &s.data, expiresAt)
	} else {
		var raw []byte
		raw, err = json.Marshal(&s.data)
		if err != nil {
			return nil, fmt.Errorf("marshal session: %w", err)
		}
		if err := m.store.Set(ctx, s.ID, raw, expiresAt); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
		// The row's expiry is authoritative; the cookie only names it
		value, err = m.codec.encode(s.ID, nil, time.Time{})
	}
	if err != nil {
		return nil, err
	}

	s.ExpiresAt = expiresAt
	return m.cookie(value, int(m.cfg.MaxAge/time.Second), expiresAt), nil
}

// Regenerate moves s to a fresh id, keeping its values. The old row is
// deleted so a token issued before a privilege change no longer resolves.
// Call it before committing a login.
func (m *Manager) Regenerate(ctx context.Context, s *Session) error {
	if m.store != nil && s.ID != "" {
		if err := m.store.Delete(ctx, s.ID); err != nil {
			return fmt.Errorf("regenerate session: %w", err)
		}
	}
	s.ID = uuid.NewString()
	return nil
}

// Destroy deletes the backing row, if any, and returns a cookie that
// clears the client's token.
func (m *Manager) Destroy(ctx context.Context, s *Session) (*http.Cookie, error) {
	if m.store != nil && s.ID != "" {
		if err := m.store.Delete(ctx, s.ID); err != nil {
			return nil, fmt.Errorf("destroy session: %w", err)
		}
	}
	*s = *newSession()
	return m.cookie("", -1, time.Unix(0, 0)), nil
}

// Messages pops the pending flash messages of s and commits it so they are
// not delivered again. The returned cookie is nil when s was never
// committed, as there is nothing to strip.
func (m *Manager) Messages(ctx context.Context, s *Session) (map[FlashKind]string, *http.Cookie, error) {
	msgs := s.Messages()
	if s.IsNew() {
		return msgs, nil, nil
	}
	cookie, err := m.Commit(ctx, s)
	if err != nil {
		return nil, nil, err
	}
	return msgs, cookie, nil
}

func (m *Manager) cookie(value string, maxAge int, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Expires:  expires.UTC(),
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
