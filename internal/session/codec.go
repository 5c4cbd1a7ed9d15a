package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSecrets is returned when a manager is built without signing secrets
var ErrNoSecrets = errors.New("session: at least one secret is required")

// claims is the signed cookie body. Cookie-backed sessions carry Data;
// store-backed sessions carry only the row id in the jti claim.
type claims struct {
	Data *Data `json:"data,omitempty"`
	jwt.RegisteredClaims
}

// codec signs cookie values with the first secret and accepts any of them,
// so secrets can be rotated by prepending a new one.
type codec struct {
	secrets [][]byte
	now     func() time.Time
}

func newCodec(secrets []string, now func() time.Time) (*codec, error) {
	if len(secrets) == 0 {
		return nil, ErrNoSecrets
	}
	c := &codec{now: now}
	for _, s := range secrets {
		if s == "" {
			return nil, ErrNoSecrets
		}
		c.secrets = append(c.secrets, []byte(s))
	}
	return c, nil
}

func (c *codec) encode(id string, data *Data, expiresAt time.Time) (string, error) {
	cl := &claims{
		Data: data,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       id,
			IssuedAt: jwt.NewNumericDate(c.now()),
		},
	}
	if !expiresAt.IsZero() {
		cl.ExpiresAt = jwt.NewNumericDate(expiresAt)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, cl)
	signed, err := token.SignedString(c.secrets[0])
	if err != nil {
		return "", fmt.Errorf("sign session cookie: %w", err)
	}
	return signed, nil
}

func (c *codec) decode(value string) (*claims, error) {
	var lastErr error
	for _, secret := range c.secrets {
		cl := &claims{}
		token, err := jwt.ParseWithClaims(value, cl, func(*jwt.Token) (interface{}, error) {
			return secret, nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithTimeFunc(c.now),
		)
		if err == nil && token.Valid {
			return cl, nil
		}
		if err == nil {
			err = jwt.ErrTokenInvalidClaims
		}
		// Only a signature mismatch is worth retrying with the next secret
		if !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}
