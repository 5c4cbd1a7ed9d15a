package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// ErrMissingIDToken is returned when the token response has no id_token
var ErrMissingIDToken = errors.New("no id_token in token response")

// OIDCConfig configures sign-in through an OpenID Connect provider
type OIDCConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Claims to read; default to "email" and "name"
	EmailClaim string
	NameClaim  string
}

// OIDCUserInfo is the identity extracted from a verified ID token
type OIDCUserInfo struct {
	Subject string
	Email   string
	Name    string
}

// OIDCClient wraps the go-oidc provider for the authorization code flow
type OIDCClient struct {
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
	config       OIDCConfig
}

// NewOIDCClient discovers the provider at cfg.IssuerURL
func NewOIDCClient(ctx context.Context, cfg OIDCConfig) (*OIDCClient, error) {
	if cfg.IssuerURL == "" {
		return nil, fmt.Errorf("issuer URL is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	provider, err := oidc.NewProvider(initCtx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OIDC provider: %w", err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	return &OIDCClient{
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		config:   cfg,
	}, nil
}

// AuthURL returns the provider's authorization URL for state
func (c *OIDCClient) AuthURL(state string) string {
	return c.oauth2Config.AuthCodeURL(state)
}

// Exchange trades an authorization code for tokens, verifies the ID token
// and returns the identity it carries.
func (c *OIDCClient) Exchange(ctx context.Context, code string) (*OIDCUserInfo, error) {
	exchangeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	token, err := c.oauth2Config.Exchange(exchangeCtx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, ErrMissingIDToken
	}

	idToken, err := c.verifier.Verify(exchangeCtx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to extract claims: %w", err)
	}
	return c.config.userInfo(idToken.Subject, claims), nil
}

func (cfg OIDCConfig) userInfo(subject string, claims map[string]interface{}) *OIDCUserInfo {
	info := &OIDCUserInfo{Subject: subject}

	emailClaim := cfg.EmailClaim
	if emailClaim == "" {
		emailClaim = "email"
	}
	if email, ok := claims[emailClaim].(string); ok {
		info.Email = email
	}

	nameClaim := cfg.NameClaim
	if nameClaim == "" {
		nameClaim = "name"
	}
	if name, ok := claims[nameClaim].(string); ok {
		info.Name = name
	} else if given, ok := claims["given_name"].(string); ok {
		info.Name = given
		if family, ok := claims["family_name"].(string); ok {
			info.Name += " " + family
		}
	} else if username, ok := claims["preferred_username"].(string); ok {
		info.Name = username
	}

	return info
}

// NewState returns an unguessable value for the OAuth2 state parameter
func NewState() string {
	return uuid.NewString()
}
