// Package oauth bridges the Google authorization code flow to HelixDesk
// identities. It verifies the provider's ID token and never mints sessions.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"helixdesk/internal/model"
)

const (
	ProviderGoogle = "google"
	googleIssuer   = "https://accounts.google.com"
)

var (
	ErrMissingIDToken = errors.New("provider did not return an id_token")
	ErrMissingClaims  = errors.New("id_token missing required claims")
)

// Provider is the slice of an OAuth identity provider the HTTP layer needs.
type Provider interface {
	AuthCodeURL(state, verifier string) string
	Exchange(ctx context.Context, code, verifier string) (model.ExternalProfile, error)
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Timeout      time.Duration
}

type GoogleProvider struct {
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
	timeout  time.Duration
}

// NewGoogleProvider performs OIDC discovery against Google, so ctx bounds a
// network round trip.
func NewGoogleProvider(ctx context.Context, cfg GoogleConfig) (*GoogleProvider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURL == "" {
		return nil, errors.New("google oauth config missing required fields")
	}

	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("init google oidc provider: %w", err)
	}

	return newGoogleProvider(cfg, provider.Endpoint(), provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})), nil
}

func newGoogleProvider(cfg GoogleConfig, endpoint oauth2.Endpoint, verifier *oidc.IDTokenVerifier) *GoogleProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: verifier,
		timeout:  cfg.Timeout,
	}
}

// AuthCodeURL builds the consent URL carrying state and the S256 PKCE challenge.
func (p *GoogleProvider) AuthCodeURL(state, verifier string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier))
}

// Exchange redeems code, verifies the returned ID token and extracts the
// asserted profile. The whole round trip is bounded by the configured timeout.
func (p *GoogleProvider) Exchange(ctx context.Context, code, verifier string) (model.ExternalProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	token, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return model.ExternalProfile{}, fmt.Errorf("google token exchange: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return model.ExternalProfile{}, ErrMissingIDToken
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return model.ExternalProfile{}, fmt.Errorf("verify google id_token: %w", err)
	}

	var claims struct {
		Subject       string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return model.ExternalProfile{}, fmt.Errorf("parse google id_token claims: %w", err)
	}
	if claims.Subject == "" || claims.Email == "" {
		return model.ExternalProfile{}, ErrMissingClaims
	}

	slog.Debug("google id_token verified",
		"email_verified", claims.EmailVerified,
		"expires_at", idToken.Expiry,
	)

	return model.ExternalProfile{
		Provider:      ProviderGoogle,
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		AvatarURL:     claims.Picture,
	}, nil
}
