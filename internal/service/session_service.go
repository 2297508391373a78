package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"helixdesk/internal/metrics"
	"helixdesk/internal/model"
)

// SessionService exchanges refresh tokens for access tokens and ends sessions.
type SessionService struct {
	users   UserStore
	tokens  *TokenService
	audit   AuditRecorder
	metrics *metrics.Metrics
	now     Clock
}

func NewSessionService(users UserStore, tokens *TokenService, audit AuditRecorder, m *metrics.Metrics) *SessionService {
	return &SessionService{users: users, tokens: tokens, audit: audit, metrics: m, now: time.Now}
}

// Refresh mints a new access token from a refresh token. The identity is
// re-read so the new token carries the current role. A missing token is
// model.ErrUnauthenticated; every other rejection is model.ErrSessionRejected.
func (s *SessionService) Refresh(ctx context.Context, rawRefresh string) (model.SessionTokens, error) {
	tokens, err := s.refresh(ctx, rawRefresh)
	s.metrics.Refresh(err == nil)
	return tokens, err
}

func (s *SessionService) refresh(ctx context.Context, rawRefresh string) (model.SessionTokens, error) {
	if rawRefresh == "" {
		return model.SessionTokens{}, model.ErrUnauthenticated
	}

	claims, err := s.tokens.ParseRefreshToken(rawRefresh)
	if err != nil {
		return model.SessionTokens{}, err
	}

	u, err := s.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.SessionTokens{}, fmt.Errorf("%w: identity no longer exists", model.ErrSessionRejected)
	}
	if err != nil {
		return model.SessionTokens{}, fmt.Errorf("load identity: %w", err)
	}

	if u.IssuedBeforeRevocation(claims.IssuedAt) {
		return model.SessionTokens{}, fmt.Errorf("%w: refresh token revoked", model.ErrSessionRejected)
	}

	access, accessExp, err := s.tokens.IssueAccessToken(u)
	if err != nil {
		return model.SessionTokens{}, err
	}

	return model.SessionTokens{AccessToken: access, AccessExpiresAt: accessExp, Role: u.Role}, nil
}

// Logout revokes the refresh tokens of whichever identity the presented
// cookies name. Unparseable or missing cookies are not an error: the caller
// clears cookies regardless.
func (s *SessionService) Logout(ctx context.Context, rawAccess string, rawRefresh string) error {
	userID, ok := s.identify(rawAccess, rawRefresh)
	if !ok {
		return nil
	}

	err := s.users.SetTokensValidAfter(ctx, userID, s.now().UTC())
	if errors.Is(err, model.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}

	s.audit.Record(ctx, model.EventLogout, &userID, "signed out", model.AuditSuccess)
	return nil
}

func (s *SessionService) identify(rawAccess string, rawRefresh string) (int64, bool) {
	if rawRefresh != "" {
		if claims, err := s.tokens.ParseRefreshToken(rawRefresh); err == nil {
			return claims.UserID, true
		}
	}
	if rawAccess != "" {
		if claims, err := s.tokens.ParseAccessToken(rawAccess); err == nil {
			return claims.UserID, true
		}
	}
	return 0, false
}
