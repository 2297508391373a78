package service

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"helixdesk/internal/model"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"

	tokenIssuer = "helixdesk"
)

type tokenClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	Type  string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies session tokens. Access and refresh tokens
// use separate secrets so one can never be replayed as the other.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           Clock
}

func NewTokenService(accessSecret string, refreshSecret string, accessTTL time.Duration, refreshTTL time.Duration) (*TokenService, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("token secrets must not be empty")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}

	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}, nil
}

// WithClock returns a copy of s that reads time from now.
func (s *TokenService) WithClock(now Clock) *TokenService {
	clone := *s
	clone.now = now
	return &clone
}

func (s *TokenService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *TokenService) IssueAccessToken(u model.User) (string, time.Time, error) {
	return s.sign(s.accessSecret, s.accessTTL, tokenClaims{
		Email: u.Email,
		Role:  string(u.Role),
		Type:  TokenTypeAccess,
	}, u.ID)
}

// IssueRefreshToken embeds only the identity id; role and email are re-read on refresh.
func (s *TokenService) IssueRefreshToken(u model.User) (string, time.Time, error) {
	return s.sign(s.refreshSecret, s.refreshTTL, tokenClaims{Type: TokenTypeRefresh}, u.ID)
}

func (s *TokenService) sign(secret []byte, ttl time.Duration, claims tokenClaims, userID int64) (string, time.Time, error) {
	now := s.now().UTC()
	expiresAt := now.Add(ttl)

	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   strconv.FormatInt(userID, 10),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", claims.Type, err)
	}
	return signed, expiresAt, nil
}

// ParseAccessToken verifies an access token. Any failure, including an
// unrecognized role, is reported as model.ErrInvalidSession.
func (s *TokenService) ParseAccessToken(raw string) (*model.AuthClaims, error) {
	claims, err := s.parse(raw, s.accessSecret, TokenTypeAccess)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidSession, err)
	}

	role, err := model.ParseRole(claims.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidSession, err)
	}
	claims.Role = string(role)

	return toAuthClaims(claims, model.ErrInvalidSession)
}

// ParseRefreshToken verifies a refresh token. Failures are model.ErrSessionRejected.
func (s *TokenService) ParseRefreshToken(raw string) (*model.AuthClaims, error) {
	claims, err := s.parse(raw, s.refreshSecret, TokenTypeRefresh)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrSessionRejected, err)
	}
	return toAuthClaims(claims, model.ErrSessionRejected)
}

func (s *TokenService) parse(raw string, secret []byte, expectedType string) (*tokenClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)

	claims := &tokenClaims{}
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims.Type != expectedType {
		return nil, fmt.Errorf("expected %s token, got %q", expectedType, claims.Type)
	}
	return claims, nil
}

func toAuthClaims(c *tokenClaims, failure error) (*model.AuthClaims, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: malformed subject %q", failure, c.Subject)
	}

	out := &model.AuthClaims{
		UserID:  id,
		Email:   c.Email,
		Role:    model.Role(c.Role),
		Type:    c.Type,
		TokenID: c.ID,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out, nil
}
