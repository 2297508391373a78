package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"helixdesk/internal/model"
)

func newTestTokenService(t *testing.T, now func() time.Time) *TokenService {
	t.Helper()
	svc, err := NewTokenService("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)
	return svc.WithClock(now)
}

func TestNewTokenServiceRejectsWeakConfig(t *testing.T) {
	_, err := NewTokenService("", "refresh", time.Minute, time.Hour)
	require.Error(t, err)

	_, err = NewTokenService("same", "same", time.Minute, time.Hour)
	require.Error(t, err)

	_, err = NewTokenService("a", "b", 0, time.Hour)
	require.Error(t, err)
}

func TestTokenService(t *testing.T) {
	issued := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	user := model.User{ID: 7, Email: "agent@helixdesk.io", Role: model.RoleAgent}

	t.Run("access token round trip", func(t *testing.T) {
		svc := newTestTokenService(t, func() time.Time { return issued })

		raw, exp, err := svc.IssueAccessToken(user)
		require.NoError(t, err)
		require.Equal(t, issued.Add(15*time.Minute), exp)

		claims, err := svc.ParseAccessToken(raw)
		require.NoError(t, err)
		require.Equal(t, int64(7), claims.UserID)
		require.Equal(t, model.RoleAgent, claims.Role)
		require.Equal(t, "agent@helixdesk.io", claims.Email)
		require.Equal(t, TokenTypeAccess, claims.Type)
		require.NotEmpty(t, claims.TokenID)
		require.True(t, claims.IssuedAt.Equal(issued))
		require.True(t, claims.ExpiresAt.Equal(issued.Add(15*time.Minute)))
	})

	t.Run("access token expires after fifteen minutes", func(t *testing.T) {
		raw, _, err := newTestTokenService(t, func() time.Time { return issued }).IssueAccessToken(user)
		require.NoError(t, err)

		later := newTestTokenService(t, func() time.Time { return issued.Add(16 * time.Minute) })
		_, err = later.ParseAccessToken(raw)
		require.ErrorIs(t, err, model.ErrInvalidSession)
	})

	t.Run("refresh token carries only the id", func(t *testing.T) {
		svc := newTestTokenService(t, func() time.Time { return issued })

		raw, exp, err := svc.IssueRefreshToken(user)
		require.NoError(t, err)
		require.Equal(t, issued.Add(7*24*time.Hour), exp)

		claims, err := svc.ParseRefreshToken(raw)
		require.NoError(t, err)
		require.Equal(t, int64(7), claims.UserID)
		require.Empty(t, claims.Email)
		require.Empty(t, claims.Role)
	})

	t.Run("token types are not interchangeable", func(t *testing.T) {
		svc := newTestTokenService(t, func() time.Time { return issued })

		access, _, err := svc.IssueAccessToken(user)
		require.NoError(t, err)
		refresh, _, err := svc.IssueRefreshToken(user)
		require.NoError(t, err)

		_, err = svc.ParseRefreshToken(access)
		require.ErrorIs(t, err, model.ErrSessionRejected)

		_, err = svc.ParseAccessToken(refresh)
		require.ErrorIs(t, err, model.ErrInvalidSession)
	})

	t.Run("tampered token is rejected", func(t *testing.T) {
		svc := newTestTokenService(t, func() time.Time { return issued })
		raw, _, err := svc.IssueAccessToken(user)
		require.NoError(t, err)

		_, err = svc.ParseAccessToken(raw[:len(raw)-2] + "xy")
		require.ErrorIs(t, err, model.ErrInvalidSession)
	})

	t.Run("unknown role is an invalid session", func(t *testing.T) {
		svc := newTestTokenService(t, func() time.Time { return issued })
		raw, _, err := svc.IssueAccessToken(model.User{ID: 1, Email: "x@y.z", Role: "SUPERUSER"})
		require.NoError(t, err)

		_, err = svc.ParseAccessToken(raw)
		require.ErrorIs(t, err, model.ErrInvalidSession)
	})

	t.Run("legacy role spelling is normalized", func(t *testing.T) {
		svc := newTestTokenService(t, func() time.Time { return issued })
		raw, _, err := svc.IssueAccessToken(model.User{ID: 1, Email: "x@y.z", Role: "user"})
		require.NoError(t, err)

		claims, err := svc.ParseAccessToken(raw)
		require.NoError(t, err)
		require.Equal(t, model.RoleEndUser, claims.Role)
	})
}
