package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"helixdesk/internal/model"
)

func newSessionFixture(t *testing.T, now *time.Time) (*SessionService, *TokenService, *MockUserStore, *MockAuditStore) {
	t.Helper()
	clock := func() time.Time { return *now }
	tokens := newTestTokenService(t, clock)
	users := new(MockUserStore)
	audit := new(MockAuditStore)

	svc := NewSessionService(users, tokens, NewAuditService(audit, nil), nil)
	svc.now = clock

	t.Cleanup(func() {
		users.AssertExpectations(t)
		audit.AssertExpectations(t)
	})
	return svc, tokens, users, audit
}

func TestRefresh(t *testing.T) {
	t.Run("missing cookie is unauthenticated", func(t *testing.T) {
		now := fixedNow
		svc, _, _, _ := newSessionFixture(t, &now)

		_, err := svc.Refresh(context.Background(), "")
		require.ErrorIs(t, err, model.ErrUnauthenticated)
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		now := fixedNow
		svc, _, _, _ := newSessionFixture(t, &now)

		_, err := svc.Refresh(context.Background(), "not.a.jwt")
		require.ErrorIs(t, err, model.ErrSessionRejected)
	})

	t.Run("role change is visible in the next access token", func(t *testing.T) {
		now := fixedNow
		svc, tokens, users, _ := newSessionFixture(t, &now)
		user := model.User{ID: 9, Email: "x@x.com", Role: model.RoleEndUser}

		refresh, _, err := tokens.IssueRefreshToken(user)
		require.NoError(t, err)

		promoted := user
		promoted.Role = model.RoleAgent
		users.On("FindByID", mock.Anything, int64(9)).Return(promoted, nil).Once()

		now = fixedNow.Add(20 * time.Minute)
		out, err := svc.Refresh(context.Background(), refresh)
		require.NoError(t, err)
		require.Equal(t, model.RoleAgent, out.Role)
		require.Empty(t, out.RefreshToken)

		claims, err := tokens.ParseAccessToken(out.AccessToken)
		require.NoError(t, err)
		require.Equal(t, model.RoleAgent, claims.Role)
	})

	t.Run("token issued before the revocation marker is rejected", func(t *testing.T) {
		now := fixedNow
		svc, tokens, users, _ := newSessionFixture(t, &now)
		user := model.User{ID: 9, Email: "x@x.com", Role: model.RoleEndUser}

		refresh, _, err := tokens.IssueRefreshToken(user)
		require.NoError(t, err)

		revoked := user
		revoked.TokensValidAfter = ptr(fixedNow.Add(time.Minute))
		users.On("FindByID", mock.Anything, int64(9)).Return(revoked, nil).Once()

		now = fixedNow.Add(2 * time.Minute)
		_, err = svc.Refresh(context.Background(), refresh)
		require.ErrorIs(t, err, model.ErrSessionRejected)
	})

	t.Run("token issued after the marker is accepted", func(t *testing.T) {
		now := fixedNow
		svc, tokens, users, _ := newSessionFixture(t, &now)
		user := model.User{ID: 9, Email: "x@x.com", Role: model.RoleEndUser, TokensValidAfter: ptr(fixedNow.Add(-time.Hour))}

		refresh, _, err := tokens.IssueRefreshToken(user)
		require.NoError(t, err)
		users.On("FindByID", mock.Anything, int64(9)).Return(user, nil).Once()

		_, err = svc.Refresh(context.Background(), refresh)
		require.NoError(t, err)
	})

	t.Run("deleted identity is rejected", func(t *testing.T) {
		now := fixedNow
		svc, tokens, users, _ := newSessionFixture(t, &now)

		refresh, _, err := tokens.IssueRefreshToken(model.User{ID: 77})
		require.NoError(t, err)
		users.On("FindByID", mock.Anything, int64(77)).Return(model.User{}, model.ErrUserNotFound).Once()

		_, err = svc.Refresh(context.Background(), refresh)
		require.ErrorIs(t, err, model.ErrSessionRejected)
	})

	t.Run("expired refresh token is rejected", func(t *testing.T) {
		now := fixedNow
		svc, tokens, _, _ := newSessionFixture(t, &now)

		refresh, _, err := tokens.IssueRefreshToken(model.User{ID: 9})
		require.NoError(t, err)

		now = fixedNow.Add(8 * 24 * time.Hour)
		_, err = svc.Refresh(context.Background(), refresh)
		require.ErrorIs(t, err, model.ErrSessionRejected)
	})
}

func TestLogout(t *testing.T) {
	t.Run("revokes the identity named by the refresh cookie", func(t *testing.T) {
		now := fixedNow
		svc, tokens, users, audit := newSessionFixture(t, &now)

		refresh, _, err := tokens.IssueRefreshToken(model.User{ID: 9})
		require.NoError(t, err)

		users.On("SetTokensValidAfter", mock.Anything, int64(9), fixedNow).Return(nil).Once()
		audit.On("Append", mock.Anything, auditEvent(model.EventLogout, model.AuditSuccess)).Return(nil).Once()

		require.NoError(t, svc.Logout(context.Background(), "", refresh))
	})

	t.Run("falls back to the access cookie", func(t *testing.T) {
		now := fixedNow
		svc, tokens, users, audit := newSessionFixture(t, &now)

		access, _, err := tokens.IssueAccessToken(model.User{ID: 4, Email: "a@x.com", Role: model.RoleAdmin})
		require.NoError(t, err)

		users.On("SetTokensValidAfter", mock.Anything, int64(4), fixedNow).Return(nil).Once()
		audit.On("Append", mock.Anything, auditEvent(model.EventLogout, model.AuditSuccess)).Return(nil).Once()

		require.NoError(t, svc.Logout(context.Background(), access, "garbage"))
	})

	t.Run("no usable cookie is a quiet no-op", func(t *testing.T) {
		now := fixedNow
		svc, _, users, _ := newSessionFixture(t, &now)

		require.NoError(t, svc.Logout(context.Background(), "", ""))
		users.AssertNotCalled(t, "SetTokensValidAfter", mock.Anything, mock.Anything, mock.Anything)
	})
}
