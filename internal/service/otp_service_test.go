package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"helixdesk/internal/model"
)

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type otpFixture struct {
	users  *MockUserStore
	mailer *MockMailer
	guard  *MockAttemptGuard
	audit  *MockAuditStore
	svc    *OTPService
}

func newOTPFixture(t *testing.T) *otpFixture {
	t.Helper()

	f := &otpFixture{
		users:  new(MockUserStore),
		mailer: new(MockMailer),
		guard:  new(MockAttemptGuard),
		audit:  new(MockAuditStore),
	}
	clock := func() time.Time { return fixedNow }
	tokens := newTestTokenService(t, clock)

	f.svc = NewOTPService(f.users, f.mailer, f.guard, NewAuditService(f.audit, nil), tokens, nil,
		OTPConfig{TTL: 10 * time.Minute, MailTimeout: time.Second})
	f.svc.now = clock

	t.Cleanup(func() {
		f.users.AssertExpectations(t)
		f.mailer.AssertExpectations(t)
		f.guard.AssertExpectations(t)
		f.audit.AssertExpectations(t)
	})
	return f
}

func auditEvent(eventType model.AuditEventType, status model.AuditStatus) any {
	return mock.MatchedBy(func(e model.AuditEntry) bool {
		return e.EventType == eventType && e.Status == status
	})
}

func pendingUser(code string, expiresAt time.Time) model.User {
	return model.User{
		ID:           11,
		Email:        "new@x.com",
		FullName:     "New Person",
		Role:         model.RoleEndUser,
		OTPCode:      &code,
		OTPExpiresAt: &expiresAt,
	}
}

func TestOTPIssueThenVerify(t *testing.T) {
	f := newOTPFixture(t)
	user := model.User{ID: 11, Email: "new@x.com", Role: model.RoleEndUser}

	var issued string
	f.guard.On("AllowIssue", mock.Anything, "new@x.com").Return(nil).Once()
	f.users.On("SetOTP", mock.Anything, int64(11), mock.AnythingOfType("string"), fixedNow.Add(10*time.Minute)).
		Run(func(args mock.Arguments) { issued = args.String(2) }).
		Return(nil).Once()
	f.mailer.On("SendOTP", mock.Anything, "new@x.com", mock.AnythingOfType("string"), 10*time.Minute).
		Return(nil).Once()
	f.audit.On("Append", mock.Anything, auditEvent(model.EventOTPSent, model.AuditSuccess)).Return(nil).Once()

	require.NoError(t, f.svc.Issue(context.Background(), user))
	require.Regexp(t, regexp.MustCompile(`^[1-9][0-9]{5}$`), issued)
	f.mailer.AssertCalled(t, "SendOTP", mock.Anything, "new@x.com", issued, 10*time.Minute)

	f.guard.On("CheckVerify", mock.Anything, "new@x.com").Return(nil).Once()
	f.users.On("FindByEmail", mock.Anything, "new@x.com").
		Return(pendingUser(issued, fixedNow.Add(10*time.Minute)), nil).Once()
	f.users.On("ConsumeOTP", mock.Anything, int64(11), issued, fixedNow).Return(true, nil).Once()
	f.guard.On("Reset", mock.Anything, "new@x.com").Return(nil).Once()
	f.audit.On("Append", mock.Anything, auditEvent(model.EventAuthSuccess, model.AuditSuccess)).Return(nil).Once()

	tokens, err := f.svc.Verify(context.Background(), "new@x.com", issued)
	require.NoError(t, err)
	require.Equal(t, model.RoleEndUser, tokens.Role)
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)
	require.Equal(t, fixedNow.Add(15*time.Minute), tokens.AccessExpiresAt)
	require.Equal(t, fixedNow.Add(7*24*time.Hour), tokens.RefreshExpiresAt)
}

func TestOTPVerifyFailures(t *testing.T) {
	invalid := func(f *otpFixture) {
		f.guard.On("RecordFailure", mock.Anything, "new@x.com").Return(false, nil).Once()
		f.audit.On("Append", mock.Anything, mock.MatchedBy(func(e model.AuditEntry) bool {
			return e.EventType == model.EventOTPInvalid && e.Status == model.AuditError && e.UserID == nil
		})).Return(nil).Once()
	}

	t.Run("wrong code leaves the stored code alone", func(t *testing.T) {
		f := newOTPFixture(t)
		f.guard.On("CheckVerify", mock.Anything, "new@x.com").Return(nil).Once()
		f.users.On("FindByEmail", mock.Anything, "new@x.com").
			Return(pendingUser("123456", fixedNow.Add(5*time.Minute)), nil).Once()
		invalid(f)

		_, err := f.svc.Verify(context.Background(), "new@x.com", "654321")
		require.ErrorIs(t, err, model.ErrInvalidOrExpiredCode)
		f.users.AssertNotCalled(t, "ConsumeOTP", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.users.AssertNotCalled(t, "SetOTP", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("code is compared exactly", func(t *testing.T) {
		f := newOTPFixture(t)
		f.guard.On("CheckVerify", mock.Anything, "new@x.com").Return(nil).Once()
		f.users.On("FindByEmail", mock.Anything, "new@x.com").
			Return(pendingUser("123456", fixedNow.Add(5*time.Minute)), nil).Once()
		invalid(f)

		_, err := f.svc.Verify(context.Background(), " new@x.com ", " 123456")
		require.ErrorIs(t, err, model.ErrInvalidOrExpiredCode)
		f.users.AssertNotCalled(t, "ConsumeOTP", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("expired code fails even when it matches", func(t *testing.T) {
		f := newOTPFixture(t)
		f.guard.On("CheckVerify", mock.Anything, "new@x.com").Return(nil).Once()
		f.users.On("FindByEmail", mock.Anything, "new@x.com").
			Return(pendingUser("123456", fixedNow.Add(-time.Second)), nil).Once()
		invalid(f)

		_, err := f.svc.Verify(context.Background(), "new@x.com", "123456")
		require.ErrorIs(t, err, model.ErrInvalidOrExpiredCode)
		f.users.AssertNotCalled(t, "ConsumeOTP", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("code expiring exactly now is expired", func(t *testing.T) {
		f := newOTPFixture(t)
		f.guard.On("CheckVerify", mock.Anything, "new@x.com").Return(nil).Once()
		f.users.On("FindByEmail", mock.Anything, "new@x.com").
			Return(pendingUser("123456", fixedNow), nil).Once()
		invalid(f)

		_, err := f.svc.Verify(context.Background(), "new@x.com", "123456")
		require.ErrorIs(t, err, model.ErrInvalidOrExpiredCode)
	})

	t.Run("second verification with the same code fails", func(t *testing.T) {
		f := newOTPFixture(t)
		f.guard.On("CheckVerify", mock.Anything, "new@x.com").Return(nil).Twice()
		f.users.On("FindByEmail", mock.Anything, "new@x.com").
			Return(pendingUser("123456", fixedNow.Add(time.Minute)), nil).Once()
		f.users.On("ConsumeOTP", mock.Anything, int64(11), "123456", fixedNow).Return(true, nil).Once()
		f.guard.On("Reset", mock.Anything, "new@x.com").Return(nil).Once()
		f.audit.On("Append", mock.Anything, auditEvent(model.EventAuthSuccess, model.AuditSuccess)).Return(nil).Once()

		_, err := f.svc.Verify(context.Background(), "new@x.com", "123456")
		require.NoError(t, err)

		consumed := pendingUser("", time.Time{})
		consumed.OTPCode = nil
		consumed.OTPExpiresAt = nil
		f.users.On("FindByEmail", mock.Anything, "new@x.com").Return(consumed, nil).Once()
		invalid(f)

		_, err = f.svc.Verify(context.Background(), "new@x.com", "123456")
		require.ErrorIs(t, err, model.ErrInvalidOrExpiredCode)
	})

	t.Run("losing a concurrent consume fails", func(t *testing.T) {
		f := newOTPFixture(t)
		f.guard.On("CheckVerify", mock.Anything, "new@x.com").Return(nil).Once()
		f.users.On("FindByEmail", mock.Anything, "new@x.com").
			Return(pendingUser("123456", fixedNow.Add(time.Minute)), nil).Once()
		f.users.On("ConsumeOTP", mock.Anything, int64(11), "123456", fixedNow).Return(false, nil).Once()
		invalid(f)

		_, err := f.svc.Verify(context.Background(), "new@x.com", "123456")
		require.ErrorIs(t, err, model.ErrInvalidOrExpiredCode)
	})

	t.Run("unknown email looks like a wrong code", func(t *testing.T) {
		f := newOTPFixture(t)
		f.guard.On("CheckVerify", mock.Anything, "new@x.com").Return(nil).Once()
		f.users.On("FindByEmail", mock.Anything, "new@x.com").Return(model.User{}, model.ErrUserNotFound).Once()
		invalid(f)

		_, err := f.svc.Verify(context.Background(), "new@x.com", "123456")
		require.ErrorIs(t, err, model.ErrInvalidOrExpiredCode)
		require.NotErrorIs(t, err, model.ErrUserNotFound)
	})

	t.Run("missing fields fail before lookup", func(t *testing.T) {
		f := newOTPFixture(t)

		_, err := f.svc.Verify(context.Background(), "", "123456")
		require.ErrorIs(t, err, model.ErrInvalidInput)
		_, err = f.svc.Verify(context.Background(), "new@x.com", "  ")
		require.ErrorIs(t, err, model.ErrInvalidInput)

		f.users.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
	})

	t.Run("locked identity is refused without lookup", func(t *testing.T) {
		f := newOTPFixture(t)
		f.guard.On("CheckVerify", mock.Anything, "new@x.com").
			Return(fmt.Errorf("%w: retry later", model.ErrTooManyAttempts)).Once()
		f.audit.On("Append", mock.Anything, auditEvent(model.EventOTPLocked, model.AuditError)).Return(nil).Once()

		_, err := f.svc.Verify(context.Background(), "new@x.com", "123456")
		require.ErrorIs(t, err, model.ErrTooManyAttempts)
		f.users.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
	})

	t.Run("failure that trips the lockout is audited", func(t *testing.T) {
		f := newOTPFixture(t)
		f.guard.On("CheckVerify", mock.Anything, "new@x.com").Return(nil).Once()
		f.users.On("FindByEmail", mock.Anything, "new@x.com").
			Return(pendingUser("123456", fixedNow.Add(time.Minute)), nil).Once()
		f.guard.On("RecordFailure", mock.Anything, "new@x.com").Return(true, nil).Once()
		f.audit.On("Append", mock.Anything, auditEvent(model.EventOTPInvalid, model.AuditError)).Return(nil).Once()
		f.audit.On("Append", mock.Anything, auditEvent(model.EventOTPLocked, model.AuditError)).Return(nil).Once()

		_, err := f.svc.Verify(context.Background(), "new@x.com", "000000")
		require.ErrorIs(t, err, model.ErrInvalidOrExpiredCode)
	})
}

func TestOTPIssueFailures(t *testing.T) {
	user := model.User{ID: 11, Email: "new@x.com", Role: model.RoleEndUser}

	t.Run("dispatch failure is audited and surfaced", func(t *testing.T) {
		f := newOTPFixture(t)
		f.guard.On("AllowIssue", mock.Anything, "new@x.com").Return(nil).Once()
		f.users.On("SetOTP", mock.Anything, int64(11), mock.Anything, mock.Anything).Return(nil).Once()
		f.mailer.On("SendOTP", mock.Anything, "new@x.com", mock.Anything, mock.Anything).
			Return(errors.New("535 authentication failed")).Once()
		f.audit.On("Append", mock.Anything, mock.MatchedBy(func(e model.AuditEntry) bool {
			return e.EventType == model.EventOTPFailed && e.Status == model.AuditError &&
				e.UserID != nil && *e.UserID == 11
		})).Return(nil).Once()

		err := f.svc.Issue(context.Background(), user)
		require.ErrorIs(t, err, model.ErrUpstreamDispatch)
	})

	t.Run("issuance refused by the guard stores nothing", func(t *testing.T) {
		f := newOTPFixture(t)
		f.guard.On("AllowIssue", mock.Anything, "new@x.com").
			Return(fmt.Errorf("%w: issue limit", model.ErrTooManyAttempts)).Once()

		err := f.svc.Issue(context.Background(), user)
		require.ErrorIs(t, err, model.ErrTooManyAttempts)
		f.users.AssertNotCalled(t, "SetOTP", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.mailer.AssertNotCalled(t, "SendOTP", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("mail dispatch is bounded by a deadline", func(t *testing.T) {
		f := newOTPFixture(t)
		f.guard.On("AllowIssue", mock.Anything, "new@x.com").Return(nil).Once()
		f.users.On("SetOTP", mock.Anything, int64(11), mock.Anything, mock.Anything).Return(nil).Once()
		f.mailer.On("SendOTP", mock.MatchedBy(func(ctx context.Context) bool {
			_, ok := ctx.Deadline()
			return ok
		}), "new@x.com", mock.Anything, mock.Anything).Return(nil).Once()
		f.audit.On("Append", mock.Anything, auditEvent(model.EventOTPSent, model.AuditSuccess)).Return(nil).Once()

		require.NoError(t, f.svc.Issue(context.Background(), user))
	})
}

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 500; i++ {
		code, err := generateCode(rand.Reader)
		require.NoError(t, err)
		require.Len(t, code, 6)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, otpMin)
		require.Less(t, n, otpMin+otpRange)
	}
}
