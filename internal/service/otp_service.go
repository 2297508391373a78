package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"helixdesk/internal/metrics"
	"helixdesk/internal/model"
)

const (
	otpMin   = 100000
	otpRange = 900000
)

type OTPConfig struct {
	TTL         time.Duration
	MailTimeout time.Duration
}

// OTPService issues and verifies the e-mailed second factor. A verified code
// is the only path to session tokens.
type OTPService struct {
	users   UserStore
	mailer  Mailer
	guard   AttemptGuard
	audit   AuditRecorder
	tokens  *TokenService
	metrics *metrics.Metrics
	cfg     OTPConfig
	now     Clock
	random  io.Reader
}

func NewOTPService(users UserStore, mailer Mailer, guard AttemptGuard, audit AuditRecorder, tokens *TokenService, m *metrics.Metrics, cfg OTPConfig) *OTPService {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.MailTimeout <= 0 {
		cfg.MailTimeout = 10 * time.Second
	}
	if guard == nil {
		guard = openGuard{}
	}

	return &OTPService{
		users:   users,
		mailer:  mailer,
		guard:   guard,
		audit:   audit,
		tokens:  tokens,
		metrics: m,
		cfg:     cfg,
		now:     time.Now,
		random:  rand.Reader,
	}
}

// Issue stores a fresh code on u, replacing any pending one, and mails it.
// A dispatch failure is audited and returned wrapping model.ErrUpstreamDispatch.
func (s *OTPService) Issue(ctx context.Context, u model.User) error {
	if err := s.guard.AllowIssue(ctx, u.Email); err != nil {
		s.metrics.OTP(metrics.OTPLocked)
		return err
	}

	code, err := generateCode(s.random)
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}

	expiresAt := s.now().UTC().Add(s.cfg.TTL)
	if err := s.users.SetOTP(ctx, u.ID, code, expiresAt); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.MailTimeout)
	defer cancel()

	if err := s.mailer.SendOTP(sendCtx, u.Email, code, s.cfg.TTL); err != nil {
		s.metrics.OTP(metrics.OTPDispatch)
		s.audit.Record(ctx, model.EventOTPFailed, &u.ID, "verification code could not be delivered", model.AuditError)
		slog.Error("otp dispatch failed", "user_id", u.ID, "error", err)
		return fmt.Errorf("%w: %w", model.ErrUpstreamDispatch, err)
	}

	s.metrics.OTP(metrics.OTPIssued)
	s.audit.Record(ctx, model.EventOTPSent, &u.ID, "verification code sent", model.AuditSuccess)
	return nil
}

// Verify consumes a pending code for email and mints a session. Every miss is
// reported as model.ErrInvalidOrExpiredCode regardless of whether the email
// belongs to an identity.
func (s *OTPService) Verify(ctx context.Context, email string, code string) (model.SessionTokens, error) {
	email = strings.TrimSpace(email)
	if email == "" || strings.TrimSpace(code) == "" {
		return model.SessionTokens{}, fmt.Errorf("%w: email and otp are required", model.ErrInvalidInput)
	}

	if err := s.guard.CheckVerify(ctx, email); err != nil {
		if errors.Is(err, model.ErrTooManyAttempts) {
			s.metrics.OTP(metrics.OTPLocked)
			s.audit.Record(ctx, model.EventOTPLocked, nil, "verification refused during lockout", model.AuditError)
		}
		return model.SessionTokens{}, err
	}

	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.SessionTokens{}, s.reject(ctx, email)
	}
	if err != nil {
		return model.SessionTokens{}, fmt.Errorf("load identity: %w", err)
	}

	now := s.now().UTC()
	if !u.OTP(now).Accepts(code) {
		return model.SessionTokens{}, s.reject(ctx, email)
	}

	consumed, err := s.users.ConsumeOTP(ctx, u.ID, code, now)
	if err != nil {
		return model.SessionTokens{}, fmt.Errorf("consume otp: %w", err)
	}
	if !consumed {
		// A concurrent verification or a re-issue won the race.
		return model.SessionTokens{}, s.reject(ctx, email)
	}

	if err := s.guard.Reset(ctx, email); err != nil {
		slog.Warn("reset otp attempts failed", "user_id", u.ID, "error", err)
	}

	tokens, err := s.mint(u)
	if err != nil {
		return model.SessionTokens{}, err
	}

	s.metrics.OTP(metrics.OTPVerified)
	s.audit.Record(ctx, model.EventAuthSuccess, &u.ID, "second factor verified", model.AuditSuccess)
	return tokens, nil
}

func (s *OTPService) reject(ctx context.Context, email string) error {
	s.metrics.OTP(metrics.OTPInvalid)
	s.audit.Record(ctx, model.EventOTPInvalid, nil, "invalid or expired verification code", model.AuditError)

	locked, err := s.guard.RecordFailure(ctx, email)
	if err != nil {
		slog.Warn("record otp failure failed", "error", err)
	}
	if locked {
		s.audit.Record(ctx, model.EventOTPLocked, nil, "verification locked after repeated failures", model.AuditError)
	}

	return model.ErrInvalidOrExpiredCode
}

func (s *OTPService) mint(u model.User) (model.SessionTokens, error) {
	access, accessExp, err := s.tokens.IssueAccessToken(u)
	if err != nil {
		return model.SessionTokens{}, err
	}
	refresh, refreshExp, err := s.tokens.IssueRefreshToken(u)
	if err != nil {
		return model.SessionTokens{}, err
	}

	return model.SessionTokens{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
		Role:             u.Role,
	}, nil
}

// generateCode returns a six digit code drawn uniformly from 100000-999999.
func generateCode(r io.Reader) (string, error) {
	n, err := rand.Int(r, big.NewInt(otpRange))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+otpMin), nil
}

// openGuard admits every request. It stands in when no attempt guard is configured.
type openGuard struct{}

func (openGuard) CheckVerify(context.Context, string) error           { return nil }
func (openGuard) RecordFailure(context.Context, string) (bool, error) { return false, nil }
func (openGuard) Reset(context.Context, string) error                 { return nil }
func (openGuard) AllowIssue(context.Context, string) error            { return nil }
