package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"helixdesk/internal/model"
)

const (
	bcryptCost        = 12
	minPasswordLength = 8
	maxPasswordLength = 72
)

// IdentityService owns the identity lifecycle: linking external accounts,
// registration and the administrative operations on identities.
type IdentityService struct {
	users UserStore
	otp   OTPIssuer
	audit AuditRecorder
	now   Clock
	cost  int
}

func NewIdentityService(users UserStore, otp OTPIssuer, audit AuditRecorder) *IdentityService {
	return &IdentityService{users: users, otp: otp, audit: audit, now: time.Now, cost: bcryptCost}
}

// ResolveExternal maps a verified provider profile to exactly one identity,
// matched by email. An unlinked identity gets the provider subject attached;
// an unknown email becomes a new END_USER.
func (s *IdentityService) ResolveExternal(ctx context.Context, p model.ExternalProfile) (model.User, error) {
	email := strings.TrimSpace(p.Email)
	if email == "" || p.Subject == "" {
		return model.User{}, fmt.Errorf("%w: provider profile lacks email or subject", model.ErrInvalidInput)
	}
	if !p.EmailVerified {
		return model.User{}, fmt.Errorf("%w: provider email is not verified", model.ErrInvalidInput)
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return s.link(ctx, u, p)
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, fmt.Errorf("look up identity: %w", err)
	}

	subject := p.Subject
	created, err := s.users.Create(ctx, model.User{
		Email:     email,
		GoogleID:  &subject,
		FullName:  displayName(p.Name, email),
		AvatarURL: optionalString(p.AvatarURL),
		Role:      model.RoleEndUser,
	})
	if errors.Is(err, model.ErrUserAlreadyExists) {
		// A concurrent callback created the row first.
		u, err := s.users.FindByEmail(ctx, email)
		if err != nil {
			return model.User{}, fmt.Errorf("re-read identity after conflict: %w", err)
		}
		return s.link(ctx, u, p)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("create identity: %w", err)
	}

	slog.Info("identity created from provider", "user_id", created.ID, "provider", p.Provider)
	return created, nil
}

func (s *IdentityService) link(ctx context.Context, u model.User, p model.ExternalProfile) (model.User, error) {
	if u.GoogleID != nil {
		if *u.GoogleID != p.Subject {
			slog.Warn("provider subject differs from linked subject", "user_id", u.ID, "provider", p.Provider)
		}
		return u, nil
	}

	linked, err := s.users.LinkGoogle(ctx, u.ID, p.Subject, optionalString(p.AvatarURL))
	if err != nil {
		return model.User{}, fmt.Errorf("link identity: %w", err)
	}
	slog.Info("identity linked to provider", "user_id", u.ID, "provider", p.Provider)
	return linked, nil
}

// SignInExternal resolves the identity and starts the second factor. It never
// mints session tokens. The resolved identity is returned even when OTP
// issuance fails.
func (s *IdentityService) SignInExternal(ctx context.Context, p model.ExternalProfile) (model.User, error) {
	u, err := s.ResolveExternal(ctx, p)
	if err != nil {
		return model.User{}, err
	}

	if err := s.otp.Issue(ctx, u); err != nil {
		return u, err
	}
	return u, nil
}

// Register creates a password identity and sends its first verification code.
func (s *IdentityService) Register(ctx context.Context, req model.RegisterRequest) (string, error) {
	fullName := strings.TrimSpace(req.FullName)
	email := strings.TrimSpace(req.Email)

	if fullName == "" || email == "" || req.Password == "" {
		return "", fmt.Errorf("%w: full_name, email and password are required", model.ErrInvalidInput)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: email is not a valid address", model.ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(req.Password); n < minPasswordLength || len(req.Password) > maxPasswordLength {
		return "", fmt.Errorf("%w: password must be %d to %d characters", model.ErrInvalidInput, minPasswordLength, maxPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	hashed := string(hash)

	created, err := s.users.Create(ctx, model.User{
		Email:        email,
		FullName:     fullName,
		PasswordHash: &hashed,
		Department:   optionalString(req.Department),
		Role:         model.RoleEndUser,
	})
	if err != nil {
		return "", err
	}

	s.audit.Record(ctx, model.EventUserRegistered, &created.ID, "account registered", model.AuditSuccess)

	if err := s.otp.Issue(ctx, created); err != nil {
		return created.Email, err
	}
	return created.Email, nil
}

func (s *IdentityService) Profile(ctx context.Context, id int64) (model.UserProfile, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return model.UserProfile{}, err
	}
	return u.Profile(), nil
}

func (s *IdentityService) ListUsers(ctx context.Context) (model.UserList, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return model.UserList{}, err
	}

	out := model.UserList{Users: make([]model.UserSummary, 0, len(users))}
	for _, u := range users {
		out.Users = append(out.Users, summarize(u))
	}
	return out, nil
}

// UpdateRole changes the target's role. The change reaches the target's
// access token at its next refresh.
func (s *IdentityService) UpdateRole(ctx context.Context, actorID int64, targetID int64, rawRole string) (model.UserSummary, error) {
	role, err := model.ParseRole(rawRole)
	if err != nil {
		return model.UserSummary{}, err
	}

	u, err := s.users.UpdateRole(ctx, targetID, role)
	if err != nil {
		return model.UserSummary{}, err
	}

	s.audit.Record(ctx, model.EventUserRoleUpdated, &actorID,
		fmt.Sprintf("changed user %d role to %s", targetID, role), model.AuditSuccess)
	return summarize(u), nil
}

// RevokeSessions invalidates every refresh token issued to the target so far.
func (s *IdentityService) RevokeSessions(ctx context.Context, actorID int64, targetID int64) error {
	if err := s.users.SetTokensValidAfter(ctx, targetID, s.now().UTC()); err != nil {
		return err
	}

	s.audit.Record(ctx, model.EventSessionsRevoked, &actorID,
		fmt.Sprintf("revoked sessions of user %d", targetID), model.AuditSuccess)
	return nil
}

func summarize(u model.User) model.UserSummary {
	return model.UserSummary{
		ID:        u.ID,
		FullName:  u.FullName,
		Email:     u.Email,
		Role:      u.Role,
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
	}
}

func displayName(name string, email string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
