package model

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleAgent   Role = "AGENT"
	RoleEndUser Role = "END_USER"
)

// ParseRole maps the role spellings seen in stored data and requests onto the
// closed set of roles. Legacy aliases such as "USER" resolve to END_USER.
func ParseRole(raw string) (Role, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)

	switch normalized {
	case "ADMIN":
		return RoleAdmin, nil
	case "AGENT":
		return RoleAgent, nil
	case "END_USER", "ENDUSER", "USER":
		return RoleEndUser, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAgent, RoleEndUser:
		return true
	default:
		return false
	}
}

type User struct {
	ID               int64
	Email            string
	GoogleID         *string
	FullName         string
	AvatarURL        *string
	PasswordHash     *string
	Department       *string
	Role             Role
	OTPCode          *string
	OTPExpiresAt     *time.Time
	TwoFactorEnabled bool
	TokensValidAfter *time.Time
	CreatedAt        time.Time
}

// OTP reports the one-time code state stored on the row at the given instant.
func (u User) OTP(now time.Time) OTPState {
	if u.OTPCode == nil || u.OTPExpiresAt == nil {
		return OTPState{Status: OTPNone}
	}

	state := OTPState{Status: OTPPending, Code: *u.OTPCode, ExpiresAt: *u.OTPExpiresAt}
	if !now.Before(state.ExpiresAt) {
		state.Status = OTPExpired
	}

	return state
}

// IssuedBeforeRevocation reports whether a token issued at issuedAt predates the
// identity's revocation marker. Token timestamps carry second precision, so a
// token minted in the same second as the marker but before it is rejected too.
func (u User) IssuedBeforeRevocation(issuedAt time.Time) bool {
	if u.TokensValidAfter == nil {
		return false
	}

	return issuedAt.Before(*u.TokensValidAfter)
}

func (u User) Profile() UserProfile {
	return UserProfile{
		ID:        u.ID,
		FullName:  u.FullName,
		Email:     u.Email,
		Role:      u.Role,
		AvatarURL: u.AvatarURL,
	}
}

type OTPStatus int

const (
	OTPNone OTPStatus = iota
	OTPPending
	OTPExpired
)

func (s OTPStatus) String() string {
	switch s {
	case OTPPending:
		return "pending"
	case OTPExpired:
		return "expired"
	default:
		return "none"
	}
}

type OTPState struct {
	Status    OTPStatus
	Code      string
	ExpiresAt time.Time
}

// Accepts reports whether code may consume this state. Only a pending code
// that matches exactly is accepted.
func (s OTPState) Accepts(code string) bool {
	if s.Status != OTPPending || s.Code == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(s.Code), []byte(code)) == 1
}

// ExternalProfile is the identity asserted by an OAuth provider after a
// verified code exchange.
type ExternalProfile struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	AvatarURL     string
}

type AuthClaims struct {
	UserID    int64
	Email     string
	Role      Role
	Type      string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type UserProfile struct {
	ID        int64   `json:"id"`
	FullName  string  `json:"full_name"`
	Email     string  `json:"email"`
	Role      Role    `json:"role"`
	AvatarURL *string `json:"avatar_url"`
}

type UserSummary struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	AvatarURL *string   `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

type UserList struct {
	Users []UserSummary `json:"users"`
}

// SessionTokens carries freshly minted credentials back to the HTTP layer,
// which owns the cookies.
type SessionTokens struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	Role             Role
}

type RegisterRequest struct {
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Department string `json:"department"`
}

type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}

type RoleResponse struct {
	Role Role `json:"role"`
}
