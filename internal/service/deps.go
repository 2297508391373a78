package service

import (
	"context"
	"time"

	"helixdesk/internal/event"
	"helixdesk/internal/model"
)

type UserStore interface {
	FindByID(ctx context.Context, id int64) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	Create(ctx context.Context, u model.User) (model.User, error)
	LinkGoogle(ctx context.Context, id int64, googleID string, avatarURL *string) (model.User, error)
	SetOTP(ctx context.Context, id int64, code string, expiresAt time.Time) error
	ConsumeOTP(ctx context.Context, id int64, code string, now time.Time) (bool, error)
	UpdateRole(ctx context.Context, id int64, role model.Role) (model.User, error)
	SetTokensValidAfter(ctx context.Context, id int64, at time.Time) error
	List(ctx context.Context) ([]model.User, error)
	CountByRole(ctx context.Context, role model.Role) (int, error)
}

type AuditStore interface {
	Append(ctx context.Context, entry model.AuditEntry) error
	Recent(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, error)
}

type TicketStore interface {
	Create(ctx context.Context, t model.Ticket) (model.Ticket, error)
	FindByID(ctx context.Context, id int64) (model.Ticket, error)
	ListByRequester(ctx context.Context, requesterID int64) ([]model.Ticket, error)
	ListQueue(ctx context.Context) ([]model.Ticket, error)
	AddMessage(ctx context.Context, m model.TicketMessage) (model.TicketMessage, error)
	Messages(ctx context.Context, ticketID int64, includeInternal bool) ([]model.TicketMessage, error)
	UpdateStatus(ctx context.Context, id int64, status model.TicketStatus, now time.Time) (model.Ticket, error)
	Stats(ctx context.Context, now time.Time) (model.TicketStats, error)
}

// Mailer delivers one-time codes. Implementations must honor ctx cancellation.
type Mailer interface {
	SendOTP(ctx context.Context, to string, code string, ttl time.Duration) error
}

// AttemptGuard throttles OTP traffic per email. Errors returned by CheckVerify
// and AllowIssue wrap model.ErrTooManyAttempts when the caller is refused.
type AttemptGuard interface {
	CheckVerify(ctx context.Context, email string) error
	RecordFailure(ctx context.Context, email string) (bool, error)
	Reset(ctx context.Context, email string) error
	AllowIssue(ctx context.Context, email string) error
}

type AttachmentStore interface {
	Save(ctx context.Context, upload model.Upload) (model.StoredAttachment, error)
	Remove(name string) error
}

// AuditRecorder is the write side of the audit sink as seen by other services.
type AuditRecorder interface {
	Record(ctx context.Context, eventType model.AuditEventType, userID *int64, details string, status model.AuditStatus)
}

// OTPIssuer starts the second factor for an identity.
type OTPIssuer interface {
	Issue(ctx context.Context, u model.User) error
}

type Publisher interface {
	Publish(e event.Event)
}

// Clock returns the current time. Services default to time.Now.
type Clock func() time.Time
