package model

import "time"

type AuditStatus string

const (
	AuditSuccess AuditStatus = "SUCCESS"
	AuditError   AuditStatus = "ERROR"
)

type AuditEventType string

const (
	EventOTPSent         AuditEventType = "AUTH_OTP_SENT"
	EventOTPFailed       AuditEventType = "AUTH_OTP_FAILED"
	EventOTPInvalid      AuditEventType = "AUTH_OTP_INVALID"
	EventOTPLocked       AuditEventType = "AUTH_OTP_LOCKED"
	EventAuthSuccess     AuditEventType = "AUTH_SUCCESS"
	EventLogout          AuditEventType = "AUTH_LOGOUT"
	EventUserRegistered  AuditEventType = "USER_REGISTERED"
	EventUserRoleUpdated AuditEventType = "USER_ROLE_UPDATED"
	EventSessionsRevoked AuditEventType = "USER_SESSIONS_REVOKED"
	EventTicketCreated   AuditEventType = "TICKET_CREATED"
)

// AuditEntry is one row of the append-only system log. UserID is nil for
// events that cannot be attributed to an identity.
type AuditEntry struct {
	ID        int64          `json:"id"`
	EventType AuditEventType `json:"event_type"`
	UserID    *int64         `json:"user_id"`
	Details   string         `json:"details"`
	Status    AuditStatus    `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	FullName  *string        `json:"full_name,omitempty"`
	Email     *string        `json:"email,omitempty"`
}

type AuditListData struct {
	Items []AuditEntry `json:"items"`
}

// AuditQuery filters the admin log view. Zero values match everything.
type AuditQuery struct {
	EventType string
	Status    string
	UserID    *int64
	Limit     int
}
