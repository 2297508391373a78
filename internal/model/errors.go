package model

import "errors"

var (
	// Identity related errors
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrInvalidRole       = errors.New("invalid role")

	// Session related errors
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrInvalidSession       = errors.New("invalid session")
	ErrSessionRejected      = errors.New("session rejected")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	ErrTooManyAttempts      = errors.New("too many attempts")

	// Upstream related errors
	ErrUpstreamDispatch = errors.New("upstream dispatch failure")

	// Ticket related errors
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrTicketKeyConflict = errors.New("ticket key conflict")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
