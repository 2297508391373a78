package model

import (
	"fmt"
	"io"
	"strings"
	"time"
)

type TicketPriority string

const (
	PriorityLow    TicketPriority = "LOW"
	PriorityMedium TicketPriority = "MEDIUM"
	PriorityHigh   TicketPriority = "HIGH"
	PriorityUrgent TicketPriority = "URGENT"
)

func ParsePriority(raw string) (TicketPriority, error) {
	switch p := TicketPriority(strings.ToUpper(strings.TrimSpace(raw))); p {
	case "":
		return PriorityLow, nil
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p, nil
	default:
		return "", fmt.Errorf("%w: priority %q", ErrInvalidInput, raw)
	}
}

// ResponseWindow is the time allowed before a ticket of this priority breaches its SLA.
func (p TicketPriority) ResponseWindow() time.Duration {
	switch p {
	case PriorityUrgent:
		return 4 * time.Hour
	case PriorityHigh:
		return 24 * time.Hour
	case PriorityMedium:
		return 72 * time.Hour
	default:
		return 120 * time.Hour
	}
}

type TicketStatus string

const (
	StatusOpen       TicketStatus = "OPEN"
	StatusInProgress TicketStatus = "IN_PROGRESS"
	StatusResolved   TicketStatus = "RESOLVED"
	StatusClosed     TicketStatus = "CLOSED"
)

func ParseStatus(raw string) (TicketStatus, error) {
	switch s := TicketStatus(strings.ToUpper(strings.TrimSpace(raw))); s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return s, nil
	default:
		return "", fmt.Errorf("%w: status %q", ErrInvalidInput, raw)
	}
}

type Ticket struct {
	ID            int64          `json:"id"`
	TicketKey     string         `json:"ticket_key"`
	RequesterID   int64          `json:"requester_id"`
	AssigneeID    *int64         `json:"assignee_id"`
	Subject       string         `json:"subject"`
	Description   string         `json:"description"`
	Priority      TicketPriority `json:"priority"`
	Department    string         `json:"department"`
	Category      string         `json:"category"`
	Status        TicketStatus   `json:"status"`
	AttachmentURL *string        `json:"attachment_url"`
	DueDate       time.Time      `json:"due_date"`
	ResolvedAt    *time.Time     `json:"resolved_at"`
	CreatedAt     time.Time      `json:"created_at"`
}

type TicketMessage struct {
	ID           int64     `json:"id"`
	TicketID     int64     `json:"ticket_id"`
	SenderID     int64     `json:"sender_id"`
	Body         string    `json:"message_body"`
	IsInternal   bool      `json:"is_internal"`
	CreatedAt    time.Time `json:"created_at"`
	SenderName   string    `json:"sender_name"`
	SenderAvatar *string   `json:"sender_avatar"`
	IsOwn        bool      `json:"is_own"`
}

type TicketDetails struct {
	Ticket
	Messages []TicketMessage `json:"messages"`
}

type TicketList struct {
	Tickets []Ticket `json:"tickets"`
}

type CreateTicketInput struct {
	Subject     string
	Description string
	Priority    string
	Department  string
	Category    string
}

// Upload is an attachment received with a ticket. Reader is consumed once.
type Upload struct {
	Filename string
	Reader   io.Reader
}

type StoredAttachment struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

type AddMessageRequest struct {
	Body       string `json:"body"`
	IsInternal bool   `json:"is_internal"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type DepartmentLoad struct {
	Department string  `json:"department"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// TicketStats holds raw aggregates. Nil pointers mean there was nothing to aggregate.
type TicketStats struct {
	Volume               int
	AvgResolutionSeconds *float64
	SLACompliance        *float64
	Departments          []DepartmentLoad
}

type AdminStats struct {
	TicketVolume  int              `json:"ticketVolume"`
	AvgResolution *string          `json:"avgResolution"`
	SLACompliance *float64         `json:"slaCompliance"`
	ActiveAgents  int              `json:"activeAgents"`
	Departments   []DepartmentLoad `json:"departments"`
}
