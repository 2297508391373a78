package event

import "time"

type Type string

const (
	TypeTicketCreated       Type = "ticket.created"
	TypeTicketMessage       Type = "ticket.message"
	TypeTicketStatusChanged Type = "ticket.status_changed"
)

// Event is a notification fanned out to live subscribers. RequesterID lets
// subscribers limit delivery to the ticket's owner; Internal marks payloads
// that only staff may see.
type Event struct {
	ID          string    `json:"id"`
	Type        Type      `json:"type"`
	TicketID    int64     `json:"ticket_id"`
	RequesterID int64     `json:"-"`
	Internal    bool      `json:"-"`
	ActorID     int64     `json:"actor_id,omitempty"`
	Payload     any       `json:"payload"`
	Timestamp   time.Time `json:"timestamp"`
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func())
}
