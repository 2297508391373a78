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
	"unicode/utf8"

	"helixdesk/internal/event"
	"helixdesk/internal/metrics"
	"helixdesk/internal/model"
)

const (
	ticketKeyAttempts = 5
	ticketKeySpace    = 100000
	maxSubjectLength  = 200
	maxMessageLength  = 10000
	defaultDepartment = "General"
	defaultCategory   = "General"
)

type TicketService struct {
	tickets     TicketStore
	attachments AttachmentStore
	audit       AuditRecorder
	events      Publisher
	metrics     *metrics.Metrics
	now         Clock
	random      io.Reader
}

func NewTicketService(tickets TicketStore, attachments AttachmentStore, audit AuditRecorder, events Publisher, m *metrics.Metrics) *TicketService {
	return &TicketService{
		tickets:     tickets,
		attachments: attachments,
		audit:       audit,
		events:      events,
		metrics:     m,
		now:         time.Now,
		random:      rand.Reader,
	}
}

// Create opens a ticket for requester. The attachment, when present, is stored
// first and removed again if the ticket cannot be written.
func (s *TicketService) Create(ctx context.Context, requester model.AuthClaims, in model.CreateTicketInput, upload *model.Upload) (model.Ticket, error) {
	subject := strings.TrimSpace(in.Subject)
	description := strings.TrimSpace(in.Description)
	if subject == "" || description == "" {
		return model.Ticket{}, fmt.Errorf("%w: subject and description are required", model.ErrInvalidInput)
	}
	if utf8.RuneCountInString(subject) > maxSubjectLength {
		return model.Ticket{}, fmt.Errorf("%w: subject exceeds %d characters", model.ErrInvalidInput, maxSubjectLength)
	}

	priority, err := model.ParsePriority(in.Priority)
	if err != nil {
		return model.Ticket{}, err
	}

	now := s.now().UTC()
	ticket := model.Ticket{
		RequesterID: requester.UserID,
		Subject:     subject,
		Description: description,
		Priority:    priority,
		Department:  orDefault(in.Department, defaultDepartment),
		Category:    orDefault(in.Category, defaultCategory),
		Status:      model.StatusOpen,
		DueDate:     now.Add(priority.ResponseWindow()),
	}

	var stored *model.StoredAttachment
	if upload != nil && s.attachments != nil {
		att, err := s.attachments.Save(ctx, *upload)
		if err != nil {
			return model.Ticket{}, err
		}
		stored = &att
		ticket.AttachmentURL = &att.URL
	}

	created, err := s.insertWithKey(ctx, ticket)
	if err != nil {
		if stored != nil {
			if rmErr := s.attachments.Remove(stored.Name); rmErr != nil {
				slog.Warn("remove orphaned attachment failed", "name", stored.Name, "error", rmErr)
			}
		}
		return model.Ticket{}, err
	}

	s.metrics.TicketCreated()
	s.audit.Record(ctx, model.EventTicketCreated, &requester.UserID,
		fmt.Sprintf("created ticket %s", created.TicketKey), model.AuditSuccess)
	s.publish(event.Event{
		Type:        event.TypeTicketCreated,
		TicketID:    created.ID,
		RequesterID: created.RequesterID,
		ActorID:     requester.UserID,
		Payload:     created,
	})

	return created, nil
}

func (s *TicketService) insertWithKey(ctx context.Context, t model.Ticket) (model.Ticket, error) {
	for attempt := 0; attempt < ticketKeyAttempts; attempt++ {
		n, err := rand.Int(s.random, big.NewInt(ticketKeySpace))
		if err != nil {
			return model.Ticket{}, fmt.Errorf("generate ticket key: %w", err)
		}
		t.TicketKey = fmt.Sprintf("TK-%05d", n.Int64())

		created, err := s.tickets.Create(ctx, t)
		if errors.Is(err, model.ErrTicketKeyConflict) {
			continue
		}
		return created, err
	}
	return model.Ticket{}, fmt.Errorf("allocate ticket key after %d attempts: %w", ticketKeyAttempts, model.ErrTicketKeyConflict)
}

func (s *TicketService) MyTickets(ctx context.Context, requesterID int64) (model.TicketList, error) {
	tickets, err := s.tickets.ListByRequester(ctx, requesterID)
	if err != nil {
		return model.TicketList{}, err
	}
	return ticketList(tickets), nil
}

func (s *TicketService) Queue(ctx context.Context) (model.TicketList, error) {
	tickets, err := s.tickets.ListQueue(ctx)
	if err != nil {
		return model.TicketList{}, err
	}
	return ticketList(tickets), nil
}

// Details returns the ticket and its thread as viewer may see them. End users
// see only their own tickets, and never internal notes.
func (s *TicketService) Details(ctx context.Context, viewer model.AuthClaims, id int64) (model.TicketDetails, error) {
	t, err := s.visibleTicket(ctx, viewer, id)
	if err != nil {
		return model.TicketDetails{}, err
	}

	messages, err := s.tickets.Messages(ctx, id, isStaff(viewer.Role))
	if err != nil {
		return model.TicketDetails{}, err
	}
	for i := range messages {
		messages[i].IsOwn = messages[i].SenderID == viewer.UserID
	}

	return model.TicketDetails{Ticket: t, Messages: messages}, nil
}

func (s *TicketService) AddMessage(ctx context.Context, sender model.AuthClaims, id int64, req model.AddMessageRequest) (model.TicketMessage, error) {
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return model.TicketMessage{}, fmt.Errorf("%w: message body is required", model.ErrInvalidInput)
	}
	if utf8.RuneCountInString(body) > maxMessageLength {
		return model.TicketMessage{}, fmt.Errorf("%w: message exceeds %d characters", model.ErrInvalidInput, maxMessageLength)
	}
	if req.IsInternal && !isStaff(sender.Role) {
		return model.TicketMessage{}, fmt.Errorf("%w: internal notes are restricted to staff", model.ErrForbidden)
	}

	t, err := s.visibleTicket(ctx, sender, id)
	if err != nil {
		return model.TicketMessage{}, err
	}

	msg, err := s.tickets.AddMessage(ctx, model.TicketMessage{
		TicketID:   t.ID,
		SenderID:   sender.UserID,
		Body:       body,
		IsInternal: req.IsInternal,
	})
	if err != nil {
		return model.TicketMessage{}, err
	}
	msg.IsOwn = true

	s.publish(event.Event{
		Type:        event.TypeTicketMessage,
		TicketID:    t.ID,
		RequesterID: t.RequesterID,
		Internal:    msg.IsInternal,
		ActorID:     sender.UserID,
		Payload:     msg,
	})
	return msg, nil
}

func (s *TicketService) UpdateStatus(ctx context.Context, actor model.AuthClaims, id int64, rawStatus string) (model.Ticket, error) {
	status, err := model.ParseStatus(rawStatus)
	if err != nil {
		return model.Ticket{}, err
	}

	t, err := s.tickets.UpdateStatus(ctx, id, status, s.now().UTC())
	if err != nil {
		return model.Ticket{}, err
	}

	s.publish(event.Event{
		Type:        event.TypeTicketStatusChanged,
		TicketID:    t.ID,
		RequesterID: t.RequesterID,
		ActorID:     actor.UserID,
		Payload:     t,
	})
	return t, nil
}

// visibleTicket loads id and hides other people's tickets from end users.
func (s *TicketService) visibleTicket(ctx context.Context, viewer model.AuthClaims, id int64) (model.Ticket, error) {
	t, err := s.tickets.FindByID(ctx, id)
	if err != nil {
		return model.Ticket{}, err
	}
	if !isStaff(viewer.Role) && t.RequesterID != viewer.UserID {
		return model.Ticket{}, model.ErrTicketNotFound
	}
	return t, nil
}

func (s *TicketService) publish(e event.Event) {
	if s.events != nil {
		s.events.Publish(e)
	}
}

func ticketList(tickets []model.Ticket) model.TicketList {
	if tickets == nil {
		tickets = []model.Ticket{}
	}
	return model.TicketList{Tickets: tickets}
}

func isStaff(role model.Role) bool {
	return role == model.RoleAdmin || role == model.RoleAgent
}

func orDefault(v string, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}
