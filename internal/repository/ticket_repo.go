package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"helixdesk/internal/model"
)

const ticketColumns = `id, ticket_key, requester_id, assignee_id, subject, description, priority,
	department, category, status, attachment_url, due_date, resolved_at, created_at`

type TicketRepository struct {
	pool *pgxpool.Pool
}

func NewTicketRepository(pool *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{pool: pool}
}

func scanTicket(row pgx.Row) (model.Ticket, error) {
	var (
		t        model.Ticket
		priority string
		status   string
	)
	err := row.Scan(&t.ID, &t.TicketKey, &t.RequesterID, &t.AssigneeID, &t.Subject, &t.Description,
		&priority, &t.Department, &t.Category, &status, &t.AttachmentURL, &t.DueDate,
		&t.ResolvedAt, &t.CreatedAt)
	if err != nil {
		return model.Ticket{}, err
	}
	t.Priority = model.TicketPriority(priority)
	t.Status = model.TicketStatus(status)
	return t, nil
}

func collectTickets(rows pgx.Rows) ([]model.Ticket, error) {
	defer rows.Close()

	tickets := make([]model.Ticket, 0)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// Create inserts t. A ticket_key collision is reported as ErrTicketKeyConflict
// so the caller can draw a new key.
func (r *TicketRepository) Create(ctx context.Context, t model.Ticket) (model.Ticket, error) {
	status := t.Status
	if status == "" {
		status = model.StatusOpen
	}

	created, err := scanTicket(r.pool.QueryRow(ctx,
		`INSERT INTO tickets (ticket_key, requester_id, subject, description, priority, department,
		                      category, status, attachment_url, due_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+ticketColumns,
		t.TicketKey, t.RequesterID, t.Subject, t.Description, string(t.Priority), t.Department,
		t.Category, string(status), t.AttachmentURL, t.DueDate))
	if isPgError(err, pgUniqueViolation) {
		return model.Ticket{}, model.ErrTicketKeyConflict
	}
	if err != nil {
		return model.Ticket{}, fmt.Errorf("create ticket: %w", err)
	}
	return created, nil
}

func (r *TicketRepository) FindByID(ctx context.Context, id int64) (model.Ticket, error) {
	t, err := scanTicket(r.pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Ticket{}, model.ErrTicketNotFound
	}
	if err != nil {
		return model.Ticket{}, fmt.Errorf("find ticket: %w", err)
	}
	return t, nil
}

func (r *TicketRepository) ListByRequester(ctx context.Context, requesterID int64) ([]model.Ticket, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE requester_id = $1 ORDER BY created_at DESC`, requesterID)
	if err != nil {
		return nil, fmt.Errorf("list tickets by requester: %w", err)
	}
	return collectTickets(rows)
}

// ListQueue returns open and in-progress tickets, most urgent first, then by due date.
func (r *TicketRepository) ListQueue(ctx context.Context) ([]model.Ticket, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+ticketColumns+` FROM tickets
		 WHERE status IN ('OPEN', 'IN_PROGRESS')
		 ORDER BY CASE priority WHEN 'URGENT' THEN 0 WHEN 'HIGH' THEN 1 WHEN 'MEDIUM' THEN 2 ELSE 3 END,
		          due_date ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list ticket queue: %w", err)
	}
	return collectTickets(rows)
}

func (r *TicketRepository) AddMessage(ctx context.Context, m model.TicketMessage) (model.TicketMessage, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO ticket_messages (ticket_id, sender_id, message_body, is_internal)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		m.TicketID, m.SenderID, m.Body, m.IsInternal).Scan(&m.ID, &m.CreatedAt)
	if isPgError(err, pgForeignKeyViolation) {
		return model.TicketMessage{}, model.ErrTicketNotFound
	}
	if err != nil {
		return model.TicketMessage{}, fmt.Errorf("add ticket message: %w", err)
	}
	return m, nil
}

// Messages returns the thread oldest first. Internal notes are included only
// when includeInternal is set.
func (r *TicketRepository) Messages(ctx context.Context, ticketID int64, includeInternal bool) ([]model.TicketMessage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT m.id, m.ticket_id, m.sender_id, m.message_body, m.is_internal, m.created_at,
		        u.full_name, u.avatar_url
		 FROM ticket_messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.ticket_id = $1 AND ($2 OR NOT m.is_internal)
		 ORDER BY m.created_at ASC, m.id ASC`, ticketID, includeInternal)
	if err != nil {
		return nil, fmt.Errorf("list ticket messages: %w", err)
	}
	defer rows.Close()

	messages := make([]model.TicketMessage, 0)
	for rows.Next() {
		var m model.TicketMessage
		if err := rows.Scan(&m.ID, &m.TicketID, &m.SenderID, &m.Body, &m.IsInternal, &m.CreatedAt,
			&m.SenderName, &m.SenderAvatar); err != nil {
			return nil, fmt.Errorf("scan ticket message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// UpdateStatus sets status and maintains resolved_at: it is stamped with now on
// RESOLVED and cleared when a ticket is reopened.
func (r *TicketRepository) UpdateStatus(ctx context.Context, id int64, status model.TicketStatus, now time.Time) (model.Ticket, error) {
	t, err := scanTicket(r.pool.QueryRow(ctx,
		`UPDATE tickets SET status = $2,
		        resolved_at = CASE
		            WHEN $2 = 'RESOLVED' THEN COALESCE(resolved_at, $3)
		            WHEN $2 IN ('OPEN', 'IN_PROGRESS') THEN NULL
		            ELSE resolved_at
		        END
		 WHERE id = $1
		 RETURNING `+ticketColumns, id, string(status), now))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Ticket{}, model.ErrTicketNotFound
	}
	if err != nil {
		return model.Ticket{}, fmt.Errorf("update ticket status: %w", err)
	}
	return t, nil
}

// Stats aggregates ticket analytics at now. Aggregates over an empty set are
// returned as nil rather than zero.
func (r *TicketRepository) Stats(ctx context.Context, now time.Time) (model.TicketStats, error) {
	var stats model.TicketStats
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*)::int,
		        AVG(EXTRACT(EPOCH FROM (resolved_at - created_at)))
		            FILTER (WHERE status IN ('RESOLVED', 'CLOSED') AND resolved_at IS NOT NULL)::float8,
		        (COUNT(*) FILTER (WHERE COALESCE(resolved_at, $1) <= due_date) * 100.0
		            / NULLIF(COUNT(*), 0))::float8
		 FROM tickets`, now).Scan(&stats.Volume, &stats.AvgResolutionSeconds, &stats.SLACompliance)
	if err != nil {
		return model.TicketStats{}, fmt.Errorf("aggregate tickets: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT department, COUNT(*)::int,
		        ROUND(COUNT(*) * 100.0 / NULLIF(SUM(COUNT(*)) OVER (), 0), 1)::float8
		 FROM tickets
		 GROUP BY department
		 ORDER BY COUNT(*) DESC, department ASC`)
	if err != nil {
		return model.TicketStats{}, fmt.Errorf("aggregate department load: %w", err)
	}
	defer rows.Close()

	stats.Departments = make([]model.DepartmentLoad, 0)
	for rows.Next() {
		var d model.DepartmentLoad
		if err := rows.Scan(&d.Department, &d.Count, &d.Percentage); err != nil {
			return model.TicketStats{}, fmt.Errorf("scan department load: %w", err)
		}
		stats.Departments = append(stats.Departments, d)
	}
	return stats, rows.Err()
}
