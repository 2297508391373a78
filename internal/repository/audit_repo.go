package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"helixdesk/internal/model"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Append(ctx context.Context, entry model.AuditEntry) error {
	status := entry.Status
	if status == "" {
		status = model.AuditSuccess
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO system_logs (event_type, user_id, details, status)
		 VALUES ($1, $2, $3, $4)`,
		string(entry.EventType), entry.UserID, entry.Details, string(status))
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// Recent returns the newest entries first, joined with the acting identity's
// name and email when one is recorded.
func (r *AuditRepository) Recent(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	where := make([]string, 0)
	args := make([]any, 0)
	argIdx := 1

	if eventType := strings.TrimSpace(query.EventType); eventType != "" {
		where = append(where, fmt.Sprintf("upper(l.event_type) = upper($%d)", argIdx))
		args = append(args, eventType)
		argIdx++
	}
	if status := strings.TrimSpace(query.Status); status != "" {
		where = append(where, fmt.Sprintf("upper(l.status) = upper($%d)", argIdx))
		args = append(args, status)
		argIdx++
	}
	if query.UserID != nil {
		where = append(where, fmt.Sprintf("l.user_id = $%d", argIdx))
		args = append(args, *query.UserID)
		argIdx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	sql := fmt.Sprintf(
		`SELECT l.id, l.event_type, l.user_id, l.details, l.status, l.created_at, u.full_name, u.email
		 FROM system_logs l
		 LEFT JOIN users u ON u.id = l.user_id
		 %s
		 ORDER BY l.created_at DESC, l.id DESC
		 LIMIT $%d`, whereClause, argIdx)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]model.AuditEntry, 0)
	for rows.Next() {
		var (
			e         model.AuditEntry
			eventType string
			status    string
		)
		if err := rows.Scan(&e.ID, &eventType, &e.UserID, &e.Details, &status, &e.CreatedAt,
			&e.FullName, &e.Email); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.EventType = model.AuditEventType(eventType)
		e.Status = model.AuditStatus(status)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
