package service

import (
	"context"
	"log/slog"
	"time"

	"helixdesk/internal/metrics"
	"helixdesk/internal/model"
)

const auditWriteTimeout = 3 * time.Second

// AuditService appends to the system log. Recording never fails the caller:
// write errors are logged and counted, then dropped.
type AuditService struct {
	store   AuditStore
	metrics *metrics.Metrics
}

func NewAuditService(store AuditStore, m *metrics.Metrics) *AuditService {
	return &AuditService{store: store, metrics: m}
}

func (s *AuditService) Record(ctx context.Context, eventType model.AuditEventType, userID *int64, details string, status model.AuditStatus) {
	if s == nil || s.store == nil {
		return
	}
	if status == "" {
		status = model.AuditSuccess
	}

	// The entry is written even when the request that produced it was cancelled.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	entry := model.AuditEntry{
		EventType: eventType,
		UserID:    userID,
		Details:   details,
		Status:    status,
	}
	if err := s.store.Append(writeCtx, entry); err != nil {
		s.metrics.AuditWriteFailed()
		slog.Error("audit write failed", "event_type", eventType, "status", status, "error", err)
	}
}

func (s *AuditService) Recent(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, error) {
	return s.store.Recent(ctx, query)
}
