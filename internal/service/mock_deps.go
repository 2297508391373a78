package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"helixdesk/internal/event"
	"helixdesk/internal/model"
)

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) FindByID(ctx context.Context, id int64) (model.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockUserStore) FindByEmail(ctx context.Context, email string) (model.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockUserStore) Create(ctx context.Context, u model.User) (model.User, error) {
	args := m.Called(ctx, u)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockUserStore) LinkGoogle(ctx context.Context, id int64, googleID string, avatarURL *string) (model.User, error) {
	args := m.Called(ctx, id, googleID, avatarURL)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockUserStore) SetOTP(ctx context.Context, id int64, code string, expiresAt time.Time) error {
	args := m.Called(ctx, id, code, expiresAt)
	return args.Error(0)
}

func (m *MockUserStore) ConsumeOTP(ctx context.Context, id int64, code string, now time.Time) (bool, error) {
	args := m.Called(ctx, id, code, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserStore) UpdateRole(ctx context.Context, id int64, role model.Role) (model.User, error) {
	args := m.Called(ctx, id, role)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockUserStore) SetTokensValidAfter(ctx context.Context, id int64, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockUserStore) List(ctx context.Context) ([]model.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.User), args.Error(1)
}

func (m *MockUserStore) CountByRole(ctx context.Context, role model.Role) (int, error) {
	args := m.Called(ctx, role)
	return args.Int(0), args.Error(1)
}

type MockAuditStore struct {
	mock.Mock
}

func (m *MockAuditStore) Append(ctx context.Context, entry model.AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditStore) Recent(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AuditEntry), args.Error(1)
}

type MockTicketStore struct {
	mock.Mock
}

func (m *MockTicketStore) Create(ctx context.Context, t model.Ticket) (model.Ticket, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(model.Ticket), args.Error(1)
}

func (m *MockTicketStore) FindByID(ctx context.Context, id int64) (model.Ticket, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Ticket), args.Error(1)
}

func (m *MockTicketStore) ListByRequester(ctx context.Context, requesterID int64) ([]model.Ticket, error) {
	args := m.Called(ctx, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Ticket), args.Error(1)
}

func (m *MockTicketStore) ListQueue(ctx context.Context) ([]model.Ticket, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Ticket), args.Error(1)
}

func (m *MockTicketStore) AddMessage(ctx context.Context, msg model.TicketMessage) (model.TicketMessage, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(model.TicketMessage), args.Error(1)
}

func (m *MockTicketStore) Messages(ctx context.Context, ticketID int64, includeInternal bool) ([]model.TicketMessage, error) {
	args := m.Called(ctx, ticketID, includeInternal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.TicketMessage), args.Error(1)
}

func (m *MockTicketStore) UpdateStatus(ctx context.Context, id int64, status model.TicketStatus, now time.Time) (model.Ticket, error) {
	args := m.Called(ctx, id, status, now)
	return args.Get(0).(model.Ticket), args.Error(1)
}

func (m *MockTicketStore) Stats(ctx context.Context, now time.Time) (model.TicketStats, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(model.TicketStats), args.Error(1)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendOTP(ctx context.Context, to string, code string, ttl time.Duration) error {
	args := m.Called(ctx, to, code, ttl)
	return args.Error(0)
}

type MockAttemptGuard struct {
	mock.Mock
}

func (m *MockAttemptGuard) CheckVerify(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockAttemptGuard) RecordFailure(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockAttemptGuard) Reset(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockAttemptGuard) AllowIssue(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

type MockAttachmentStore struct {
	mock.Mock
}

func (m *MockAttachmentStore) Save(ctx context.Context, upload model.Upload) (model.StoredAttachment, error) {
	args := m.Called(ctx, upload)
	return args.Get(0).(model.StoredAttachment), args.Error(1)
}

func (m *MockAttachmentStore) Remove(name string) error {
	args := m.Called(name)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(e event.Event) {
	m.Called(e)
}
