package retention

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/memorysphere/internal/models"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ListDeletionCandidates(ctx context.Context, cutoff time.Time) ([]*models.Account, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Account), args.Error(1)
}

func (m *MockRepository) InsertDeletionSchedule(ctx context.Context, accountID string, scheduledAt, now time.Time) (bool, error) {
	args := m.Called(ctx, accountID, scheduledAt, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) ListOpenSchedules(ctx context.Context, now time.Time) ([]*models.DeletionScheduleEntry, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DeletionScheduleEntry), args.Error(1)
}

func (m *MockRepository) ListDueSchedules(ctx context.Context, now time.Time) ([]*models.DeletionScheduleEntry, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DeletionScheduleEntry), args.Error(1)
}

func (m *MockRepository) GetDeletionSchedule(ctx context.Context, accountID string) (*models.DeletionScheduleEntry, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DeletionScheduleEntry), args.Error(1)
}

func (m *MockRepository) StampWarning(ctx context.Context, accountID string, stage models.WarningStage, sentAt time.Time) (bool, error) {
	args := m.Called(ctx, accountID, stage, sentAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) DeleteDeletionSchedule(ctx context.Context, accountID string) (bool, error) {
	args := m.Called(ctx, accountID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) PurgeScheduledAccount(ctx context.Context, accountID string, now time.Time) (bool, error) {
	args := m.Called(ctx, accountID, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) PurgeAccount(ctx context.Context, accountID string) error {
	args := m.Called(ctx, accountID)
	return args.Error(0)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendWarning(ctx context.Context, to models.Recipient, stage models.WarningStage, deletionDate time.Time) error {
	return m.Called(ctx, to, stage, deletionDate).Error(0)
}

type MockLocker struct {
	mock.Mock
	released int
}

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	args := m.Called(ctx, key, ttl)
	if !args.Bool(0) {
		return nil, false, args.Error(1)
	}
	return func(context.Context) error {
		m.released++
		return nil
	}, true, args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, exchange, routingKey string, message any) error {
	return m.Called(ctx, exchange, routingKey, message).Error(0)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) ObserveRun(summary *models.RunSummary) {
	m.Called(summary)
}

func (m *MockRecorder) RunSkipped() {
	m.Called()
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
