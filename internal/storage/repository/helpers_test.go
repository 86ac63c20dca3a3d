package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/memorysphere/internal/migrations"
	"github.com/magabrotheeeer/memorysphere/internal/models"
)

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestDatabase(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	_, err = migrations.Run(storage.DB, migrationsPath)
	require.NoError(t, err)

	return storage
}

// TestDataFactory создаёт тестовые данные
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateAccount создаёт учётную запись с заданными датами пробного периода и статусом.
func (f *TestDataFactory) CreateAccount(t *testing.T, email string, trialStart time.Time, trialEnd *time.Time, status models.SubscriptionStatus) string {
	t.Helper()
	id, err := f.storage.CreateAccount(context.Background(), models.Account{
		Email:              email,
		FirstName:          "Test",
		PasswordHash:       "hash",
		TrialStartedAt:     trialStart,
		TrialEndsAt:        trialEnd,
		SubscriptionStatus: status,
	})
	require.NoError(t, err)
	return id
}

// CreateContent создаёт по одной записи и задаче для учётной записи.
func (f *TestDataFactory) CreateContent(t *testing.T, accountID string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.storage.CreateMemory(ctx, models.Memory{AccountID: accountID, Title: "memory", Content: "text", Tags: []string{"a"}})
	require.NoError(t, err)
	_, err = f.storage.CreateTask(ctx, models.Task{AccountID: accountID, Title: "task", Priority: models.PriorityHigh})
	require.NoError(t, err)
}

// CountRows возвращает число строк таблицы, принадлежащих учётной записи.
func (f *TestDataFactory) CountRows(t *testing.T, table, column, accountID string) int {
	t.Helper()
	var n int
	err := f.storage.DB.QueryRow(`SELECT COUNT(*) FROM `+table+` WHERE `+column+` = $1`, accountID).Scan(&n)
	require.NoError(t, err)
	return n
}

func timePtr(t time.Time) *time.Time {
	return &t
}
