// Package content управляет воспоминаниями и задачами пользователя.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/memorysphere/internal/lib/sl"
	"github.com/magabrotheeeer/memorysphere/internal/models"
)

// Ограничения пагинации.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ErrInvalidInput запрос не прошёл проверку.
var ErrInvalidInput = errors.New("invalid input")

// Repository определяет методы хранилища пользовательского контента.
type Repository interface {
	CreateMemory(ctx context.Context, m models.Memory) (string, error)
	ListMemories(ctx context.Context, accountID string, limit, offset int) ([]*models.Memory, error)
	CreateTask(ctx context.Context, t models.Task) (string, error)
	ListTasks(ctx context.Context, accountID string, limit, offset int) ([]*models.Task, error)
}

// Service реализует операции с контентом.
type Service struct {
	repo Repository
	log  *slog.Logger
}

// New создает новый экземпляр Service.
func New(log *slog.Logger, repo Repository) *Service {
	return &Service{repo: repo, log: log}
}

// Page нормализует параметры пагинации.
func Page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)
	return limit, max(offset, 0)
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// CreateMemory сохраняет воспоминание учётной записи.
func (s *Service) CreateMemory(ctx context.Context, accountID string, m models.Memory) (string, error) {
	const op = "services.content.CreateMemory"
	m.Title = strings.TrimSpace(m.Title)
	if m.Title == "" && strings.TrimSpace(m.Content) == "" {
		return "", fmt.Errorf("%s: %w: title or content is required", op, ErrInvalidInput)
	}
	m.AccountID = accountID
	m.Tags = normalizeTags(m.Tags)

	id, err := s.repo.CreateMemory(ctx, m)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("memory created", sl.Account(accountID), slog.String("id", id))
	return id, nil
}

// ListMemories возвращает воспоминания учётной записи, новые первыми.
func (s *Service) ListMemories(ctx context.Context, accountID string, limit, offset int) ([]*models.Memory, error) {
	limit, offset = Page(limit, offset)
	return s.repo.ListMemories(ctx, accountID, limit, offset)
}

// CreateTask сохраняет задачу учётной записи.
func (s *Service) CreateTask(ctx context.Context, accountID string, t models.Task) (string, error) {
	const op = "services.content.CreateTask"
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return "", fmt.Errorf("%s: %w: title is required", op, ErrInvalidInput)
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	if !t.Priority.Valid() {
		return "", fmt.Errorf("%s: %w: unknown priority %q", op, ErrInvalidInput, t.Priority)
	}
	if t.DueDate != nil {
		due := t.DueDate.UTC().Truncate(time.Second)
		t.DueDate = &due
	}
	t.AccountID = accountID

	id, err := s.repo.CreateTask(ctx, t)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("task created", sl.Account(accountID), slog.String("id", id))
	return id, nil
}

// ListTasks возвращает задачи учётной записи.
func (s *Service) ListTasks(ctx context.Context, accountID string, limit, offset int) ([]*models.Task, error) {
	limit, offset = Page(limit, offset)
	return s.repo.ListTasks(ctx, accountID, limit, offset)
}
