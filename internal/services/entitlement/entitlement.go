// Package entitlement проверяет доступ учётной записи к функциям приложения.
// Зеркало подписки читается через кеш, решение вычисляет entitlement.Evaluate.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/memorysphere/internal/entitlement"
	"github.com/magabrotheeeer/memorysphere/internal/lib/sl"
	"github.com/magabrotheeeer/memorysphere/internal/models"
	"github.com/magabrotheeeer/memorysphere/internal/storage/repository"
)

// Результаты проверки для метрик.
const (
	ResultGranted = "granted"
	ResultBlocked = "blocked"
	ResultError   = "error"
)

// Repository определяет методы хранилища, нужные для проверки доступа.
type Repository interface {
	// GetAccount возвращает учётную запись по ID.
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)
	// GetSubscription возвращает зеркало подписки или repository.ErrNotFound.
	GetSubscription(ctx context.Context, accountID string) (*models.SubscriptionRecord, error)
	// UpdateAccountStatus меняет статус подписки учётной записи.
	UpdateAccountStatus(ctx context.Context, accountID string, status models.SubscriptionStatus) error
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Recorder считает проверки доступа.
type Recorder interface {
	EntitlementChecked(result string)
}

// cachedSubscription хранит и отсутствие записи, чтобы не ходить в базу повторно.
type cachedSubscription struct {
	Found  bool                       `json:"found"`
	Record *models.SubscriptionRecord `json:"record,omitempty"`
}

// Service вычисляет решения о доступе.
type Service struct {
	repo     Repository
	cache    Cache
	cacheTTL time.Duration
	recorder Recorder
	log      *slog.Logger
	now      func() time.Time
}

// New создает новый экземпляр Service. cache и recorder могут быть nil.
func New(log *slog.Logger, repo Repository, cache Cache, cacheTTL time.Duration, recorder Recorder) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		recorder: recorder,
		log:      log,
		now:      time.Now,
	}
}

func subscriptionKey(accountID string) string {
	return "subscription:" + accountID
}

// Check возвращает решение о доступе для учётной записи.
// Ошибка чтения учётной записи возвращается вызывающему, который обязан отказать в доступе.
// Ошибка чтения подписки не возвращается: подписка считается неактивной.
func (s *Service) Check(ctx context.Context, accountID string) (entitlement.Decision, error) {
	const op = "services.entitlement.Check"
	log := s.log.With(sl.Op(op), sl.Account(accountID))

	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		s.record(ResultError)
		return entitlement.Decision{AccessBlocked: true, IsExpired: true}, fmt.Errorf("%s: %w", op, err)
	}

	snap := entitlement.AccountSnapshot{
		TrialStartedAt: account.TrialStartedAt,
		TrialEndsAt:    account.TrialEndsAt,
	}
	snap.SubscriptionStatus, snap.SubscriptionErr = s.subscriptionStatus(ctx, accountID)
	if snap.SubscriptionErr != nil {
		log.Warn("subscription lookup failed, treating as inactive", sl.Err(snap.SubscriptionErr))
	}

	decision := entitlement.Evaluate(snap, s.now())

	// Статус переводится в expired только по достоверным данным подписки
	if decision.IsExpired && snap.SubscriptionErr == nil && account.SubscriptionStatus != models.StatusExpired {
		if err := s.repo.UpdateAccountStatus(ctx, accountID, models.StatusExpired); err != nil {
			log.Warn("failed to persist expired status", sl.Err(err))
		} else {
			log.Info("account marked expired")
		}
	}

	if decision.HasAccess {
		s.record(ResultGranted)
	} else {
		s.record(ResultBlocked)
	}
	return decision, nil
}

// subscriptionStatus возвращает статус учётной записи, следующий из зеркала подписки.
// nil означает, что подписка не даёт статуса.
func (s *Service) subscriptionStatus(ctx context.Context, accountID string) (*models.SubscriptionStatus, error) {
	rec, err := s.subscription(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	status, ok := rec.Status.AccountStatus()
	if !ok {
		return nil, nil
	}
	return &status, nil
}

func (s *Service) subscription(ctx context.Context, accountID string) (*models.SubscriptionRecord, error) {
	key := subscriptionKey(accountID)
	if s.cache != nil {
		var cached cachedSubscription
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.log.Warn("failed to read subscription from cache", slog.String("key", key), sl.Err(err))
		}
		if found {
			return cached.Record, nil
		}
	}

	rec, err := s.repo.GetSubscription(ctx, accountID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		rec = nil
	case err != nil:
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, cachedSubscription{Found: rec != nil, Record: rec}, s.cacheTTL); err != nil {
			s.log.Warn("failed to cache subscription", slog.String("key", key), sl.Err(err))
		}
	}
	return rec, nil
}

// InvalidateSubscription сбрасывает кеш подписки после вебхука провайдера.
func (s *Service) InvalidateSubscription(ctx context.Context, accountID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, subscriptionKey(accountID))
}

func (s *Service) record(result string) {
	if s.recorder != nil {
		s.recorder.EntitlementChecked(result)
	}
}
