// Package retention реализует планировщик удаления данных неактивных учётных записей:
// постановку в расписание, предупреждения по этапам и безвозвратное удаление.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/magabrotheeeer/memorysphere/internal/lib/days"
	"github.com/magabrotheeeer/memorysphere/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/memorysphere/internal/lib/sl"
	"github.com/magabrotheeeer/memorysphere/internal/models"
	"github.com/magabrotheeeer/memorysphere/internal/storage/repository"
)

// ErrRunInProgress другой запуск процесса удаления ещё не завершён.
var ErrRunInProgress = errors.New("data deletion run already in progress")

const lockKey = "lock:retention-run"

// Названия шагов в отчёте об ошибках.
const (
	StepScan   = "scan"
	StepWarn   = "warn"
	StepDelete = "delete"
)

// Repository хранилище расписания удаления.
type Repository interface {
	ListDeletionCandidates(ctx context.Context, cutoff time.Time) ([]*models.Account, error)
	InsertDeletionSchedule(ctx context.Context, accountID string, scheduledAt, now time.Time) (bool, error)
	ListOpenSchedules(ctx context.Context, now time.Time) ([]*models.DeletionScheduleEntry, error)
	ListDueSchedules(ctx context.Context, now time.Time) ([]*models.DeletionScheduleEntry, error)
	GetDeletionSchedule(ctx context.Context, accountID string) (*models.DeletionScheduleEntry, error)
	StampWarning(ctx context.Context, accountID string, stage models.WarningStage, sentAt time.Time) (bool, error)
	DeleteDeletionSchedule(ctx context.Context, accountID string) (bool, error)
	PurgeScheduledAccount(ctx context.Context, accountID string, now time.Time) (bool, error)
	PurgeAccount(ctx context.Context, accountID string) error
}

// Mailer отправляет предупреждения об удалении. nil-ошибка означает подтверждённую доставку.
type Mailer interface {
	SendWarning(ctx context.Context, to models.Recipient, stage models.WarningStage, deletionDate time.Time) error
}

// Locker распределённая блокировка, исключающая параллельные запуски.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error)
}

// Publisher публикует итог запуска для отчёта администратору.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, message any) error
}

// Recorder записывает метрики запусков.
type Recorder interface {
	ObserveRun(summary *models.RunSummary)
	RunSkipped()
}

// Option настраивает Service.
type Option func(*Service)

// WithClock задаёт источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPublisher включает публикацию итогов запуска.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithRecorder включает запись метрик.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// Service планировщик удаления данных.
type Service struct {
	log       *slog.Logger
	repo      Repository
	mailer    Mailer
	locker    Locker
	publisher Publisher
	recorder  Recorder
	policy    Policy
	now       func() time.Time
}

// New создаёт Service.
func New(log *slog.Logger, repo Repository, mailer Mailer, locker Locker, policy Policy, opts ...Option) *Service {
	if policy.Workers < 1 {
		policy.Workers = 1
	}
	s := &Service{
		log:    log.With(slog.String("component", "retention")),
		repo:   repo,
		mailer: mailer,
		locker: locker,
		policy: policy,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// failures потокобезопасный сборщик ошибок по учётным записям.
type failures struct {
	mu    sync.Mutex
	items []models.RunFailure
}

func (f *failures) add(accountID, step string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, models.RunFailure{AccountID: accountID, Step: step, Error: err.Error()})
}

// forEach выполняет fn для каждого индекса не более чем в policy.Workers горутинах.
func (s *Service) forEach(n int, fn func(i int)) {
	var g errgroup.Group
	g.SetLimit(s.policy.Workers)
	for i := range n {
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
}

// ScanAndSchedule ставит в расписание удаления учётные записи без активной подписки,
// пробный период которых закончился не менее InactivityMonths месяцев назад.
// Повторный вызов не создаёт дублей. Возвращает число созданных записей.
func (s *Service) ScanAndSchedule(ctx context.Context, now time.Time) (int, []models.RunFailure, error) {
	const op = "retention.ScanAndSchedule"
	log := s.log.With(sl.Op(op))

	cutoff := days.MonthsAgo(now, s.policy.InactivityMonths)
	candidates, err := s.repo.ListDeletionCandidates(ctx, cutoff)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("deletion candidates found", slog.Int("count", len(candidates)), slog.Time("cutoff", cutoff))

	scheduledAt := now.Add(s.policy.NoticePeriod)
	var (
		mu        sync.Mutex
		scheduled int
		fails     failures
	)
	s.forEach(len(candidates), func(i int) {
		account := candidates[i]
		if err := account.Validate(); err != nil {
			log.Warn("skipping malformed account", sl.Account(account.ID), sl.Err(err))
			fails.add(account.ID, StepScan, err)
			return
		}

		inserted, err := s.repo.InsertDeletionSchedule(ctx, account.ID, scheduledAt, now)
		if err != nil {
			log.Error("failed to schedule deletion", sl.Account(account.ID), sl.Err(err))
			fails.add(account.ID, StepScan, err)
			return
		}
		if !inserted {
			return
		}
		mu.Lock()
		scheduled++
		mu.Unlock()
		log.Info("account scheduled for deletion",
			sl.Account(account.ID), slog.Time("scheduled_deletion_at", scheduledAt))
	})

	return scheduled, fails.items, nil
}

// SendDueWarnings отправляет не более одного предупреждения на запись расписания:
// выбирается самый срочный этап, порог которого пройден. Если этот этап уже
// отмечен, ничего не отправляется; менее срочные этапы не досылаются.
// Отметка ставится только после успешной отправки.
func (s *Service) SendDueWarnings(ctx context.Context, now time.Time) (models.WarningCounts, []models.RunFailure, error) {
	const op = "retention.SendDueWarnings"
	log := s.log.With(sl.Op(op))

	entries, err := s.repo.ListOpenSchedules(ctx, now)
	if err != nil {
		return models.WarningCounts{}, nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		mu     sync.Mutex
		counts models.WarningCounts
		fails  failures
	)
	s.forEach(len(entries), func(i int) {
		entry := entries[i]
		daysUntil := days.Until(entry.ScheduledDeletionAt, now)
		stage, ok := s.policy.DueStage(daysUntil)
		if !ok || entry.SentAt(stage) != nil {
			return
		}

		entryLog := log.With(sl.Account(entry.AccountID), slog.String("stage", string(stage)))
		to := models.Recipient{Email: entry.Email, FirstName: entry.FirstName}
		if err := s.mailer.SendWarning(ctx, to, stage, entry.ScheduledDeletionAt); err != nil {
			entryLog.Error("failed to send deletion warning", sl.Err(err))
			fails.add(entry.AccountID, StepWarn, err)
			return
		}

		stamped, err := s.repo.StampWarning(ctx, entry.AccountID, stage, now)
		if err != nil {
			entryLog.Error("warning sent but not recorded", sl.Err(err))
			fails.add(entry.AccountID, StepWarn, err)
			return
		}
		if !stamped {
			entryLog.Warn("warning already recorded by another run")
			return
		}
		mu.Lock()
		counts.Add(stage)
		mu.Unlock()
		entryLog.Info("deletion warning sent", slog.Int("days_until_deletion", daysUntil))
	})

	return counts, fails.items, nil
}

// ExecuteDueDeletions безвозвратно удаляет учётные записи, срок удаления которых наступил.
// Запись, отменённая между выборкой и удалением, пропускается без ошибки.
func (s *Service) ExecuteDueDeletions(ctx context.Context, now time.Time) (int, []models.RunFailure, error) {
	const op = "retention.ExecuteDueDeletions"
	log := s.log.With(sl.Op(op))

	entries, err := s.repo.ListDueSchedules(ctx, now)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		mu      sync.Mutex
		deleted int
		fails   failures
	)
	s.forEach(len(entries), func(i int) {
		entry := entries[i]
		purged, err := s.repo.PurgeScheduledAccount(ctx, entry.AccountID, now)
		if err != nil {
			log.Error("failed to delete account", sl.Account(entry.AccountID), sl.Err(err))
			fails.add(entry.AccountID, StepDelete, err)
			return
		}
		if !purged {
			log.Info("deletion no longer scheduled, skipping", sl.Account(entry.AccountID))
			return
		}
		mu.Lock()
		deleted++
		mu.Unlock()
		log.Info("account permanently deleted", sl.Account(entry.AccountID))
	})

	return deleted, fails.items, nil
}

// CancelDeletion снимает учётную запись с удаления. Возвращает false, если записи не было.
func (s *Service) CancelDeletion(ctx context.Context, accountID string) (bool, error) {
	const op = "retention.CancelDeletion"
	canceled, err := s.repo.DeleteDeletionSchedule(ctx, accountID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if canceled {
		s.log.Info("deletion canceled", sl.Account(accountID))
	}
	return canceled, nil
}

// DeleteAccount удаляет учётную запись по запросу пользователя, не дожидаясь расписания.
func (s *Service) DeleteAccount(ctx context.Context, accountID string) error {
	const op = "retention.DeleteAccount"
	if err := s.repo.PurgeAccount(ctx, accountID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("account deleted on request", sl.Account(accountID))
	return nil
}

// DeletionStatus возвращает состояние расписания удаления для клиента.
func (s *Service) DeletionStatus(ctx context.Context, accountID string) (*models.DeletionStatus, error) {
	const op = "retention.DeletionStatus"
	status := &models.DeletionStatus{
		WarningsSent: map[models.WarningStage]bool{
			models.WarningFirst:  false,
			models.WarningSecond: false,
			models.WarningFinal:  false,
		},
	}

	entry, err := s.repo.GetDeletionSchedule(ctx, accountID)
	if errors.Is(err, repository.ErrNotFound) {
		return status, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	scheduledAt := entry.ScheduledDeletionAt
	status.Scheduled = true
	status.ScheduledDeletionAt = &scheduledAt
	status.DaysUntilDeletion = days.UntilNonNegative(scheduledAt, s.now())
	status.CanCancel = status.DaysUntilDeletion > 0
	for stage := range status.WarningsSent {
		status.WarningsSent[stage] = entry.SentAt(stage) != nil
	}
	return status, nil
}

// RunDataDeletionProcess выполняет полный запуск: постановку в расписание,
// предупреждения и удаление. Ошибки отдельных учётных записей попадают в отчёт
// и не прерывают запуск. Одновременно выполняется не более одного запуска.
func (s *Service) RunDataDeletionProcess(ctx context.Context) (*models.RunSummary, error) {
	const op = "retention.RunDataDeletionProcess"
	log := s.log.With(sl.Op(op))

	release, ok, err := s.locker.TryLock(ctx, lockKey, s.policy.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: acquire lock: %w", op, err)
	}
	if !ok {
		if s.recorder != nil {
			s.recorder.RunSkipped()
		}
		log.Warn("run skipped, another run holds the lock")
		return nil, ErrRunInProgress
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			log.Error("failed to release run lock", sl.Err(err))
		}
	}()

	now := s.now()
	summary := &models.RunSummary{StartedAt: now, Failures: []models.RunFailure{}}
	log.Info("starting data deletion process", slog.Time("now", now))

	scheduled, scanFails, err := s.ScanAndSchedule(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	summary.Scheduled = scheduled
	summary.Failures = append(summary.Failures, scanFails...)

	warnings, warnFails, err := s.SendDueWarnings(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	summary.WarningsSent = warnings
	summary.Failures = append(summary.Failures, warnFails...)

	deleted, deleteFails, err := s.ExecuteDueDeletions(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	summary.Deleted = deleted
	summary.Failures = append(summary.Failures, deleteFails...)

	summary.FinishedAt = s.now()
	log.Info("data deletion process completed",
		slog.Int("scheduled", summary.Scheduled),
		slog.Int("warnings_sent", summary.WarningsSent.Total()),
		slog.Int("deleted", summary.Deleted),
		slog.Int("failures", len(summary.Failures)),
	)

	if s.recorder != nil {
		s.recorder.ObserveRun(summary)
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, rabbitmq.ExchangeRetention, rabbitmq.RoutingKeySummary, summary); err != nil {
			log.Error("failed to publish run summary", sl.Err(err))
		}
	}
	return summary, nil
}
