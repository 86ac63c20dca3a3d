// Package scheduler собирает планировщик удаления данных неактивных учётных записей:
// разовый запуск, демон по расписанию cron и ручную отмену удаления.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/magabrotheeeer/memorysphere/internal/cache"
	"github.com/magabrotheeeer/memorysphere/internal/config"
	"github.com/magabrotheeeer/memorysphere/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/memorysphere/internal/lib/sl"
	"github.com/magabrotheeeer/memorysphere/internal/lib/smtp"
	"github.com/magabrotheeeer/memorysphere/internal/models"
	"github.com/magabrotheeeer/memorysphere/internal/services/retention"
	"github.com/magabrotheeeer/memorysphere/internal/services/sender"
	"github.com/magabrotheeeer/memorysphere/internal/storage/repository"
)

// Runner процесс удаления данных.
type Runner interface {
	RunDataDeletionProcess(ctx context.Context) (*models.RunSummary, error)
	CancelDeletion(ctx context.Context, accountID string) (bool, error)
}

// App планировщик удаления данных.
type App struct {
	runner   Runner
	schedule string
	logger   *slog.Logger
	closers  []func() error
}

func waitForDB(ctx context.Context, db *repository.Storage) error {
	var err error
	for range 10 {
		if err = repository.CheckDatabaseReady(ctx, db); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return fmt.Errorf("database not ready after retries: %w", err)
}

// New подключает хранилища, брокер и почтовый транспорт.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.scheduler.New"
	app := &App{schedule: cfg.Retention.Schedule, logger: logger}

	db, err := repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	app.closers = append(app.closers, db.Close)
	if err := waitForDB(ctx, db); err != nil {
		app.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("%s: cache not initialized: %w", op, err)
	}
	app.closers = append(app.closers, cacheRedis.Close)

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.Retries, cfg.RetryDelay)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	app.closers = append(app.closers, conn.Close)
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.Topology())
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	app.closers = append(app.closers, ch.Close)

	mailer := sender.New(logger, smtp.NewTransport(cfg.SMTP, logger), cfg.SMTP.From, cfg.AdminEmail)
	app.runner = retention.New(logger, db, mailer, cacheRedis, retention.PolicyFromConfig(cfg.Retention),
		retention.WithPublisher(rabbitmq.NewPublisher(ch)),
	)
	return app, nil
}

// NewWithRunner создаёт App поверх готового runner.
func NewWithRunner(runner Runner, schedule string, logger *slog.Logger) *App {
	return &App{runner: runner, schedule: schedule, logger: logger}
}

// RunOnce выполняет один полный запуск.
func (a *App) RunOnce(ctx context.Context) (*models.RunSummary, error) {
	return a.runner.RunDataDeletionProcess(ctx)
}

// Cancel снимает учётную запись с расписания удаления.
func (a *App) Cancel(ctx context.Context, accountID string) (bool, error) {
	return a.runner.CancelDeletion(ctx, accountID)
}

// Run запускает процесс по расписанию до отмены ctx.
// Запуск, начавшийся во время предыдущего, пропускается.
func (a *App) Run(ctx context.Context) error {
	const op = "app.scheduler.Run"
	log := a.logger.With(sl.Op(op))
	cronLog := cronLogger{log: log}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLog)), cron.WithLogger(cronLog))
	if _, err := c.AddFunc(a.schedule, func() { a.tick(ctx) }); err != nil {
		return fmt.Errorf("%s: invalid schedule %q: %w", op, a.schedule, err)
	}

	c.Start()
	log.Info("retention scheduler started", slog.String("schedule", a.schedule))

	<-ctx.Done()
	log.Info("shutting down retention scheduler")
	<-c.Stop().Done()
	return nil
}

func (a *App) tick(ctx context.Context) {
	summary, err := a.runner.RunDataDeletionProcess(ctx)
	if errors.Is(err, retention.ErrRunInProgress) {
		a.logger.Info("scheduled run skipped, another run holds the lock")
		return
	}
	if err != nil {
		a.logger.Error("scheduled run failed", sl.Err(err))
		return
	}
	a.logger.Info("scheduled run finished",
		slog.Int("scheduled", summary.Scheduled),
		slog.Int("warnings_sent", summary.WarningsSent.Total()),
		slog.Int("deleted", summary.Deleted),
		slog.Int("failures", len(summary.Failures)),
	)
}

// Close освобождает ресурсы в обратном порядке.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("failed to close resource", sl.Err(err))
		}
	}
	a.closers = nil
}

// cronLogger передаёт журнал cron в slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, sl.Err(err))...)
}
