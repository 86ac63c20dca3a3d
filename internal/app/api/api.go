// Package api собирает HTTP API MemorySphere: учётные записи, доступ к платным
// функциям, состояние удаления данных, оплату, контент и запуск планировщика.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/memorysphere/internal/cache"
	"github.com/magabrotheeeer/memorysphere/internal/config"
	"github.com/magabrotheeeer/memorysphere/internal/lib/jwt"
	"github.com/magabrotheeeer/memorysphere/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/memorysphere/internal/lib/sl"
	"github.com/magabrotheeeer/memorysphere/internal/lib/smtp"
	"github.com/magabrotheeeer/memorysphere/internal/metrics"
	"github.com/magabrotheeeer/memorysphere/internal/migrations"
	"github.com/magabrotheeeer/memorysphere/internal/paymentprovider"
	"github.com/magabrotheeeer/memorysphere/internal/services/auth"
	"github.com/magabrotheeeer/memorysphere/internal/services/content"
	entitlementservice "github.com/magabrotheeeer/memorysphere/internal/services/entitlement"
	"github.com/magabrotheeeer/memorysphere/internal/services/payment"
	"github.com/magabrotheeeer/memorysphere/internal/services/retention"
	"github.com/magabrotheeeer/memorysphere/internal/services/sender"
	"github.com/magabrotheeeer/memorysphere/internal/storage/repository"
)

const shutdownTimeout = 15 * time.Second

// App HTTP API со всеми зависимостями.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New подключает хранилища и брокер, применяет миграции и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.api.New"

	db, err := repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	version, err := migrations.Run(db.DB, cfg.MigrationsPath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("database schema is up to date", slog.Uint64("version", uint64(version)))

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.Retries, cfg.RetryDelay)
	if err != nil {
		_ = cacheRedis.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.Topology())
	if err != nil {
		_ = conn.Close()
		_ = cacheRedis.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	publisher := rabbitmq.NewPublisher(ch)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	entitlementService := entitlementservice.New(logger, db, cacheRedis, cfg.Entitlement.CacheTTL, m)
	mailer := sender.New(logger, smtp.NewTransport(cfg.SMTP, logger), cfg.SMTP.From, cfg.AdminEmail)

	services := Services{
		Auth:        auth.New(logger, db, cacheRedis, jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL), publisher),
		Entitlement: entitlementService,
		Retention: retention.New(logger, db, mailer, cacheRedis, retention.PolicyFromConfig(cfg.Retention),
			retention.WithPublisher(publisher),
			retention.WithRecorder(m),
		),
		Payment: payment.New(logger, db,
			paymentprovider.NewClient(cfg.Payments.APIURL, cfg.Payments.SecretKey),
			entitlementService, cfg.Payments),
		Content: content.New(logger, db),
		Health: map[string]HealthChecker{
			"postgres": db,
			"redis":    cacheRedis,
		},
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, services, m, reg)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		cache:  cacheRedis,
		conn:   conn,
		ch:     ch,
	}, nil
}

// Run обслуживает запросы до отмены ctx, затем корректно останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server starting", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down http server gracefully")
		err = a.server.Shutdown(timeoutCtx)
	}
	a.close()
	return err
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close redis", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
