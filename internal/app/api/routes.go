package api

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/memorysphere/internal/config"
	"github.com/magabrotheeeer/memorysphere/internal/entitlement"
	"github.com/magabrotheeeer/memorysphere/internal/http/handlers/account/remove"
	"github.com/magabrotheeeer/memorysphere/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/memorysphere/internal/http/handlers/auth/logout"
	"github.com/magabrotheeeer/memorysphere/internal/http/handlers/auth/passwordconfirm"
	"github.com/magabrotheeeer/memorysphere/internal/http/handlers/auth/passwordreset"
	"github.com/magabrotheeeer/memorysphere/internal/http/handlers/auth/register"
	deletioncancel "github.com/magabrotheeeer/memorysphere/internal/http/handlers/deletion/cancel"
	deletionstatus "github.com/magabrotheeeer/memorysphere/internal/http/handlers/deletion/status"
	entitlementstatus "github.com/magabrotheeeer/memorysphere/internal/http/handlers/entitlement/status"
	"github.com/magabrotheeeer/memorysphere/internal/http/handlers/entitlement/stream"
	"github.com/magabrotheeeer/memorysphere/internal/http/handlers/health"
	memorycreate "github.com/magabrotheeeer/memorysphere/internal/http/handlers/memory/create"
	memorylist "github.com/magabrotheeeer/memorysphere/internal/http/handlers/memory/list"
	"github.com/magabrotheeeer/memorysphere/internal/http/handlers/payment/paymentcreate"
	"github.com/magabrotheeeer/memorysphere/internal/http/handlers/payment/paymentlist"
	"github.com/magabrotheeeer/memorysphere/internal/http/handlers/payment/paymentwebhook"
	"github.com/magabrotheeeer/memorysphere/internal/http/handlers/retention/run"
	taskcreate "github.com/magabrotheeeer/memorysphere/internal/http/handlers/task/create"
	tasklist "github.com/magabrotheeeer/memorysphere/internal/http/handlers/task/list"
	"github.com/magabrotheeeer/memorysphere/internal/http/middlewarectx"
	"github.com/magabrotheeeer/memorysphere/internal/lib/jwt"
	"github.com/magabrotheeeer/memorysphere/internal/metrics"
	"github.com/magabrotheeeer/memorysphere/internal/models"
	"github.com/magabrotheeeer/memorysphere/internal/paymentprovider"
)

// AuthService операции учётных записей.
type AuthService interface {
	SignUp(ctx context.Context, email, password, firstName, lastName string) (string, string, error)
	SignIn(ctx context.Context, email, password string) (string, error)
	Authenticate(ctx context.Context, token string) (*jwt.CustomClaims, error)
	SignOut(ctx context.Context, claims *jwt.CustomClaims) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// EntitlementService проверка доступа к платным функциям.
type EntitlementService interface {
	Check(ctx context.Context, accountID string) (entitlement.Decision, error)
}

// RetentionService процесс удаления данных.
type RetentionService interface {
	RunDataDeletionProcess(ctx context.Context) (*models.RunSummary, error)
	DeletionStatus(ctx context.Context, accountID string) (*models.DeletionStatus, error)
	CancelDeletion(ctx context.Context, accountID string) (bool, error)
	DeleteAccount(ctx context.Context, accountID string) error
}

// PaymentService оформление подписки.
type PaymentService interface {
	Plans() []paymentprovider.Plan
	CreateCheckout(ctx context.Context, accountID, email, priceID string) (*paymentprovider.CheckoutSession, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) error
}

// ContentService воспоминания и задачи.
type ContentService interface {
	CreateMemory(ctx context.Context, accountID string, m models.Memory) (string, error)
	ListMemories(ctx context.Context, accountID string, limit, offset int) ([]*models.Memory, error)
	CreateTask(ctx context.Context, accountID string, t models.Task) (string, error)
	ListTasks(ctx context.Context, accountID string, limit, offset int) ([]*models.Task, error)
}

// HealthChecker зависимость, доступность которой проверяет /health.
type HealthChecker = health.Checker

// Services бизнес-логика, обслуживаемая маршрутами.
type Services struct {
	Auth        AuthService
	Entitlement EntitlementService
	Retention   RetentionService
	Payment     PaymentService
	Content     ContentService
	Health      map[string]HealthChecker
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config, s Services, m *metrics.Metrics, g prometheus.Gatherer) {
	limiter := middlewarectx.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)

	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
		m.Middleware,
	)

	r.Get("/health", health.New(logger, s.Health).ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Group(func(r chi.Router) {
			r.Use(limiter.Middleware(logger))
			r.Post("/auth/register", register.New(logger, s.Auth).ServeHTTP)
			r.Post("/auth/login", login.New(logger, s.Auth).ServeHTTP)
			r.Post("/auth/password/reset", passwordreset.New(logger, s.Auth).ServeHTTP)
			r.Post("/auth/password/confirm", passwordconfirm.New(logger, s.Auth).ServeHTTP)
			r.Get("/payments/plans", paymentlist.New(logger, s.Payment).ServeHTTP)
		})

		// Webhook провайдера проверяется подписью
		r.Post("/payments/webhook", paymentwebhook.New(logger, s.Payment).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(s.Auth, logger))
			r.Use(limiter.Middleware(logger))

			r.Post("/auth/logout", logout.New(logger, s.Auth).ServeHTTP)
			r.Get("/entitlement", entitlementstatus.New(logger, s.Entitlement).ServeHTTP)
			r.Get("/entitlement/stream", stream.New(logger, s.Entitlement, s.Auth, cfg.Entitlement.PollInterval).ServeHTTP)
			r.Get("/deletion", deletionstatus.New(logger, s.Retention).ServeHTTP)
			r.Delete("/deletion", deletioncancel.New(logger, s.Retention).ServeHTTP)
			r.Delete("/account", remove.New(logger, s.Retention, s.Auth).ServeHTTP)
			r.Post("/payments/checkout", paymentcreate.New(logger, s.Payment).ServeHTTP)

			// Платные функции
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.EntitlementMiddleware(logger, s.Entitlement))
				r.Post("/memories", memorycreate.New(logger, s.Content).ServeHTTP)
				r.Get("/memories", memorylist.New(logger, s.Content).ServeHTTP)
				r.Post("/tasks", taskcreate.New(logger, s.Content).ServeHTTP)
				r.Get("/tasks", tasklist.New(logger, s.Content).ServeHTTP)
			})
		})
	})

	// Внешний планировщик
	r.Group(func(r chi.Router) {
		r.Use(middlewarectx.CronSecretMiddleware(logger, cfg.CronSecret))
		r.Handle("/internal/retention/run", run.New(logger, s.Retention))
	})

	r.Handle("/metrics", metrics.Handler(g))
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
