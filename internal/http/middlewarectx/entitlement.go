package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/memorysphere/internal/entitlement"
	"github.com/magabrotheeeer/memorysphere/internal/http/response"
	"github.com/magabrotheeeer/memorysphere/internal/lib/sl"
)

// EntitlementChecker вычисляет решение о доступе.
type EntitlementChecker interface {
	Check(ctx context.Context, accountID string) (entitlement.Decision, error)
}

// EntitlementMiddleware пропускает запрос только при наличии доступа.
// Отказ и ошибка проверки одинаково отвечают 402 со ссылкой на экран подписки.
func EntitlementMiddleware(log *slog.Logger, checker EntitlementChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.EntitlementMiddleware"
			log := log.With(
				sl.Op(op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			accountID, ok := AccountFromContext(r.Context())
			if !ok {
				log.Error("account not found in context")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("unauthorized"))
				return
			}

			decision, err := checker.Check(r.Context(), accountID)
			if err != nil {
				log.Error("entitlement check failed", sl.Account(accountID), sl.Err(err))
				render.Status(r, http.StatusPaymentRequired)
				render.JSON(w, r, response.Paywall("unable to verify subscription"))
				return
			}
			if decision.AccessBlocked {
				log.Info("access blocked", sl.Account(accountID), slog.String("state", string(decision.State())))
				render.Status(r, http.StatusPaymentRequired)
				render.JSON(w, r, response.Paywall("subscription required"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
