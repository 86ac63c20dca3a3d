// Package status возвращает текущее решение о доступе к платным функциям.
package status

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/memorysphere/internal/entitlement"
	"github.com/magabrotheeeer/memorysphere/internal/http/middlewarectx"
	"github.com/magabrotheeeer/memorysphere/internal/http/response"
	"github.com/magabrotheeeer/memorysphere/internal/lib/sl"
)

// Service вычисляет решение о доступе.
type Service interface {
	Check(ctx context.Context, accountID string) (entitlement.Decision, error)
}

// Status решение о доступе вместе с производным состоянием.
// Paywall заполнен, когда клиент должен показать экран подписки.
type Status struct {
	entitlement.Decision
	State   entitlement.State `json:"state"`
	Paywall string            `json:"paywall,omitempty"`
}

// NewStatus дополняет решение состоянием и путём экрана подписки.
func NewStatus(d entitlement.Decision) Status {
	s := Status{Decision: d, State: d.State()}
	if d.AccessBlocked {
		s.Paywall = response.PaywallPath
	}
	return s
}

// Handler обрабатывает запрос статуса доступа.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Статус доступа
// @Description Возвращает решение о доступе: пробный период, активная подписка или блокировка.
// @Description Ошибка проверки приводит к блокировке.
// @Tags Entitlement
// @Produce  json
// @Success 200 {object} Status "Решение о доступе"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Router /entitlement [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.entitlement.status"
	log := h.log.With(
		sl.Op(op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	accountID, ok := middlewarectx.AccountFromContext(r.Context())
	if !ok {
		log.Error("account not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	decision, err := h.service.Check(r.Context(), accountID)
	if err != nil {
		log.Error("entitlement check failed, access blocked", sl.Account(accountID), sl.Err(err))
	}

	render.JSON(w, r, response.OKWithData(NewStatus(decision)))
}
