// Package cancel снимает учётную запись с расписания удаления.
//
// Если подписка так и не оформлена, следующий запуск планировщика
// снова поставит учётную запись в расписание.
package cancel

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/memorysphere/internal/http/middlewarectx"
	"github.com/magabrotheeeer/memorysphere/internal/http/response"
	"github.com/magabrotheeeer/memorysphere/internal/lib/sl"
)

// Service отменяет удаление.
type Service interface {
	CancelDeletion(ctx context.Context, accountID string) (bool, error)
}

// Handler обрабатывает отмену удаления.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Отменить удаление данных
// @Tags Deletion
// @Produce  json
// @Success 200 {object} map[string]any "canceled: было ли удаление запланировано"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /deletion [delete]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.deletion.cancel"
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

	canceled, err := h.service.CancelDeletion(r.Context(), accountID)
	if err != nil {
		log.Error("failed to cancel deletion", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not cancel deletion"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"canceled": canceled,
	}))
}
