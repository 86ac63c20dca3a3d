// Package status возвращает состояние расписания удаления данных учётной записи.
package status

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/memorysphere/internal/http/middlewarectx"
	"github.com/magabrotheeeer/memorysphere/internal/http/response"
	"github.com/magabrotheeeer/memorysphere/internal/lib/sl"
	"github.com/magabrotheeeer/memorysphere/internal/models"
)

// Service возвращает состояние расписания удаления.
type Service interface {
	DeletionStatus(ctx context.Context, accountID string) (*models.DeletionStatus, error)
}

// Handler обрабатывает запрос состояния удаления.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Состояние удаления данных
// @Description Показывает, запланировано ли удаление, сколько дней осталось и какие предупреждения отправлены.
// @Tags Deletion
// @Produce  json
// @Success 200 {object} models.DeletionStatus "Состояние удаления"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /deletion [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.deletion.status"
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

	status, err := h.service.DeletionStatus(r.Context(), accountID)
	if err != nil {
		log.Error("failed to get deletion status", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not get deletion status"))
		return
	}

	render.JSON(w, r, response.OKWithData(status))
}
