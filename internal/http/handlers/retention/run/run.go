// Package run запускает процесс удаления данных по запросу внешнего планировщика.
package run

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/memorysphere/internal/http/response"
	"github.com/magabrotheeeer/memorysphere/internal/lib/sl"
	"github.com/magabrotheeeer/memorysphere/internal/models"
	"github.com/magabrotheeeer/memorysphere/internal/services/retention"
)

// Service выполняет запуск процесса удаления.
type Service interface {
	RunDataDeletionProcess(ctx context.Context) (*models.RunSummary, error)
}

// Summary итог запуска в ответе.
type Summary struct {
	Scheduled    int                  `json:"scheduled"`
	WarningsSent models.WarningCounts `json:"warningsSent"`
	Deleted      int                  `json:"deleted"`
	Failures     []models.RunFailure  `json:"failures"`
}

// Handler обрабатывает запуск процесса удаления.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func setCORS(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "*")
}

// ServeHTTP godoc
// @Summary Запуск процесса удаления данных
// @Description Постановка в расписание, предупреждения и удаление за один проход.
// @Description Требует заголовок X-Cron-Secret.
// @Tags Retention
// @Produce  json
// @Param X-Cron-Secret header string true "Секрет планировщика"
// @Success 200 {object} Summary "Итог запуска"
// @Failure 401 {object} response.ErrorResponse "Неверный секрет"
// @Failure 405 {object} response.ErrorResponse "Метод не поддерживается"
// @Failure 409 {object} response.ErrorResponse "Запуск уже выполняется"
// @Failure 500 {object} response.ErrorResponse "Ошибка запуска"
// @Router /internal/retention/run [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.retention.run"
	log := h.log.With(
		sl.Op(op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	setCORS(w)
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost, http.MethodGet:
	default:
		w.Header().Set("Allow", "POST, GET, OPTIONS")
		render.Status(r, http.StatusMethodNotAllowed)
		render.JSON(w, r, response.Error("method not allowed"))
		return
	}

	summary, err := h.service.RunDataDeletionProcess(r.Context())
	if errors.Is(err, retention.ErrRunInProgress) {
		log.Warn("run already in progress")
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.Error(retention.ErrRunInProgress.Error()))
		return
	}
	if err != nil {
		log.Error("data deletion process failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error(err.Error()))
		return
	}

	failures := summary.Failures
	if failures == nil {
		failures = []models.RunFailure{}
	}
	render.JSON(w, r, Summary{
		Scheduled:    summary.Scheduled,
		WarningsSent: summary.WarningsSent,
		Deleted:      summary.Deleted,
		Failures:     failures,
	})
}
