// Package create реализует HTTP-обработчик сохранения воспоминания.
package create

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/memorysphere/internal/http/middlewarectx"
	"github.com/magabrotheeeer/memorysphere/internal/http/response"
	"github.com/magabrotheeeer/memorysphere/internal/lib/sl"
	"github.com/magabrotheeeer/memorysphere/internal/models"
	"github.com/magabrotheeeer/memorysphere/internal/services/content"
)

// Request данные воспоминания.
type Request struct {
	Title   string   `json:"title" validate:"max=200"`
	Content string   `json:"content" validate:"max=10000"`
	Tags    []string `json:"tags" validate:"max=20,dive,max=50"`
}

// Service сохраняет воспоминания.
type Service interface {
	CreateMemory(ctx context.Context, accountID string, m models.Memory) (string, error)
}

// Handler обрабатывает создание воспоминаний.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Сохранить воспоминание
// @Description Доступно при активном пробном периоде или подписке.
// @Tags Memories
// @Accept  json
// @Produce  json
// @Param request body Request true "Воспоминание"
// @Success 201 {object} map[string]any "Идентификатор записи"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 402 {object} response.PaywallResponse "Нужна подписка"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /memories [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.memory.create"
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

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Warn("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	id, err := h.service.CreateMemory(r.Context(), accountID, models.Memory{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
	})
	if errors.Is(err, content.ErrInvalidInput) {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("title or content is required"))
		return
	}
	if err != nil {
		log.Error("failed to create memory", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create memory"))
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(map[string]any{
		"id": id,
	}))
}
