// Package remove реализует HTTP-обработчик удаления учётной записи по запросу пользователя.
//
// Удаляются учётная запись, подписка, расписание удаления и весь контент,
// после чего текущий токен сессии отзывается.
package remove

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/memorysphere/internal/http/middlewarectx"
	"github.com/magabrotheeeer/memorysphere/internal/http/response"
	"github.com/magabrotheeeer/memorysphere/internal/lib/jwt"
	"github.com/magabrotheeeer/memorysphere/internal/lib/sl"
	"github.com/magabrotheeeer/memorysphere/internal/storage/repository"
)

// Deleter удаляет учётную запись.
type Deleter interface {
	DeleteAccount(ctx context.Context, accountID string) error
}

// SessionRevoker отзывает токен сессии.
type SessionRevoker interface {
	SignOut(ctx context.Context, claims *jwt.CustomClaims) error
}

// Handler обрабатывает запросы на удаление учётной записи.
type Handler struct {
	log      *slog.Logger
	deleter  Deleter
	sessions SessionRevoker
}

// New создает новый Handler.
func New(log *slog.Logger, deleter Deleter, sessions SessionRevoker) *Handler {
	return &Handler{log: log, deleter: deleter, sessions: sessions}
}

// ServeHTTP godoc
// @Summary Удалить учётную запись
// @Description Безвозвратно удаляет учётную запись и все данные пользователя.
// @Tags Account
// @Produce  json
// @Success 200 {object} map[string]any "Учётная запись удалена"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Учётная запись не найдена"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /account [delete]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.remove"
	log := h.log.With(
		sl.Op(op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	claims, ok := middlewarectx.ClaimsFromContext(r.Context())
	if !ok {
		log.Error("claims not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	err := h.deleter.DeleteAccount(r.Context(), claims.AccountID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn("account already deleted", sl.Account(claims.AccountID))
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("account not found"))
		return
	}
	if err != nil {
		log.Error("failed to delete account", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not delete account"))
		return
	}

	if err := h.sessions.SignOut(r.Context(), claims); err != nil {
		log.Warn("failed to revoke token after deletion", sl.Err(err))
	}

	log.Info("account deleted", sl.Account(claims.AccountID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"message": "account deleted",
	}))
}
