// Package stream отправляет клиенту решения о доступе потоком Server-Sent Events.
//
// Решение перевычисляется с заданным интервалом, пока клиент не отключится.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/memorysphere/internal/entitlement"
	"github.com/magabrotheeeer/memorysphere/internal/http/handlers/entitlement/status"
	"github.com/magabrotheeeer/memorysphere/internal/http/middlewarectx"
	"github.com/magabrotheeeer/memorysphere/internal/http/response"
	"github.com/magabrotheeeer/memorysphere/internal/lib/jwt"
	"github.com/magabrotheeeer/memorysphere/internal/lib/sl"
)

const (
	// EventName имя события с решением о доступе.
	EventName = "entitlement"
	// SessionEventName имя последнего события потока, когда токен сессии отозван или истёк.
	SessionEventName = "session"
)

var errSessionEnded = errors.New("session ended")

// Service вычисляет решение о доступе.
type Service interface {
	Check(ctx context.Context, accountID string) (entitlement.Decision, error)
}

// Sessions проверяет, что токен сессии всё ещё действителен.
type Sessions interface {
	Authenticate(ctx context.Context, token string) (*jwt.CustomClaims, error)
}

// Handler обрабатывает подписку на поток решений.
type Handler struct {
	log      *slog.Logger
	service  Service
	sessions Sessions
	interval time.Duration
}

// New создает новый Handler с интервалом опроса interval.
// Перед каждым опросом токен из заголовка Authorization проверяется заново.
func New(log *slog.Logger, service Service, sessions Sessions, interval time.Duration) *Handler {
	return &Handler{log: log, service: service, sessions: sessions, interval: interval}
}

// ServeHTTP godoc
// @Summary Поток статуса доступа
// @Description Server-Sent Events: событие entitlement с решением о доступе при подключении и далее раз в интервал опроса. После отзыва или истечения токена приходит событие session и поток закрывается.
// @Tags Entitlement
// @Produce  text/event-stream
// @Success 200 {object} status.Status "Решение о доступе"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Router /entitlement/stream [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.entitlement.stream"
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

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	rc := http.NewResponseController(w)
	// Поток живёт дольше WriteTimeout сервера
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		log.Warn("failed to reset write deadline", sl.Err(err))
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	log = log.With(sl.Account(accountID))
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	poller := entitlement.NewPoller(h.interval,
		func(ctx context.Context) (entitlement.Decision, error) {
			if _, err := h.sessions.Authenticate(ctx, token); err != nil {
				return entitlement.Decision{AccessBlocked: true, IsExpired: true}, fmt.Errorf("%w: %w", errSessionEnded, err)
			}
			return h.service.Check(ctx, accountID)
		},
		func(d entitlement.Decision, err error) {
			if errors.Is(err, errSessionEnded) {
				log.Info("session no longer valid, closing stream", sl.Err(err))
				_ = writeSessionEnded(w)
				_ = rc.Flush()
				cancel()
				return
			}
			if err != nil {
				log.Error("entitlement check failed, access blocked", sl.Err(err))
			}
			if werr := writeEvent(w, status.NewStatus(d)); werr != nil {
				log.Info("client gone", sl.Err(werr))
				cancel()
				return
			}
			if ferr := rc.Flush(); ferr != nil {
				cancel()
			}
		},
	)
	log.Info("entitlement stream opened")
	poller.Start(ctx)
	<-ctx.Done()
	poller.Stop()
	log.Info("entitlement stream closed")
}

func writeEvent(w http.ResponseWriter, s status.Status) error {
	return writeRaw(w, EventName, s)
}

func writeSessionEnded(w http.ResponseWriter) error {
	return writeRaw(w, SessionEventName, response.Error("session expired or revoked"))
}

func writeRaw(w http.ResponseWriter, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
