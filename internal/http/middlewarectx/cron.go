package middlewarectx

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/memorysphere/internal/http/response"
)

// CronSecretHeader заголовок с общим секретом внешнего планировщика.
const CronSecretHeader = "X-Cron-Secret"

// CronSecretMiddleware пропускает запрос только с верным секретом планировщика.
// Пустой секрет в конфигурации закрывает эндпоинт полностью.
// Preflight запросы OPTIONS проходят без проверки.
func CronSecretMiddleware(log *slog.Logger, secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			got := r.Header.Get(CronSecretHeader)
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				log.Warn("rejected batch trigger call", slog.String("remote", r.RemoteAddr))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
