// Package paymentlist возвращает каталог тарифов подписки.
package paymentlist

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/memorysphere/internal/http/response"
	"github.com/magabrotheeeer/memorysphere/internal/paymentprovider"
)

// Service определяет доступ к каталогу тарифов.
type Service interface {
	Plans() []paymentprovider.Plan
}

// Handler обрабатывает запрос каталога тарифов.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Список тарифов
// @Tags Payments
// @Produce  json
// @Success 200 {array} paymentprovider.Plan "Тарифы"
// @Router /payments/plans [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.OKWithData(h.service.Plans()))
}
