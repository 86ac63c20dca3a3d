package paymentwebhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/memorysphere/internal/paymentprovider"
	"github.com/magabrotheeeer/memorysphere/internal/services/payment"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	return m.Called(ctx, body, signature).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestWebhookHandler_ServeHTTP(t *testing.T) {
	body := []byte(`{"id":"evt_1","type":"customer.subscription.updated"}`)

	tests := []struct {
		name           string
		mockErr        error
		wantStatusCode int
	}{
		{name: "accepted", wantStatusCode: http.StatusOK},
		{name: "bad signature", mockErr: fmt.Errorf("x: %w", paymentprovider.ErrInvalidSignature), wantStatusCode: http.StatusUnauthorized},
		{name: "bad event", mockErr: fmt.Errorf("x: %w", payment.ErrBadEvent), wantStatusCode: http.StatusBadRequest},
		{name: "storage error", mockErr: errors.New("db down"), wantStatusCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			svc.On("HandleWebhook", mock.Anything, body, "sig").Return(tt.mockErr).Once()

			req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
			req.Header.Set(paymentprovider.SignatureHeader, "sig")
			rec := httptest.NewRecorder()

			New(newNoopLogger(), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}
