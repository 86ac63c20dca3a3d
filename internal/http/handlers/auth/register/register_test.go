package register

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/memorysphere/internal/lib/password"
	"github.com/magabrotheeeer/memorysphere/internal/services/auth"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) SignUp(ctx context.Context, email, pw, firstName, lastName string) (string, string, error) {
	args := m.Called(ctx, email, pw, firstName, lastName)
	return args.String(0), args.String(1), args.Error(2)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestRegisterHandler_ServeHTTP(t *testing.T) {
	valid := Request{Email: "ada@example.com", Password: "secret1", FirstName: "Ada"}

	tests := []struct {
		name           string
		requestBody    any
		mockID         string
		mockToken      string
		mockErr        error
		callService    bool
		wantStatusCode int
		wantError      string
		wantData       map[string]any
	}{
		{
			name:           "valid registration",
			requestBody:    valid,
			mockID:         "acc-1",
			mockToken:      "tok",
			callService:    true,
			wantStatusCode: http.StatusCreated,
			wantData:       map[string]any{"account_id": "acc-1", "token": "tok"},
		},
		{
			name:           "invalid json body",
			requestBody:    "not a json",
			wantStatusCode: http.StatusBadRequest,
			wantError:      "invalid request body",
		},
		{
			name:           "missing password",
			requestBody:    Request{Email: "ada@example.com"},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantError:      "field Password is a required field",
		},
		{
			name:           "bad email",
			requestBody:    Request{Email: "ada", Password: "secret1"},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantError:      "field Email must be a valid email",
		},
		{
			name:           "email taken",
			requestBody:    valid,
			mockErr:        fmt.Errorf("services.auth.SignUp: %w", auth.ErrEmailTaken),
			callService:    true,
			wantStatusCode: http.StatusConflict,
			wantError:      "email already registered",
		},
		{
			name:           "password too long in bytes",
			requestBody:    valid,
			mockErr:        fmt.Errorf("services.auth.SignUp: %w", password.ErrTooLong),
			callService:    true,
			wantStatusCode: http.StatusUnprocessableEntity,
			wantError:      "password is too long",
		},
		{
			name:           "storage error",
			requestBody:    valid,
			mockErr:        errors.New("db down"),
			callService:    true,
			wantStatusCode: http.StatusInternalServerError,
			wantError:      "failed to register account",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			if tt.callService {
				svc.On("SignUp", mock.Anything, valid.Email, valid.Password, valid.FirstName, valid.LastName).
					Return(tt.mockID, tt.mockToken, tt.mockErr).Once()
			}
			handler := New(newNoopLogger(), svc)

			var body []byte
			switch v := tt.requestBody.(type) {
			case string:
				body = []byte(v)
			default:
				var err error
				body, err = json.Marshal(v)
				require.NoError(t, err)
			}

			req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "reqid123"))
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			var got map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			if tt.wantError != "" {
				assert.Equal(t, "Error", got["status"])
				assert.Equal(t, tt.wantError, got["error"])
			} else {
				assert.Equal(t, "OK", got["status"])
				data, ok := got["data"].(map[string]any)
				require.True(t, ok)
				for k, v := range tt.wantData {
					assert.Equal(t, v, data[k])
				}
			}
			svc.AssertExpectations(t)
		})
	}
}
