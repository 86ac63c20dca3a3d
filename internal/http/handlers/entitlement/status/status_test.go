package status

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/memorysphere/internal/entitlement"
	"github.com/magabrotheeeer/memorysphere/internal/http/middlewarectx"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Check(ctx context.Context, accountID string) (entitlement.Decision, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(entitlement.Decision), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestStatusHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name        string
		decision    entitlement.Decision
		mockErr     error
		wantState   entitlement.State
		wantPaywall string
	}{
		{
			name:      "active",
			decision:  entitlement.Decision{IsActive: true, HasAccess: true},
			wantState: entitlement.StateActive,
		},
		{
			name:      "trialing",
			decision:  entitlement.Decision{IsTrialing: true, HasAccess: true, TrialDaysLeft: 5},
			wantState: entitlement.StateTrialing,
		},
		{
			name:        "expired",
			decision:    entitlement.Decision{IsExpired: true, AccessBlocked: true},
			wantState:   entitlement.StateExpiredUnpaid,
			wantPaywall: "/subscription",
		},
		{
			name:        "check error blocks",
			decision:    entitlement.Decision{IsExpired: true, AccessBlocked: true},
			mockErr:     errors.New("db down"),
			wantState:   entitlement.StateExpiredUnpaid,
			wantPaywall: "/subscription",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			svc.On("Check", mock.Anything, "acc-1").Return(tt.decision, tt.mockErr).Once()

			req := httptest.NewRequest(http.MethodGet, "/entitlement", nil)
			req = req.WithContext(context.WithValue(req.Context(), middlewarectx.AccountID, "acc-1"))
			rec := httptest.NewRecorder()

			New(newNoopLogger(), svc).ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			var got struct {
				Data map[string]any `json:"data"`
			}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.Equal(t, string(tt.wantState), got.Data["state"])
			assert.Equal(t, tt.decision.AccessBlocked, got.Data["accessBlocked"])
			assert.Equal(t, tt.decision.HasAccess, got.Data["hasAccess"])
			if tt.wantPaywall != "" {
				assert.Equal(t, tt.wantPaywall, got.Data["paywall"])
			} else {
				assert.NotContains(t, got.Data, "paywall")
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestStatusHandler_NoAccount(t *testing.T) {
	svc := new(MockService)
	rec := httptest.NewRecorder()

	New(newNoopLogger(), svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/entitlement", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	svc.AssertNotCalled(t, "Check", mock.Anything, mock.Anything)
}
