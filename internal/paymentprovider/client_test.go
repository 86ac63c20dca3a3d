package paymentprovider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCheckoutSession(t *testing.T) {
	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{}
		for k := range r.PostForm {
			gotForm[k] = r.PostForm.Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_123","url":"https://checkout.example/cs_123"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", "sk_test")
	session, err := client.CreateCheckoutSession(context.Background(), CheckoutRequest{
		PriceID:    "price_1RbinE4JrlJotBXLZ1G7UIQg",
		AccountID:  "acc-1",
		Email:      "ann@example.com",
		SuccessURL: "https://memorysphere.app/ok",
		CancelURL:  "https://memorysphere.app/cancel",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_123", session.ID)
	assert.Equal(t, "https://checkout.example/cs_123", session.URL)

	assert.Equal(t, "subscription", gotForm["mode"])
	assert.Equal(t, "price_1RbinE4JrlJotBXLZ1G7UIQg", gotForm["line_items[0][price]"])
	assert.Equal(t, "acc-1", gotForm["client_reference_id"])
	assert.Equal(t, "acc-1", gotForm["subscription_data[metadata][account_id]"])
	assert.Equal(t, "ann@example.com", gotForm["customer_email"])
}

func TestCreateCheckoutSession_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		errContains string
	}{
		{"provider error message", http.StatusBadRequest, `{"error":{"message":"No such price"}}`, "No such price"},
		{"plain failure", http.StatusInternalServerError, `oops`, "500"},
		{"empty url", http.StatusOK, `{"id":"cs_1"}`, "empty checkout url"},
		{"broken json", http.StatusOK, `{`, "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "sk").CreateCheckoutSession(context.Background(), CheckoutRequest{PriceID: "p"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestPlans(t *testing.T) {
	all := Plans()
	require.Len(t, all, 3)

	all[0].Name = "changed"
	assert.Equal(t, "Weekly Plan", Plans()[0].Name)

	p, ok := PlanByPriceID("price_1Rbilr4JrlJotBXLRbsUk0PG")
	require.True(t, ok)
	assert.Equal(t, "Yearly Plan", p.Name)

	_, ok = PlanByPriceID("price_unknown")
	assert.False(t, ok)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"type":"customer.subscription.updated"}`)
	sig := Sign(body, "whsec")

	assert.NoError(t, VerifySignature(body, sig, "whsec"))
	assert.ErrorIs(t, VerifySignature(body, sig, "other"), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature([]byte(`{}`), sig, "whsec"), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature(body, "zz-not-hex", "whsec"), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature(body, "", "whsec"), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature(body, sig, ""), ErrInvalidSignature)
}
