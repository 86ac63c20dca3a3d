// Package paymentprovider клиент HTTP API платёжного провайдера:
// создание сессий оплаты, каталог тарифов и проверка подписи вебхуков.
package paymentprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client клиент API провайдера.
type Client struct {
	secretKey  string
	apiURL     string
	httpClient *http.Client
}

// NewClient создаёт новый клиент провайдера.
func NewClient(apiURL, secretKey string) *Client {
	return &Client{
		secretKey:  secretKey,
		apiURL:     strings.TrimRight(apiURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, form url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

// CreateCheckoutSession создаёт сессию оплаты подписки.
func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutRequest) (*CheckoutSession, error) {
	const op = "paymentprovider.CreateCheckoutSession"
	form := url.Values{
		"mode":                    {"subscription"},
		"line_items[0][price]":    {params.PriceID},
		"line_items[0][quantity]": {"1"},
		"success_url":             {params.SuccessURL},
		"cancel_url":              {params.CancelURL},
		"client_reference_id":     {params.AccountID},
		"metadata[account_id]":    {params.AccountID},
		"metadata[price_id]":      {params.PriceID},
		"subscription_data[metadata][account_id]": {params.AccountID},
	}
	if params.Email != "" {
		form.Set("customer_email", params.Email)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/v1/checkout/sessions", form)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var apiErr errorResponse
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("%s: unexpected status %s: %s", op, resp.Status, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("%s: unexpected status %s", op, resp.Status)
	}

	var session CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}
	if session.URL == "" {
		return nil, fmt.Errorf("%s: empty checkout url", op)
	}
	return &session, nil
}
