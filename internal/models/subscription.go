package models

import (
	"fmt"
	"time"
)

// ProviderStatus статус подписки на стороне платёжного провайдера.
type ProviderStatus string

const (
	ProviderTrialing   ProviderStatus = "trialing"
	ProviderActive     ProviderStatus = "active"
	ProviderCanceled   ProviderStatus = "canceled"
	ProviderIncomplete ProviderStatus = "incomplete"
	ProviderPastDue    ProviderStatus = "past_due"
)

// ParseProviderStatus преобразует строку провайдера в ProviderStatus.
func ParseProviderStatus(raw string) (ProviderStatus, error) {
	s := ProviderStatus(raw)
	switch s {
	case ProviderTrialing, ProviderActive, ProviderCanceled, ProviderIncomplete, ProviderPastDue:
		return s, nil
	}
	return "", fmt.Errorf("unknown provider status %q", raw)
}

// AccountStatus отображает статус провайдера на статус учётной записи.
// Любой статус, кроме active, даёт неактивный статус учётной записи:
// просроченный или незавершённый платёж считается отменой.
// Второе значение false только для неизвестного статуса.
func (s ProviderStatus) AccountStatus() (SubscriptionStatus, bool) {
	switch s {
	case ProviderActive:
		return StatusActive, true
	case ProviderTrialing:
		return StatusTrial, true
	case ProviderCanceled, ProviderPastDue, ProviderIncomplete:
		return StatusCanceled, true
	}
	return "", false
}

// SubscriptionRecord локальное зеркало подписки провайдера.
// Создаётся и обновляется только вебхуками.
type SubscriptionRecord struct {
	AccountID              string         `json:"account_id"`
	ProviderSubscriptionID string         `json:"provider_subscription_id"`
	PriceID                string         `json:"price_id"`
	Status                 ProviderStatus `json:"status"`
	CurrentPeriodEnd       *time.Time     `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd      bool           `json:"cancel_at_period_end"`
	UpdatedAt              time.Time      `json:"updated_at"`
}
