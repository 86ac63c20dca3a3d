// Package models содержит доменные структуры MemorySphere: учётную запись,
// зеркало подписки платёжного провайдера, запись расписания удаления
// и пользовательский контент. Статусы представлены закрытыми перечислениями.
package models

import (
	"fmt"
	"time"
)

// SubscriptionStatus статус подписки, хранимый в учётной записи.
type SubscriptionStatus string

const (
	// StatusTrial пробный период, выставляется при регистрации.
	StatusTrial SubscriptionStatus = "trial"
	// StatusActive оплаченная подписка.
	StatusActive SubscriptionStatus = "active"
	// StatusCanceled подписка отменена у провайдера.
	StatusCanceled SubscriptionStatus = "canceled"
	// StatusExpired пробный период истёк без оплаты.
	StatusExpired SubscriptionStatus = "expired"
)

// Valid сообщает, входит ли значение в перечисление.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case StatusTrial, StatusActive, StatusCanceled, StatusExpired:
		return true
	}
	return false
}

// ParseSubscriptionStatus преобразует строку из хранилища в SubscriptionStatus.
func ParseSubscriptionStatus(raw string) (SubscriptionStatus, error) {
	s := SubscriptionStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown subscription status %q", raw)
	}
	return s, nil
}

// TrialPeriod длительность пробного периода с момента регистрации.
const TrialPeriod = 3 * 24 * time.Hour

// Account представляет зарегистрированного пользователя.
type Account struct {
	ID                 string             `json:"id"`
	Email              string             `json:"email"`
	FirstName          string             `json:"first_name"`
	LastName           string             `json:"last_name"`
	PasswordHash       string             `json:"-"`
	CreatedAt          time.Time          `json:"created_at"`
	TrialStartedAt     time.Time          `json:"trial_started_at"`
	TrialEndsAt        *time.Time         `json:"trial_ends_at,omitempty"` // nil: пробный период не выдавался
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
	Theme              string             `json:"theme,omitempty"`
}

// Validate проверяет инвариант: окончание пробного периода не раньше его начала.
func (a *Account) Validate() error {
	if a.TrialEndsAt != nil && a.TrialEndsAt.Before(a.TrialStartedAt) {
		return fmt.Errorf("account %s: trial end %s is before trial start %s",
			a.ID, a.TrialEndsAt.Format(time.RFC3339), a.TrialStartedAt.Format(time.RFC3339))
	}
	return nil
}

// DisplayName возвращает имя для обращения в письмах.
func (a *Account) DisplayName() string {
	if a.FirstName != "" {
		return a.FirstName
	}
	return a.Email
}
