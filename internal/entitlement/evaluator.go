// Package entitlement вычисляет решение о доступе к функциям приложения
// по состоянию пробного периода и подписки.
//
// Evaluate чистая функция: всё состояние передаётся через AccountSnapshot,
// текущее время передаётся явно.
package entitlement

import (
	"time"

	"github.com/magabrotheeeer/memorysphere/internal/lib/days"
	"github.com/magabrotheeeer/memorysphere/internal/models"
)

// State концептуальное состояние учётной записи.
type State string

const (
	StateTrialing      State = "TRIALING"
	StateActive        State = "ACTIVE"
	StateCanceled      State = "CANCELED"
	StateExpiredUnpaid State = "EXPIRED_UNPAID"
)

// AccountSnapshot входные данные для вычисления решения.
type AccountSnapshot struct {
	TrialStartedAt time.Time
	TrialEndsAt    *time.Time
	// SubscriptionStatus статус подписки, nil если записи нет.
	SubscriptionStatus *models.SubscriptionStatus
	// SubscriptionErr ошибка чтения подписки; при ней подписка считается неактивной.
	SubscriptionErr error
}

// SnapshotFromAccount строит снимок по учётной записи.
func SnapshotFromAccount(a *models.Account) AccountSnapshot {
	status := a.SubscriptionStatus
	return AccountSnapshot{
		TrialStartedAt:     a.TrialStartedAt,
		TrialEndsAt:        a.TrialEndsAt,
		SubscriptionStatus: &status,
	}
}

// Decision решение о доступе. Никогда не сохраняется.
type Decision struct {
	IsTrialing    bool       `json:"isTrialing"`
	IsActive      bool       `json:"isActive"`
	TrialDaysLeft int        `json:"trialDaysLeft"`
	HasAccess     bool       `json:"hasAccess"`
	IsExpired     bool       `json:"isExpired"`
	AccessBlocked bool       `json:"accessBlocked"`
	TrialEndsAt   *time.Time `json:"trialEndsAt,omitempty"`
	canceled      bool
}

// State возвращает концептуальное состояние, соответствующее решению.
func (d Decision) State() State {
	switch {
	case d.IsActive:
		return StateActive
	case d.IsTrialing:
		return StateTrialing
	case d.canceled:
		return StateCanceled
	}
	return StateExpiredUnpaid
}

// Evaluate вычисляет решение о доступе на момент now.
//
// Отсутствие даты окончания пробного периода означает, что пробный период
// не выдавался: доступ возможен только по активной подписке.
func Evaluate(snap AccountSnapshot, now time.Time) Decision {
	var (
		isTrialing     bool
		isTrialExpired = true
		trialDaysLeft  int
	)
	if snap.TrialEndsAt != nil {
		isTrialing = now.Before(*snap.TrialEndsAt)
		isTrialExpired = !isTrialing
		trialDaysLeft = days.UntilNonNegative(*snap.TrialEndsAt, now)
	}

	var isActive, canceled bool
	if snap.SubscriptionErr == nil && snap.SubscriptionStatus != nil {
		isActive = *snap.SubscriptionStatus == models.StatusActive
		canceled = *snap.SubscriptionStatus == models.StatusCanceled
	}

	hasAccess := isActive || isTrialing
	return Decision{
		IsTrialing:    isTrialing,
		IsActive:      isActive,
		TrialDaysLeft: trialDaysLeft,
		HasAccess:     hasAccess,
		IsExpired:     isTrialExpired && !isActive,
		AccessBlocked: !hasAccess,
		TrialEndsAt:   snap.TrialEndsAt,
		canceled:      canceled,
	}
}
