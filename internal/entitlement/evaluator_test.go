package entitlement

import (
	"errors"
	"testing"
	"time"

	"github.com/magabrotheeeer/memorysphere/internal/models"
	"github.com/stretchr/testify/assert"
)

func statusPtr(s models.SubscriptionStatus) *models.SubscriptionStatus {
	return &s
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestEvaluate_TableTests(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	trialEnd := t0.Add(models.TrialPeriod)

	tests := []struct {
		name      string
		snap      AccountSnapshot
		now       time.Time
		want      Decision
		wantState State
	}{
		{
			name: "trial day one",
			snap: AccountSnapshot{TrialStartedAt: t0, TrialEndsAt: &trialEnd, SubscriptionStatus: statusPtr(models.StatusTrial)},
			now:  t0.Add(24 * time.Hour),
			want: Decision{
				IsTrialing:    true,
				TrialDaysLeft: 2,
				HasAccess:     true,
				TrialEndsAt:   &trialEnd,
			},
			wantState: StateTrialing,
		},
		{
			name: "trial over without subscription",
			snap: AccountSnapshot{TrialStartedAt: t0, TrialEndsAt: &trialEnd, SubscriptionStatus: statusPtr(models.StatusTrial)},
			now:  t0.Add(4 * 24 * time.Hour),
			want: Decision{
				IsExpired:     true,
				AccessBlocked: true,
				TrialEndsAt:   &trialEnd,
			},
			wantState: StateExpiredUnpaid,
		},
		{
			name: "active subscription overrides expired trial",
			snap: AccountSnapshot{TrialStartedAt: t0, TrialEndsAt: &trialEnd, SubscriptionStatus: statusPtr(models.StatusActive)},
			now:  t0.Add(40 * 24 * time.Hour),
			want: Decision{
				IsActive:    true,
				HasAccess:   true,
				TrialEndsAt: &trialEnd,
			},
			wantState: StateActive,
		},
		{
			name: "subscription lookup error fails closed after trial",
			snap: AccountSnapshot{
				TrialStartedAt:     t0,
				TrialEndsAt:        &trialEnd,
				SubscriptionStatus: statusPtr(models.StatusActive),
				SubscriptionErr:    errors.New("db timeout"),
			},
			now: t0.Add(5 * 24 * time.Hour),
			want: Decision{
				IsExpired:     true,
				AccessBlocked: true,
				TrialEndsAt:   &trialEnd,
			},
			wantState: StateExpiredUnpaid,
		},
		{
			name: "subscription lookup error keeps live trial",
			snap: AccountSnapshot{
				TrialStartedAt:  t0,
				TrialEndsAt:     &trialEnd,
				SubscriptionErr: errors.New("db timeout"),
			},
			now: t0.Add(time.Hour),
			want: Decision{
				IsTrialing:    true,
				TrialDaysLeft: 3,
				HasAccess:     true,
				TrialEndsAt:   &trialEnd,
			},
			wantState: StateTrialing,
		},
		{
			name: "null trial end never grants trial",
			snap: AccountSnapshot{TrialStartedAt: t0, SubscriptionStatus: statusPtr(models.StatusTrial)},
			now:  t0,
			want: Decision{
				IsExpired:     true,
				AccessBlocked: true,
			},
			wantState: StateExpiredUnpaid,
		},
		{
			name: "null trial end with active subscription",
			snap: AccountSnapshot{TrialStartedAt: t0, SubscriptionStatus: statusPtr(models.StatusActive)},
			now:  t0,
			want: Decision{
				IsActive:  true,
				HasAccess: true,
			},
			wantState: StateActive,
		},
		{
			name: "exactly at trial end is expired",
			snap: AccountSnapshot{TrialStartedAt: t0, TrialEndsAt: &trialEnd},
			now:  trialEnd,
			want: Decision{
				IsExpired:     true,
				AccessBlocked: true,
				TrialEndsAt:   &trialEnd,
			},
			wantState: StateExpiredUnpaid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.snap, tt.now)
			assert.Equal(t, tt.want.IsTrialing, got.IsTrialing, "IsTrialing")
			assert.Equal(t, tt.want.IsActive, got.IsActive, "IsActive")
			assert.Equal(t, tt.want.TrialDaysLeft, got.TrialDaysLeft, "TrialDaysLeft")
			assert.Equal(t, tt.want.HasAccess, got.HasAccess, "HasAccess")
			assert.Equal(t, tt.want.IsExpired, got.IsExpired, "IsExpired")
			assert.Equal(t, tt.want.AccessBlocked, got.AccessBlocked, "AccessBlocked")
			assert.Equal(t, tt.want.TrialEndsAt, got.TrialEndsAt, "TrialEndsAt")
			assert.Equal(t, tt.wantState, got.State())
		})
	}
}

func TestEvaluate_Canceled(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	got := Evaluate(AccountSnapshot{
		TrialStartedAt:     t0,
		TrialEndsAt:        timePtr(t0.Add(models.TrialPeriod)),
		SubscriptionStatus: statusPtr(models.StatusCanceled),
	}, t0.Add(30*24*time.Hour))

	assert.False(t, got.HasAccess)
	assert.Equal(t, StateCanceled, got.State())
}

func TestEvaluate_Properties(t *testing.T) {
	t0 := time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)
	trialEnd := t0.Add(models.TrialPeriod)
	statuses := []*models.SubscriptionStatus{
		nil,
		statusPtr(models.StatusTrial),
		statusPtr(models.StatusActive),
		statusPtr(models.StatusCanceled),
		statusPtr(models.StatusExpired),
	}
	errs := []error{nil, errors.New("unavailable")}

	for _, status := range statuses {
		for _, subErr := range errs {
			prevDaysLeft := -1
			for step := 0; step <= 24*6; step++ {
				now := t0.Add(time.Duration(step) * time.Hour)
				snap := AccountSnapshot{
					TrialStartedAt:     t0,
					TrialEndsAt:        &trialEnd,
					SubscriptionStatus: status,
					SubscriptionErr:    subErr,
				}
				d := Evaluate(snap, now)

				assert.Equal(t, !d.HasAccess, d.AccessBlocked, "accessBlocked must mirror hasAccess")
				assert.Equal(t, d.IsActive || d.IsTrialing, d.HasAccess)
				assert.GreaterOrEqual(t, d.TrialDaysLeft, 0)
				if now.Before(trialEnd) {
					assert.True(t, d.HasAccess, "live trial must grant access")
				}
				if subErr == nil && status != nil && *status == models.StatusActive {
					assert.True(t, d.HasAccess, "active subscription must grant access")
				}
				if prevDaysLeft >= 0 {
					assert.LessOrEqual(t, d.TrialDaysLeft, prevDaysLeft, "trialDaysLeft must not increase")
				}
				prevDaysLeft = d.TrialDaysLeft
			}
		}
	}
}

func TestSnapshotFromAccount(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	account := &models.Account{
		ID:                 "acc-1",
		TrialStartedAt:     t0,
		TrialEndsAt:        timePtr(t0.Add(models.TrialPeriod)),
		SubscriptionStatus: models.StatusActive,
	}

	snap := SnapshotFromAccount(account)

	assert.Equal(t, t0, snap.TrialStartedAt)
	assert.Equal(t, account.TrialEndsAt, snap.TrialEndsAt)
	if assert.NotNil(t, snap.SubscriptionStatus) {
		assert.Equal(t, models.StatusActive, *snap.SubscriptionStatus)
	}
	assert.NoError(t, snap.SubscriptionErr)
}
