package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/memorysphere/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/memorysphere/internal/models"
	"github.com/magabrotheeeer/memorysphere/internal/storage/repository"
)

const day = 24 * time.Hour

func TestPolicy_DueStage(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		daysUntil int
		want      models.WarningStage
		wantOK    bool
	}{
		{daysUntil: 45, wantOK: false},
		{daysUntil: 31, wantOK: false},
		{daysUntil: 30, want: models.WarningFirst, wantOK: true},
		{daysUntil: 15, want: models.WarningFirst, wantOK: true},
		{daysUntil: 14, want: models.WarningSecond, wantOK: true},
		{daysUntil: 4, want: models.WarningSecond, wantOK: true},
		{daysUntil: 3, want: models.WarningFinal, wantOK: true},
		{daysUntil: 1, want: models.WarningFinal, wantOK: true},
		{daysUntil: 0, want: models.WarningFinal, wantOK: true},
	}
	for _, tt := range tests {
		got, ok := p.DueStage(tt.daysUntil)
		assert.Equalf(t, tt.wantOK, ok, "daysUntil=%d", tt.daysUntil)
		assert.Equalf(t, tt.want, got, "daysUntil=%d", tt.daysUntil)
	}
}

func TestService_ScanAndSchedule(t *testing.T) {
	trialExpired := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := trialExpired.Add(91 * day)
	cutoff := now.AddDate(0, -3, 0)

	good := &models.Account{ID: "good", TrialStartedAt: trialExpired.Add(-models.TrialPeriod), TrialEndsAt: timePtr(trialExpired)}
	already := &models.Account{ID: "already", TrialStartedAt: trialExpired.Add(-models.TrialPeriod), TrialEndsAt: timePtr(trialExpired)}
	malformed := &models.Account{ID: "malformed", TrialStartedAt: trialExpired, TrialEndsAt: timePtr(trialExpired.Add(-day))}
	broken := &models.Account{ID: "broken", TrialStartedAt: trialExpired.Add(-models.TrialPeriod), TrialEndsAt: timePtr(trialExpired)}

	repo := new(MockRepository)
	repo.On("ListDeletionCandidates", mock.Anything, cutoff).
		Return([]*models.Account{good, already, malformed, broken}, nil).Once()
	repo.On("InsertDeletionSchedule", mock.Anything, "good", now.Add(30*day), now).Return(true, nil).Once()
	repo.On("InsertDeletionSchedule", mock.Anything, "already", now.Add(30*day), now).Return(false, nil).Once()
	repo.On("InsertDeletionSchedule", mock.Anything, "broken", now.Add(30*day), now).
		Return(false, errors.New("connection reset")).Once()

	svc := New(newNoopLogger(), repo, new(MockMailer), new(MockLocker), DefaultPolicy())

	scheduled, fails, err := svc.ScanAndSchedule(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 1, scheduled, "only newly inserted rows count")
	require.Len(t, fails, 2)
	failed := map[string]string{}
	for _, f := range fails {
		assert.Equal(t, StepScan, f.Step)
		failed[f.AccountID] = f.Error
	}
	assert.Contains(t, failed, "malformed")
	assert.Contains(t, failed, "broken")
	repo.AssertNotCalled(t, "InsertDeletionSchedule", mock.Anything, "malformed", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestService_ScanAndSchedule_ListError(t *testing.T) {
	repo := new(MockRepository)
	repo.On("ListDeletionCandidates", mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once()

	svc := New(newNoopLogger(), repo, new(MockMailer), new(MockLocker), DefaultPolicy())

	_, _, err := svc.ScanAndSchedule(context.Background(), time.Now())
	assert.ErrorContains(t, err, "db down")
}

func TestService_SendDueWarnings(t *testing.T) {
	now := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		entry       *models.DeletionScheduleEntry
		wantStage   models.WarningStage
		wantSend    bool
		sendErr     error
		wantCounts  models.WarningCounts
		wantFailure bool
	}{
		{
			name:       "first warning at 30 days",
			entry:      &models.DeletionScheduleEntry{AccountID: "a", ScheduledDeletionAt: now.Add(30 * day)},
			wantStage:  models.WarningFirst,
			wantSend:   true,
			wantCounts: models.WarningCounts{First: 1},
		},
		{
			name:  "outside every window",
			entry: &models.DeletionScheduleEntry{AccountID: "a", ScheduledDeletionAt: now.Add(40 * day)},
		},
		{
			name: "first already sent, still in first window",
			entry: &models.DeletionScheduleEntry{
				AccountID: "a", ScheduledDeletionAt: now.Add(20 * day), FirstWarningSentAt: timePtr(now.Add(-10 * day)),
			},
		},
		{
			name: "second window after first",
			entry: &models.DeletionScheduleEntry{
				AccountID: "a", ScheduledDeletionAt: now.Add(14 * day), FirstWarningSentAt: timePtr(now.Add(-16 * day)),
			},
			wantStage:  models.WarningSecond,
			wantSend:   true,
			wantCounts: models.WarningCounts{Second: 1},
		},
		{
			name:       "missed earlier stages send only final",
			entry:      &models.DeletionScheduleEntry{AccountID: "a", ScheduledDeletionAt: now.Add(3 * day)},
			wantStage:  models.WarningFinal,
			wantSend:   true,
			wantCounts: models.WarningCounts{Final: 1},
		},
		{
			name: "second sent, no backfill of first",
			entry: &models.DeletionScheduleEntry{
				AccountID: "a", ScheduledDeletionAt: now.Add(10 * day), SecondWarningSentAt: timePtr(now.Add(-4 * day)),
			},
		},
		{
			name: "final already sent",
			entry: &models.DeletionScheduleEntry{
				AccountID: "a", ScheduledDeletionAt: now.Add(day), FinalWarningSentAt: timePtr(now.Add(-2 * day)),
			},
		},
		{
			name:        "send failure leaves stage unstamped",
			entry:       &models.DeletionScheduleEntry{AccountID: "a", ScheduledDeletionAt: now.Add(2 * day)},
			wantStage:   models.WarningFinal,
			wantSend:    true,
			sendErr:     errors.New("smtp timeout"),
			wantFailure: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.entry.Email = "user@example.com"
			tt.entry.FirstName = "Ann"

			repo := new(MockRepository)
			mailer := new(MockMailer)
			repo.On("ListOpenSchedules", mock.Anything, now).Return([]*models.DeletionScheduleEntry{tt.entry}, nil).Once()
			if tt.wantSend {
				to := models.Recipient{Email: "user@example.com", FirstName: "Ann"}
				mailer.On("SendWarning", mock.Anything, to, tt.wantStage, tt.entry.ScheduledDeletionAt).Return(tt.sendErr).Once()
				if tt.sendErr == nil {
					repo.On("StampWarning", mock.Anything, "a", tt.wantStage, now).Return(true, nil).Once()
				}
			}

			svc := New(newNoopLogger(), repo, mailer, new(MockLocker), DefaultPolicy())
			counts, fails, err := svc.SendDueWarnings(context.Background(), now)
			require.NoError(t, err)

			assert.Equal(t, tt.wantCounts, counts)
			if tt.wantFailure {
				require.Len(t, fails, 1)
				assert.Equal(t, StepWarn, fails[0].Step)
				repo.AssertNotCalled(t, "StampWarning", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			} else {
				assert.Empty(t, fails)
			}
			if !tt.wantSend {
				mailer.AssertNotCalled(t, "SendWarning", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
			repo.AssertExpectations(t)
			mailer.AssertExpectations(t)
		})
	}
}

func TestService_SendDueWarnings_AtMostOnePerEntry(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	entries := make([]*models.DeletionScheduleEntry, 0, 10)
	for i := range 10 {
		entries = append(entries, &models.DeletionScheduleEntry{
			AccountID:           string(rune('a' + i)),
			Email:               "x@example.com",
			ScheduledDeletionAt: now.Add(time.Duration(i+1) * day),
		})
	}

	repo := new(MockRepository)
	mailer := new(MockMailer)
	repo.On("ListOpenSchedules", mock.Anything, now).Return(entries, nil).Once()
	mailer.On("SendWarning", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	repo.On("StampWarning", mock.Anything, mock.Anything, mock.Anything, now).Return(true, nil)

	svc := New(newNoopLogger(), repo, mailer, new(MockLocker), DefaultPolicy())
	counts, fails, err := svc.SendDueWarnings(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, fails)

	// 1..3 дня: final, 4..10: second
	assert.Equal(t, models.WarningCounts{Second: 7, Final: 3}, counts)
	mailer.AssertNumberOfCalls(t, "SendWarning", 10)
	for _, e := range entries {
		n := 0
		for _, c := range mailer.Calls {
			if c.Method == "SendWarning" && c.Arguments.Get(3).(time.Time).Equal(e.ScheduledDeletionAt) {
				n++
			}
		}
		assert.Equal(t, 1, n)
	}
}

func TestService_ExecuteDueDeletions(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	repo := new(MockRepository)
	repo.On("ListDueSchedules", mock.Anything, now).Return([]*models.DeletionScheduleEntry{
		{AccountID: "due"},
		{AccountID: "canceled"},
		{AccountID: "broken"},
	}, nil).Once()
	repo.On("PurgeScheduledAccount", mock.Anything, "due", now).Return(true, nil).Once()
	repo.On("PurgeScheduledAccount", mock.Anything, "canceled", now).Return(false, nil).Once()
	repo.On("PurgeScheduledAccount", mock.Anything, "broken", now).Return(false, errors.New("fk violation")).Once()

	svc := New(newNoopLogger(), repo, new(MockMailer), new(MockLocker), DefaultPolicy())
	deleted, fails, err := svc.ExecuteDueDeletions(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 1, deleted)
	require.Len(t, fails, 1)
	assert.Equal(t, models.RunFailure{AccountID: "broken", Step: StepDelete, Error: "fk violation"}, fails[0])
	repo.AssertExpectations(t)
}

func TestService_CancelDeletion(t *testing.T) {
	repo := new(MockRepository)
	repo.On("DeleteDeletionSchedule", mock.Anything, "scheduled").Return(true, nil).Once()
	repo.On("DeleteDeletionSchedule", mock.Anything, "absent").Return(false, nil).Once()
	repo.On("DeleteDeletionSchedule", mock.Anything, "err").Return(false, errors.New("db")).Once()

	svc := New(newNoopLogger(), repo, new(MockMailer), new(MockLocker), DefaultPolicy())

	ok, err := svc.CancelDeletion(context.Background(), "scheduled")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.CancelDeletion(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.CancelDeletion(context.Background(), "err")
	assert.Error(t, err)
}

func TestService_DeleteAccount(t *testing.T) {
	repo := new(MockRepository)
	repo.On("PurgeAccount", mock.Anything, "acc-1").Return(nil).Once()
	repo.On("PurgeAccount", mock.Anything, "missing").Return(repository.ErrNotFound).Once()

	svc := New(newNoopLogger(), repo, new(MockMailer), new(MockLocker), DefaultPolicy())

	require.NoError(t, svc.DeleteAccount(context.Background(), "acc-1"))
	err := svc.DeleteAccount(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	repo.AssertExpectations(t)
}

func TestService_DeletionStatus(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	repo := new(MockRepository)
	repo.On("GetDeletionSchedule", mock.Anything, "none").Return(nil, repository.ErrNotFound).Once()
	repo.On("GetDeletionSchedule", mock.Anything, "soon").Return(&models.DeletionScheduleEntry{
		AccountID:           "soon",
		ScheduledDeletionAt: now.Add(13*day + time.Hour),
		FirstWarningSentAt:  timePtr(now.Add(-16 * day)),
		SecondWarningSentAt: timePtr(now),
	}, nil).Once()
	repo.On("GetDeletionSchedule", mock.Anything, "overdue").Return(&models.DeletionScheduleEntry{
		AccountID:           "overdue",
		ScheduledDeletionAt: now.Add(-time.Hour),
	}, nil).Once()

	svc := New(newNoopLogger(), repo, new(MockMailer), new(MockLocker), DefaultPolicy(), WithClock(fixedClock(now)))

	status, err := svc.DeletionStatus(context.Background(), "none")
	require.NoError(t, err)
	assert.False(t, status.Scheduled)
	assert.False(t, status.CanCancel)
	assert.Len(t, status.WarningsSent, 3)

	status, err = svc.DeletionStatus(context.Background(), "soon")
	require.NoError(t, err)
	assert.True(t, status.Scheduled)
	assert.Equal(t, 14, status.DaysUntilDeletion)
	assert.True(t, status.CanCancel)
	assert.True(t, status.WarningsSent[models.WarningFirst])
	assert.True(t, status.WarningsSent[models.WarningSecond])
	assert.False(t, status.WarningsSent[models.WarningFinal])

	status, err = svc.DeletionStatus(context.Background(), "overdue")
	require.NoError(t, err)
	assert.Equal(t, 0, status.DaysUntilDeletion)
	assert.False(t, status.CanCancel)
}

func TestService_RunDataDeletionProcess(t *testing.T) {
	trialExpired := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := trialExpired.Add(91 * day)

	repo := new(MockRepository)
	mailer := new(MockMailer)
	locker := new(MockLocker)
	publisher := new(MockPublisher)
	recorder := new(MockRecorder)

	locker.On("TryLock", mock.Anything, lockKey, DefaultPolicy().LockTTL).Return(true, nil).Once()
	repo.On("ListDeletionCandidates", mock.Anything, now.AddDate(0, -3, 0)).Return([]*models.Account{
		{ID: "acc", Email: "acc@example.com", TrialStartedAt: trialExpired.Add(-models.TrialPeriod), TrialEndsAt: timePtr(trialExpired)},
	}, nil).Once()
	repo.On("InsertDeletionSchedule", mock.Anything, "acc", now.Add(30*day), now).Return(true, nil).Once()
	repo.On("ListOpenSchedules", mock.Anything, now).Return([]*models.DeletionScheduleEntry{
		{AccountID: "acc", Email: "acc@example.com", ScheduledDeletionAt: now.Add(30 * day)},
		{AccountID: "late", Email: "late@example.com", ScheduledDeletionAt: now.Add(2 * day)},
	}, nil).Once()
	mailer.On("SendWarning", mock.Anything, models.Recipient{Email: "acc@example.com"}, models.WarningFirst, now.Add(30*day)).
		Return(nil).Once()
	mailer.On("SendWarning", mock.Anything, models.Recipient{Email: "late@example.com"}, models.WarningFinal, now.Add(2*day)).
		Return(errors.New("mailbox full")).Once()
	repo.On("StampWarning", mock.Anything, "acc", models.WarningFirst, now).Return(true, nil).Once()
	repo.On("ListDueSchedules", mock.Anything, now).Return([]*models.DeletionScheduleEntry{{AccountID: "old"}}, nil).Once()
	repo.On("PurgeScheduledAccount", mock.Anything, "old", now).Return(true, nil).Once()
	recorder.On("ObserveRun", mock.AnythingOfType("*models.RunSummary")).Once()
	publisher.On("Publish", mock.Anything, rabbitmq.ExchangeRetention, rabbitmq.RoutingKeySummary, mock.Anything).
		Return(errors.New("broker unavailable")).Once()

	svc := New(newNoopLogger(), repo, mailer, locker, DefaultPolicy(),
		WithClock(fixedClock(now)), WithPublisher(publisher), WithRecorder(recorder))

	summary, err := svc.RunDataDeletionProcess(context.Background())
	require.NoError(t, err, "publish failure must not fail the run")

	assert.Equal(t, 1, summary.Scheduled)
	assert.Equal(t, models.WarningCounts{First: 1}, summary.WarningsSent)
	assert.Equal(t, 1, summary.Deleted)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "late", summary.Failures[0].AccountID)
	assert.Equal(t, StepWarn, summary.Failures[0].Step)
	assert.Equal(t, 1, locker.released)

	repo.AssertExpectations(t)
	mailer.AssertExpectations(t)
	publisher.AssertExpectations(t)
	recorder.AssertExpectations(t)
}

func TestService_RunDataDeletionProcess_LockHeld(t *testing.T) {
	repo := new(MockRepository)
	locker := new(MockLocker)
	recorder := new(MockRecorder)

	locker.On("TryLock", mock.Anything, lockKey, mock.Anything).Return(false, nil).Once()
	recorder.On("RunSkipped").Once()

	svc := New(newNoopLogger(), repo, new(MockMailer), locker, DefaultPolicy(), WithRecorder(recorder))

	summary, err := svc.RunDataDeletionProcess(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)
	assert.Nil(t, summary)
	repo.AssertNotCalled(t, "ListDeletionCandidates", mock.Anything, mock.Anything)
	recorder.AssertExpectations(t)
}

func TestService_RunDataDeletionProcess_ListFailureReleasesLock(t *testing.T) {
	repo := new(MockRepository)
	locker := new(MockLocker)

	locker.On("TryLock", mock.Anything, lockKey, mock.Anything).Return(true, nil).Once()
	repo.On("ListDeletionCandidates", mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once()

	svc := New(newNoopLogger(), repo, new(MockMailer), locker, DefaultPolicy())

	_, err := svc.RunDataDeletionProcess(context.Background())
	assert.ErrorContains(t, err, "db down")
	assert.Equal(t, 1, locker.released)
}

// Повторный запуск в тот же момент ничего не меняет: записи уже существуют,
// предупреждения отмечены.
func TestService_RunDataDeletionProcess_Idempotent(t *testing.T) {
	trialExpired := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := trialExpired.Add(91 * day)

	repo := new(MockRepository)
	mailer := new(MockMailer)
	locker := new(MockLocker)

	locker.On("TryLock", mock.Anything, lockKey, mock.Anything).Return(true, nil)
	repo.On("ListDeletionCandidates", mock.Anything, mock.Anything).Return([]*models.Account{}, nil)
	repo.On("ListOpenSchedules", mock.Anything, now).Return([]*models.DeletionScheduleEntry{
		{AccountID: "acc", ScheduledDeletionAt: now.Add(30 * day), FirstWarningSentAt: timePtr(now)},
	}, nil)
	repo.On("ListDueSchedules", mock.Anything, now).Return([]*models.DeletionScheduleEntry{}, nil)

	svc := New(newNoopLogger(), repo, mailer, locker, DefaultPolicy(), WithClock(fixedClock(now)))

	for range 2 {
		summary, err := svc.RunDataDeletionProcess(context.Background())
		require.NoError(t, err)
		assert.Zero(t, summary.Scheduled)
		assert.Zero(t, summary.WarningsSent.Total())
		assert.Zero(t, summary.Deleted)
		assert.Empty(t, summary.Failures)
	}
	mailer.AssertNotCalled(t, "SendWarning", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
