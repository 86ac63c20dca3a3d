package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/memorysphere/internal/models"
)

const scheduleColumns = `d.account_id, a.email, a.first_name, d.scheduled_deletion_at, d.created_at,
	d.first_warning_sent_at, d.second_warning_sent_at, d.final_warning_sent_at`

func scanSchedule(row rowScanner) (*models.DeletionScheduleEntry, error) {
	e := &models.DeletionScheduleEntry{}
	var first, second, final sql.NullTime
	if err := row.Scan(&e.AccountID, &e.Email, &e.FirstName, &e.ScheduledDeletionAt, &e.CreatedAt,
		&first, &second, &final); err != nil {
		return nil, err
	}
	e.FirstWarningSentAt = nullTimePtr(first)
	e.SecondWarningSentAt = nullTimePtr(second)
	e.FinalWarningSentAt = nullTimePtr(final)
	return e, nil
}

// ListDeletionCandidates возвращает учётные записи без активной подписки и без записи
// в расписании удаления, пробный период которых закончился не позже cutoff.
// Для записей без даты окончания пробного периода используется дата его начала.
func (s *Storage) ListDeletionCandidates(ctx context.Context, cutoff time.Time) ([]*models.Account, error) {
	const op = "storage.ListDeletionCandidates"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT a.id, a.email, a.first_name, a.last_name, a.password_hash, a.created_at,
				  a.trial_started_at, a.trial_ends_at, a.subscription_status, a.theme
			  FROM accounts a
			  LEFT JOIN deletion_schedule d ON d.account_id = a.id
			  WHERE a.subscription_status <> 'active'
				AND d.account_id IS NULL
				AND COALESCE(a.trial_ends_at, a.trial_started_at) <= $1
			  ORDER BY a.created_at`
	rows, err := s.DB.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return accounts, nil
}

// InsertDeletionSchedule создаёт запись расписания удаления.
// Возвращает false, если запись для учётной записи уже существует.
func (s *Storage) InsertDeletionSchedule(ctx context.Context, accountID string, scheduledAt, now time.Time) (bool, error) {
	const op = "storage.InsertDeletionSchedule"
	if err := ctxDone(ctx, op); err != nil {
		return false, err
	}

	res, err := s.DB.ExecContext(ctx, `INSERT INTO deletion_schedule (account_id, scheduled_deletion_at, created_at)
			  VALUES ($1, $2, $3)
			  ON CONFLICT (account_id) DO NOTHING`, accountID, scheduledAt, now)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// ListOpenSchedules возвращает записи, срок удаления которых ещё не наступил.
func (s *Storage) ListOpenSchedules(ctx context.Context, now time.Time) ([]*models.DeletionScheduleEntry, error) {
	return s.listSchedules(ctx, "storage.ListOpenSchedules", `d.scheduled_deletion_at > $1`, now)
}

// ListDueSchedules возвращает записи, срок удаления которых наступил.
func (s *Storage) ListDueSchedules(ctx context.Context, now time.Time) ([]*models.DeletionScheduleEntry, error) {
	return s.listSchedules(ctx, "storage.ListDueSchedules", `d.scheduled_deletion_at <= $1`, now)
}

func (s *Storage) listSchedules(ctx context.Context, op, cond string, now time.Time) ([]*models.DeletionScheduleEntry, error) {
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + scheduleColumns + `
			  FROM deletion_schedule d
			  JOIN accounts a ON a.id = d.account_id
			  WHERE ` + cond + `
			  ORDER BY d.scheduled_deletion_at`
	rows, err := s.DB.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var entries []*models.DeletionScheduleEntry
	for rows.Next() {
		e, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return entries, nil
}

// GetDeletionSchedule возвращает запись расписания учётной записи.
func (s *Storage) GetDeletionSchedule(ctx context.Context, accountID string) (*models.DeletionScheduleEntry, error) {
	const op = "storage.GetDeletionSchedule"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	row := s.DB.QueryRowContext(ctx, `SELECT `+scheduleColumns+`
			  FROM deletion_schedule d
			  JOIN accounts a ON a.id = d.account_id
			  WHERE d.account_id = $1`, accountID)
	e, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return e, nil
}

var warningColumns = map[models.WarningStage]string{
	models.WarningFirst:  "first_warning_sent_at",
	models.WarningSecond: "second_warning_sent_at",
	models.WarningFinal:  "final_warning_sent_at",
}

// StampWarning отмечает отправку предупреждения этапа stage.
// Уже проставленная отметка не перезаписывается; в этом случае возвращается false.
func (s *Storage) StampWarning(ctx context.Context, accountID string, stage models.WarningStage, sentAt time.Time) (bool, error) {
	const op = "storage.StampWarning"
	if err := ctxDone(ctx, op); err != nil {
		return false, err
	}

	column, ok := warningColumns[stage]
	if !ok {
		return false, fmt.Errorf("%s: unknown warning stage %q", op, stage)
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE deletion_schedule SET `+column+` = $1
			  WHERE account_id = $2 AND `+column+` IS NULL`, sentAt, accountID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// DeleteDeletionSchedule удаляет запись расписания. Возвращает false, если записи не было.
func (s *Storage) DeleteDeletionSchedule(ctx context.Context, accountID string) (bool, error) {
	const op = "storage.DeleteDeletionSchedule"
	if err := ctxDone(ctx, op); err != nil {
		return false, err
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM deletion_schedule WHERE account_id = $1`, accountID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// PurgeScheduledAccount безвозвратно удаляет учётную запись и все её данные,
// если запись расписания всё ещё существует и срок удаления наступил к моменту now.
// Запись расписания блокируется до конца транзакции, поэтому отмена и удаление
// не могут выполниться одновременно. Возвращает false, если удалять нечего.
func (s *Storage) PurgeScheduledAccount(ctx context.Context, accountID string, now time.Time) (bool, error) {
	const op = "storage.PurgeScheduledAccount"
	if err := ctxDone(ctx, op); err != nil {
		return false, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer rollback(tx)

	var scheduledAt time.Time
	err = tx.QueryRowContext(ctx, `SELECT scheduled_deletion_at FROM deletion_schedule
			  WHERE account_id = $1 FOR UPDATE`, accountID).Scan(&scheduledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: lock schedule: %w", op, err)
	}
	if scheduledAt.After(now) {
		return false, nil
	}

	if err := purgeAccountData(ctx, tx, accountID); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%s: commit: %w", op, err)
	}
	return true, nil
}

// PurgeAccount безвозвратно удаляет учётную запись по запросу пользователя.
func (s *Storage) PurgeAccount(ctx context.Context, accountID string) error {
	const op = "storage.PurgeAccount"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer rollback(tx)

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT true FROM accounts WHERE id = $1 FOR UPDATE`, accountID).
		Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := purgeAccountData(ctx, tx, accountID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

// purgeAccountData удаляет данные учётной записи в порядке зависимостей.
func purgeAccountData(ctx context.Context, tx *sql.Tx, accountID string) error {
	statements := []struct {
		table string
		query string
	}{
		{"memories", `DELETE FROM memories WHERE account_id = $1`},
		{"tasks", `DELETE FROM tasks WHERE account_id = $1`},
		{"subscription_records", `DELETE FROM subscription_records WHERE account_id = $1`},
		{"deletion_schedule", `DELETE FROM deletion_schedule WHERE account_id = $1`},
		{"accounts", `DELETE FROM accounts WHERE id = $1`},
	}
	for _, st := range statements {
		if _, err := tx.ExecContext(ctx, st.query, accountID); err != nil {
			return fmt.Errorf("delete %s: %w", st.table, err)
		}
	}
	return nil
}
