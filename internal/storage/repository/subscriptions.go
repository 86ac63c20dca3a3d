package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/memorysphere/internal/models"
)

// GetSubscription возвращает зеркало подписки учётной записи.
func (s *Storage) GetSubscription(ctx context.Context, accountID string) (*models.SubscriptionRecord, error) {
	const op = "storage.GetSubscription"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT account_id, provider_subscription_id, price_id, status,
				  current_period_end, cancel_at_period_end, updated_at
			  FROM subscription_records
			  WHERE account_id = $1`
	rec := &models.SubscriptionRecord{}
	var status string
	var periodEnd sql.NullTime
	err := s.DB.QueryRowContext(ctx, query, accountID).Scan(&rec.AccountID, &rec.ProviderSubscriptionID,
		&rec.PriceID, &status, &periodEnd, &rec.CancelAtPeriodEnd, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rec.Status, err = models.ParseProviderStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rec.CurrentPeriodEnd = nullTimePtr(periodEnd)
	return rec, nil
}

// GetAccountIDByProviderSubscription находит учётную запись по идентификатору подписки провайдера.
func (s *Storage) GetAccountIDByProviderSubscription(ctx context.Context, providerSubscriptionID string) (string, error) {
	const op = "storage.GetAccountIDByProviderSubscription"
	if err := ctxDone(ctx, op); err != nil {
		return "", err
	}

	var accountID string
	err := s.DB.QueryRowContext(ctx,
		`SELECT account_id FROM subscription_records WHERE provider_subscription_id = $1`,
		providerSubscriptionID).Scan(&accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return accountID, nil
}

// ApplySubscription в одной транзакции сохраняет зеркало подписки,
// обновляет статус учётной записи и, если подписка активна, снимает её с удаления.
// Возвращает true, если запись расписания удаления была удалена.
func (s *Storage) ApplySubscription(ctx context.Context, rec models.SubscriptionRecord) (bool, error) {
	const op = "storage.ApplySubscription"
	if err := ctxDone(ctx, op); err != nil {
		return false, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer rollback(tx)

	upsert := `INSERT INTO subscription_records (account_id, provider_subscription_id, price_id,
				   status, current_period_end, cancel_at_period_end, updated_at)
			   VALUES ($1, $2, $3, $4, $5, $6, $7)
			   ON CONFLICT (account_id) DO UPDATE SET
				   provider_subscription_id = EXCLUDED.provider_subscription_id,
				   price_id = EXCLUDED.price_id,
				   status = EXCLUDED.status,
				   current_period_end = EXCLUDED.current_period_end,
				   cancel_at_period_end = EXCLUDED.cancel_at_period_end,
				   updated_at = EXCLUDED.updated_at`
	if _, err := tx.ExecContext(ctx, upsert, rec.AccountID, rec.ProviderSubscriptionID, rec.PriceID,
		string(rec.Status), rec.CurrentPeriodEnd, rec.CancelAtPeriodEnd, rec.UpdatedAt); err != nil {
		return false, fmt.Errorf("%s: upsert: %w", op, err)
	}

	if status, ok := rec.Status.AccountStatus(); ok {
		res, err := tx.ExecContext(ctx, `UPDATE accounts SET subscription_status = $1 WHERE id = $2`,
			string(status), rec.AccountID)
		if err != nil {
			return false, fmt.Errorf("%s: account status: %w", op, err)
		}
		if err := expectAffected(res, op); err != nil {
			return false, err
		}
	}

	var canceled bool
	if rec.Status == models.ProviderActive {
		res, err := tx.ExecContext(ctx, `DELETE FROM deletion_schedule WHERE account_id = $1`, rec.AccountID)
		if err != nil {
			return false, fmt.Errorf("%s: cancel deletion: %w", op, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
		canceled = n > 0
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%s: commit: %w", op, err)
	}
	return canceled, nil
}
