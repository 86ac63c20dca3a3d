package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/magabrotheeeer/memorysphere/internal/models"
)

const uniqueViolation = "23505"

const accountColumns = `id, email, first_name, last_name, password_hash, created_at,
	trial_started_at, trial_ends_at, subscription_status, theme`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	a := &models.Account{}
	var trialEnds sql.NullTime
	var status string
	if err := row.Scan(&a.ID, &a.Email, &a.FirstName, &a.LastName, &a.PasswordHash, &a.CreatedAt,
		&a.TrialStartedAt, &trialEnds, &status, &a.Theme); err != nil {
		return nil, err
	}
	a.TrialEndsAt = nullTimePtr(trialEnds)

	parsed, err := models.ParseSubscriptionStatus(status)
	if err != nil {
		return nil, err
	}
	a.SubscriptionStatus = parsed
	return a, nil
}

// CreateAccount сохраняет новую учётную запись и возвращает её идентификатор.
func (s *Storage) CreateAccount(ctx context.Context, a models.Account) (string, error) {
	const op = "storage.CreateAccount"
	if err := ctxDone(ctx, op); err != nil {
		return "", err
	}

	query := `INSERT INTO accounts (email, first_name, last_name, password_hash,
				  trial_started_at, trial_ends_at, subscription_status)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING id;`
	var id string
	err := s.DB.QueryRowContext(ctx, query,
		a.Email, a.FirstName, a.LastName, a.PasswordHash,
		a.TrialStartedAt, a.TrialEndsAt, string(a.SubscriptionStatus)).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// GetAccount возвращает учётную запись по идентификатору.
func (s *Storage) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	const op = "storage.GetAccount"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	row := s.DB.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// GetAccountByEmail возвращает учётную запись по адресу электронной почты.
func (s *Storage) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	const op = "storage.GetAccountByEmail"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	row := s.DB.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE lower(email) = lower($1)`, email)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// UpdateAccountStatus меняет статус подписки учётной записи.
func (s *Storage) UpdateAccountStatus(ctx context.Context, accountID string, status models.SubscriptionStatus) error {
	const op = "storage.UpdateAccountStatus"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx, `UPDATE accounts SET subscription_status = $1 WHERE id = $2`, string(status), accountID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(res, op)
}

// UpdatePassword сохраняет новый хэш пароля.
func (s *Storage) UpdatePassword(ctx context.Context, accountID, passwordHash string) error {
	const op = "storage.UpdatePassword"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx, `UPDATE accounts SET password_hash = $1 WHERE id = $2`, passwordHash, accountID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(res, op)
}

func expectAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
