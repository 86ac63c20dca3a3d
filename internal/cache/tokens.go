package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	revokedPrefix = "revoked:"
	resetPrefix   = "reset:"
)

// RevokeToken помечает токен с идентификатором jti отозванным до истечения его срока.
func (c *Cache) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	const op = "cache.RevokeToken"
	if ttl <= 0 {
		return nil
	}
	if err := c.Db.Set(ctx, revokedPrefix+jti, 1, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// IsRevoked сообщает, был ли токен отозван.
func (c *Cache) IsRevoked(ctx context.Context, jti string) (bool, error) {
	const op = "cache.IsRevoked"
	n, err := c.Db.Exists(ctx, revokedPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// StoreResetToken сохраняет токен сброса пароля для учётной записи.
func (c *Cache) StoreResetToken(ctx context.Context, token, accountID string, ttl time.Duration) error {
	const op = "cache.StoreResetToken"
	if err := c.Db.Set(ctx, resetPrefix+token, accountID, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ConsumeResetToken возвращает учётную запись токена и удаляет его.
// Для неизвестного или истёкшего токена возвращает пустую строку.
func (c *Cache) ConsumeResetToken(ctx context.Context, token string) (string, error) {
	const op = "cache.ConsumeResetToken"
	accountID, err := c.Db.GetDel(ctx, resetPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return accountID, nil
}
