package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript удаляет ключ блокировки, только если им всё ещё владеет вызывающий.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// TryLock пытается захватить блокировку key на время ttl.
// Если блокировка занята, возвращает ok=false без ошибки.
// release освобождает блокировку, если она ещё принадлежит вызывающему.
func (c *Cache) TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error) {
	const op = "cache.TryLock"
	token := uuid.NewString()

	ok, err = c.Db.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, false, nil
	}

	release = func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, c.Db, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("cache.ReleaseLock: %w", err)
		}
		return nil
	}
	return release, true, nil
}
