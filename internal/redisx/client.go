package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	KeyIdemWriteOff = "idem:write-off:%s:%s" // user id, client key
)

// New connects to Redis and checks the connection with a PING.
func New(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

// IdempotencyGuard claims client supplied submission keys so a retried form
// post does not create a second write-off request.
type IdempotencyGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyGuard(rdb *redis.Client, ttl time.Duration) *IdempotencyGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyGuard{rdb: rdb, ttl: ttl}
}

// Claim reports true when scope/key was not seen before and is now taken.
func (g *IdempotencyGuard) Claim(ctx context.Context, scope, key string) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, fmt.Sprintf(KeyIdemWriteOff, scope, key), time.Now().Unix(), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim idempotency key: %w", err)
	}
	return ok, nil
}

// Release frees a claim after the guarded work failed.
func (g *IdempotencyGuard) Release(ctx context.Context, scope, key string) error {
	if err := g.rdb.Del(ctx, fmt.Sprintf(KeyIdemWriteOff, scope, key)).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
