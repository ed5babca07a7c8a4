package dedup

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix    = "chat:dedup:"
	pendingValue = "pending"
	// pendingTTL bounds a claim whose owner died before settling it.
	pendingTTL = time.Minute
)

// RedisWindow shares the window between processes writing to the same
// database. A claim is a key set with NX and the pending TTL; completion
// overwrites the value with the message id and a TTL of the window.
type RedisWindow struct {
	rdb        *redis.Client
	window     time.Duration
	pendingTTL time.Duration
	poll       time.Duration
}

func NewRedisWindow(rdb *redis.Client, window time.Duration) *RedisWindow {
	ttl := pendingTTL
	if ttl < window {
		ttl = 2 * window
	}
	return &RedisWindow{rdb: rdb, window: window, pendingTTL: ttl, poll: 25 * time.Millisecond}
}

func (w *RedisWindow) Begin(ctx context.Context, key string) (int, bool, error) {
	k := keyPrefix + key
	for {
		claimed, err := w.rdb.SetNX(ctx, k, pendingValue, w.pendingTTL).Result()
		if err != nil {
			return 0, false, fmt.Errorf("claim dedup key: %w", err)
		}
		if claimed {
			return 0, false, nil
		}

		id, settled, err := w.waitSettled(ctx, k)
		if err != nil {
			return 0, false, err
		}
		if settled {
			return id, true, nil
		}
		// owner aborted or the key expired: try to claim again
	}
}

// waitSettled polls the key until the owner writes an id or the key vanishes.
func (w *RedisWindow) waitSettled(ctx context.Context, k string) (int, bool, error) {
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		val, err := w.rdb.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, fmt.Errorf("read dedup key: %w", err)
		}
		if val != pendingValue {
			id, err := strconv.Atoi(val)
			if err != nil {
				return 0, false, fmt.Errorf("corrupt dedup value %q: %w", val, err)
			}
			return id, true, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return 0, false, ctx.Err()
		}
	}
}

func (w *RedisWindow) Complete(ctx context.Context, key string, messageID int) error {
	err := w.rdb.SetArgs(ctx, keyPrefix+key, strconv.Itoa(messageID), redis.SetArgs{
		Mode: "XX",
		TTL:  w.window,
	}).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("complete dedup key: %w", err)
	}
	return nil
}

func (w *RedisWindow) Abort(ctx context.Context, key string) error {
	if err := w.rdb.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("abort dedup key: %w", err)
	}
	return nil
}
