package data

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// CooldownRepo implements biz.CooldownRepo using Redis fixed-window
// counters. One key per action type, expiring after the window.
type CooldownRepo struct {
	rdb    *redis.Client
	logger *log.Helper
}

// NewCooldownRepo creates a new cooldown counter repository.
func NewCooldownRepo(rdb *redis.Client, logger log.Logger) *CooldownRepo {
	return &CooldownRepo{
		rdb:    rdb,
		logger: log.NewHelper(logger),
	}
}

// Increment bumps the window counter for actionType and returns the new
// count. The caller treats errors as "Redis unavailable" and fails open.
func (r *CooldownRepo) Increment(ctx context.Context, actionType string, window time.Duration) (int64, error) {
	if r.rdb == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	key := getCooldownKey(actionType)

	count, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment cooldown counter: %w", err)
	}

	// Set expiration on first increment
	if count == 1 {
		if err := r.rdb.Expire(ctx, key, window).Err(); err != nil {
			r.logger.Warnf("Failed to set cooldown expiration for %s: %v", actionType, err)
			// Don't return error, counter is still incremented
		}
	}

	return count, nil
}

// getCooldownKey generates the Redis key for an action type's window counter.
func getCooldownKey(actionType string) string {
	return fmt.Sprintf("labsentry:cooldown:%s", actionType)
}
