package data

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// sequenceGuardKey is the cross-process marker for a running shutdown
// sequence. The TTL bounds how long a crashed holder can block others.
const sequenceGuardKey = "labsentry:shutdown:sequence"

// RedisSequenceGuard implements biz.SequenceGuard with a Redis SETNX
// marker. It is best-effort: the orchestrator's local lock stays
// authoritative and guard errors degrade to it.
type RedisSequenceGuard struct {
	rdb    *redis.Client
	holder string
	logger *log.Helper
}

// NewRedisSequenceGuard creates a new sequence guard.
func NewRedisSequenceGuard(rdb *redis.Client, logger log.Logger) *RedisSequenceGuard {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "labsentry"
	}
	return &RedisSequenceGuard{
		rdb:    rdb,
		holder: hostname,
		logger: log.NewHelper(logger),
	}
}

// TryAcquire returns false if another process holds the marker.
func (g *RedisSequenceGuard) TryAcquire(ctx context.Context, ttl time.Duration) (bool, error) {
	if g.rdb == nil {
		return false, fmt.Errorf("redis client is nil")
	}

	// SetNX for atomic set-if-not-exists
	acquired, err := g.rdb.SetNX(ctx, sequenceGuardKey, g.holder, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire sequence guard: %w", err)
	}
	return acquired, nil
}

// Release drops the marker. Failures are logged, not returned as fatal,
// because the TTL clears a stale marker anyway.
func (g *RedisSequenceGuard) Release(ctx context.Context) error {
	if g.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}

	if err := g.rdb.Del(ctx, sequenceGuardKey).Err(); err != nil {
		g.logger.Warnf("Failed to release sequence guard: %v", err)
		return fmt.Errorf("failed to release sequence guard: %w", err)
	}
	return nil
}
