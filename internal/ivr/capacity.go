package ivr

import (
	"context"
	"time"

	"voice-auth-ivr/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// Gate admits or rejects new calls. A slot is held per call id.
type Gate interface {
	Acquire(ctx context.Context, callID string) (bool, error)
	Release(ctx context.Context, callID string) error
}

// RedisGate caps concurrently running flows across all instances with a
// shared Redis slot set.
type RedisGate struct {
	rdb   redis.Scripter
	key   string
	limit int
	// ttl bounds a leaked slot after a crash; it must outlive any call.
	ttl time.Duration
	now func() time.Time
}

func NewRedisGate(rdb redis.Scripter, prefix string, limit int) *RedisGate {
	return &RedisGate{
		rdb:   rdb,
		key:   prefix + "active_calls",
		limit: limit,
		ttl:   2 * time.Hour,
		now:   time.Now,
	}
}

func (g *RedisGate) Acquire(ctx context.Context, callID string) (bool, error) {
	return utils.AcquireConcurrencyCap(ctx, g.rdb, g.key, callID, g.limit, g.ttl, g.now())
}

func (g *RedisGate) Release(ctx context.Context, callID string) error {
	return utils.ReleaseConcurrencyCap(ctx, g.rdb, g.key, callID)
}
