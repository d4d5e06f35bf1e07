package mapping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps mappings as plain string keys with EX expiry:
//
//	<prefix>caller:<callerId> = <userId>
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
}

func NewRedisStore(rdb redis.Cmdable, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(callerID string) string {
	return s.prefix + "caller:" + callerID
}

func (s *RedisStore) Get(ctx context.Context, callerID string) (string, bool, error) {
	if callerID == "" {
		return "", false, ErrInvalidArgument
	}
	v, err := s.rdb.Get(ctx, s.key(callerID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("mapping: get %s: %w", callerID, err)
	}
	if v == "" {
		return "", false, nil
	}
	return v, true, nil
}

func (s *RedisStore) Put(ctx context.Context, callerID, userID string, ttl time.Duration) error {
	if err := validatePut(callerID, userID, ttl); err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key(callerID), userID, ttl).Err(); err != nil {
		return fmt.Errorf("mapping: put %s: %w", callerID, err)
	}
	return nil
}
