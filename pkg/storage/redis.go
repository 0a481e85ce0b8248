package storage

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on top of a Redis database. Every key is
// namespaced under the configured prefix so several connectors can share
// one database.
type RedisStore struct {
	db            redis.UniversalClient
	namespace     string
	scanBatchSize int64
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithScanBatchSize overrides the SCAN page size used by DeletePrefix.
func WithScanBatchSize(n int64) RedisOption {
	return func(s *RedisStore) {
		if n > 0 {
			s.scanBatchSize = n
		}
	}
}

// NewRedisStore creates a Redis-backed store scoped under namespace.
// The namespace typically carries the host-provided resource prefix, e.g.
// "connector:{account}:{subscription}:{function}:".
func NewRedisStore(db redis.UniversalClient, namespace string, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		db:            db,
		namespace:     namespace,
		scanBatchSize: 1000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the value stored under key, or ErrNotFound (redis.Nil is
// translated so callers never see the driver sentinel).
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.db.Get(ctx, s.namespace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return value, err
}

// Put stores value under key with no expiration.
func (s *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	return s.db.Set(ctx, s.namespace+key, value, 0).Err()
}

// Delete removes a single key. Absent keys are a no-op.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.db.Del(ctx, s.namespace+key).Err()
}

// DeletePrefix removes every key starting with prefix using SCAN to avoid
// blocking Redis on large keyspaces.
func (s *RedisStore) DeletePrefix(ctx context.Context, prefix string) error {
	match := escapeMatch(s.namespace+prefix) + "*"
	var cursor uint64
	for {
		batch, next, err := s.db.Scan(ctx, cursor, match, s.scanBatchSize).Result()
		if err != nil {
			return err
		}
		if len(batch) > 0 {
			if err := s.db.Del(ctx, batch...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// escapeMatch neutralizes glob metacharacters so key fragments containing
// '*', '?', '[' or ']' match literally in SCAN patterns.
func escapeMatch(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
