// Package cache is the read-through cache for application and budget
// projections. Writers invalidate by aggregate key after commit.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

type Store interface {
	// Get decodes the cached value into dest. found is false on a miss.
	Get(ctx context.Context, key string, dest any) (found bool, err error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

func ApplicationKey(id uuid.UUID) string { return "application:" + id.String() }
func BudgetKey(id uuid.UUID) string      { return "budget:" + id.String() }

/* =========================================================
   Redis
========================================================= */

type RedisStore struct {
	Client *redis.Client
	Prefix string
}

func NewRedisStore(url, prefix string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisStore{Client: redis.NewClient(opt), Prefix: prefix}, nil
}

func (s *RedisStore) key(k string) string { return s.Prefix + k }

func (s *RedisStore) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := s.Client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := sonic.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := sonic.Marshal(value)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, s.key(key), raw, ttl).Err()
}

func (s *RedisStore) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	return s.Client.Del(ctx, full...).Err()
}

/* =========================================================
   No-op (no REDIS_URL)
========================================================= */

type Nop struct{}

func (Nop) Get(context.Context, string, any) (bool, error)        { return false, nil }
func (Nop) Set(context.Context, string, any, time.Duration) error { return nil }
func (Nop) Invalidate(context.Context, ...string) error           { return nil }

/* =========================================================
   Read-through
========================================================= */

// Loader wraps a Store with singleflight so concurrent misses on one key
// hit the database once. Cache errors degrade to a direct load.
type Loader struct {
	Store Store
	TTL   time.Duration
	Log   logrus.FieldLogger
	group singleflight.Group
}

func NewLoader(store Store, ttl time.Duration, log logrus.FieldLogger) *Loader {
	if store == nil {
		store = Nop{}
	}
	return &Loader{Store: store, TTL: ttl, Log: log}
}

// Remember returns the cached value for key or loads, stores and returns it.
func Remember[T any](ctx context.Context, l *Loader, key string, load func() (T, error)) (T, error) {
	var cached T
	if found, err := l.Store.Get(ctx, key, &cached); err != nil {
		l.Log.WithError(err).WithField("key", key).Warn("cache get failed")
	} else if found {
		return cached, nil
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		fresh, err := load()
		if err != nil {
			return fresh, err
		}
		if err := l.Store.Set(ctx, key, fresh, l.TTL); err != nil {
			l.Log.WithError(err).WithField("key", key).Warn("cache set failed")
		}
		return fresh, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate drops keys, logging instead of failing: the write it follows
// has already committed.
func (l *Loader) Invalidate(ctx context.Context, keys ...string) {
	if err := l.Store.Invalidate(ctx, keys...); err != nil {
		l.Log.WithError(err).WithField("keys", keys).Warn("cache invalidate failed")
	}
}
