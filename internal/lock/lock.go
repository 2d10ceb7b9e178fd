// Package lock excludes concurrent sync cycles, in process or across terminals.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/xelth-com/eckposgo/internal/config"
)

// Locker hands out one holder at a time. TryLock never blocks waiting for
// the current holder; ok is false when the lock is taken.
type Locker interface {
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}

// New picks the backend named in cfg
func New(cfg config.LockConfig) (Locker, error) {
	switch cfg.Backend {
	case "", "local":
		return &Local{}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
		ttl := time.Duration(cfg.TTL) * time.Second
		return NewRedis(client, cfg.Key, ttl), nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.Backend)
	}
}

// Local is an in-process lock
type Local struct {
	held atomic.Bool
}

func (l *Local) TryLock(context.Context) (func(), bool, error) {
	if !l.held.CompareAndSwap(false, true) {
		return nil, false, nil
	}
	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			l.held.Store(false)
		}
	}, true, nil
}

// Redis shares the lock between terminals through a redis key
type Redis struct {
	client *redislock.Client
	key    string
	ttl    time.Duration
}

// NewRedis wraps an existing redis client
func NewRedis(client redis.UniversalClient, key string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if key == "" {
		key = "eckpos:sync"
	}
	return &Redis{client: redislock.New(client), key: key, ttl: ttl}
}

func (r *Redis) TryLock(ctx context.Context) (func(), bool, error) {
	l, err := r.client.Obtain(ctx, r.key, r.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("obtain sync lock: %w", err)
	}
	return func() {
		// Expired locks release themselves.
		_ = l.Release(context.Background())
	}, true, nil
}
