// Package lock provides a Redis lease used to keep a job single-flight across
// processes.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNotAcquired = errors.New("lock not acquired")
	ErrNotHeld     = errors.New("lock not held")
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Locker hands out SET NX leases under a key prefix.
type Locker struct {
	rdb       redis.UniversalClient
	keyPrefix string
}

func NewLocker(rdb redis.UniversalClient, keyPrefix string) *Locker {
	if keyPrefix == "" {
		keyPrefix = "productradar:lock:"
	}
	return &Locker{rdb: rdb, keyPrefix: keyPrefix}
}

// Lease is a held lock. Only the holder's token can extend or release it.
type Lease struct {
	rdb   redis.UniversalClient
	key   string
	token string
	ttl   time.Duration
}

func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lease, error) {
	key := l.keyPrefix + name
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return &Lease{rdb: l.rdb, key: key, token: token, ttl: ttl}, nil
}

func (lease *Lease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, lease.rdb, []string{lease.key}, lease.token).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

func (lease *Lease) Extend(ctx context.Context) error {
	n, err := extendScript.Run(ctx, lease.rdb, []string{lease.key}, lease.token, lease.ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// KeepAlive extends the lease every ttl/3 until ctx is done or the lease is lost.
func (lease *Lease) KeepAlive(ctx context.Context, onLost func(error)) {
	interval := lease.ttl / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lease.Extend(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				if onLost != nil {
					onLost(err)
				}
				return
			}
		}
	}
}

func (lease *Lease) Key() string { return lease.key }
