package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"fraud-risk-engine/internal/domain/transaction"
)

// ErrLockNotHeld is returned on release when the lease expired and the key
// no longer carries our token
var ErrLockNotHeld = errors.New("transaction lock no longer held")

const lockKeyPrefix = "fraud:lock:tx:"

// Only delete the key if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// lockStore is the atomic primitive pair the locker needs
type lockStore interface {
	acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	release(ctx context.Context, key, token string) (bool, error)
}

type redisLockStore struct {
	rdb *redis.Client
}

func (s redisLockStore) acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, token, ttl).Result()
}

func (s redisLockStore) release(ctx context.Context, key, token string) (bool, error) {
	n, err := releaseScript.Run(ctx, s.rdb, []string{key}, token).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// LockConfig tunes the distributed lock
type LockConfig struct {
	// TTL bounds how long a crashed holder can block others
	TTL time.Duration
	// Wait bounds how long Lock polls before giving up
	Wait time.Duration
	// MinBackoff and MaxBackoff bound the polling interval
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

func (c LockConfig) withDefaults() LockConfig {
	if c.TTL <= 0 {
		c.TTL = 10 * time.Second
	}
	if c.MinBackoff <= 0 {
		c.MinBackoff = 5 * time.Millisecond
	}
	if c.MaxBackoff < c.MinBackoff {
		c.MaxBackoff = 100 * time.Millisecond
	}
	return c
}

// Locker is a per-transaction writer lock shared by every API instance.
// Acquire is SET NX PX with a random token, release is compare-and-delete.
type Locker struct {
	store lockStore
	cfg   LockConfig
}

var _ transaction.Locker = (*Locker)(nil)

// NewLocker creates a Redis-backed locker
func NewLocker(client *Client, cfg LockConfig) *Locker {
	return &Locker{store: redisLockStore{rdb: client.Redis()}, cfg: cfg.withDefaults()}
}

// Lock polls with exponential backoff until the lock is held, the wait
// budget is spent or ctx is done
func (l *Locker) Lock(ctx context.Context, id uuid.UUID) (transaction.Lease, error) {
	if l.cfg.Wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.Wait)
		defer cancel()
	}

	key := lockKeyPrefix + id.String()
	token := uuid.NewString()
	backoff := l.cfg.MinBackoff

	for {
		ok, err := l.store.acquire(ctx, key, token, l.cfg.TTL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %v", transaction.ErrLockTimeout, id, ctx.Err())
			}
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return &lease{store: l.store, key: key, token: token}, nil
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s: %v", transaction.ErrLockTimeout, id, ctx.Err())
		case <-timer.C:
		}

		backoff *= 2
		if backoff > l.cfg.MaxBackoff {
			backoff = l.cfg.MaxBackoff
		}
	}
}

type lease struct {
	store lockStore
	key   string
	token string
}

// Release deletes the key if it still carries the lease token
func (l *lease) Release(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	ok, err := l.store.release(ctx, l.key, l.token)
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	if !ok {
		return ErrLockNotHeld
	}
	return nil
}
