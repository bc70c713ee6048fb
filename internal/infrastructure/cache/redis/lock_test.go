package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud-risk-engine/internal/domain/transaction"
)

// fakeStore mimics SET NX and compare-and-delete on an in-process map
type fakeStore struct {
	mu       sync.Mutex
	keys     map[string]string
	attempts int
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{keys: make(map[string]string)}
}

func (f *fakeStore) acquire(_ context.Context, key, token string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.keys[key]; ok {
		return false, nil
	}
	f.keys[key] = token
	return true, nil
}

func (f *fakeStore) release(_ context.Context, key, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys[key] != token {
		return false, nil
	}
	delete(f.keys, key)
	return true, nil
}

func newTestLocker(store lockStore, wait time.Duration) *Locker {
	return &Locker{store: store, cfg: LockConfig{
		Wait:       wait,
		MinBackoff: time.Millisecond,
		MaxBackoff: 4 * time.Millisecond,
	}.withDefaults()}
}

func TestLocker_AcquireAndRelease(t *testing.T) {
	store := newFakeStore()
	locker := newTestLocker(store, time.Second)
	id := uuid.New()

	lease, err := locker.Lock(context.Background(), id)
	require.NoError(t, err)
	assert.Contains(t, store.keys, lockKeyPrefix+id.String())

	require.NoError(t, lease.Release(context.Background()))
	assert.Empty(t, store.keys)

	assert.ErrorIs(t, lease.Release(context.Background()), ErrLockNotHeld)
}

func TestLocker_WaitsForHolder(t *testing.T) {
	store := newFakeStore()
	locker := newTestLocker(store, time.Second)
	id := uuid.New()

	first, err := locker.Lock(context.Background(), id)
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = first.Release(context.Background())
	}()

	second, err := locker.Lock(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, second.Release(context.Background()))
	assert.Greater(t, store.attempts, 2)
}

func TestLocker_TimesOut(t *testing.T) {
	store := newFakeStore()
	locker := newTestLocker(store, 15*time.Millisecond)
	id := uuid.New()

	_, err := locker.Lock(context.Background(), id)
	require.NoError(t, err)

	_, err = locker.Lock(context.Background(), id)
	assert.ErrorIs(t, err, transaction.ErrLockTimeout)
}

func TestLocker_IndependentKeys(t *testing.T) {
	locker := newTestLocker(newFakeStore(), 10*time.Millisecond)

	a, err := locker.Lock(context.Background(), uuid.New())
	require.NoError(t, err)
	b, err := locker.Lock(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.NoError(t, a.Release(context.Background()))
	assert.NoError(t, b.Release(context.Background()))
}

func TestLocker_BackendError(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("connection refused")
	locker := newTestLocker(store, time.Second)

	_, err := locker.Lock(context.Background(), uuid.New())
	require.Error(t, err)
	assert.NotErrorIs(t, err, transaction.ErrLockTimeout)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestLockConfig_Defaults(t *testing.T) {
	cfg := LockConfig{}.withDefaults()

	assert.Equal(t, 10*time.Second, cfg.TTL)
	assert.Equal(t, 5*time.Millisecond, cfg.MinBackoff)
	assert.Equal(t, 100*time.Millisecond, cfg.MaxBackoff)
}
