package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"fraud-risk-engine/internal/domain/transaction"
)

// KeyedLocker serializes writers per transaction id inside one process.
// Entries are reference counted and dropped once nobody holds or waits on them.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*keyLock
	wait  time.Duration
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

var _ transaction.Locker = (*KeyedLocker)(nil)

// NewKeyedLocker creates a locker. wait bounds how long Lock blocks;
// zero means until the context is done.
func NewKeyedLocker(wait time.Duration) *KeyedLocker {
	return &KeyedLocker{
		locks: make(map[uuid.UUID]*keyLock),
		wait:  wait,
	}
}

// Lock blocks until id is free
func (l *KeyedLocker) Lock(ctx context.Context, id uuid.UUID) (transaction.Lease, error) {
	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	kl := l.ref(id)
	select {
	case kl.sem <- struct{}{}:
		return &keyLease{locker: l, id: id, kl: kl}, nil
	case <-ctx.Done():
		l.unref(id, kl)
		return nil, fmt.Errorf("%w: %s: %v", transaction.ErrLockTimeout, id, ctx.Err())
	}
}

func (l *KeyedLocker) ref(id uuid.UUID) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	kl, ok := l.locks[id]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		l.locks[id] = kl
	}
	kl.refs++
	return kl
}

func (l *KeyedLocker) unref(id uuid.UUID, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, id)
	}
}

// held reports how many ids currently have holders or waiters
func (l *KeyedLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

type keyLease struct {
	locker *KeyedLocker
	id     uuid.UUID
	kl     *keyLock
	once   sync.Once
}

func (k *keyLease) Release(context.Context) error {
	k.once.Do(func() {
		<-k.kl.sem
		k.locker.unref(k.id, k.kl)
	})
	return nil
}
