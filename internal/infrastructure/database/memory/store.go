package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"fraud-risk-engine/internal/domain/fraud"
	"fraud-risk-engine/internal/domain/transaction"
)

// ErrDuplicateTransaction is returned when creating a transaction whose id already exists
var ErrDuplicateTransaction = errors.New("transaction already exists")

// Store is an in-process transaction and event store for standalone mode
// and tests. A unit of work holds the write lock for its whole duration and
// only publishes its writes when fn succeeds.
type Store struct {
	mu           sync.RWMutex
	transactions map[uuid.UUID]*transaction.Transaction
	events       map[uuid.UUID][]fraud.RiskEvent
}

var (
	_ fraud.UnitOfWork     = (*Store)(nil)
	_ fraud.SnapshotReader = (*Store)(nil)
)

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		transactions: make(map[uuid.UUID]*transaction.Transaction),
		events:       make(map[uuid.UUID][]fraud.RiskEvent),
	}
}

// Transactions returns a transaction repository backed by the store
func (s *Store) Transactions() *TransactionRepository {
	return &TransactionRepository{store: s}
}

// Events returns an event repository backed by the store
func (s *Store) Events() *EventRepository {
	return &EventRepository{store: s}
}

// WithinTx implements fraud.UnitOfWork
func (s *Store) WithinTx(ctx context.Context, fn func(txs transaction.Repository, events fraud.EventRepository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sc := newScope(s)
	if err := fn(sc, sc.eventView()); err != nil {
		return err
	}
	sc.commit()
	return nil
}

// ReadSnapshot implements fraud.SnapshotReader under the read lock
func (s *Store) ReadSnapshot(ctx context.Context, fn func(txs transaction.Repository, events fraud.EventRepository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.read(func(sc *scope) error {
		return fn(sc, sc.eventView())
	})
}

func (s *Store) read(fn func(sc *scope) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(newScope(s))
}

// scope buffers writes on top of the committed state. Callers hold s.mu.
type scope struct {
	store   *Store
	pending map[uuid.UUID]*transaction.Transaction
	events  []fraud.RiskEvent
}

func newScope(s *Store) *scope {
	return &scope{store: s, pending: make(map[uuid.UUID]*transaction.Transaction)}
}

func (sc *scope) get(id uuid.UUID) (*transaction.Transaction, bool) {
	if tx, ok := sc.pending[id]; ok {
		return tx, true
	}
	tx, ok := sc.store.transactions[id]
	return tx, ok
}

func (sc *scope) Create(_ context.Context, tx *transaction.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	if _, exists := sc.get(tx.ID); exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTransaction, tx.ID)
	}
	sc.pending[tx.ID] = tx.Clone()
	return nil
}

func (sc *scope) GetByID(_ context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	tx, ok := sc.get(id)
	if !ok {
		return nil, transaction.ErrTransactionNotFound
	}
	return tx.Clone(), nil
}

func (sc *scope) Update(_ context.Context, tx *transaction.Transaction, expectedVersion int64) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	current, ok := sc.get(tx.ID)
	if !ok {
		return transaction.ErrTransactionNotFound
	}
	if current.Version != expectedVersion {
		return transaction.ErrVersionConflict
	}
	tx.Version = expectedVersion + 1
	sc.pending[tx.ID] = tx.Clone()
	return nil
}

func (sc *scope) List(_ context.Context, filter transaction.ListFilter) ([]*transaction.Transaction, error) {
	all := make([]*transaction.Transaction, 0, len(sc.store.transactions)+len(sc.pending))
	for id, tx := range sc.store.transactions {
		if _, shadowed := sc.pending[id]; !shadowed {
			all = append(all, tx)
		}
	}
	for _, tx := range sc.pending {
		all = append(all, tx)
	}

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID.String() < all[j].ID.String()
	})

	results := make([]*transaction.Transaction, 0, filter.Limit)
	skipped := 0
	for _, tx := range all {
		if filter.Status != "" && tx.Status != filter.Status {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		if filter.Limit > 0 && len(results) >= filter.Limit {
			break
		}
		results = append(results, tx.Clone())
	}
	return results, nil
}

func (sc *scope) append(events ...fraud.RiskEvent) error {
	if len(events) == 0 {
		return fraud.ErrEmptyEventBatch
	}
	for _, e := range events {
		if !e.EventType.IsValid() {
			return fmt.Errorf("%w: %q", fraud.ErrInvalidEventType, e.EventType)
		}
		if _, ok := sc.get(e.TransactionID); !ok {
			return fmt.Errorf("event %s: %w", e.ID, transaction.ErrTransactionNotFound)
		}
	}
	sc.events = append(sc.events, events...)
	return nil
}

func (sc *scope) listEvents(id uuid.UUID) []fraud.RiskEvent {
	committed := sc.store.events[id]
	out := make([]fraud.RiskEvent, 0, len(committed))
	out = append(out, committed...)
	for _, e := range sc.events {
		if e.TransactionID == id {
			out = append(out, e)
		}
	}
	// stable keeps insertion order for equal timestamps
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (sc *scope) commit() {
	for id, tx := range sc.pending {
		sc.store.transactions[id] = tx
	}
	for _, e := range sc.events {
		sc.store.events[e.TransactionID] = append(sc.store.events[e.TransactionID], e)
	}
}

func (sc *scope) eventView() fraud.EventRepository {
	return scopedEvents{sc}
}

type scopedEvents struct{ sc *scope }

func (v scopedEvents) Append(_ context.Context, events ...fraud.RiskEvent) error {
	return v.sc.append(events...)
}

func (v scopedEvents) ListByTransaction(_ context.Context, id uuid.UUID) ([]fraud.RiskEvent, error) {
	return v.sc.listEvents(id), nil
}

// TransactionRepository implements transaction.Repository on a Store.
// Each call is its own unit of work.
type TransactionRepository struct {
	store *Store
}

var _ transaction.Repository = (*TransactionRepository)(nil)

func (r *TransactionRepository) Create(ctx context.Context, tx *transaction.Transaction) error {
	return r.store.WithinTx(ctx, func(txs transaction.Repository, _ fraud.EventRepository) error {
		return txs.Create(ctx, tx)
	})
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	var tx *transaction.Transaction
	err := r.store.read(func(sc *scope) error {
		var err error
		tx, err = sc.GetByID(ctx, id)
		return err
	})
	return tx, err
}

func (r *TransactionRepository) Update(ctx context.Context, tx *transaction.Transaction, expectedVersion int64) error {
	return r.store.WithinTx(ctx, func(txs transaction.Repository, _ fraud.EventRepository) error {
		return txs.Update(ctx, tx, expectedVersion)
	})
}

func (r *TransactionRepository) List(ctx context.Context, filter transaction.ListFilter) ([]*transaction.Transaction, error) {
	var txs []*transaction.Transaction
	err := r.store.read(func(sc *scope) error {
		var err error
		txs, err = sc.List(ctx, filter)
		return err
	})
	return txs, err
}

// EventRepository implements fraud.EventRepository on a Store
type EventRepository struct {
	store *Store
}

var _ fraud.EventRepository = (*EventRepository)(nil)

func (r *EventRepository) Append(ctx context.Context, events ...fraud.RiskEvent) error {
	return r.store.WithinTx(ctx, func(_ transaction.Repository, ev fraud.EventRepository) error {
		return ev.Append(ctx, events...)
	})
}

func (r *EventRepository) ListByTransaction(_ context.Context, id uuid.UUID) ([]fraud.RiskEvent, error) {
	var events []fraud.RiskEvent
	_ = r.store.read(func(sc *scope) error {
		events = sc.listEvents(id)
		return nil
	})
	return events, nil
}
