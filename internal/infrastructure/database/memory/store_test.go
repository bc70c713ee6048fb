package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud-risk-engine/internal/domain/fraud"
	"fraud-risk-engine/internal/domain/transaction"
)

func newTx(t *testing.T, created time.Time) *transaction.Transaction {
	t.Helper()
	return transaction.NewTransaction(decimal.NewFromInt(100), transaction.USD, "", created)
}

func event(txID uuid.UUID, at time.Time, delta, score int) fraud.RiskEvent {
	return fraud.RiskEvent{
		ID:            uuid.New(),
		TransactionID: txID,
		EventType:     fraud.EventMerchantData,
		ScoreChange:   delta,
		NewScore:      score,
		CreatedAt:     at,
	}
}

func TestTransactionRepository_CreateGet(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Transactions()
	tx := newTx(t, time.Now())

	require.NoError(t, repo.Create(ctx, tx))
	require.ErrorIs(t, repo.Create(ctx, tx), ErrDuplicateTransaction)

	got, err := repo.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, got.ID)

	// returned values are copies
	got.RiskScore = 99
	again, err := repo.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, again.RiskScore)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, transaction.ErrTransactionNotFound)
}

func TestTransactionRepository_UpdateVersionCheck(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Transactions()
	tx := newTx(t, time.Now())
	require.NoError(t, repo.Create(ctx, tx))

	first, err := repo.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, tx.ID)
	require.NoError(t, err)

	first.ApplyScore(25, time.Now())
	require.NoError(t, repo.Update(ctx, first, 0))
	assert.Equal(t, int64(1), first.Version)

	second.ApplyScore(50, time.Now())
	assert.ErrorIs(t, repo.Update(ctx, second, 0), transaction.ErrVersionConflict)

	stored, err := repo.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, stored.RiskScore)
	assert.Equal(t, int64(1), stored.Version)
}

func TestTransactionRepository_RejectsInvalidState(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Transactions()
	tx := newTx(t, time.Now())

	bad := tx.Clone()
	bad.RiskScore = 80
	assert.ErrorIs(t, repo.Create(ctx, bad), transaction.ErrStatusMismatch)

	require.NoError(t, repo.Create(ctx, tx))
	bad = tx.Clone()
	bad.Status = transaction.StatusHighRisk
	assert.ErrorIs(t, repo.Update(ctx, bad, 0), transaction.ErrStatusMismatch)

	stored, err := repo.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.Version)
}

func TestStore_ReadSnapshotSeesCommittedState(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	tx := newTx(t, time.Now())
	require.NoError(t, store.Transactions().Create(ctx, tx))
	require.NoError(t, store.Events().Append(ctx, event(tx.ID, time.Now(), 25, 25)))

	err := store.ReadSnapshot(ctx, func(txs transaction.Repository, events fraud.EventRepository) error {
		got, err := txs.GetByID(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, tx.ID, got.ID)

		list, err := events.ListByTransaction(ctx, tx.ID)
		require.NoError(t, err)
		assert.Len(t, list, 1)

		// writes inside a snapshot are never committed
		other := newTx(t, time.Now())
		return txs.Create(ctx, other)
	})
	require.NoError(t, err)

	all, err := store.Transactions().List(ctx, transaction.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTransactionRepository_List(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Transactions()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		tx := newTx(t, base.Add(time.Duration(i)*time.Minute))
		if i%2 == 0 {
			tx.ApplyScore(80, tx.CreatedAt)
		}
		require.NoError(t, repo.Create(ctx, tx))
		ids = append(ids, tx.ID)
	}

	all, err := repo.List(ctx, transaction.ListFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, ids[4], all[0].ID, "newest first")

	risky, err := repo.List(ctx, transaction.ListFilter{Status: transaction.StatusHighRisk, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, risky, 3)

	page, err := repo.List(ctx, transaction.ListFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[3], page[0].ID)
	assert.Equal(t, ids[2], page[1].ID)
}

func TestEventRepository_AppendAndOrder(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	tx := newTx(t, time.Now())
	require.NoError(t, store.Transactions().Create(ctx, tx))

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e1 := event(tx.ID, at, 25, 25)
	e2 := event(tx.ID, at, 15, 40) // same timestamp keeps insertion order
	e3 := event(tx.ID, at.Add(time.Second), 20, 60)

	require.NoError(t, store.Events().Append(ctx, e1, e2))
	require.NoError(t, store.Events().Append(ctx, e3))

	events, err := store.Events().ListByTransaction(ctx, tx.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, []uuid.UUID{e1.ID, e2.ID, e3.ID}, []uuid.UUID{events[0].ID, events[1].ID, events[2].ID})

	empty, err := store.Events().ListByTransaction(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestEventRepository_AppendRejects(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	tx := newTx(t, time.Now())
	require.NoError(t, store.Transactions().Create(ctx, tx))

	assert.ErrorIs(t, store.Events().Append(ctx), fraud.ErrEmptyEventBatch)

	bad := event(tx.ID, time.Now(), 0, 0)
	bad.EventType = "bogus"
	assert.ErrorIs(t, store.Events().Append(ctx, bad), fraud.ErrInvalidEventType)

	orphan := event(uuid.New(), time.Now(), 0, 0)
	assert.ErrorIs(t, store.Events().Append(ctx, orphan), transaction.ErrTransactionNotFound)
}

func TestStore_WithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	tx := newTx(t, time.Now())
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(txs transaction.Repository, events fraud.EventRepository) error {
		require.NoError(t, txs.Create(ctx, tx))
		require.NoError(t, events.Append(ctx, event(tx.ID, time.Now(), 5, 5)))

		// writes are visible inside the scope
		_, err := txs.GetByID(ctx, tx.ID)
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.Transactions().GetByID(ctx, tx.ID)
	assert.ErrorIs(t, err, transaction.ErrTransactionNotFound)
	events, err := store.Events().ListByTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestStore_WithinTxCommits(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	tx := newTx(t, time.Now())

	err := store.WithinTx(ctx, func(txs transaction.Repository, events fraud.EventRepository) error {
		if err := txs.Create(ctx, tx); err != nil {
			return err
		}
		return events.Append(ctx, event(tx.ID, time.Now(), 5, 5))
	})
	require.NoError(t, err)

	events, err := store.Events().ListByTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestKeyedLocker_SerializesPerID(t *testing.T) {
	ctx := context.Background()
	locker := NewKeyedLocker(0)
	id := uuid.New()

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := locker.Lock(ctx, id)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			assert.NoError(t, lease.Release(ctx))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, locker.held())
}

func TestKeyedLocker_Timeout(t *testing.T) {
	ctx := context.Background()
	locker := NewKeyedLocker(20 * time.Millisecond)
	id := uuid.New()

	lease, err := locker.Lock(ctx, id)
	require.NoError(t, err)

	_, err = locker.Lock(ctx, id)
	require.ErrorIs(t, err, transaction.ErrLockTimeout)

	// other ids are independent
	other, err := locker.Lock(ctx, uuid.New())
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lease.Release(ctx))
	require.NoError(t, lease.Release(ctx), "release is idempotent")
	assert.Equal(t, 0, locker.held())
}
