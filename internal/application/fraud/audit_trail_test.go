package fraud_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud-risk-engine/internal/application/dto"
	fraudapp "fraud-risk-engine/internal/application/fraud"
	txapp "fraud-risk-engine/internal/application/transaction"
	"fraud-risk-engine/internal/domain/fraud"
	"fraud-risk-engine/internal/domain/transaction"
	"fraud-risk-engine/internal/infrastructure/database/memory"
	"fraud-risk-engine/internal/infrastructure/rules"
)

// seed stores a transaction whose stream is the given deltas folded from 0
func seed(t *testing.T, store *memory.Store, created time.Time, deltas ...int) *transaction.Transaction {
	t.Helper()
	ctx := context.Background()

	tx := transaction.NewTransaction(decimal.NewFromInt(100), transaction.USD, "", created)
	rec := fraud.NewRecorder(func() time.Time { return created })

	results := make([]fraud.RuleResult, 0, len(deltas))
	for _, d := range deltas {
		results = append(results, fraud.RuleResult{RuleName: "rule", ScoreChange: d})
	}
	out := fraud.Fold(tx, fraud.EventTransactionCreated, nil, results, rec)
	tx.ApplyScore(out.Score, created)

	require.NoError(t, store.WithinTx(ctx, func(txs transaction.Repository, events fraud.EventRepository) error {
		if err := txs.Create(ctx, tx); err != nil {
			return err
		}
		if len(out.Events) == 0 {
			return nil
		}
		return events.Append(ctx, out.Events...)
	}))
	return tx
}

func TestAuditTrail_GetTransaction(t *testing.T) {
	store := memory.NewStore()
	tx := seed(t, store, time.Now().UTC(), 25, 15, 20)
	uc := fraudapp.NewAuditTrailUseCase(store.Transactions(), store, nil)

	resp, err := uc.GetTransaction(context.Background(), tx.ID)

	require.NoError(t, err)
	assert.Equal(t, tx.ID, resp.Transaction.ID)
	assert.Equal(t, 60, resp.Transaction.RiskScore)
	require.Len(t, resp.Events, 3)
	assert.Equal(t, []int{25, 40, 60}, []int{resp.Events[0].NewScore, resp.Events[1].NewScore, resp.Events[2].NewScore})
}

func TestAuditTrail_NotFound(t *testing.T) {
	store := memory.NewStore()
	uc := fraudapp.NewAuditTrailUseCase(store.Transactions(), store, nil)

	_, err := uc.GetTransaction(context.Background(), uuid.New())
	assert.ErrorIs(t, err, transaction.ErrTransactionNotFound)

	_, err = uc.ListEvents(context.Background(), uuid.New())
	assert.ErrorIs(t, err, transaction.ErrTransactionNotFound)

	_, err = uc.VerifyAuditTrail(context.Background(), uuid.New())
	assert.ErrorIs(t, err, transaction.ErrTransactionNotFound)
}

func TestAuditTrail_VerifyConsistent(t *testing.T) {
	store := memory.NewStore()
	tx := seed(t, store, time.Now().UTC(), 5, -25, 15, 25)
	uc := fraudapp.NewAuditTrailUseCase(store.Transactions(), store, nil)

	report, err := uc.VerifyAuditTrail(context.Background(), tx.ID)

	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, 40, report.StoredScore)
	assert.Equal(t, 40, report.ReplayedScore)
	assert.Equal(t, 4, report.EventCount)
	assert.Empty(t, report.Error)
}

func TestAuditTrail_VerifyDetectsDrift(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	tx := seed(t, store, time.Now().UTC(), 25)
	uc := fraudapp.NewAuditTrailUseCase(store.Transactions(), store, nil)

	// score written without an event
	drifted, err := store.Transactions().GetByID(ctx, tx.ID)
	require.NoError(t, err)
	drifted.ApplyScore(50, time.Now())
	require.NoError(t, store.Transactions().Update(ctx, drifted, drifted.Version))

	report, err := uc.VerifyAuditTrail(ctx, tx.ID)

	require.NoError(t, err)
	assert.False(t, report.Consistent)
	assert.Equal(t, 50, report.StoredScore)
	assert.Equal(t, 25, report.ReplayedScore)
	assert.Contains(t, report.Error, fraud.ErrScoreMismatch.Error())
}

func TestAuditTrail_ListTransactions(t *testing.T) {
	store := memory.NewStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seed(t, store, base, 25, 25, 25)
	seed(t, store, base.Add(time.Minute), 5)
	uc := fraudapp.NewAuditTrailUseCase(store.Transactions(), store, nil)

	all, err := uc.ListTransactions(context.Background(), transaction.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all.Transactions, 2)
	assert.Equal(t, fraudapp.DefaultListLimit, all.Limit)

	risky, err := uc.ListTransactions(context.Background(), transaction.ListFilter{Status: transaction.StatusHighRisk, Limit: 1000})
	require.NoError(t, err)
	require.Len(t, risky.Transactions, 1)
	assert.Equal(t, 75, risky.Transactions[0].RiskScore)
	assert.Equal(t, fraudapp.MaxListLimit, risky.Limit)

	_, err = uc.ListTransactions(context.Background(), transaction.ListFilter{Status: "pending"})
	assert.ErrorIs(t, err, fraudapp.ErrInvalidStatusFilter)
}

func TestAuditTrail_ConsistentDuringConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := transaction.NewService()
	svc.SetClock(func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) })
	process := txapp.NewProcessTransactionUseCase(
		svc,
		rules.NewEngine(time.UTC),
		store.Transactions(),
		store,
		memory.NewKeyedLocker(time.Second),
		nil,
		nil,
		nil,
	)
	uc := fraudapp.NewAuditTrailUseCase(store.Transactions(), store, nil)
	amount := decimal.NewFromInt(15000)

	for round := 0; round < 100; round++ {
		created, err := process.Create(ctx, &dto.CreateTransactionRequest{Amount: &amount, Location: "VPN-NY"})
		require.NoError(t, err)
		id := created.Transaction.ID

		var wg sync.WaitGroup
		done := make(chan struct{})
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(done)
			_, err := process.SubmitMerchant(ctx, id, &dto.MerchantRequest{MerchantType: "crypto"})
			assert.NoError(t, err)
		}()

		for reading := true; reading; {
			select {
			case <-done:
				reading = false
			default:
			}
			report, err := uc.VerifyAuditTrail(ctx, id)
			require.NoError(t, err)
			require.True(t, report.Consistent, report.Error)
			require.Contains(t, []int{45, 70}, report.StoredScore)

			detail, err := uc.GetTransaction(ctx, id)
			require.NoError(t, err)
			require.Equal(t, detail.Events[len(detail.Events)-1].NewScore, detail.Transaction.RiskScore)
		}
		wg.Wait()
	}
}
