package fraud_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud-risk-engine/internal/domain/fraud"
	"fraud-risk-engine/internal/domain/transaction"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestFold_SequentialChaining(t *testing.T) {
	created := time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)
	tx := transaction.NewTransaction(decimal.NewFromInt(15000), transaction.USD, "VPN-NY", created)
	results := []fraud.RuleResult{
		{RuleID: "amount-tier", RuleName: "High Amount Detection", ScoreChange: 25, Explanation: "a"},
		{RuleID: "unusual-time", RuleName: "Unusual Time Detection", ScoreChange: 15, Explanation: "b"},
		{RuleID: "location-risk", RuleName: "High-Risk Location Detection", ScoreChange: 20, Explanation: "c"},
	}
	data := map[string]any{"amount": "15000", "location": "VPN-NY"}

	out := fraud.Fold(tx, fraud.EventTransactionCreated, data, results, fraud.NewRecorder(fixedClock(created)))

	assert.Equal(t, 0, out.PreviousScore)
	assert.Equal(t, 60, out.Score)
	assert.Equal(t, transaction.StatusSuspicious, out.Status)
	require.Len(t, out.Events, 3)
	assert.Equal(t, []int{25, 40, 60}, []int{out.Events[0].NewScore, out.Events[1].NewScore, out.Events[2].NewScore})
	for i, e := range out.Events {
		assert.Equal(t, tx.ID, e.TransactionID)
		assert.Equal(t, fraud.EventTransactionCreated, e.EventType)
		assert.Equal(t, results[i].RuleName, e.RuleTriggered)
		assert.Equal(t, results[i].Explanation, e.Explanation)
		assert.Equal(t, "VPN-NY", e.DataReceived["location"])
	}

	// the transaction itself is untouched
	assert.Equal(t, 0, tx.RiskScore)
}

func TestFold_StartsFromCurrentScore(t *testing.T) {
	now := time.Now().UTC()
	tx := transaction.NewTransaction(decimal.NewFromInt(100), transaction.USD, "", now)
	tx.ApplyScore(60, now)

	out := fraud.Fold(tx, fraud.EventMerchantData, nil,
		[]fraud.RuleResult{{RuleName: "High-Risk Merchant Detection", ScoreChange: 25}},
		fraud.NewRecorder(fixedClock(now)))

	assert.Equal(t, 60, out.PreviousScore)
	assert.Equal(t, 85, out.Score)
	assert.Equal(t, transaction.StatusHighRisk, out.Status)
	assert.Equal(t, 25, out.Events[0].ScoreChange)
}

func TestFold_NoResults(t *testing.T) {
	now := time.Now().UTC()
	tx := transaction.NewTransaction(decimal.NewFromInt(100), transaction.USD, "", now)
	tx.ApplyScore(42, now)

	out := fraud.Fold(tx, fraud.EventOTPVerification, nil, nil, fraud.NewRecorder(nil))

	assert.False(t, out.Changed())
	assert.Equal(t, 42, out.Score)
	assert.Equal(t, transaction.StatusSuspicious, out.Status)
}

func TestFold_TimestampsNeverGoBackwards(t *testing.T) {
	updated := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tx := transaction.NewTransaction(decimal.NewFromInt(100), transaction.USD, "", updated)
	skewed := updated.Add(-time.Hour)

	out := fraud.Fold(tx, fraud.EventDeviceData, nil,
		[]fraud.RuleResult{{ScoreChange: 5}, {ScoreChange: 5}},
		fraud.NewRecorder(fixedClock(skewed)))

	require.Len(t, out.Events, 2)
	assert.Equal(t, updated, out.Events[0].CreatedAt)
	assert.False(t, out.Events[1].CreatedAt.Before(out.Events[0].CreatedAt))
}

func TestFold_ReplayMatchesScore(t *testing.T) {
	now := time.Now().UTC()
	tx := transaction.NewTransaction(decimal.NewFromInt(100), transaction.USD, "", now)
	rec := fraud.NewRecorder(fixedClock(now))

	var stream []fraud.RiskEvent
	for _, batch := range [][]fraud.RuleResult{
		{{ScoreChange: 5}, {ScoreChange: 0}},
		{{ScoreChange: -10}},
		{{ScoreChange: 15}},
		{{ScoreChange: -25}},
	} {
		out := fraud.Fold(tx, fraud.EventMerchantData, nil, batch, rec)
		tx.ApplyScore(out.Score, now)
		stream = append(stream, out.Events...)
	}

	assert.Equal(t, tx.RiskScore, fraud.Replay(stream))
	score, err := fraud.VerifyChain(stream)
	require.NoError(t, err)
	assert.Equal(t, tx.RiskScore, score)
}

func TestRecorder_CopiesData(t *testing.T) {
	data := map[string]any{"merchant_type": "Grocery"}
	rec := fraud.NewRecorder(nil)

	e := rec.Record(transaction.NewTransaction(decimal.NewFromInt(1), transaction.USD, "", time.Now()).ID,
		fraud.EventMerchantData, data, fraud.RuleResult{RuleName: "Trusted Merchant Recognition", ScoreChange: -10}, 0)
	data["merchant_type"] = "Crypto"

	assert.Equal(t, "Grocery", e.DataReceived["merchant_type"])
	assert.Equal(t, "Trusted Merchant Recognition", e.RuleTriggered)
	assert.Equal(t, -10, e.ScoreChange)
	assert.False(t, e.CreatedAt.IsZero())
}
