package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud-risk-engine/internal/domain/fraud"
	"fraud-risk-engine/internal/domain/transaction"
)

func TestTransactionMapping_DeviceInfoJSON(t *testing.T) {
	now := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	tx := transaction.NewTransaction(decimal.RequireFromString("250.75"), transaction.EUR, "Berlin", now)
	known := false
	require.NoError(t, tx.SetDeviceInfo(&transaction.DeviceInfo{Type: "mobile", OS: "iOS", IsKnown: &known}, now))

	model, err := transactionToModel(tx)
	require.NoError(t, err)
	require.NotNil(t, model.DeviceInfo)
	assert.JSONEq(t, `{"type":"mobile","os":"iOS","is_known":false}`, *model.DeviceInfo)

	back, err := modelToTransaction(model)
	require.NoError(t, err)
	require.NotNil(t, back.DeviceInfo)
	require.NotNil(t, back.DeviceInfo.IsKnown)
	assert.False(t, *back.DeviceInfo.IsKnown)
	assert.Equal(t, "Berlin", back.LocationValue())
	assert.True(t, tx.Amount.Equal(back.Amount))
}

func TestTransactionMapping_NullDevice(t *testing.T) {
	tx := transaction.NewTransaction(decimal.NewFromInt(10), transaction.USD, "", time.Now())

	model, err := transactionToModel(tx)
	require.NoError(t, err)
	assert.Nil(t, model.DeviceInfo)
	assert.Nil(t, model.Location)

	back, err := modelToTransaction(model)
	require.NoError(t, err)
	assert.Nil(t, back.DeviceInfo)
}

func TestTransactionMapping_CorruptDevice(t *testing.T) {
	bad := "{not json"
	_, err := modelToTransaction(&TransactionModel{ID: uuid.New(), DeviceInfo: &bad})
	assert.Error(t, err)
}

func TestEventMapping(t *testing.T) {
	e := fraud.RiskEvent{
		ID:            uuid.New(),
		TransactionID: uuid.New(),
		EventType:     fraud.EventDeviceData,
		DataReceived:  map[string]any{"device_info": map[string]any{"is_known": true}},
		RuleTriggered: "Known Device Recognition",
		ScoreChange:   -15,
		NewScore:      10,
		Explanation:   "Device recognized",
		CreatedAt:     time.Now().UTC(),
	}

	model, err := eventToModel(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"device_info":{"is_known":true}}`, model.DataReceived)

	back, err := modelToEvent(model)
	require.NoError(t, err)
	assert.Equal(t, e.ID, back.ID)
	assert.Equal(t, e.EventType, back.EventType)
	assert.Equal(t, -15, back.ScoreChange)
	assert.Equal(t, map[string]any{"is_known": true}, back.DataReceived["device_info"])
}

func TestEventMapping_Rejects(t *testing.T) {
	_, err := eventToModel(fraud.RiskEvent{ID: uuid.New(), EventType: "unknown"})
	assert.ErrorIs(t, err, fraud.ErrInvalidEventType)

	model, err := eventToModel(fraud.RiskEvent{ID: uuid.New(), EventType: fraud.EventOTPVerification})
	require.NoError(t, err)
	assert.Equal(t, "{}", model.DataReceived, "nil data is stored as an empty object")
}

func TestConfig_DSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5432, User: "fraud", Password: "secret", Database: "risk"}

	assert.Equal(t, "host=db port=5432 user=fraud password=secret dbname=risk sslmode=disable TimeZone=UTC", cfg.DSN())
}

func TestTransactionRepository_RejectsInvalidState(t *testing.T) {
	ctx := context.Background()
	// the guard runs before any query, so no connection is needed
	repo := &TransactionRepository{}

	tx := transaction.NewTransaction(decimal.NewFromInt(100), transaction.USD, "", time.Now())
	tx.RiskScore = 80

	assert.ErrorIs(t, repo.Create(ctx, tx), transaction.ErrStatusMismatch)
	assert.ErrorIs(t, repo.Update(ctx, tx, 0), transaction.ErrStatusMismatch)

	tx.ApplyScore(120, time.Now())
	assert.ErrorIs(t, repo.Create(ctx, tx), transaction.ErrInvalidRiskScore)
}
