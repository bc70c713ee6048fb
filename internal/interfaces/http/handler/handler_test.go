package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud-risk-engine/internal/application/dto"
	fraudapp "fraud-risk-engine/internal/application/fraud"
	"fraud-risk-engine/internal/domain/transaction"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{transaction.ErrTransactionNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", transaction.ErrTransactionNotFound), http.StatusNotFound},
		{transaction.ErrVersionConflict, http.StatusConflict},
		{fmt.Errorf("%w: busy", transaction.ErrLockTimeout), http.StatusConflict},
		{transaction.ErrAmountTooLarge, http.StatusBadRequest},
		{fmt.Errorf("%w: JPY", transaction.ErrInvalidCurrency), http.StatusBadRequest},
		{transaction.ErrInvalidDeviceInfo, http.StatusBadRequest},
		{fraudapp.ErrInvalidStatusFilter, http.StatusBadRequest},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusForError(tt.err), tt.err.Error())
	}
}

func TestValidationDetails_UsesJSONNames(t *testing.T) {
	v := newValidator()

	err := v.Struct(&dto.CreateTransactionRequest{Currency: "US", CardLastFour: "12x4"})
	require.Error(t, err)

	details := validationDetails(err)
	assert.Contains(t, details, "amount: failed required")
	assert.Contains(t, details, "currency: failed len=3")
	assert.Contains(t, details, "card_last_four: failed numeric")
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler_Ready(t *testing.T) {
	h := NewHealthHandler("1.2.3")
	h.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	h.AddCheck("database", pingFunc(func(context.Context) error { return nil }))

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, "2024-01-01T00:00:00Z", resp.Timestamp)
	assert.Equal(t, map[string]string{"database": "healthy"}, resp.Services)

	h.AddCheck("redis", pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") }))
	rec = httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not ready", resp.Status)
	assert.Equal(t, "unhealthy: dial tcp: refused", resp.Services["redis"])
}

func TestHealthHandler_LiveAndHealth(t *testing.T) {
	h := NewHealthHandler("dev")

	rec := httptest.NewRecorder()
	h.Live(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}
