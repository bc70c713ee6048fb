package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fraud-risk-engine/internal/pkg/config"
)

func unreachablePostgres() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Fraud.Store = config.StorePostgres
	cfg.Database.Host = "127.0.0.1"
	cfg.Database.Port = 1
	cfg.Database.ConnectTimeout = time.Second
	return cfg
}

func TestOpenStorage_PostgresUnreachableFails(t *testing.T) {
	_, err := openStorage(context.Background(), unreachablePostgres(), zap.NewNop())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to postgres")
}

func TestOpenStorage_MemoryFallbackWhenAllowed(t *testing.T) {
	cfg := unreachablePostgres()
	cfg.Fraud.AllowMemoryFallback = true

	store, err := openStorage(context.Background(), cfg, zap.NewNop())

	require.NoError(t, err)
	assert.Nil(t, store.health)
	assert.NotNil(t, store.txRepo)
	assert.NotNil(t, store.snapshots)
	assert.NoError(t, store.close())
}

func TestOpenStorage_Memory(t *testing.T) {
	store, err := openStorage(context.Background(), config.DefaultConfig(), zap.NewNop())

	require.NoError(t, err)
	assert.NotNil(t, store.uow)
}
