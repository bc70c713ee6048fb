package fraud

import (
	"context"

	"github.com/google/uuid"

	"fraud-risk-engine/internal/domain/transaction"
)

// EventRepository is the append-only risk event store
type EventRepository interface {
	// Append stores events in the given order. Events are never updated.
	Append(ctx context.Context, events ...RiskEvent) error

	// ListByTransaction returns a transaction's events, oldest first
	ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]RiskEvent, error)
}

// UnitOfWork runs fn with repositories bound to a single atomic scope.
// If fn returns an error nothing written through them is kept.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(txs transaction.Repository, events EventRepository) error) error
}

// SnapshotReader runs fn against one consistent view of transactions and
// their events. Writes made through the repositories are discarded.
type SnapshotReader interface {
	ReadSnapshot(ctx context.Context, fn func(txs transaction.Repository, events EventRepository) error) error
}

// EventPublisher forwards persisted risk events to downstream consumers
type EventPublisher interface {
	PublishRiskEvents(ctx context.Context, tx *transaction.Transaction, events []RiskEvent) error
}
