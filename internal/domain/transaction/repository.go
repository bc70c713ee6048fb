package transaction

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows a transaction listing
type ListFilter struct {
	Status TransactionStatus
	Limit  int
	Offset int
}

// Repository defines the contract for transaction persistence
type Repository interface {
	// Create stores a new transaction
	Create(ctx context.Context, tx *Transaction) error

	// GetByID retrieves a transaction by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// Update writes tx if the stored version still equals expectedVersion.
	// On success tx.Version is incremented. Returns ErrVersionConflict otherwise.
	Update(ctx context.Context, tx *Transaction, expectedVersion int64) error

	// List retrieves transactions, newest first
	List(ctx context.Context, filter ListFilter) ([]*Transaction, error)
}

// Lease is a held writer lock
type Lease interface {
	Release(ctx context.Context) error
}

// Locker serializes writers per transaction id. Lock blocks until the lock
// is held or ctx is done, in which case it returns ErrLockTimeout.
type Locker interface {
	Lock(ctx context.Context, id uuid.UUID) (Lease, error)
}
