package fraud

import "errors"

var (
	// Audit trail errors
	ErrBrokenChain      = errors.New("risk event chain is broken")
	ErrEventsOutOfOrder = errors.New("risk events are out of order")
	ErrScoreMismatch    = errors.New("replayed score does not match stored score")

	// Event store errors
	ErrInvalidEventType = errors.New("invalid risk event type")
	ErrEmptyEventBatch  = errors.New("no risk events to append")
)
