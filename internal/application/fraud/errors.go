package fraud

import "errors"

// ErrInvalidStatusFilter is returned when a listing filters by an unknown status
var ErrInvalidStatusFilter = errors.New("invalid status filter")
