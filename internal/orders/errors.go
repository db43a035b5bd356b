package orders

import "errors"

var (
	// ErrNotFound means the order or shop does not exist, or is not eligible
	// for the requested operation.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput covers missing correlation ids, malformed phones and bad requests.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStaleOrder means the order passed the age ceiling and was expired instead.
	ErrStaleOrder = errors.New("order too old")
	// ErrConflict means a guarded update matched no row because the order
	// had already moved to another state.
	ErrConflict = errors.New("state conflict")
	// ErrInvalidState means a joint (status, call_status) pair is not allowed.
	ErrInvalidState = errors.New("invalid order state")
)
