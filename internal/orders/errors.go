package orders

import "errors"

var (
	ErrNotFound = errors.New("order not found")

	// ErrStateConflict: the requested transition is not in the state machine
	// table for the order's current status.
	ErrStateConflict = errors.New("invalid status transition")

	// ErrAlreadyApplied: the order already carries the target status. Callers
	// handling duplicate webhook deliveries treat this as success.
	ErrAlreadyApplied = errors.New("transition already applied")

	ErrInvalidInput = errors.New("invalid order input")
)
