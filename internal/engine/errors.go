package engine

import "errors"

// Error taxonomy returned by engine operations. All are reported
// synchronously with zero side effects: validation runs fully before any
// ledger or order mutation.
var (
	ErrValidation             = errors.New("validation failed")
	ErrInsufficientMargin     = errors.New("insufficient margin")
	ErrOrderNotFound          = errors.New("order not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
)
