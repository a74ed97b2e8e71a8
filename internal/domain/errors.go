package domain

import "errors"

var (
	// Account errors
	ErrAccountNotFound  = errors.New("account not found")
	ErrAccountExists    = errors.New("account already exists")
	ErrInvalidAccountID = errors.New("invalid account id")
	ErrBalanceOverflow  = errors.New("balance would overflow")

	// Transfer errors
	ErrSameAccount       = errors.New("cannot transfer to same account")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrConflict          = errors.New("recipient unavailable, transfer reversed")
	ErrTransferInFlight  = errors.New("transfer still completing")
	ErrUnavailable       = errors.New("service temporarily unavailable")

	// ErrStoreUnavailable marks a storage error that is safe to retry because
	// the operation is known not to have been applied.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrOutcomeUnknown marks a storage error after which the operation may
	// or may not have been applied.
	ErrOutcomeUnknown = errors.New("store outcome unknown")

	// Compensation errors
	ErrCompensationNotFound = errors.New("compensation not found")
)
