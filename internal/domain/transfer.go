package domain

import "errors"

// TransferStatus is the terminal outcome of a transfer.
type TransferStatus string

const (
	TransferStatusSuccess           TransferStatus = "success"
	TransferStatusInsufficientFunds TransferStatus = "insufficient_funds"
	TransferStatusAccountNotFound   TransferStatus = "account_not_found"
	TransferStatusSelfTransfer      TransferStatus = "self_transfer"
	TransferStatusInvalidAmount     TransferStatus = "invalid_amount"
	TransferStatusConflict          TransferStatus = "conflict"
	TransferStatusInFlight          TransferStatus = "in_flight"
	TransferStatusUnavailable       TransferStatus = "unavailable"
)

// TransferRequest is a single request to move funds. It is never persisted.
type TransferRequest struct {
	FromAccountID string
	ToAccountID   string
	Amount        int64
}

// Validate checks the request without touching storage.
func (r *TransferRequest) Validate() error {
	if r.Amount <= 0 {
		return ErrInvalidAmount
	}

	if r.FromAccountID == r.ToAccountID {
		return ErrSameAccount
	}

	return nil
}

// TransferResult reports the outcome of a transfer.
type TransferResult struct {
	TransferID string
	Status     TransferStatus
}

// StatusFromError maps a transfer error to its status. A nil error is success.
func StatusFromError(err error) TransferStatus {
	switch {
	case err == nil:
		return TransferStatusSuccess
	case errors.Is(err, ErrTransferInFlight):
		return TransferStatusInFlight
	case errors.Is(err, ErrConflict):
		return TransferStatusConflict
	case errors.Is(err, ErrInvalidAmount):
		return TransferStatusInvalidAmount
	case errors.Is(err, ErrSameAccount):
		return TransferStatusSelfTransfer
	case errors.Is(err, ErrAccountNotFound):
		return TransferStatusAccountNotFound
	case errors.Is(err, ErrInsufficientFunds):
		return TransferStatusInsufficientFunds
	default:
		return TransferStatusUnavailable
	}
}
