package errors

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/iho/gotransfer/internal/domain"
)

// MapDomainError converts domain errors to gRPC status errors.
// Unknown errors become Internal without exposing their text.
func MapDomainError(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	// Not Found errors
	case errors.Is(err, domain.ErrAccountNotFound):
		return status.Error(codes.NotFound, "account not found")
	case errors.Is(err, domain.ErrCompensationNotFound):
		return status.Error(codes.NotFound, "compensation not found")

	// Invalid Argument errors
	case errors.Is(err, domain.ErrInvalidAmount):
		return status.Error(codes.InvalidArgument, "invalid amount: must be positive")
	case errors.Is(err, domain.ErrSameAccount):
		return status.Error(codes.InvalidArgument, "cannot transfer to the same account")
	case errors.Is(err, domain.ErrInvalidAccountID):
		return status.Error(codes.InvalidArgument, "invalid account id")

	case errors.Is(err, domain.ErrAccountExists):
		return status.Error(codes.AlreadyExists, "account already exists")

	case errors.Is(err, domain.ErrInsufficientFunds):
		return status.Error(codes.FailedPrecondition, "insufficient funds")

	// The debit was reversed; the caller may retry.
	case errors.Is(err, domain.ErrConflict):
		return status.Error(codes.Aborted, "recipient unavailable, transfer reversed")

	case errors.Is(err, domain.ErrUnavailable), errors.Is(err, domain.ErrStoreUnavailable):
		return status.Error(codes.Unavailable, "service temporarily unavailable")

	// Context errors (timeouts, cancellations)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "operation timed out")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "operation was canceled")

	default:
		return status.Error(codes.Internal, "an internal error occurred")
	}
}

// Retryable reports whether a client may retry a call that failed with code.
func Retryable(code codes.Code) bool {
	switch code {
	case codes.Unavailable, codes.Aborted, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}
