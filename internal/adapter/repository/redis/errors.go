// Package redis implements the repositories on Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/iho/gotransfer/internal/domain"
)

const defaultPrefix = "gotransfer:"

// errPoolTimeout is the message of go-redis' unexported pool timeout error.
const errPoolTimeout = "redis: connection pool timeout"

// classify marks errors that are safe to retry with domain.ErrStoreUnavailable
// and errors after which the command may have run with
// domain.ErrOutcomeUnknown. A reply error means the command was rejected.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	if isTransient(err) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
	}

	var replyErr redis.Error
	if errors.As(err, &replyErr) || errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return fmt.Errorf("%s: %w: %w", op, domain.ErrOutcomeUnknown, err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if err.Error() == errPoolTimeout {
		return true
	}

	// Dial failures never reach the server. Other network errors may have
	// applied the command, so they are not retried.
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	msg := err.Error()
	for _, prefix := range []string{"LOADING ", "TRYAGAIN ", "CLUSTERDOWN ", "MASTERDOWN "} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}

	return false
}
