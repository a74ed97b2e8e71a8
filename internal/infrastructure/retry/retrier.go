// Package retry retries store operations that failed transiently.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/iho/gotransfer/internal/domain"
)

// Config configures a Retrier.
type Config struct {
	Name            string
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	Logger          zerolog.Logger
	// OnRetry is called before each retry.
	OnRetry func(name string, attempt int, err error)
}

// Retrier implements usecase.Retrier with exponential backoff. Only errors
// wrapping domain.ErrStoreUnavailable are retried.
type Retrier struct {
	name            string
	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
	maxElapsedTime  time.Duration
	logger          zerolog.Logger
	onRetry         func(name string, attempt int, err error)
}

// New creates a Retrier. Zero fields take defaults.
func New(cfg Config) *Retrier {
	if cfg.Name == "" {
		cfg.Name = "store"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 50 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = time.Second
	}
	if cfg.MaxElapsedTime <= 0 {
		cfg.MaxElapsedTime = 10 * time.Second
	}

	return &Retrier{
		name:            cfg.Name,
		maxRetries:      cfg.MaxRetries,
		initialInterval: cfg.InitialInterval,
		maxInterval:     cfg.MaxInterval,
		maxElapsedTime:  cfg.MaxElapsedTime,
		logger:          cfg.Logger,
		onRetry:         cfg.OnRetry,
	}
}

// Retry executes an operation with exponential backoff on retryable errors.
func (r *Retrier) Retry(ctx context.Context, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.MaxInterval = r.maxInterval
	b.MaxElapsedTime = r.maxElapsedTime

	retryCount := 0

	return backoff.Retry(func() error {
		err := operation()
		if err == nil {
			return nil
		}

		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}

		retryCount++
		if retryCount > r.maxRetries {
			return backoff.Permanent(err)
		}

		r.logger.Warn().
			Str("retrier", r.name).
			Int("retry", retryCount).
			Err(err).
			Msg("transient store error, retrying")

		if r.onRetry != nil {
			r.onRetry(r.name, retryCount, err)
		}

		return err
	}, backoff.WithContext(b, ctx))
}

// IsRetryable reports whether err is a transient store failure.
func IsRetryable(err error) bool {
	return errors.Is(err, domain.ErrStoreUnavailable)
}
