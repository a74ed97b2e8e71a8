package usecase

import (
	"context"
	"time"

	"github.com/iho/gotransfer/internal/domain"
)

// AccountStore is the balance store transfers run against. Every method is a
// single atomic operation on one account.
type AccountStore interface {
	Get(ctx context.Context, id string) (*domain.Account, error)
	// ConditionalDebit decrements the balance by amount only if the balance
	// is at least amount. It reports whether the debit was applied.
	ConditionalDebit(ctx context.Context, id string, amount int64) (bool, error)
	Credit(ctx context.Context, id string, amount int64) error
}

// AccountRepository extends AccountStore with account administration.
type AccountRepository interface {
	AccountStore
	Create(ctx context.Context, account *domain.Account) error
	List(ctx context.Context, limit, offset int) ([]*domain.Account, error)
	Delete(ctx context.Context, id string) error
	TotalBalance(ctx context.Context) (int64, error)
}

// CompensationQueue durably records credit-backs that could not be applied
// inline.
type CompensationQueue interface {
	Enqueue(ctx context.Context, c *domain.Compensation) error
	ListPending(ctx context.Context, limit int) ([]*domain.Compensation, error)
	RecordAttempt(ctx context.Context, id, lastError string, at time.Time) error
	MarkResolved(ctx context.Context, id string, at time.Time) error
	PendingTotal(ctx context.Context) (count int, amount int64, err error)
}

// EventPublisher delivers transfer notifications to external systems.
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.Event) error
}

// Retrier re-runs an operation while it fails with a retryable error.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// Recorder collects transfer metrics.
type Recorder interface {
	ObserveTransfer(status domain.TransferStatus, amount int64, duration time.Duration)
	IncCompensation(outcome string)
	SetPendingCompensations(count int)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a claim so the request can be retried.
	Release(ctx context.Context, key string) error
}

type noopRecorder struct{}

func (noopRecorder) ObserveTransfer(domain.TransferStatus, int64, time.Duration) {}
func (noopRecorder) IncCompensation(string)                                      {}
func (noopRecorder) SetPendingCompensations(int)                                 {}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, *domain.Event) error { return nil }
