package usecase

import "time"

const (
	// DefaultCompletionTimeout bounds each phase of finishing a transfer once
	// the sender has been debited.
	DefaultCompletionTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// Compensation outcomes reported to the Recorder.
	CompensationReversed  = "reversed"
	CompensationScheduled = "scheduled"
	CompensationResolved  = "resolved"
	CompensationEscalated = "escalated"

	defaultListLimit = 20
	maxListLimit     = 100
)
