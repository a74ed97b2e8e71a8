package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/gotransfer/internal/domain"
)

// CompensationConfig holds dependencies for CompensationUseCase.
type CompensationConfig struct {
	Store         AccountStore
	Compensations CompensationQueue
	Publisher     EventPublisher
	IDGen         IDGenerator
	Recorder      Recorder
	Logger        zerolog.Logger

	BatchSize int           // Compensations fetched per pass
	Interval  time.Duration // Polling interval
	// EscalateAfter is the attempt count at which a compensation is
	// reported for manual attention. It keeps being retried afterwards.
	EscalateAfter int
}

// CompensationUseCase replays credit-backs that failed inline. Run a single
// worker per queue.
type CompensationUseCase struct {
	store         AccountStore
	compensations CompensationQueue
	publisher     EventPublisher
	idGen         IDGenerator
	recorder      Recorder
	logger        zerolog.Logger
	batchSize     int
	interval      time.Duration
	escalateAfter int
}

// NewCompensationUseCase creates a new CompensationUseCase.
func NewCompensationUseCase(cfg CompensationConfig) *CompensationUseCase {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.EscalateAfter <= 0 {
		cfg.EscalateAfter = 10
	}
	if cfg.Publisher == nil {
		cfg.Publisher = noopPublisher{}
	}
	if cfg.Recorder == nil {
		cfg.Recorder = noopRecorder{}
	}

	return &CompensationUseCase{
		store:         cfg.Store,
		compensations: cfg.Compensations,
		publisher:     cfg.Publisher,
		idGen:         cfg.IDGen,
		recorder:      cfg.Recorder,
		logger:        cfg.Logger,
		batchSize:     cfg.BatchSize,
		interval:      cfg.Interval,
		escalateAfter: cfg.EscalateAfter,
	}
}

// Start runs the worker until ctx is cancelled.
func (uc *CompensationUseCase) Start(ctx context.Context) error {
	uc.logger.Info().
		Int("batch_size", uc.batchSize).
		Dur("interval", uc.interval).
		Int("escalate_after", uc.escalateAfter).
		Msg("compensation worker started")

	ticker := time.NewTicker(uc.interval)
	defer ticker.Stop()

	if _, err := uc.ProcessPending(ctx); err != nil {
		uc.logger.Error().Err(err).Msg("error processing compensations on start")
	}

	for {
		select {
		case <-ctx.Done():
			uc.logger.Info().Msg("compensation worker shutting down")
			return ctx.Err()
		case <-ticker.C:
			if _, err := uc.ProcessPending(ctx); err != nil {
				uc.logger.Error().Err(err).Msg("error processing compensations")
			}
		}
	}
}

// ProcessPending makes one pass over pending compensations and returns how
// many were resolved.
func (uc *CompensationUseCase) ProcessPending(ctx context.Context) (int, error) {
	pending, err := uc.compensations.ListPending(ctx, uc.batchSize)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, c := range pending {
		if ctx.Err() != nil {
			break
		}
		if uc.process(ctx, c) {
			resolved++
		}
	}

	if count, _, err := uc.compensations.PendingTotal(ctx); err == nil {
		uc.recorder.SetPendingCompensations(count)
	}

	if len(pending) > 0 {
		uc.logger.Info().
			Int("pending", len(pending)).
			Int("resolved", resolved).
			Msg("compensation pass finished")
	}

	return resolved, nil
}

// ListPending returns unresolved compensations.
func (uc *CompensationUseCase) ListPending(ctx context.Context, limit int) ([]*domain.Compensation, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	return uc.compensations.ListPending(ctx, limit)
}

func (uc *CompensationUseCase) process(ctx context.Context, c *domain.Compensation) bool {
	log := uc.logger.With().
		Str("compensation_id", c.ID).
		Str("transfer_id", c.TransferID).
		Str("account_id", c.AccountID).
		Int64("amount", c.Amount).
		Logger()

	now := time.Now().UTC()

	if err := uc.store.Credit(ctx, c.AccountID, c.Amount); err != nil {
		attempts := c.Attempts + 1
		log.Warn().Int("attempts", attempts).Err(err).Msg("compensation attempt failed")

		if err := uc.compensations.RecordAttempt(ctx, c.ID, err.Error(), now); err != nil {
			log.Error().Err(err).Msg("failed to record compensation attempt")
		}

		// The credit may have landed; the next pass would credit again.
		if errors.Is(err, domain.ErrOutcomeUnknown) {
			uc.recorder.IncCompensation(CompensationEscalated)
			log.Error().Int("attempts", attempts).Err(err).Msg("compensation outcome unknown: manual reconciliation required")
			uc.publish(ctx, domain.EventTypeCompensationEscalated, c, attempts, err.Error())
			return false
		}

		if attempts == uc.escalateAfter {
			uc.recorder.IncCompensation(CompensationEscalated)
			log.Error().Int("attempts", attempts).Msg("compensation still failing: manual reconciliation required")
			uc.publish(ctx, domain.EventTypeCompensationEscalated, c, attempts, err.Error())
		}

		return false
	}

	// The credit is applied. If marking fails the entry is replayed later and
	// the account is credited twice.
	if err := uc.compensations.MarkResolved(ctx, c.ID, now); err != nil {
		log.Error().Err(err).Msg("compensation applied but not marked resolved: replay will credit again")
		return false
	}

	uc.recorder.IncCompensation(CompensationResolved)
	log.Info().Msg("compensation resolved")
	uc.publish(ctx, domain.EventTypeCompensationResolved, c, c.Attempts+1, "")

	return true
}

func (uc *CompensationUseCase) publish(ctx context.Context, eventType string, c *domain.Compensation, attempts int, reason string) {
	event := &domain.Event{
		ID:         uc.idGen.Generate(),
		Type:       eventType,
		TransferID: c.TransferID,
		Payload: domain.CompensationEvent{
			CompensationID: c.ID,
			TransferID:     c.TransferID,
			AccountID:      c.AccountID,
			Amount:         c.Amount,
			Attempts:       attempts,
			Reason:         reason,
		}.ToPayload(),
		CreatedAt: time.Now().UTC(),
	}

	if err := uc.publisher.Publish(ctx, event); err != nil {
		uc.logger.Warn().Str("event_type", eventType).Err(err).Msg("failed to publish event")
	}
}
