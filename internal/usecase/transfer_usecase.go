package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iho/gotransfer/internal/domain"
)

const tracerName = "github.com/iho/gotransfer/internal/usecase"

// TransferConfig holds dependencies for TransferUseCase.
type TransferConfig struct {
	Store         AccountStore
	Compensations CompensationQueue
	Publisher     EventPublisher
	IDGen         IDGenerator
	Recorder      Recorder
	Logger        zerolog.Logger

	// StoreRetrier retries individual store operations on transient errors.
	StoreRetrier Retrier
	// CompensationRetrier retries the credit-back before it is queued.
	CompensationRetrier Retrier

	CompletionTimeout time.Duration
}

// TransferUseCase moves funds between accounts. It holds no balance state;
// any number of instances may share one AccountStore.
type TransferUseCase struct {
	store             AccountStore
	compensations     CompensationQueue
	publisher         EventPublisher
	idGen             IDGenerator
	recorder          Recorder
	logger            zerolog.Logger
	storeRetrier      Retrier
	compRetrier       Retrier
	completionTimeout time.Duration
	tracer            trace.Tracer

	inflight sync.WaitGroup
}

// NewTransferUseCase creates a new TransferUseCase.
func NewTransferUseCase(cfg TransferConfig) *TransferUseCase {
	if cfg.Publisher == nil {
		cfg.Publisher = noopPublisher{}
	}
	if cfg.Recorder == nil {
		cfg.Recorder = noopRecorder{}
	}
	if cfg.StoreRetrier == nil {
		cfg.StoreRetrier = onceRetrier{}
	}
	if cfg.CompensationRetrier == nil {
		cfg.CompensationRetrier = cfg.StoreRetrier
	}
	if cfg.CompletionTimeout <= 0 {
		cfg.CompletionTimeout = DefaultCompletionTimeout
	}

	return &TransferUseCase{
		store:             cfg.Store,
		compensations:     cfg.Compensations,
		publisher:         cfg.Publisher,
		idGen:             cfg.IDGen,
		recorder:          cfg.Recorder,
		logger:            cfg.Logger,
		storeRetrier:      cfg.StoreRetrier,
		compRetrier:       cfg.CompensationRetrier,
		completionTimeout: cfg.CompletionTimeout,
		tracer:            otel.Tracer(tracerName),
	}
}

// Transfer moves req.Amount from req.FromAccountID to req.ToAccountID.
//
// The returned result always carries the terminal status. A non-nil error
// wraps the domain error behind that status.
func (uc *TransferUseCase) Transfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error) {
	start := time.Now()
	transferID := uc.idGen.Generate()

	ctx, span := uc.tracer.Start(ctx, "TransferUseCase.Transfer",
		trace.WithAttributes(
			attribute.String("transfer.id", transferID),
			attribute.String("transfer.from", req.FromAccountID),
			attribute.String("transfer.to", req.ToAccountID),
			attribute.Int64("transfer.amount", req.Amount),
		),
	)
	defer span.End()

	err := uc.transfer(ctx, transferID, req)
	status := domain.StatusFromError(err)

	span.SetAttributes(attribute.String("transfer.status", string(status)))
	if err != nil {
		span.RecordError(err)
		if status == domain.TransferStatusUnavailable {
			span.SetStatus(codes.Error, err.Error())
		}
	}

	uc.recorder.ObserveTransfer(status, req.Amount, time.Since(start))

	uc.logger.Debug().
		Str("transfer_id", transferID).
		Str("from", req.FromAccountID).
		Str("to", req.ToAccountID).
		Int64("amount", req.Amount).
		Str("status", string(status)).
		Err(err).
		Msg("transfer finished")

	return &domain.TransferResult{TransferID: transferID, Status: status}, err
}

func (uc *TransferUseCase) transfer(ctx context.Context, transferID string, req domain.TransferRequest) error {
	// 1. Validate before touching storage
	if err := req.Validate(); err != nil {
		return err
	}

	// 2-3. Both accounts must exist before anything is mutated
	if _, err := uc.get(ctx, req.FromAccountID); err != nil {
		return fmt.Errorf("sender %s: %w", req.FromAccountID, err)
	}

	if _, err := uc.get(ctx, req.ToAccountID); err != nil {
		return fmt.Errorf("recipient %s: %w", req.ToAccountID, err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	// 4. Atomic check-and-decrement on the sender
	applied, err := uc.debit(ctx, req.FromAccountID, req.Amount)
	if err != nil {
		return fmt.Errorf("debit %s: %w", req.FromAccountID, err)
	}

	if !applied {
		return domain.ErrInsufficientFunds
	}

	// 5. The debit is applied: the rest runs to completion regardless of the
	// caller's context.
	done := make(chan error, 1)
	base := context.WithoutCancel(ctx)

	uc.inflight.Add(1)
	go func() {
		defer uc.inflight.Done()
		done <- uc.complete(base, transferID, req)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		uc.logger.Warn().
			Str("transfer_id", transferID).
			Err(ctx.Err()).
			Msg("caller gone after debit, transfer completing in background")

		return fmt.Errorf("%w: %w", domain.ErrTransferInFlight, ctx.Err())
	}
}

// complete credits the recipient or reverses the debit.
func (uc *TransferUseCase) complete(base context.Context, transferID string, req domain.TransferRequest) error {
	ctx, cancel := context.WithTimeout(base, uc.completionTimeout)
	defer cancel()

	creditErr := uc.credit(ctx, req.ToAccountID, req.Amount)
	if creditErr == nil {
		uc.publish(base, domain.EventTypeTransferCompleted, transferID, domain.TransferCompletedEvent{
			TransferID:    transferID,
			FromAccountID: req.FromAccountID,
			ToAccountID:   req.ToAccountID,
			Amount:        req.Amount,
		}.ToPayload())

		return nil
	}

	// The credit may have landed. Reversing it would create money.
	if errors.Is(creditErr, domain.ErrOutcomeUnknown) {
		return uc.escalateUnknown(base, transferID, req, req.ToAccountID, creditErr)
	}

	uc.logger.Warn().
		Str("transfer_id", transferID).
		Str("to", req.ToAccountID).
		Err(creditErr).
		Msg("credit failed, reversing debit")

	return uc.compensate(base, transferID, req, creditErr)
}

// escalateUnknown reports a credit to accountID that may or may not have
// been applied. Nothing is retried or reversed.
func (uc *TransferUseCase) escalateUnknown(base context.Context, transferID string, req domain.TransferRequest, accountID string, err error) error {
	uc.recorder.IncCompensation(CompensationEscalated)
	uc.logger.Error().
		Str("transfer_id", transferID).
		Str("from", req.FromAccountID).
		Str("to", req.ToAccountID).
		Str("account_id", accountID).
		Int64("amount", req.Amount).
		Err(err).
		Msg("credit outcome unknown: manual reconciliation required")
	uc.publish(base, domain.EventTypeCompensationEscalated, transferID, domain.CompensationEvent{
		TransferID: transferID,
		AccountID:  accountID,
		Amount:     req.Amount,
		Reason:     err.Error(),
	}.ToPayload())

	return fmt.Errorf("%w: credit %s for transfer %s: %w", domain.ErrUnavailable, accountID, transferID, err)
}

// compensate returns the debited amount to the sender. It reports ErrConflict
// once the funds are back or durably queued, ErrUnavailable if neither
// happened.
func (uc *TransferUseCase) compensate(base context.Context, transferID string, req domain.TransferRequest, creditErr error) error {
	conflict := fmt.Errorf("%w: credit %s: %v", domain.ErrConflict, req.ToAccountID, creditErr)

	ctx, cancel := context.WithTimeout(base, uc.completionTimeout)
	defer cancel()

	err := uc.compRetrier.Retry(ctx, func() error {
		return uc.store.Credit(ctx, req.FromAccountID, req.Amount)
	})
	if err == nil {
		uc.recorder.IncCompensation(CompensationReversed)
		uc.publish(base, domain.EventTypeTransferCompensated, transferID, domain.CompensationEvent{
			TransferID: transferID,
			AccountID:  req.FromAccountID,
			Amount:     req.Amount,
			Reason:     creditErr.Error(),
		}.ToPayload())

		return conflict
	}

	if errors.Is(err, domain.ErrOutcomeUnknown) {
		return uc.escalateUnknown(base, transferID, req, req.FromAccountID, err)
	}

	now := time.Now().UTC()
	c := &domain.Compensation{
		ID:          uc.idGen.Generate(),
		TransferID:  transferID,
		AccountID:   req.FromAccountID,
		ToAccountID: req.ToAccountID,
		Amount:      req.Amount,
		Attempts:    1,
		LastError:   err.Error(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	qctx, qcancel := context.WithTimeout(base, uc.completionTimeout)
	defer qcancel()

	qerr := errors.New("no compensation queue configured")
	if uc.compensations != nil {
		qerr = uc.storeRetrier.Retry(qctx, func() error {
			return uc.compensations.Enqueue(qctx, c)
		})
	}

	if qerr != nil {
		uc.recorder.IncCompensation(CompensationEscalated)
		uc.logger.Error().
			Str("transfer_id", transferID).
			Str("account_id", req.FromAccountID).
			Str("to_account_id", req.ToAccountID).
			Int64("amount", req.Amount).
			AnErr("credit_error", creditErr).
			AnErr("reversal_error", err).
			AnErr("queue_error", qerr).
			Msg("debited funds not returned and compensation not queued: manual reconciliation required")
		uc.publish(base, domain.EventTypeCompensationEscalated, transferID, domain.CompensationEvent{
			CompensationID: c.ID,
			TransferID:     transferID,
			AccountID:      req.FromAccountID,
			Amount:         req.Amount,
			Attempts:       c.Attempts,
			Reason:         qerr.Error(),
		}.ToPayload())

		return fmt.Errorf("%w: compensation for transfer %s not recorded: %v", domain.ErrUnavailable, transferID, qerr)
	}

	uc.recorder.IncCompensation(CompensationScheduled)
	uc.logger.Warn().
		Str("transfer_id", transferID).
		Str("compensation_id", c.ID).
		Str("account_id", req.FromAccountID).
		Int64("amount", req.Amount).
		Err(err).
		Msg("reversal deferred to compensation queue")
	uc.publish(base, domain.EventTypeCompensationScheduled, transferID, domain.CompensationEvent{
		CompensationID: c.ID,
		TransferID:     transferID,
		AccountID:      req.FromAccountID,
		Amount:         req.Amount,
		Attempts:       c.Attempts,
		Reason:         err.Error(),
	}.ToPayload())

	return conflict
}

// GetBalance returns the balance of an account.
func (uc *TransferUseCase) GetBalance(ctx context.Context, accountID string) (int64, error) {
	account, err := uc.get(ctx, accountID)
	if err != nil {
		return 0, err
	}

	return account.Balance, nil
}

// Wait blocks until transfers completing in the background are done.
func (uc *TransferUseCase) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		uc.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (uc *TransferUseCase) get(ctx context.Context, id string) (*domain.Account, error) {
	var account *domain.Account

	err := uc.storeRetrier.Retry(ctx, func() error {
		var err error
		account, err = uc.store.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, storeError(err)
	}

	return account, nil
}

func (uc *TransferUseCase) debit(ctx context.Context, id string, amount int64) (bool, error) {
	var applied bool

	err := uc.storeRetrier.Retry(ctx, func() error {
		var err error
		applied, err = uc.store.ConditionalDebit(ctx, id, amount)
		return err
	})
	if err != nil {
		return false, storeError(err)
	}

	return applied, nil
}

func (uc *TransferUseCase) credit(ctx context.Context, id string, amount int64) error {
	err := uc.storeRetrier.Retry(ctx, func() error {
		return uc.store.Credit(ctx, id, amount)
	})

	return storeError(err)
}

func (uc *TransferUseCase) publish(base context.Context, eventType, transferID string, payload map[string]any) {
	ctx, cancel := context.WithTimeout(base, uc.completionTimeout)
	defer cancel()

	event := &domain.Event{
		ID:         uc.idGen.Generate(),
		Type:       eventType,
		TransferID: transferID,
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
	}

	if err := uc.publisher.Publish(ctx, event); err != nil {
		uc.logger.Warn().
			Str("event_type", eventType).
			Str("transfer_id", transferID).
			Err(err).
			Msg("failed to publish event")
	}
}

// storeError turns exhausted transient store errors into ErrUnavailable.
func storeError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, domain.ErrStoreUnavailable) {
		return fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
	}

	return err
}

// onceRetrier runs the operation a single time.
type onceRetrier struct{}

func (onceRetrier) Retry(_ context.Context, operation func() error) error {
	return operation()
}
