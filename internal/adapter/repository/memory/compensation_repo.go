package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iho/gotransfer/internal/domain"
	"github.com/iho/gotransfer/internal/usecase"
)

var _ usecase.CompensationQueue = (*CompensationRepository)(nil)

// CompensationRepository is an in-memory compensation queue. Entries do not
// survive a restart.
type CompensationRepository struct {
	mu      sync.Mutex
	entries map[string]*domain.Compensation
}

// NewCompensationRepository creates an empty CompensationRepository.
func NewCompensationRepository() *CompensationRepository {
	return &CompensationRepository{entries: make(map[string]*domain.Compensation)}
}

// Enqueue records a compensation. Re-enqueueing an ID is a no-op.
func (r *CompensationRepository) Enqueue(ctx context.Context, c *domain.Compensation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[c.ID]; ok {
		return nil
	}

	cp := *c
	r.entries[c.ID] = &cp

	return nil
}

// ListPending returns unresolved compensations, oldest first.
func (r *CompensationRepository) ListPending(ctx context.Context, limit int) ([]*domain.Compensation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make([]*domain.Compensation, 0)
	for _, c := range r.entries {
		if c.Resolved() {
			continue
		}
		cp := *c
		pending = append(pending, &cp)
	}

	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}

	return pending, nil
}

// RecordAttempt increments the attempt counter.
func (r *CompensationRepository) RecordAttempt(ctx context.Context, id, lastError string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.entries[id]
	if !ok {
		return domain.ErrCompensationNotFound
	}

	c.Attempts++
	c.LastError = lastError
	c.UpdatedAt = at

	return nil
}

// MarkResolved marks a compensation as applied.
func (r *CompensationRepository) MarkResolved(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.entries[id]
	if !ok {
		return domain.ErrCompensationNotFound
	}

	c.Attempts++
	c.LastError = ""
	c.UpdatedAt = at
	c.ResolvedAt = &at

	return nil
}

// PendingTotal returns the number and total amount of unresolved entries.
func (r *CompensationRepository) PendingTotal(ctx context.Context) (int, int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		count  int
		amount int64
	)
	for _, c := range r.entries {
		if c.Resolved() {
			continue
		}
		count++
		amount += c.Amount
	}

	return count, amount, nil
}
