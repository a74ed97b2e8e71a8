package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/gotransfer/internal/domain"
	"github.com/iho/gotransfer/internal/usecase"
)

var _ usecase.CompensationQueue = (*CompensationRepository)(nil)

const (
	enqueueCompensationSQL = `INSERT INTO pending_compensations
(id, transfer_id, account_id, to_account_id, amount, attempts, last_error, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING`

	listPendingCompensationsSQL = `SELECT id, transfer_id, account_id, to_account_id, amount, attempts, last_error, created_at, updated_at, resolved_at
FROM pending_compensations
WHERE resolved_at IS NULL
ORDER BY created_at, id
LIMIT $1`

	recordCompensationAttemptSQL = `UPDATE pending_compensations
SET attempts = attempts + 1, last_error = $2, updated_at = $3
WHERE id = $1`

	resolveCompensationSQL = `UPDATE pending_compensations
SET attempts = attempts + 1, last_error = '', updated_at = $2, resolved_at = $2
WHERE id = $1`

	pendingCompensationTotalSQL = `SELECT COUNT(*), COALESCE(SUM(amount), 0)::BIGINT
FROM pending_compensations WHERE resolved_at IS NULL`
)

// CompensationRepository implements usecase.CompensationQueue.
type CompensationRepository struct {
	pool pgxPool
}

// NewCompensationRepository creates a new CompensationRepository.
func NewCompensationRepository(pool *pgxpool.Pool) *CompensationRepository {
	return newCompensationRepositoryWithPool(pool)
}

func newCompensationRepositoryWithPool(pool pgxPool) *CompensationRepository {
	return &CompensationRepository{pool: pool}
}

// Enqueue records a compensation. Re-enqueueing an ID is a no-op.
func (r *CompensationRepository) Enqueue(ctx context.Context, c *domain.Compensation) error {
	_, err := r.pool.Exec(ctx, enqueueCompensationSQL,
		c.ID,
		c.TransferID,
		c.AccountID,
		c.ToAccountID,
		c.Amount,
		c.Attempts,
		c.LastError,
		c.CreatedAt,
		c.UpdatedAt,
	)

	return classify("enqueue compensation", err)
}

// ListPending returns unresolved compensations, oldest first.
func (r *CompensationRepository) ListPending(ctx context.Context, limit int) ([]*domain.Compensation, error) {
	rows, err := r.pool.Query(ctx, listPendingCompensationsSQL, limit)
	if err != nil {
		return nil, classify("list compensations", err)
	}
	defer rows.Close()

	pending := make([]*domain.Compensation, 0)
	for rows.Next() {
		c, err := scanCompensation(rows)
		if err != nil {
			return nil, classify("scan compensation", err)
		}
		pending = append(pending, c)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("list compensations", err)
	}

	return pending, nil
}

// RecordAttempt increments the attempt counter.
func (r *CompensationRepository) RecordAttempt(ctx context.Context, id, lastError string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, recordCompensationAttemptSQL, id, lastError, at)
	if err != nil {
		return classify("record compensation attempt", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrCompensationNotFound
	}

	return nil
}

// MarkResolved marks a compensation as applied.
func (r *CompensationRepository) MarkResolved(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, resolveCompensationSQL, id, at)
	if err != nil {
		return classify("resolve compensation", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrCompensationNotFound
	}

	return nil
}

// PendingTotal returns the number and total amount of unresolved entries.
func (r *CompensationRepository) PendingTotal(ctx context.Context) (int, int64, error) {
	var (
		count  int
		amount int64
	)
	if err := r.pool.QueryRow(ctx, pendingCompensationTotalSQL).Scan(&count, &amount); err != nil {
		return 0, 0, classify("pending compensations", err)
	}

	return count, amount, nil
}

func scanCompensation(row pgx.Row) (*domain.Compensation, error) {
	var c domain.Compensation
	err := row.Scan(
		&c.ID,
		&c.TransferID,
		&c.AccountID,
		&c.ToAccountID,
		&c.Amount,
		&c.Attempts,
		&c.LastError,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}

	return &c, nil
}
