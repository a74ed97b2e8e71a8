package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/gotransfer/internal/domain"
)

func TestCompensationRepository_Enqueue(t *testing.T) {
	now := time.Now().UTC()
	c := &domain.Compensation{
		ID:          "c1",
		TransferID:  "t1",
		AccountID:   "A",
		ToAccountID: "B",
		Amount:      50,
		Attempts:    1,
		LastError:   "boom",
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	pool := newMockPool(t)
	pool.ExpectExec(enqueueCompensationSQL).
		WithArgs("c1", "t1", "A", "B", int64(50), 1, "boom", now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, newCompensationRepositoryWithPool(pool).Enqueue(context.Background(), c))
	assertExpectations(t, pool)
}

func TestCompensationRepository_ListPending(t *testing.T) {
	now := time.Now().UTC()
	pool := newMockPool(t)

	pool.ExpectQuery(listPendingCompensationsSQL).
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "transfer_id", "account_id", "to_account_id", "amount", "attempts", "last_error", "created_at", "updated_at", "resolved_at",
		}).AddRow("c1", "t1", "A", "B", int64(50), 2, "boom", now, now, (*time.Time)(nil)))

	pending, err := newCompensationRepositoryWithPool(pool).ListPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "c1", pending[0].ID)
	assert.Equal(t, 2, pending[0].Attempts)
	assert.False(t, pending[0].Resolved())
	assertExpectations(t, pool)
}

func TestCompensationRepository_Updates(t *testing.T) {
	at := time.Now().UTC()
	pool := newMockPool(t)

	pool.ExpectExec(recordCompensationAttemptSQL).
		WithArgs("c1", "boom", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectExec(resolveCompensationSQL).
		WithArgs("c1", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectExec(resolveCompensationSQL).
		WithArgs("missing", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	pool.ExpectQuery(pendingCompensationTotalSQL).
		WillReturnRows(pgxmock.NewRows([]string{"count", "sum"}).AddRow(3, int64(120)))

	repo := newCompensationRepositoryWithPool(pool)

	require.NoError(t, repo.RecordAttempt(context.Background(), "c1", "boom", at))
	require.NoError(t, repo.MarkResolved(context.Background(), "c1", at))
	assert.ErrorIs(t, repo.MarkResolved(context.Background(), "missing", at), domain.ErrCompensationNotFound)

	count, amount, err := repo.PendingTotal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, int64(120), amount)

	assertExpectations(t, pool)
}
