package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/gotransfer/internal/domain"
)

func TestCompensationRepository_Lifecycle(t *testing.T) {
	client, _ := newTestRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	repo := NewCompensationRepository(client)
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Enqueue(ctx, &domain.Compensation{ID: "c2", TransferID: "t2", AccountID: "A", ToAccountID: "B", Amount: 20, Attempts: 1, CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, repo.Enqueue(ctx, &domain.Compensation{ID: "c1", TransferID: "t1", AccountID: "A", ToAccountID: "B", Amount: 10, Attempts: 1, LastError: "down", CreatedAt: base}))
	// duplicate is ignored
	require.NoError(t, repo.Enqueue(ctx, &domain.Compensation{ID: "c1", Amount: 999, CreatedAt: base}))

	pending, err := repo.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "c1", pending[0].ID)
	assert.Equal(t, "t1", pending[0].TransferID)
	assert.Equal(t, int64(10), pending[0].Amount)
	assert.Equal(t, "down", pending[0].LastError)
	assert.True(t, pending[0].CreatedAt.Equal(base))
	assert.False(t, pending[0].Resolved())

	count, amount, err := repo.PendingTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, int64(30), amount)

	require.NoError(t, repo.RecordAttempt(ctx, "c1", "still down", base.Add(time.Hour)))
	pending, err = repo.ListPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Attempts)
	assert.Equal(t, "still down", pending[0].LastError)

	require.NoError(t, repo.MarkResolved(ctx, "c1", base.Add(2*time.Hour)))
	// resolving twice does not double count
	require.NoError(t, repo.MarkResolved(ctx, "c1", base.Add(3*time.Hour)))

	count, amount, err = repo.PendingTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, int64(20), amount)

	pending, err = repo.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "c2", pending[0].ID)

	assert.ErrorIs(t, repo.MarkResolved(ctx, "nope", base), domain.ErrCompensationNotFound)
	assert.ErrorIs(t, repo.RecordAttempt(ctx, "nope", "", base), domain.ErrCompensationNotFound)
}

func TestCompensationRepository_EmptyTotals(t *testing.T) {
	client, _ := newTestRedisClient(t)
	defer client.Close()

	count, amount, err := NewCompensationRepository(client).PendingTotal(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, amount)
}
