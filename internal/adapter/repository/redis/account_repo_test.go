package redis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/gotransfer/internal/domain"
)

func newTestAccountRepository(t *testing.T, balances map[string]int64) *AccountRepository {
	t.Helper()

	client, _ := newTestRedisClient(t)
	t.Cleanup(func() { _ = client.Close() })

	repo := NewAccountRepository(client)
	now := time.Now()
	for id, balance := range balances {
		require.NoError(t, repo.Create(context.Background(), &domain.Account{ID: id, Balance: balance, CreatedAt: now, UpdatedAt: now}))
	}

	return repo
}

func TestAccountRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newTestAccountRepository(t, map[string]int64{"A": 500})

	account, err := repo.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "A", account.ID)
	assert.Equal(t, int64(500), account.Balance)
	assert.Equal(t, int64(0), account.Version)
	assert.False(t, account.CreatedAt.IsZero())

	err = repo.Create(ctx, &domain.Account{ID: "A"})
	assert.ErrorIs(t, err, domain.ErrAccountExists)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAccountRepository_ConditionalDebit(t *testing.T) {
	ctx := context.Background()
	repo := newTestAccountRepository(t, map[string]int64{"A": 100})

	applied, err := repo.ConditionalDebit(ctx, "A", 101)
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = repo.ConditionalDebit(ctx, "A", 100)
	require.NoError(t, err)
	assert.True(t, applied)

	account, err := repo.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(0), account.Balance)
	assert.Equal(t, int64(1), account.Version)

	_, err = repo.ConditionalDebit(ctx, "missing", 1)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAccountRepository_LargeAmounts(t *testing.T) {
	ctx := context.Background()
	repo := newTestAccountRepository(t, map[string]int64{"A": 5_000_000_000_000})

	applied, err := repo.ConditionalDebit(ctx, "A", 1_000_000_000_000)
	require.NoError(t, err)
	assert.True(t, applied)

	require.NoError(t, repo.Credit(ctx, "A", 2_000_000_000_000))

	account, err := repo.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(6_000_000_000_000), account.Balance)
}

func TestAccountRepository_DebitAboveFloatPrecision(t *testing.T) {
	ctx := context.Background()
	const big = int64(1)<<53 + 4
	repo := newTestAccountRepository(t, map[string]int64{"A": big})

	// big+5 and big round to the same double.
	applied, err := repo.ConditionalDebit(ctx, "A", big+5)
	require.NoError(t, err)
	assert.False(t, applied)

	account, err := repo.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, big, account.Balance)
	assert.Equal(t, int64(0), account.Version)

	applied, err = repo.ConditionalDebit(ctx, "A", big-1)
	require.NoError(t, err)
	assert.True(t, applied)

	account, err = repo.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(1), account.Balance)
}

func TestAccountRepository_DebitMaxInt64(t *testing.T) {
	ctx := context.Background()
	repo := newTestAccountRepository(t, map[string]int64{"A": math.MaxInt64, "B": 0})

	applied, err := repo.ConditionalDebit(ctx, "B", math.MaxInt64)
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = repo.ConditionalDebit(ctx, "A", math.MaxInt64)
	require.NoError(t, err)
	assert.True(t, applied)

	total, err := repo.TotalBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestAccountRepository_Credit(t *testing.T) {
	ctx := context.Background()
	repo := newTestAccountRepository(t, map[string]int64{"B": 300})

	require.NoError(t, repo.Credit(ctx, "B", 200))

	account, err := repo.Get(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, int64(500), account.Balance)

	assert.ErrorIs(t, repo.Credit(ctx, "missing", 1), domain.ErrAccountNotFound)
}

func TestAccountRepository_ConcurrentDebits(t *testing.T) {
	ctx := context.Background()
	repo := newTestAccountRepository(t, map[string]int64{"A": 100})

	var (
		wg      sync.WaitGroup
		applied atomic.Int64
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.ConditionalDebit(ctx, "A", 30)
			if err == nil && ok {
				applied.Add(1)
			}
		}()
	}
	wg.Wait()

	account, err := repo.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(3), applied.Load())
	assert.Equal(t, int64(10), account.Balance)
}

func TestAccountRepository_ListDeleteTotal(t *testing.T) {
	ctx := context.Background()
	repo := newTestAccountRepository(t, map[string]int64{"c": 3, "a": 1, "b": 2})

	accounts, err := repo.List(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "b", accounts[0].ID)
	assert.Equal(t, "c", accounts[1].ID)

	total, err := repo.TotalBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), total)

	require.NoError(t, repo.Delete(ctx, "b"))
	assert.ErrorIs(t, repo.Delete(ctx, "b"), domain.ErrAccountNotFound)

	total, err = repo.TotalBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
}

func TestAccountRepository_ServerDownIsTransient(t *testing.T) {
	client, mr := newTestRedisClient(t)
	repo := NewAccountRepository(client)
	mr.Close()

	_, err := repo.Get(context.Background(), "A")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify("op", nil))
	assert.ErrorIs(t, classify("op", errors.New("LOADING Redis is loading the dataset in memory")), domain.ErrStoreUnavailable)
	assert.NotErrorIs(t, classify("op", errors.New("WRONGTYPE")), domain.ErrStoreUnavailable)
	assert.NotErrorIs(t, classify("op", fmt.Errorf("x: %w", context.Canceled)), domain.ErrStoreUnavailable)
	assert.ErrorIs(t, classify("op", errors.New("redis: connection pool timeout")), domain.ErrStoreUnavailable)

	// Reply errors mean the command was rejected; anything else may have run.
	assert.NotErrorIs(t, classify("op", redis.ErrClosed), domain.ErrOutcomeUnknown)
	assert.ErrorIs(t, classify("op", errors.New("read tcp: i/o timeout")), domain.ErrOutcomeUnknown)
	assert.ErrorIs(t, classify("op", fmt.Errorf("x: %w", context.DeadlineExceeded)), domain.ErrOutcomeUnknown)
}

func TestClassify_ReplyError(t *testing.T) {
	client, _ := newTestRedisClient(t)
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	require.NoError(t, client.Set(ctx, "k", "v", 0).Err())

	err := classify("op", client.HIncrBy(ctx, "k", "f", 1).Err())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrOutcomeUnknown)
	assert.NotErrorIs(t, err, domain.ErrStoreUnavailable)
}
