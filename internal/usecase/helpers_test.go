package usecase_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/iho/gotransfer/internal/adapter/repository/memory"
	"github.com/iho/gotransfer/internal/domain"
	"github.com/iho/gotransfer/internal/infrastructure/retry"
)

type seqIDs struct {
	n atomic.Int64
}

func (s *seqIDs) Generate() string {
	return fmt.Sprintf("id-%d", s.n.Add(1))
}

func fastRetrier() *retry.Retrier {
	return retry.New(retry.Config{
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		MaxElapsedTime:  time.Second,
		Logger:          zerolog.Nop(),
	})
}

func newMemoryAccounts(t *testing.T, balances map[string]int64) *memory.AccountRepository {
	t.Helper()

	repo := memory.NewAccountRepository()
	for id, balance := range balances {
		require.NoError(t, repo.Create(context.Background(), &domain.Account{ID: id, Balance: balance}))
	}

	return repo
}

func balanceOf(t *testing.T, repo *memory.AccountRepository, id string) int64 {
	t.Helper()

	account, err := repo.Get(context.Background(), id)
	require.NoError(t, err)

	return account.Balance
}
