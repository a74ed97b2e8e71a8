// Package memory provides process-local implementations of the repositories.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iho/gotransfer/internal/domain"
	"github.com/iho/gotransfer/internal/usecase"
)

var _ usecase.AccountRepository = (*AccountRepository)(nil)

type cell struct {
	mu      sync.Mutex
	account domain.Account
}

// AccountRepository keeps accounts in memory. Each account has its own
// lock, so operations on different accounts never contend.
type AccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*cell
}

// NewAccountRepository creates an empty AccountRepository.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{accounts: make(map[string]*cell)}
}

func (r *AccountRepository) cell(id string) (*cell, error) {
	r.mu.RLock()
	c, ok := r.accounts[id]
	r.mu.RUnlock()

	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	return c, nil
}

// Create stores a new account.
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[account.ID]; ok {
		return domain.ErrAccountExists
	}

	r.accounts[account.ID] = &cell{account: *account}

	return nil
}

// Get returns a snapshot of the account.
func (r *AccountRepository) Get(ctx context.Context, id string) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c, err := r.cell(id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	account := c.account
	c.mu.Unlock()

	return &account, nil
}

// ConditionalDebit subtracts amount if the balance covers it.
func (r *AccountRepository) ConditionalDebit(ctx context.Context, id string, amount int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	c, err := r.cell(id)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.account.CanDebit(amount) {
		return false, nil
	}

	c.account.Balance -= amount
	c.account.Version++
	c.account.UpdatedAt = time.Now().UTC()

	return true, nil
}

// Credit adds amount to the balance.
func (r *AccountRepository) Credit(ctx context.Context, id string, amount int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c, err := r.cell(id)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.account.CanCredit(amount) {
		return domain.ErrBalanceOverflow
	}

	c.account.Balance += amount
	c.account.Version++
	c.account.UpdatedAt = time.Now().UTC()

	return nil
}

// Delete removes an account.
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[id]; !ok {
		return domain.ErrAccountNotFound
	}

	delete(r.accounts, id)

	return nil
}

// List returns accounts ordered by ID.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	ids := make([]string, 0, len(r.accounts))
	for id := range r.accounts {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)

	if offset >= len(ids) {
		return []*domain.Account{}, nil
	}

	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}

	accounts := make([]*domain.Account, 0, len(ids))
	for _, id := range ids {
		account, err := r.Get(ctx, id)
		if err != nil {
			// Deleted since the ID snapshot.
			continue
		}
		accounts = append(accounts, account)
	}

	return accounts, nil
}

// TotalBalance sums all balances.
func (r *AccountRepository) TotalBalance(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var total int64
	for _, c := range r.accounts {
		c.mu.Lock()
		total += c.account.Balance
		c.mu.Unlock()
	}

	return total, nil
}
