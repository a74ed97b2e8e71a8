package usecase

import (
	"context"
	"time"

	"github.com/iho/gotransfer/internal/domain"
)

// AccountUseCase handles account administration.
type AccountUseCase struct {
	accountRepo AccountRepository
	idGen       IDGenerator
}

// NewAccountUseCase creates a new AccountUseCase.
func NewAccountUseCase(accountRepo AccountRepository, idGen IDGenerator) *AccountUseCase {
	return &AccountUseCase{
		accountRepo: accountRepo,
		idGen:       idGen,
	}
}

// OpenAccountInput represents input for opening an account.
type OpenAccountInput struct {
	// ID is optional; a new ID is generated when empty.
	ID             string
	InitialBalance int64
}

// OpenAccount creates an account with its initial balance.
func (uc *AccountUseCase) OpenAccount(ctx context.Context, input OpenAccountInput) (*domain.Account, error) {
	now := time.Now().UTC()

	id := input.ID
	if id == "" {
		id = uc.idGen.Generate()
	}

	account := &domain.Account{
		ID:        id,
		Balance:   input.InitialBalance,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := account.ValidateNew(); err != nil {
		return nil, err
	}

	if err := uc.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}

	return account, nil
}

// GetAccount retrieves an account by ID.
func (uc *AccountUseCase) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	if id == "" {
		return nil, domain.ErrInvalidAccountID
	}

	return uc.accountRepo.Get(ctx, id)
}

// ListAccountsInput represents input for listing accounts.
type ListAccountsInput struct {
	Limit  int
	Offset int
}

// ListAccounts lists accounts with pagination.
func (uc *AccountUseCase) ListAccounts(ctx context.Context, input ListAccountsInput) ([]*domain.Account, error) {
	if input.Limit <= 0 {
		input.Limit = defaultListLimit
	}
	if input.Limit > maxListLimit {
		input.Limit = maxListLimit
	}
	if input.Offset < 0 {
		input.Offset = 0
	}

	return uc.accountRepo.List(ctx, input.Limit, input.Offset)
}
