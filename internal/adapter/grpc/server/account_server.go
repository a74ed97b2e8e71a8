package server

import (
	"context"

	"github.com/iho/gotransfer/internal/adapter/grpc/api"
	"github.com/iho/gotransfer/internal/adapter/grpc/converter"
	grpcErrors "github.com/iho/gotransfer/internal/adapter/grpc/errors"
	"github.com/iho/gotransfer/internal/domain"
	"github.com/iho/gotransfer/internal/usecase"
)

const defaultPageSize = 20

// AccountService is the account behavior the server needs.
type AccountService interface {
	OpenAccount(ctx context.Context, input usecase.OpenAccountInput) (*domain.Account, error)
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	ListAccounts(ctx context.Context, input usecase.ListAccountsInput) ([]*domain.Account, error)
}

// AccountServer implements the gRPC AccountService
type AccountServer struct {
	accountUC AccountService
}

var _ api.AccountServiceServer = (*AccountServer)(nil)

// NewAccountServer creates a new AccountServer
func NewAccountServer(accountUC AccountService) *AccountServer {
	return &AccountServer{
		accountUC: accountUC,
	}
}

// OpenAccount opens an account with an initial balance
func (s *AccountServer) OpenAccount(ctx context.Context, req *api.OpenAccountRequest) (*api.OpenAccountResponse, error) {
	account, err := s.accountUC.OpenAccount(ctx, usecase.OpenAccountInput{
		ID:             req.ID,
		InitialBalance: req.InitialBalance,
	})
	if err != nil {
		return nil, grpcErrors.MapDomainError(err)
	}

	return &api.OpenAccountResponse{
		Account: converter.AccountToAPI(account),
	}, nil
}

// GetAccount retrieves an account by ID
func (s *AccountServer) GetAccount(ctx context.Context, req *api.GetAccountRequest) (*api.GetAccountResponse, error) {
	account, err := s.accountUC.GetAccount(ctx, req.ID)
	if err != nil {
		return nil, grpcErrors.MapDomainError(err)
	}

	return &api.GetAccountResponse{
		Account: converter.AccountToAPI(account),
	}, nil
}

// ListAccounts lists accounts with pagination
func (s *AccountServer) ListAccounts(ctx context.Context, req *api.ListAccountsRequest) (*api.ListAccountsResponse, error) {
	limit := int(req.Limit)
	if limit <= 0 {
		limit = defaultPageSize
	}

	accounts, err := s.accountUC.ListAccounts(ctx, usecase.ListAccountsInput{
		Limit:  limit,
		Offset: int(req.Offset),
	})
	if err != nil {
		return nil, grpcErrors.MapDomainError(err)
	}

	return &api.ListAccountsResponse{
		Accounts: converter.AccountsToAPI(accounts),
	}, nil
}
