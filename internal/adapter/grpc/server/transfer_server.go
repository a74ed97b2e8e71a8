package server

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/iho/gotransfer/internal/adapter/grpc/api"
	"github.com/iho/gotransfer/internal/adapter/grpc/converter"
	grpcErrors "github.com/iho/gotransfer/internal/adapter/grpc/errors"
	"github.com/iho/gotransfer/internal/adapter/grpc/middleware"
	"github.com/iho/gotransfer/internal/domain"
)

// TransferService is the transfer behavior the server needs.
type TransferService interface {
	Transfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error)
	GetBalance(ctx context.Context, accountID string) (int64, error)
}

// TransferServer implements the gRPC TransferService for the caller's account.
type TransferServer struct {
	transferUC TransferService
	logger     zerolog.Logger
}

var _ api.TransferServiceServer = (*TransferServer)(nil)

// NewTransferServer creates a new TransferServer
func NewTransferServer(transferUC TransferService, logger zerolog.Logger) *TransferServer {
	return &TransferServer{
		transferUC: transferUC,
		logger:     logger,
	}
}

// Transfer moves funds from the caller to req.To. A transfer still
// completing after the call's deadline is reported with status in_flight.
func (s *TransferServer) Transfer(ctx context.Context, req *api.TransferRequest) (*api.TransferResponse, error) {
	caller, err := callerAccount(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.transferUC.Transfer(ctx, converter.TransferRequestFromAPI(caller, req))
	if err != nil && !errors.Is(err, domain.ErrTransferInFlight) {
		if result != nil {
			s.logger.Info().
				Str("transfer_id", result.TransferID).
				Str("status", string(result.Status)).
				Msg("transfer rejected")
		}
		return nil, grpcErrors.MapDomainError(err)
	}

	return converter.TransferResultToAPI(result), nil
}

// GetBalance returns the caller's balance.
func (s *TransferServer) GetBalance(ctx context.Context, _ *api.GetBalanceRequest) (*api.GetBalanceResponse, error) {
	caller, err := callerAccount(ctx)
	if err != nil {
		return nil, err
	}

	balance, err := s.transferUC.GetBalance(ctx, caller)
	if err != nil {
		return nil, grpcErrors.MapDomainError(err)
	}

	return &api.GetBalanceResponse{Balance: balance}, nil
}

func callerAccount(ctx context.Context) (string, error) {
	caller, ok := middleware.CallerFromContext(ctx)
	if !ok || caller.AccountID == "" {
		return "", status.Error(codes.Unauthenticated, "caller account required")
	}
	return caller.AccountID, nil
}
