package server

import (
	"context"

	"github.com/iho/gotransfer/internal/adapter/grpc/api"
	"github.com/iho/gotransfer/internal/adapter/grpc/converter"
	grpcErrors "github.com/iho/gotransfer/internal/adapter/grpc/errors"
	"github.com/iho/gotransfer/internal/domain"
	"github.com/iho/gotransfer/internal/usecase"
)

// CompensationService lists compensations awaiting replay.
type CompensationService interface {
	ListPending(ctx context.Context, limit int) ([]*domain.Compensation, error)
}

// ReconciliationService reports on fund conservation.
type ReconciliationService interface {
	Report(ctx context.Context) (*usecase.ReconciliationReport, error)
	CheckConservation(ctx context.Context, expected int64) (*usecase.ReconciliationReport, error)
}

// OpsServer implements the gRPC OpsService
type OpsServer struct {
	compensationUC   CompensationService
	reconciliationUC ReconciliationService
}

var _ api.OpsServiceServer = (*OpsServer)(nil)

// NewOpsServer creates a new OpsServer
func NewOpsServer(compensationUC CompensationService, reconciliationUC ReconciliationService) *OpsServer {
	return &OpsServer{
		compensationUC:   compensationUC,
		reconciliationUC: reconciliationUC,
	}
}

// ListCompensations lists pending compensations, oldest first
func (s *OpsServer) ListCompensations(ctx context.Context, req *api.ListCompensationsRequest) (*api.ListCompensationsResponse, error) {
	limit := int(req.Limit)
	if limit <= 0 {
		limit = defaultPageSize
	}

	items, err := s.compensationUC.ListPending(ctx, limit)
	if err != nil {
		return nil, grpcErrors.MapDomainError(err)
	}

	return &api.ListCompensationsResponse{
		Compensations: converter.CompensationsToAPI(items),
	}, nil
}

// Reconcile reports the supply. With Expected set it also reports whether
// the supply matches.
func (s *OpsServer) Reconcile(ctx context.Context, req *api.ReconcileRequest) (*api.ReconcileResponse, error) {
	if req.Expected == nil {
		report, err := s.reconciliationUC.Report(ctx)
		if err != nil {
			return nil, grpcErrors.MapDomainError(err)
		}
		return converter.ReconciliationToAPI(report, nil), nil
	}

	report, err := s.reconciliationUC.CheckConservation(ctx, *req.Expected)
	if report == nil {
		return nil, grpcErrors.MapDomainError(err)
	}

	balanced := err == nil
	return converter.ReconciliationToAPI(report, &balanced), nil
}
