package server

import (
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/iho/gotransfer/internal/adapter/grpc/api"
	"github.com/iho/gotransfer/internal/adapter/grpc/middleware"
	"github.com/iho/gotransfer/internal/infrastructure/auth"
	"github.com/iho/gotransfer/internal/infrastructure/metrics"
	"github.com/iho/gotransfer/internal/usecase"
)

const maxMessageSize = 1 << 20

// Config wires the gRPC server.
type Config struct {
	Transfer       TransferService
	Accounts       AccountService
	Compensations  CompensationService
	Reconciliation ReconciliationService

	// IdempotencyStore may be nil.
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration

	// JWTManager enables bearer tokens; nil trusts x-account-id.
	JWTManager *auth.JWTManager
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
}

// Policy is the access each method requires.
var Policy = map[string]middleware.Access{
	api.TransferServiceTransfer:          middleware.AccessAccount,
	api.TransferServiceGetBalance:        middleware.AccessAccount,
	api.AccountServiceOpenAccount:        middleware.AccessAdmin,
	api.AccountServiceGetAccount:         middleware.AccessAdmin,
	api.AccountServiceListAccounts:       middleware.AccessAdmin,
	api.OpsServiceListCompensations:      middleware.AccessAdmin,
	api.OpsServiceReconcile:              middleware.AccessAdmin,
	healthpb.Health_Check_FullMethodName: middleware.AccessPublic,
}

// ReadOnly lists methods that never take an idempotency key.
var ReadOnly = map[string]bool{
	api.TransferServiceGetBalance:        true,
	api.AccountServiceGetAccount:         true,
	api.AccountServiceListAccounts:       true,
	api.OpsServiceListCompensations:      true,
	api.OpsServiceReconcile:              true,
	healthpb.Health_Check_FullMethodName: true,
}

// New builds a gRPC server with all services and the health service
// registered. The health server reports SERVING until Shutdown is called on it.
func New(cfg Config) (*grpc.Server, *health.Server) {
	var onAuthFailure func(string)
	interceptors := []grpc.UnaryServerInterceptor{
		middleware.RecoveryInterceptor(cfg.Logger),
		middleware.LoggingInterceptor(cfg.Logger),
	}
	if cfg.Metrics != nil {
		interceptors = append(interceptors, middleware.MetricsInterceptor(cfg.Metrics))
		onAuthFailure = func(reason string) { cfg.Metrics.AuthFailures.WithLabelValues(reason).Inc() }
	}
	interceptors = append(interceptors,
		middleware.AuthInterceptor(cfg.JWTManager, onAuthFailure),
		middleware.AuthorizeInterceptor(Policy, onAuthFailure),
		middleware.IdempotencyInterceptor(cfg.IdempotencyStore, cfg.IdempotencyTTL, ReadOnly, cfg.Logger),
	)

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(interceptors...),
		grpc.MaxRecvMsgSize(maxMessageSize),
	)

	api.RegisterTransferServiceServer(srv, NewTransferServer(cfg.Transfer, cfg.Logger))
	api.RegisterAccountServiceServer(srv, NewAccountServer(cfg.Accounts))
	api.RegisterOpsServiceServer(srv, NewOpsServer(cfg.Compensations, cfg.Reconciliation))

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	for _, name := range []string{api.TransferServiceName, api.AccountServiceName, api.OpsServiceName} {
		healthServer.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
	}
	healthpb.RegisterHealthServer(srv, healthServer)

	return srv, healthServer
}
