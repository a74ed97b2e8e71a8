package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	grpcServer "github.com/iho/gotransfer/internal/adapter/grpc/server"
	httpAdapter "github.com/iho/gotransfer/internal/adapter/http"
	"github.com/iho/gotransfer/internal/adapter/http/handler"
	"github.com/iho/gotransfer/internal/adapter/http/middleware"
	"github.com/iho/gotransfer/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/gotransfer/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/gotransfer/internal/adapter/repository/redis"
	"github.com/iho/gotransfer/internal/infrastructure/auth"
	"github.com/iho/gotransfer/internal/infrastructure/config"
	"github.com/iho/gotransfer/internal/infrastructure/eventpublisher"
	"github.com/iho/gotransfer/internal/infrastructure/idgen"
	"github.com/iho/gotransfer/internal/infrastructure/metrics"
	"github.com/iho/gotransfer/internal/infrastructure/postgres"
	"github.com/iho/gotransfer/internal/infrastructure/redis"
	"github.com/iho/gotransfer/internal/infrastructure/retry"
	"github.com/iho/gotransfer/internal/usecase"
)

// storage is the backend selected by STORAGE_DRIVER.
type storage struct {
	accounts      usecase.AccountRepository
	compensations usecase.CompensationQueue
	idempotency   usecase.IdempotencyStore
	checks        []handler.HealthCheck
	closers       []func()
}

func (s *storage) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*storage, error) {
	st := &storage{}

	redisClient, err := openRedis(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if redisClient != nil {
		st.closers = append(st.closers, func() { _ = redisClient.Close() })
		st.idempotency = redisRepo.NewIdempotencyStore(redisClient)
		st.checks = append(st.checks, handler.HealthCheck{
			Name: "redis",
			Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	switch cfg.StorageDriver {
	case config.StorageMemory:
		logger.Warn().Msg("using in-memory storage: balances are lost on restart")
		st.accounts = memory.NewAccountRepository()
		st.compensations = memory.NewCompensationRepository()

	case config.StorageRedis:
		st.accounts = redisRepo.NewAccountRepository(redisClient)
		st.compensations = redisRepo.NewCompensationRepository(redisClient)

	case config.StoragePostgres:
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, logger); err != nil {
			st.Close()
			return nil, err
		}

		pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
			DatabaseURL: cfg.DatabaseURL,
			MaxConns:    cfg.DatabaseMaxConns,
			MinConns:    cfg.DatabaseMinConns,
		})
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		logger.Info().Msg("connected to postgres")

		st.closers = append(st.closers, pool.Close)
		st.accounts = postgresRepo.NewAccountRepository(pool)
		st.compensations = postgresRepo.NewCompensationRepository(pool)
		st.checks = append([]handler.HealthCheck{{Name: "postgres", Ping: pool.Ping}}, st.checks...)

	default:
		st.Close()
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	return st, nil
}

// openRedis connects to Redis. The redis driver requires it; otherwise it
// only backs idempotency keys and a failure disables them.
func openRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*goredis.Client, error) {
	if cfg.RedisURL == "" {
		if cfg.StorageDriver == config.StorageRedis {
			return nil, fmt.Errorf("STORAGE_DRIVER=redis requires REDIS_URL")
		}
		return nil, nil
	}

	client, err := redis.NewClient(ctx, redis.ClientConfig{
		URL:          cfg.RedisURL,
		PoolSize:     cfg.RedisPoolSize,
		DialTimeout:  cfg.RedisDialTimeout,
		ReadTimeout:  cfg.RedisReadTimeout,
		WriteTimeout: cfg.RedisWriteTimeout,
	})
	if err != nil {
		if cfg.StorageDriver == config.StorageRedis {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Warn().Err(err).Msg("redis unavailable: idempotency keys disabled")
		return nil, nil
	}

	logger.Info().Msg("connected to redis")
	return client, nil
}

type eventSink struct {
	publisher usecase.EventPublisher
	check     *handler.HealthCheck
	close     func()
}

func newPublisher(cfg *config.Config, logger zerolog.Logger) (*eventSink, error) {
	if cfg.NATSURL == "" {
		return &eventSink{
			publisher: eventpublisher.NewLogPublisher(logger),
			close:     func() {},
		}, nil
	}

	nats, err := eventpublisher.NewNATSPublisher(eventpublisher.NATSConfig{
		URL:    cfg.NATSURL,
		Name:   cfg.ServiceName,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	logger.Info().Str("url", cfg.NATSURL).Msg("connected to NATS")

	return &eventSink{
		publisher: nats,
		check:     &handler.HealthCheck{Name: "nats", Ping: nats.Ping},
		close: func() {
			if err := nats.Close(); err != nil {
				logger.Warn().Err(err).Msg("failed to drain NATS connection")
			}
		},
	}, nil
}

type app struct {
	server         *http.Server
	grpcServer     *grpc.Server
	grpcHealth     *health.Server
	transferUC     *usecase.TransferUseCase
	compensationUC *usecase.CompensationUseCase
	rateLimiter    *middleware.RateLimiter
}

func newApp(cfg *config.Config, logger zerolog.Logger, st *storage, publisher usecase.EventPublisher, registry *prometheus.Registry) *app {
	m := metrics.New(registry)
	idGen := idgen.NewULIDGenerator()

	storeRetrier := retry.New(retry.Config{
		Name:            "store",
		MaxRetries:      cfg.StoreRetryMax,
		InitialInterval: cfg.StoreRetryInitialInterval,
		MaxInterval:     cfg.StoreRetryMaxInterval,
		MaxElapsedTime:  cfg.StoreRetryMaxElapsed,
		Logger:          logger,
		OnRetry:         m.ObserveStoreRetry,
	})
	compensationRetrier := retry.New(retry.Config{
		Name:            "compensation",
		MaxRetries:      cfg.CompensationRetryMax,
		InitialInterval: cfg.StoreRetryInitialInterval,
		MaxInterval:     cfg.StoreRetryMaxInterval,
		MaxElapsedTime:  cfg.CompensationRetryMaxElapsed,
		Logger:          logger,
		OnRetry:         m.ObserveStoreRetry,
	})

	// Initialize use cases
	transferUC := usecase.NewTransferUseCase(usecase.TransferConfig{
		Store:               st.accounts,
		Compensations:       st.compensations,
		Publisher:           publisher,
		IDGen:               idGen,
		Recorder:            m,
		Logger:              logger.With().Str("component", "transfer").Logger(),
		StoreRetrier:        storeRetrier,
		CompensationRetrier: compensationRetrier,
		CompletionTimeout:   cfg.TransferCompletionTimeout,
	})
	compensationUC := usecase.NewCompensationUseCase(usecase.CompensationConfig{
		Store:         st.accounts,
		Compensations: st.compensations,
		Publisher:     publisher,
		IDGen:         idGen,
		Recorder:      m,
		Logger:        logger.With().Str("component", "compensation").Logger(),
		BatchSize:     cfg.CompensationBatchSize,
		Interval:      cfg.CompensationWorkerInterval,
		EscalateAfter: cfg.CompensationEscalateAfter,
	})
	accountUC := usecase.NewAccountUseCase(st.accounts, idGen)
	reconciliationUC := usecase.NewReconciliationUseCase(st.accounts, st.compensations)

	routerCfg := httpAdapter.RouterConfig{
		TransferHandler:       handler.NewTransferHandler(transferUC, logger),
		AccountHandler:        handler.NewAccountHandler(accountUC),
		CompensationHandler:   handler.NewCompensationHandler(compensationUC),
		ReconciliationHandler: handler.NewReconciliationHandler(reconciliationUC),
		HealthHandler:         handler.NewHealthHandler(st.checks...),
		IdempotencyStore:      st.idempotency,
		IdempotencyTTL:        cfg.IdempotencyTTL,
		Metrics:               m,
		MetricsHandler:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Logger:                logger,
	}

	var jwtManager *auth.JWTManager
	if cfg.AuthEnabled {
		jwtManager = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
		routerCfg.JWTManager = jwtManager
		routerCfg.AuthHandler = handler.NewAuthHandler(jwtManager, cfg.JWTExpiration)
	}

	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m.RateLimitHits.Inc)
		routerCfg.RateLimiter = rateLimiter
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      httpAdapter.NewRouter(routerCfg),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	a := &app{
		server:         server,
		transferUC:     transferUC,
		compensationUC: compensationUC,
		rateLimiter:    rateLimiter,
	}

	if cfg.GRPCEnabled {
		a.grpcServer, a.grpcHealth = grpcServer.New(grpcServer.Config{
			Transfer:         transferUC,
			Accounts:         accountUC,
			Compensations:    compensationUC,
			Reconciliation:   reconciliationUC,
			IdempotencyStore: st.idempotency,
			IdempotencyTTL:   cfg.IdempotencyTTL,
			JWTManager:       jwtManager,
			Metrics:          m,
			Logger:           logger.With().Str("transport", "grpc").Logger(),
		})
	}

	return a
}

// stopGRPC marks the health service NOT_SERVING and drains in-flight calls.
func (a *app) stopGRPC() {
	if a.grpcServer == nil {
		return
	}
	a.grpcHealth.Shutdown()
	a.grpcServer.GracefulStop()
}
