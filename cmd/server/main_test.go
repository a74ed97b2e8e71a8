package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/gotransfer/internal/adapter/http/middleware"
	"github.com/iho/gotransfer/internal/domain"
	"github.com/iho/gotransfer/internal/infrastructure/config"
	"github.com/iho/gotransfer/internal/infrastructure/eventpublisher"
)

func testConfig(driver string) *config.Config {
	return &config.Config{
		ServiceName:                 "gotransfer-test",
		StorageDriver:               driver,
		HTTPPort:                    "0",
		HTTPShutdownTimeout:         time.Second,
		IdempotencyTTL:              time.Minute,
		StoreRetryMax:               1,
		StoreRetryInitialInterval:   time.Millisecond,
		StoreRetryMaxInterval:       time.Millisecond,
		StoreRetryMaxElapsed:        100 * time.Millisecond,
		CompensationRetryMax:        2,
		CompensationRetryMaxElapsed: 100 * time.Millisecond,
		CompensationWorkerInterval:  time.Second,
		CompensationBatchSize:       10,
		CompensationEscalateAfter:   3,
		TransferCompletionTimeout:   time.Second,
	}
}

func serve(t *testing.T, h http.Handler, method, path, account, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if account != "" {
		req.Header.Set(middleware.AccountIDHeader, account)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestOpenStorage_Memory(t *testing.T) {
	st, err := openStorage(context.Background(), testConfig(config.StorageMemory), zerolog.Nop())
	require.NoError(t, err)
	defer st.Close()

	assert.NotNil(t, st.accounts)
	assert.NotNil(t, st.compensations)
	assert.Nil(t, st.idempotency)
	assert.Empty(t, st.checks)
}

func TestOpenStorage_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(config.StorageRedis)
	cfg.RedisURL = "redis://" + mr.Addr()

	st, err := openStorage(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.accounts.Create(context.Background(), &domain.Account{ID: "A", Balance: 10}))
	assert.NotNil(t, st.idempotency)
	require.Len(t, st.checks, 1)
	assert.Equal(t, "redis", st.checks[0].Name)
}

func TestOpenRedis_AppliesClientConfig(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(config.StorageMemory)
	cfg.RedisURL = "redis://" + mr.Addr()
	cfg.RedisPoolSize = 4
	cfg.RedisReadTimeout = 750 * time.Millisecond

	client, err := openRedis(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()

	assert.Equal(t, 4, client.Options().PoolSize)
	assert.Equal(t, 750*time.Millisecond, client.Options().ReadTimeout)
}

func TestOpenStorage_RedisRequiresURL(t *testing.T) {
	_, err := openStorage(context.Background(), testConfig(config.StorageRedis), zerolog.Nop())
	assert.Error(t, err)
}

func TestNewPublisher_DefaultsToLog(t *testing.T) {
	sink, err := newPublisher(testConfig(config.StorageMemory), zerolog.Nop())
	require.NoError(t, err)
	defer sink.close()

	assert.IsType(t, &eventpublisher.LogPublisher{}, sink.publisher)
	assert.Nil(t, sink.check)
}

func TestNewApp_EndToEnd(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(config.StorageRedis)
	cfg.RedisURL = "redis://" + mr.Addr()

	st, err := openStorage(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer st.Close()

	a := newApp(cfg, zerolog.Nop(), st, eventpublisher.NewLogPublisher(zerolog.Nop()), prometheus.NewRegistry())
	h := a.server.Handler

	rec := serve(t, h, http.MethodPost, "/api/v1/accounts", "", `{"id":"A","initial_balance":500}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = serve(t, h, http.MethodPost, "/api/v1/accounts", "", `{"id":"B","initial_balance":300}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = serve(t, h, http.MethodPost, "/api/v1/account/transfer", "A", `{"amount":150,"to":"B"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(t, h, http.MethodGet, "/api/v1/account/balance", "B", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"balance":450}`, rec.Body.String())

	rec = serve(t, h, http.MethodGet, "/api/v1/reconciliation?expected=800", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"balanced":true`)

	rec = serve(t, h, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `gotransfer_transfers_total{status="success"} 1`)

	require.NoError(t, a.transferUC.Wait(context.Background()))
}

func TestNewApp_AuthAndRateLimit(t *testing.T) {
	cfg := testConfig(config.StorageMemory)
	cfg.AuthEnabled = true
	cfg.JWTSecret = "secret"
	cfg.JWTExpiration = time.Hour
	cfg.RateLimitRPS = 1
	cfg.RateLimitBurst = 1

	st, err := openStorage(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer st.Close()

	a := newApp(cfg, zerolog.Nop(), st, nil, prometheus.NewRegistry())
	require.NotNil(t, a.rateLimiter)

	rec := serve(t, a.server.Handler, http.MethodGet, "/api/v1/account/balance", "A", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNewApp_GRPC(t *testing.T) {
	cfg := testConfig(config.StorageMemory)

	st, err := openStorage(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer st.Close()

	a := newApp(cfg, zerolog.Nop(), st, nil, prometheus.NewRegistry())
	assert.Nil(t, a.grpcServer)
	a.stopGRPC()

	cfg.GRPCEnabled = true
	a = newApp(cfg, zerolog.Nop(), st, nil, prometheus.NewRegistry())
	require.NotNil(t, a.grpcServer)
	require.NotNil(t, a.grpcHealth)

	info := a.grpcServer.GetServiceInfo()
	assert.Contains(t, info, "gotransfer.v1.TransferService")
	assert.Contains(t, info, "gotransfer.v1.AccountService")
	assert.Contains(t, info, "gotransfer.v1.OpsService")
	assert.Contains(t, info, "grpc.health.v1.Health")

	a.stopGRPC()
}
