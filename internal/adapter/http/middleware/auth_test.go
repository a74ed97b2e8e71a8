package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/gotransfer/internal/infrastructure/auth"
)

func callerEcho(t *testing.T, got **Caller) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFromContext(r.Context())
		require.True(t, ok)
		*got = caller
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthenticate(t *testing.T) {
	manager := auth.NewJWTManager("test-secret", time.Hour)
	expired := auth.NewJWTManager("test-secret", -time.Hour)

	accountToken, err := manager.Generate("alice", auth.RoleAccount)
	require.NoError(t, err)
	adminToken, err := manager.Generate("", auth.RoleAdmin)
	require.NoError(t, err)
	expiredToken, err := expired.Generate("alice", auth.RoleAccount)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantReason string
		wantCaller *Caller
	}{
		{
			name:       "account token",
			header:     "Bearer " + accountToken,
			wantStatus: http.StatusNoContent,
			wantCaller: &Caller{AccountID: "alice"},
		},
		{
			name:       "admin token",
			header:     "Bearer " + adminToken,
			wantStatus: http.StatusNoContent,
			wantCaller: &Caller{Admin: true},
		},
		{
			name:       "missing header",
			wantStatus: http.StatusUnauthorized,
			wantReason: FailureMissingToken,
		},
		{
			name:       "wrong scheme",
			header:     "Basic abc",
			wantStatus: http.StatusUnauthorized,
			wantReason: FailureMalformed,
		},
		{
			name:       "garbage token",
			header:     "Bearer not-a-jwt",
			wantStatus: http.StatusUnauthorized,
			wantReason: FailureInvalidToken,
		},
		{
			name:       "expired token",
			header:     "Bearer " + expiredToken,
			wantStatus: http.StatusUnauthorized,
			wantReason: FailureExpiredToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reason string
			mw := NewAuthMiddleware(manager, func(r string) { reason = r })

			var got *Caller
			req := httptest.NewRequest(http.MethodGet, "/api/v1/account/balance", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			mw.Authenticate(callerEcho(t, &got)).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantReason, reason)
			assert.Equal(t, tt.wantCaller, got)
		})
	}
}

func TestRequireAccountAndAdmin(t *testing.T) {
	mw := NewAuthMiddleware(nil, nil)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	tests := []struct {
		name        string
		caller      *Caller
		accountWant int
		adminWant   int
	}{
		{name: "no caller", accountWant: http.StatusUnauthorized, adminWant: http.StatusUnauthorized},
		{name: "account caller", caller: &Caller{AccountID: "alice"}, accountWant: http.StatusNoContent, adminWant: http.StatusForbidden},
		{name: "admin without account", caller: &Caller{Admin: true}, accountWant: http.StatusUnauthorized, adminWant: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.caller != nil {
				req = req.WithContext(WithCaller(req.Context(), tt.caller))
			}

			rr := httptest.NewRecorder()
			mw.RequireAccount(ok).ServeHTTP(rr, req)
			assert.Equal(t, tt.accountWant, rr.Code)

			rr = httptest.NewRecorder()
			mw.RequireAdmin(ok).ServeHTTP(rr, req)
			assert.Equal(t, tt.adminWant, rr.Code)
		})
	}
}

func TestHeaderIdentity(t *testing.T) {
	var got *Caller
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(AccountIDHeader, " bob ")
	rr := httptest.NewRecorder()

	HeaderIdentity(callerEcho(t, &got)).ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, &Caller{AccountID: "bob", Admin: true}, got)
}
