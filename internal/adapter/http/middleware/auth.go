package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/iho/gotransfer/internal/infrastructure/auth"
)

// AccountIDHeader carries the caller account when token auth is disabled.
const AccountIDHeader = "X-Account-ID"

// Auth failure reasons reported to the failure callback.
const (
	FailureMissingToken = "missing_token"
	FailureMalformed    = "malformed_header"
	FailureInvalidToken = "invalid_token"
	FailureExpiredToken = "expired_token"
	FailureNoAccount    = "no_account"
	FailureNotPermitted = "not_permitted"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// CallerContextKey is the context key for the authenticated caller
	CallerContextKey ContextKey = "caller"
)

// Caller is the identity a request acts as.
type Caller struct {
	AccountID string
	Admin     bool
}

// WithCaller returns a copy of ctx carrying caller.
func WithCaller(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, CallerContextKey, caller)
}

// CallerFromContext extracts the caller from context
func CallerFromContext(ctx context.Context) (*Caller, bool) {
	caller, ok := ctx.Value(CallerContextKey).(*Caller)
	return caller, ok && caller != nil
}

// AuthMiddleware authenticates requests with bearer tokens.
type AuthMiddleware struct {
	jwtManager *auth.JWTManager
	onFailure  func(reason string)
}

// NewAuthMiddleware creates an AuthMiddleware. onFailure may be nil.
func NewAuthMiddleware(jwtManager *auth.JWTManager, onFailure func(reason string)) *AuthMiddleware {
	if onFailure == nil {
		onFailure = func(string) {}
	}
	return &AuthMiddleware{jwtManager: jwtManager, onFailure: onFailure}
}

// Authenticate requires a valid bearer token and stores its caller in the
// request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.reject(w, FailureMissingToken, http.StatusUnauthorized, "missing authorization header")
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			m.reject(w, FailureMalformed, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		claims, err := m.jwtManager.Verify(token)
		if err != nil {
			reason := FailureInvalidToken
			if errors.Is(err, auth.ErrExpiredToken) {
				reason = FailureExpiredToken
			}
			m.reject(w, reason, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		caller := &Caller{AccountID: claims.AccountID, Admin: claims.IsAdmin()}
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

// RequireAccount rejects callers without an account.
func (m *AuthMiddleware) RequireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFromContext(r.Context())
		if !ok || caller.AccountID == "" {
			m.reject(w, FailureNoAccount, http.StatusUnauthorized, "caller account required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects callers without the admin role.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFromContext(r.Context())
		if !ok {
			m.reject(w, FailureNoAccount, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !caller.Admin {
			m.reject(w, FailureNotPermitted, http.StatusForbidden, "insufficient permissions")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *AuthMiddleware) reject(w http.ResponseWriter, reason string, status int, message string) {
	m.onFailure(reason)

	code := "unauthorized"
	if status == http.StatusForbidden {
		code = "forbidden"
	}
	writeError(w, status, code, message)
}

// HeaderIdentity trusts the X-Account-ID header. It is used when token auth
// is disabled, so every caller is also treated as admin.
func HeaderIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := &Caller{
			AccountID: strings.TrimSpace(r.Header.Get(AccountIDHeader)),
			Admin:     true,
		}
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}
