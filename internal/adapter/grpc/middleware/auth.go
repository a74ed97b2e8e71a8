package middleware

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/iho/gotransfer/internal/infrastructure/auth"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// CallerContextKey is the context key for the authenticated caller
	CallerContextKey ContextKey = "caller"

	// AuthorizationHeader is the metadata key for authorization
	AuthorizationHeader = "authorization"
	// AccountIDHeader carries the caller when tokens are disabled.
	AccountIDHeader = "x-account-id"
)

// Access is the permission a method requires.
type Access int

const (
	// AccessAccount requires a caller bound to an account.
	AccessAccount Access = iota
	// AccessAdmin requires an admin caller.
	AccessAdmin
	// AccessPublic requires nothing.
	AccessPublic
)

// Caller is the authenticated principal of a call.
type Caller struct {
	AccountID string
	Admin     bool
}

// AuthInterceptor resolves the caller from metadata. With a JWT manager it
// verifies a bearer token; without one it trusts x-account-id and treats
// every caller as admin. onFailure may be nil.
func AuthInterceptor(jwtManager *auth.JWTManager, onFailure func(reason string)) grpc.UnaryServerInterceptor {
	fail := func(reason, msg string) error {
		if onFailure != nil {
			onFailure(reason)
		}
		return status.Error(codes.Unauthenticated, msg)
	}

	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)

		if jwtManager == nil {
			caller := &Caller{Admin: true}
			if values := md.Get(AccountIDHeader); len(values) > 0 {
				caller.AccountID = strings.TrimSpace(values[0])
			}
			return handler(WithCaller(ctx, caller), req)
		}

		values := md.Get(AuthorizationHeader)
		if len(values) == 0 {
			return handler(ctx, req)
		}

		scheme, token, ok := strings.Cut(values[0], " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return nil, fail("malformed_header", "malformed authorization header")
		}

		claims, err := jwtManager.Verify(token)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				return nil, fail("expired_token", "token expired")
			}
			return nil, fail("invalid_token", "invalid token")
		}

		return handler(WithCaller(ctx, &Caller{AccountID: claims.AccountID, Admin: claims.IsAdmin()}), req)
	}
}

// AuthorizeInterceptor enforces per-method access. Methods missing from
// policy require an account.
func AuthorizeInterceptor(policy map[string]Access, onFailure func(reason string)) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		access := policy[info.FullMethod]
		if access == AccessPublic {
			return handler(ctx, req)
		}

		caller, ok := CallerFromContext(ctx)
		if !ok {
			if onFailure != nil {
				onFailure("missing_token")
			}
			return nil, status.Error(codes.Unauthenticated, "missing authorization token")
		}

		switch access {
		case AccessAdmin:
			if !caller.Admin {
				if onFailure != nil {
					onFailure("not_permitted")
				}
				return nil, status.Error(codes.PermissionDenied, "insufficient permissions")
			}
		case AccessAccount:
			if caller.AccountID == "" {
				if onFailure != nil {
					onFailure("no_account")
				}
				return nil, status.Error(codes.Unauthenticated, "caller account required")
			}
		}

		return handler(ctx, req)
	}
}

// WithCaller stores the caller in ctx.
func WithCaller(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, CallerContextKey, caller)
}

// CallerFromContext extracts the authenticated caller from context
func CallerFromContext(ctx context.Context) (*Caller, bool) {
	caller, ok := ctx.Value(CallerContextKey).(*Caller)
	return caller, ok && caller != nil
}
