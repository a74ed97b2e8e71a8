package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	grpcerrors "github.com/iho/gotransfer/internal/adapter/grpc/errors"
	"github.com/iho/gotransfer/internal/usecase"
)

const (
	// IdempotencyKeyHeader is the metadata key for idempotency
	IdempotencyKeyHeader = "x-idempotency-key"
	// IdempotencyReplayHeader is set in the response header of a replayed call.
	IdempotencyReplayHeader = "x-idempotency-replay"

	defaultIdempotencyTTL = 24 * time.Hour
	maxIdempotencyKeyLen  = 255
)

// storedReply is what a key resolves to once its call has finished.
type storedReply struct {
	RequestHash string          `json:"request_hash"`
	Code        codes.Code      `json:"code"`
	Message     string          `json:"message,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
}

// IdempotencyInterceptor replays the outcome of a mutating call that already
// ran with the same x-idempotency-key. Methods in readOnly are passed through.
func IdempotencyInterceptor(store usecase.IdempotencyStore, ttl time.Duration, readOnly map[string]bool, logger zerolog.Logger) grpc.UnaryServerInterceptor {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}

	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if store == nil || readOnly[info.FullMethod] {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		keys := md.Get(IdempotencyKeyHeader)
		if len(keys) == 0 {
			return handler(ctx, req)
		}

		idempotencyKey := keys[0]
		if idempotencyKey == "" {
			return nil, status.Error(codes.InvalidArgument, "idempotency key cannot be empty")
		}
		if len(idempotencyKey) > maxIdempotencyKeyLen {
			return nil, status.Error(codes.InvalidArgument, "idempotency key too long")
		}

		owner := "anonymous"
		if caller, ok := CallerFromContext(ctx); ok && caller.AccountID != "" {
			owner = caller.AccountID
		}
		cacheKey := fmt.Sprintf("grpc:%s:%s:%s", owner, info.FullMethod, idempotencyKey)

		requestHash, err := hashRequest(req)
		if err != nil {
			return nil, status.Error(codes.Internal, "failed to generate request hash")
		}

		exists, cached, err := store.CheckAndSet(ctx, cacheKey, nil, ttl)
		if err != nil {
			logger.Error().Err(err).Str("idempotency_key", idempotencyKey).Msg("idempotency check failed")
			return nil, status.Error(codes.Unavailable, "idempotency check failed")
		}

		if exists {
			if cached == nil {
				return nil, status.Error(codes.Aborted, "request with this idempotency key is still being processed")
			}
			return replay(ctx, cached, requestHash)
		}

		resp, err := handler(ctx, req)

		// The client may be gone; the outcome still has to be recorded.
		storeCtx := context.WithoutCancel(ctx)

		code := status.Code(err)
		reply := storedReply{RequestHash: requestHash, Code: code}
		if err != nil {
			reply.Message = status.Convert(err).Message()
		} else {
			body, marshalErr := json.Marshal(resp)
			if marshalErr != nil {
				code = codes.Internal
			}
			reply.Body = body
		}

		if !cacheable(code) {
			if releaseErr := store.Release(storeCtx, cacheKey); releaseErr != nil {
				logger.Warn().Err(releaseErr).Str("idempotency_key", idempotencyKey).Msg("failed to release idempotency key")
			}
			return resp, err
		}

		payload, err := json.Marshal(reply)
		if err == nil {
			err = store.Update(storeCtx, cacheKey, payload, ttl)
		}
		if err != nil {
			logger.Warn().Err(err).Str("idempotency_key", idempotencyKey).Msg("failed to store idempotent response")
		}

		if code != codes.OK {
			return nil, status.Error(code, reply.Message)
		}
		return resp, nil
	}
}

// cacheable reports whether an outcome is final. Transient and internal
// failures release the key so the call can be retried.
func cacheable(code codes.Code) bool {
	if grpcerrors.Retryable(code) {
		return false
	}
	switch code {
	case codes.Internal, codes.Unknown, codes.Canceled, codes.Unauthenticated, codes.PermissionDenied:
		return false
	default:
		return true
	}
}

func replay(ctx context.Context, cached []byte, requestHash string) (any, error) {
	var reply storedReply
	if err := json.Unmarshal(cached, &reply); err != nil {
		return nil, status.Error(codes.Internal, "corrupt idempotency record")
	}

	if reply.RequestHash != requestHash {
		return nil, status.Error(codes.InvalidArgument, "idempotency key reused with different request body")
	}

	_ = grpc.SetHeader(ctx, metadata.Pairs(IdempotencyReplayHeader, "true"))

	if reply.Code != codes.OK {
		return nil, status.Error(reply.Code, reply.Message)
	}
	return reply.Body, nil
}

// hashRequest generates a SHA-256 hash of the request for fingerprinting
func hashRequest(req any) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}
