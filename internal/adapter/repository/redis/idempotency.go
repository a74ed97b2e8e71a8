package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const processingMarker = "processing"

// KEYS[1] idempotency key. ARGV: value, ttl in milliseconds.
// Returns the stored value, or nil after storing ARGV[1].
var checkAndSetScript = redis.NewScript(`
local existing = redis.call('GET', KEYS[1])
if existing then
  return existing
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return false
`)

// IdempotencyStore implements usecase.IdempotencyStore using Redis.
type IdempotencyStore struct {
	client *redis.Client
	prefix string
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{
		client: client,
		prefix: defaultPrefix + "idempotency:",
	}
}

// CheckAndSet atomically claims key. When the key is already held it
// reports true together with the stored value, which is nil while the
// first request is still being processed.
func (s *IdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	value := response
	if value == nil {
		value = []byte(processingMarker)
	}

	existing, err := checkAndSetScript.Run(ctx, s.client,
		[]string{s.prefix + key},
		value, ttl.Milliseconds(),
	).Text()
	if errors.Is(err, redis.Nil) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, classify("idempotency check", err)
	}

	if existing == processingMarker {
		return true, nil, nil
	}

	return true, []byte(existing), nil
}

// Update stores the final response for key.
func (s *IdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	return classify("idempotency update", s.client.Set(ctx, s.prefix+key, response, ttl).Err())
}

// Release drops a claim so the request can be retried.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return classify("idempotency release", s.client.Del(ctx, s.prefix+key).Err())
}
