package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iho/gotransfer/internal/domain"
	"github.com/iho/gotransfer/internal/usecase"
)

var _ usecase.CompensationQueue = (*CompensationRepository)(nil)

// KEYS: entry hash, pending set, pending amount counter.
// ARGV: id, transfer_id, account_id, to_account_id, amount, attempts,
// last_error, created_at, score.
var enqueueCompensationScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1],
  'transfer_id', ARGV[2], 'account_id', ARGV[3], 'to_account_id', ARGV[4],
  'amount', ARGV[5], 'attempts', ARGV[6], 'last_error', ARGV[7],
  'created_at', ARGV[8], 'updated_at', ARGV[8])
redis.call('ZADD', KEYS[2], ARGV[9], ARGV[1])
redis.call('INCRBY', KEYS[3], ARGV[5])
return 1
`)

// KEYS: entry hash. ARGV: last_error, updated_at.
var recordCompensationAttemptScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HINCRBY', KEYS[1], 'attempts', 1)
redis.call('HSET', KEYS[1], 'last_error', ARGV[1], 'updated_at', ARGV[2])
return 1
`)

// KEYS: entry hash, pending set, pending amount counter. ARGV: id, resolved_at.
var resolveCompensationScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
if redis.call('ZREM', KEYS[2], ARGV[1]) == 1 then
  redis.call('DECRBY', KEYS[3], redis.call('HGET', KEYS[1], 'amount'))
end
redis.call('HINCRBY', KEYS[1], 'attempts', 1)
redis.call('HSET', KEYS[1], 'last_error', '', 'updated_at', ARGV[2], 'resolved_at', ARGV[2])
return 1
`)

// CompensationRepository keeps compensations as hashes with a sorted set of
// unresolved IDs ordered by creation time.
type CompensationRepository struct {
	client *redis.Client
	prefix string
}

// NewCompensationRepository creates a new CompensationRepository.
func NewCompensationRepository(client *redis.Client) *CompensationRepository {
	return &CompensationRepository{
		client: client,
		prefix: defaultPrefix,
	}
}

func (r *CompensationRepository) entryKey(id string) string {
	return r.prefix + "compensation:" + id
}

func (r *CompensationRepository) pendingKey() string {
	return r.prefix + "compensations:pending"
}

func (r *CompensationRepository) pendingAmountKey() string {
	return r.prefix + "compensations:pending_amount"
}

// Enqueue records a compensation. Re-enqueueing an ID is a no-op.
func (r *CompensationRepository) Enqueue(ctx context.Context, c *domain.Compensation) error {
	err := enqueueCompensationScript.Run(ctx, r.client,
		[]string{r.entryKey(c.ID), r.pendingKey(), r.pendingAmountKey()},
		c.ID,
		c.TransferID,
		c.AccountID,
		c.ToAccountID,
		c.Amount,
		c.Attempts,
		c.LastError,
		formatTime(c.CreatedAt),
		c.CreatedAt.UnixMilli(),
	).Err()

	return classify("enqueue compensation", err)
}

// ListPending returns unresolved compensations, oldest first.
func (r *CompensationRepository) ListPending(ctx context.Context, limit int) ([]*domain.Compensation, error) {
	ids, err := r.client.ZRange(ctx, r.pendingKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, classify("list compensations", err)
	}

	pending := make([]*domain.Compensation, 0, len(ids))
	if len(ids) == 0 {
		return pending, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, r.entryKey(id))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, classify("list compensations", err)
	}

	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		pending = append(pending, parseCompensation(ids[i], fields))
	}

	return pending, nil
}

// RecordAttempt increments the attempt counter.
func (r *CompensationRepository) RecordAttempt(ctx context.Context, id, lastError string, at time.Time) error {
	ok, err := recordCompensationAttemptScript.Run(ctx, r.client,
		[]string{r.entryKey(id)},
		lastError, formatTime(at),
	).Int64()
	if err != nil {
		return classify("record compensation attempt", err)
	}

	if ok == 0 {
		return domain.ErrCompensationNotFound
	}

	return nil
}

// MarkResolved marks a compensation as applied.
func (r *CompensationRepository) MarkResolved(ctx context.Context, id string, at time.Time) error {
	ok, err := resolveCompensationScript.Run(ctx, r.client,
		[]string{r.entryKey(id), r.pendingKey(), r.pendingAmountKey()},
		id, formatTime(at),
	).Int64()
	if err != nil {
		return classify("resolve compensation", err)
	}

	if ok == 0 {
		return domain.ErrCompensationNotFound
	}

	return nil
}

// PendingTotal returns the number and total amount of unresolved entries.
func (r *CompensationRepository) PendingTotal(ctx context.Context) (int, int64, error) {
	pipe := r.client.Pipeline()
	count := pipe.ZCard(ctx, r.pendingKey())
	amount := pipe.Get(ctx, r.pendingAmountKey())

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return 0, 0, classify("pending compensations", err)
	}

	total, err := amount.Int64()
	if err != nil && err != redis.Nil {
		return 0, 0, classify("pending compensations", err)
	}

	return int(count.Val()), total, nil
}

func parseCompensation(id string, fields map[string]string) *domain.Compensation {
	amount, _ := strconv.ParseInt(fields["amount"], 10, 64)
	attempts, _ := strconv.Atoi(fields["attempts"])

	c := &domain.Compensation{
		ID:          id,
		TransferID:  fields["transfer_id"],
		AccountID:   fields["account_id"],
		ToAccountID: fields["to_account_id"],
		Amount:      amount,
		Attempts:    attempts,
		LastError:   fields["last_error"],
		CreatedAt:   parseTime(fields["created_at"]),
		UpdatedAt:   parseTime(fields["updated_at"]),
	}

	if resolved, ok := fields["resolved_at"]; ok && resolved != "" {
		at := parseTime(resolved)
		c.ResolvedAt = &at
	}

	return c
}
