package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iho/gotransfer/internal/domain"
	"github.com/iho/gotransfer/internal/usecase"
)

var _ usecase.AccountRepository = (*AccountRepository)(nil)

// KEYS[1] account hash, KEYS[2] account index. ARGV: id, balance, timestamp.
var createAccountScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'balance', ARGV[2], 'version', 0, 'created_at', ARGV[3], 'updated_at', ARGV[3])
redis.call('ZADD', KEYS[2], 0, ARGV[1])
return 1
`)

// KEYS[1] account hash. ARGV: amount, timestamp.
// Returns -1 if the account is missing, 0 if the balance is short, 1 if applied.
// HINCRBY is exact on int64, so the debit is applied first and undone when it
// leaves the balance negative. Lua numbers are doubles and lose precision
// above 2^53.
var conditionalDebitScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
local after = redis.call('HINCRBY', KEYS[1], 'balance', '-' .. ARGV[1])
if after < 0 then
  redis.call('HINCRBY', KEYS[1], 'balance', ARGV[1])
  return 0
end
redis.call('HINCRBY', KEYS[1], 'version', 1)
redis.call('HSET', KEYS[1], 'updated_at', ARGV[2])
return 1
`)

// KEYS[1] account hash. ARGV: amount, timestamp.
// Returns -1 if the account is missing, -2 if the balance would overflow.
var creditScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
local res = redis.pcall('HINCRBY', KEYS[1], 'balance', ARGV[1])
if type(res) == 'table' and res.err then
  return -2
end
redis.call('HINCRBY', KEYS[1], 'version', 1)
redis.call('HSET', KEYS[1], 'updated_at', ARGV[2])
return 1
`)

// KEYS[1] account hash, KEYS[2] account index. ARGV: id.
var deleteAccountScript = redis.NewScript(`
local removed = redis.call('DEL', KEYS[1])
redis.call('ZREM', KEYS[2], ARGV[1])
return removed
`)

// AccountRepository stores each account as a hash. Balance changes run as
// Lua scripts, which Redis executes atomically.
type AccountRepository struct {
	client *redis.Client
	prefix string
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(client *redis.Client) *AccountRepository {
	return &AccountRepository{
		client: client,
		prefix: defaultPrefix,
	}
}

func (r *AccountRepository) accountKey(id string) string {
	return r.prefix + "account:" + id
}

func (r *AccountRepository) indexKey() string {
	return r.prefix + "accounts"
}

// Create creates a new account.
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	created, err := createAccountScript.Run(ctx, r.client,
		[]string{r.accountKey(account.ID), r.indexKey()},
		account.ID, account.Balance, formatTime(account.CreatedAt),
	).Int64()
	if err != nil {
		return classify("create account", err)
	}

	if created == 0 {
		return domain.ErrAccountExists
	}

	return nil
}

// Get retrieves an account by ID.
func (r *AccountRepository) Get(ctx context.Context, id string) (*domain.Account, error) {
	fields, err := r.client.HGetAll(ctx, r.accountKey(id)).Result()
	if err != nil {
		return nil, classify("get account", err)
	}

	if len(fields) == 0 {
		return nil, domain.ErrAccountNotFound
	}

	return parseAccount(id, fields)
}

// ConditionalDebit subtracts amount if the balance covers it.
func (r *AccountRepository) ConditionalDebit(ctx context.Context, id string, amount int64) (bool, error) {
	res, err := conditionalDebitScript.Run(ctx, r.client,
		[]string{r.accountKey(id)},
		amount, formatTime(time.Now()),
	).Int64()
	if err != nil {
		return false, classify("debit account", err)
	}

	switch res {
	case -1:
		return false, domain.ErrAccountNotFound
	case 0:
		return false, nil
	default:
		return true, nil
	}
}

// Credit adds amount to the balance.
func (r *AccountRepository) Credit(ctx context.Context, id string, amount int64) error {
	res, err := creditScript.Run(ctx, r.client,
		[]string{r.accountKey(id)},
		amount, formatTime(time.Now()),
	).Int64()
	if err != nil {
		return classify("credit account", err)
	}

	switch res {
	case -1:
		return domain.ErrAccountNotFound
	case -2:
		return domain.ErrBalanceOverflow
	default:
		return nil
	}
}

// Delete removes an account.
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	removed, err := deleteAccountScript.Run(ctx, r.client,
		[]string{r.accountKey(id), r.indexKey()},
		id,
	).Int64()
	if err != nil {
		return classify("delete account", err)
	}

	if removed == 0 {
		return domain.ErrAccountNotFound
	}

	return nil
}

// List lists accounts ordered by ID.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	ids, err := r.client.ZRange(ctx, r.indexKey(), int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, classify("list accounts", err)
	}

	return r.load(ctx, ids)
}

// TotalBalance sums all balances. The sum is not a point-in-time snapshot.
func (r *AccountRepository) TotalBalance(ctx context.Context) (int64, error) {
	ids, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return 0, classify("total balance", err)
	}

	if len(ids) == 0 {
		return 0, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGet(ctx, r.accountKey(id), "balance")
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, classify("total balance", err)
	}

	var total int64
	for _, cmd := range cmds {
		balance, err := cmd.Int64()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return 0, classify("total balance", err)
		}
		total += balance
	}

	return total, nil
}

func (r *AccountRepository) load(ctx context.Context, ids []string) ([]*domain.Account, error) {
	accounts := make([]*domain.Account, 0, len(ids))
	if len(ids) == 0 {
		return accounts, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, r.accountKey(id))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, classify("load accounts", err)
	}

	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}

		account, err := parseAccount(ids[i], fields)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	return accounts, nil
}

func parseAccount(id string, fields map[string]string) (*domain.Account, error) {
	balance, err := strconv.ParseInt(fields["balance"], 10, 64)
	if err != nil {
		return nil, err
	}

	version, _ := strconv.ParseInt(fields["version"], 10, 64)

	return &domain.Account{
		ID:        id,
		Balance:   balance,
		Version:   version,
		CreatedAt: parseTime(fields["created_at"]),
		UpdatedAt: parseTime(fields["updated_at"]),
	}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
