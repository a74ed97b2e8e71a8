package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/gotransfer/internal/domain"
	"github.com/iho/gotransfer/internal/usecase"
)

var _ usecase.AccountRepository = (*AccountRepository)(nil)

const (
	createAccountSQL = `INSERT INTO accounts (id, balance, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)`

	getAccountSQL = `SELECT id, balance, version, created_at, updated_at
FROM accounts WHERE id = $1`

	// The balance guard makes check-and-decrement a single atomic statement.
	conditionalDebitSQL = `UPDATE accounts
SET balance = balance - $2, version = version + 1, updated_at = $3
WHERE id = $1 AND balance >= $2`

	creditSQL = `UPDATE accounts
SET balance = balance + $2, version = version + 1, updated_at = $3
WHERE id = $1`

	accountExistsSQL = `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`

	listAccountsSQL = `SELECT id, balance, version, created_at, updated_at
FROM accounts ORDER BY id LIMIT $1 OFFSET $2`

	deleteAccountSQL = `DELETE FROM accounts WHERE id = $1`

	totalBalanceSQL = `SELECT COALESCE(SUM(balance), 0)::BIGINT FROM accounts`
)

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	pool pgxPool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return newAccountRepositoryWithPool(pool)
}

func newAccountRepositoryWithPool(pool pgxPool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create creates a new account.
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	_, err := r.pool.Exec(ctx, createAccountSQL,
		account.ID,
		account.Balance,
		account.Version,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		switch pgCode(err) {
		case pgErrUniqueViolation:
			return domain.ErrAccountExists
		case pgErrCheckViolation:
			return domain.ErrInvalidAmount
		}
		return classify("create account", err)
	}

	return nil
}

// Get retrieves an account by ID.
func (r *AccountRepository) Get(ctx context.Context, id string) (*domain.Account, error) {
	account, err := scanAccount(r.pool.QueryRow(ctx, getAccountSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, classify("get account", err)
	}

	return account, nil
}

// ConditionalDebit subtracts amount if the balance covers it.
func (r *AccountRepository) ConditionalDebit(ctx context.Context, id string, amount int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, conditionalDebitSQL, id, amount, time.Now().UTC())
	if err != nil {
		return false, classify("debit account", err)
	}

	if tag.RowsAffected() == 1 {
		return true, nil
	}

	exists, err := r.exists(ctx, id)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, domain.ErrAccountNotFound
	}

	return false, nil
}

// Credit adds amount to the balance.
func (r *AccountRepository) Credit(ctx context.Context, id string, amount int64) error {
	tag, err := r.pool.Exec(ctx, creditSQL, id, amount, time.Now().UTC())
	if err != nil {
		if pgCode(err) == pgErrNumericOutOfRange {
			return domain.ErrBalanceOverflow
		}
		return classify("credit account", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}

	return nil
}

// Delete removes an account.
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteAccountSQL, id)
	if err != nil {
		return classify("delete account", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}

	return nil
}

// List lists accounts ordered by ID.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	rows, err := r.pool.Query(ctx, listAccountsSQL, limit, offset)
	if err != nil {
		return nil, classify("list accounts", err)
	}
	defer rows.Close()

	accounts := make([]*domain.Account, 0, limit)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, classify("scan account", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("list accounts", err)
	}

	return accounts, nil
}

// TotalBalance sums all balances.
func (r *AccountRepository) TotalBalance(ctx context.Context) (int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, totalBalanceSQL).Scan(&total); err != nil {
		return 0, classify("total balance", err)
	}

	return total, nil
}

func (r *AccountRepository) exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, accountExistsSQL, id).Scan(&exists); err != nil {
		return false, classify("account exists", err)
	}

	return exists, nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	if err := row.Scan(&a.ID, &a.Balance, &a.Version, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}

	return &a, nil
}
