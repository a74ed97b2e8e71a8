package dto

import (
	"time"

	"github.com/iho/gotransfer/internal/domain"
	"github.com/iho/gotransfer/internal/usecase"
)

// BalanceResponse is returned by GET /account/balance.
type BalanceResponse struct {
	Balance int64 `json:"balance"`
}

// TransferResponse is returned by POST /account/transfer.
type TransferResponse struct {
	Message    string                `json:"message"`
	TransferID string                `json:"transfer_id"`
	Status     domain.TransferStatus `json:"status"`
}

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID        string    `json:"id"`
	Balance   int64     `json:"balance"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		ID:        a.ID,
		Balance:   a.Balance,
		Version:   a.Version,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []*domain.Account) []*AccountResponse {
	result := make([]*AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// CompensationResponse represents a pending credit-back.
type CompensationResponse struct {
	ID          string     `json:"id"`
	TransferID  string     `json:"transfer_id"`
	AccountID   string     `json:"account_id"`
	ToAccountID string     `json:"to_account_id"`
	Amount      int64      `json:"amount"`
	Attempts    int        `json:"attempts"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// CompensationsFromDomain converts domain compensations to responses.
func CompensationsFromDomain(items []*domain.Compensation) []*CompensationResponse {
	result := make([]*CompensationResponse, len(items))
	for i, c := range items {
		result[i] = &CompensationResponse{
			ID:          c.ID,
			TransferID:  c.TransferID,
			AccountID:   c.AccountID,
			ToAccountID: c.ToAccountID,
			Amount:      c.Amount,
			Attempts:    c.Attempts,
			LastError:   c.LastError,
			CreatedAt:   c.CreatedAt,
			UpdatedAt:   c.UpdatedAt,
			ResolvedAt:  c.ResolvedAt,
		}
	}
	return result
}

// ReconciliationResponse is a conservation report.
type ReconciliationResponse struct {
	TotalBalance  int64     `json:"total_balance"`
	PendingCount  int       `json:"pending_count"`
	PendingAmount int64     `json:"pending_amount"`
	Supply        int64     `json:"supply"`
	Expected      *int64    `json:"expected,omitempty"`
	Balanced      *bool     `json:"balanced,omitempty"`
	CheckedAt     time.Time `json:"checked_at"`
}

// ReconciliationFromReport converts a report to a response.
func ReconciliationFromReport(r *usecase.ReconciliationReport) *ReconciliationResponse {
	return &ReconciliationResponse{
		TotalBalance:  r.TotalBalance,
		PendingCount:  r.PendingCount,
		PendingAmount: r.PendingAmount,
		Supply:        r.Supply,
		CheckedAt:     r.CheckedAt,
	}
}

// ListResponse wraps a page of items.
type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Details []ValidationError `json:"details,omitempty"`
}
