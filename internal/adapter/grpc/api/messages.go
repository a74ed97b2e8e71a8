// Package api defines the gotransfer.v1 gRPC services. Messages are plain
// structs carried by a JSON codec.
package api

import "time"

type TransferRequest struct {
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

type TransferResponse struct {
	TransferID string `json:"transfer_id"`
	Status     string `json:"status"`
}

type GetBalanceRequest struct{}

type GetBalanceResponse struct {
	Balance int64 `json:"balance"`
}

type Account struct {
	ID        string    `json:"id"`
	Balance   int64     `json:"balance"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type OpenAccountRequest struct {
	ID             string `json:"id,omitempty"`
	InitialBalance int64  `json:"initial_balance"`
}

type OpenAccountResponse struct {
	Account *Account `json:"account"`
}

type GetAccountRequest struct {
	ID string `json:"id"`
}

type GetAccountResponse struct {
	Account *Account `json:"account"`
}

type ListAccountsRequest struct {
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
}

type ListAccountsResponse struct {
	Accounts []*Account `json:"accounts"`
}

type Compensation struct {
	ID          string    `json:"id"`
	TransferID  string    `json:"transfer_id"`
	AccountID   string    `json:"account_id"`
	ToAccountID string    `json:"to_account_id"`
	Amount      int64     `json:"amount"`
	Attempts    int32     `json:"attempts"`
	LastError   string    `json:"last_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type ListCompensationsRequest struct {
	Limit int32 `json:"limit"`
}

type ListCompensationsResponse struct {
	Compensations []*Compensation `json:"compensations"`
}

type ReconcileRequest struct {
	// Expected is compared with the supply when set.
	Expected *int64 `json:"expected,omitempty"`
}

type ReconcileResponse struct {
	TotalBalance  int64     `json:"total_balance"`
	PendingCount  int32     `json:"pending_count"`
	PendingAmount int64     `json:"pending_amount"`
	Supply        int64     `json:"supply"`
	Balanced      *bool     `json:"balanced,omitempty"`
	CheckedAt     time.Time `json:"checked_at"`
}
