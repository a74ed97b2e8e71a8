package converter

import (
	"github.com/iho/gotransfer/internal/adapter/grpc/api"
	"github.com/iho/gotransfer/internal/domain"
	"github.com/iho/gotransfer/internal/usecase"
)

// AccountToAPI converts domain.Account to its wire form.
func AccountToAPI(a *domain.Account) *api.Account {
	if a == nil {
		return nil
	}
	return &api.Account{
		ID:        a.ID,
		Balance:   a.Balance,
		Version:   a.Version,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// AccountsToAPI converts a page of accounts.
func AccountsToAPI(accounts []*domain.Account) []*api.Account {
	out := make([]*api.Account, len(accounts))
	for i, a := range accounts {
		out[i] = AccountToAPI(a)
	}
	return out
}

// TransferRequestFromAPI builds the domain request for a caller-owned transfer.
func TransferRequestFromAPI(from string, req *api.TransferRequest) domain.TransferRequest {
	return domain.TransferRequest{
		FromAccountID: from,
		ToAccountID:   req.To,
		Amount:        req.Amount,
	}
}

// TransferResultToAPI converts a transfer result.
func TransferResultToAPI(r *domain.TransferResult) *api.TransferResponse {
	if r == nil {
		return nil
	}
	return &api.TransferResponse{
		TransferID: r.TransferID,
		Status:     string(r.Status),
	}
}

// CompensationsToAPI converts pending compensations.
func CompensationsToAPI(items []*domain.Compensation) []*api.Compensation {
	out := make([]*api.Compensation, len(items))
	for i, c := range items {
		out[i] = &api.Compensation{
			ID:          c.ID,
			TransferID:  c.TransferID,
			AccountID:   c.AccountID,
			ToAccountID: c.ToAccountID,
			Amount:      c.Amount,
			Attempts:    int32(c.Attempts),
			LastError:   c.LastError,
			CreatedAt:   c.CreatedAt,
		}
	}
	return out
}

// ReconciliationToAPI converts a report. balanced is nil when no
// expected supply was given.
func ReconciliationToAPI(r *usecase.ReconciliationReport, balanced *bool) *api.ReconcileResponse {
	if r == nil {
		return nil
	}
	return &api.ReconcileResponse{
		TotalBalance:  r.TotalBalance,
		PendingCount:  int32(r.PendingCount),
		PendingAmount: r.PendingAmount,
		Supply:        r.Supply,
		Balanced:      balanced,
		CheckedAt:     r.CheckedAt,
	}
}
