package converter_test

import (
	"testing"
	"time"

	"github.com/iho/gotransfer/internal/adapter/grpc/api"
	"github.com/iho/gotransfer/internal/adapter/grpc/converter"
	"github.com/iho/gotransfer/internal/domain"
	"github.com/iho/gotransfer/internal/usecase"
)

func TestAccountToAPI(t *testing.T) {
	if converter.AccountToAPI(nil) != nil {
		t.Fatal("expected nil for nil account")
	}

	now := time.Now().UTC()
	got := converter.AccountToAPI(&domain.Account{ID: "A", Balance: 500, Version: 3, CreatedAt: now, UpdatedAt: now})
	if got.ID != "A" || got.Balance != 500 || got.Version != 3 || !got.CreatedAt.Equal(now) {
		t.Fatalf("unexpected account: %+v", got)
	}

	list := converter.AccountsToAPI([]*domain.Account{{ID: "A"}, {ID: "B"}})
	if len(list) != 2 || list[1].ID != "B" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestTransferConversions(t *testing.T) {
	req := converter.TransferRequestFromAPI("A", &api.TransferRequest{To: "B", Amount: 150})
	want := domain.TransferRequest{FromAccountID: "A", ToAccountID: "B", Amount: 150}
	if req != want {
		t.Fatalf("expected %+v, got %+v", want, req)
	}

	resp := converter.TransferResultToAPI(&domain.TransferResult{TransferID: "t1", Status: domain.TransferStatusInFlight})
	if resp.TransferID != "t1" || resp.Status != "in_flight" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if converter.TransferResultToAPI(nil) != nil {
		t.Fatal("expected nil for nil result")
	}
}

func TestCompensationsToAPI(t *testing.T) {
	got := converter.CompensationsToAPI([]*domain.Compensation{{
		ID:          "c1",
		TransferID:  "t1",
		AccountID:   "A",
		ToAccountID: "B",
		Amount:      25,
		Attempts:    2,
		LastError:   "store unavailable",
	}})
	if len(got) != 1 || got[0].Attempts != 2 || got[0].ToAccountID != "B" || got[0].LastError != "store unavailable" {
		t.Fatalf("unexpected compensations: %+v", got)
	}
}

func TestReconciliationToAPI(t *testing.T) {
	balanced := false
	got := converter.ReconciliationToAPI(&usecase.ReconciliationReport{
		TotalBalance:  700,
		PendingCount:  1,
		PendingAmount: 100,
		Supply:        800,
	}, &balanced)

	if got.Supply != 800 || got.PendingCount != 1 || got.Balanced == nil || *got.Balanced {
		t.Fatalf("unexpected report: %+v", got)
	}
	if converter.ReconciliationToAPI(nil, nil) != nil {
		t.Fatal("expected nil for nil report")
	}
}
