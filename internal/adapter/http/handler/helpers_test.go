package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/iho/gotransfer/internal/adapter/http/dto"
	"github.com/iho/gotransfer/internal/domain"
)

func TestParseIntQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/accounts?limit=50", nil)
	if got := parseIntQuery(req, "limit", 10); got != 50 {
		t.Fatalf("expected limit=50, got %d", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/accounts?limit=invalid", nil)
	if got := parseIntQuery(req, "limit", 10); got != 10 {
		t.Fatalf("expected fallback to default, got %d", got)
	}

	req.URL = &url.URL{RawQuery: ""}
	if got := parseIntQuery(req, "limit", 25); got != 25 {
		t.Fatalf("expected default when missing, got %d", got)
	}
}

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
		code     string
	}{
		{"account not found", domain.ErrAccountNotFound, http.StatusNotFound, "account_not_found"},
		{"insufficient funds", domain.ErrInsufficientFunds, http.StatusBadRequest, "insufficient_funds"},
		{"self transfer", domain.ErrSameAccount, http.StatusBadRequest, "self_transfer"},
		{"invalid amount", domain.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
		{"account exists", domain.ErrAccountExists, http.StatusConflict, "account_exists"},
		{"conflict wrapping not found", fmt.Errorf("%w: credit bob: %v", domain.ErrConflict, domain.ErrAccountNotFound), http.StatusConflict, "conflict"},
		{"in flight", fmt.Errorf("%w: %w", domain.ErrTransferInFlight, errors.New("context canceled")), http.StatusAccepted, "in_flight"},
		{"unavailable", fmt.Errorf("%w: %w", domain.ErrUnavailable, domain.ErrStoreUnavailable), http.StatusServiceUnavailable, "unavailable"},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := mapDomainError(tt.err)
			if status != tt.expected || code != tt.code {
				t.Fatalf("expected %d %s, got %d %s", tt.expected, tt.code, status, code)
			}
		})
	}
}

func TestTransferStatusCode(t *testing.T) {
	tests := map[domain.TransferStatus]int{
		domain.TransferStatusSuccess:           http.StatusOK,
		domain.TransferStatusInsufficientFunds: http.StatusBadRequest,
		domain.TransferStatusAccountNotFound:   http.StatusNotFound,
		domain.TransferStatusSelfTransfer:      http.StatusBadRequest,
		domain.TransferStatusInvalidAmount:     http.StatusBadRequest,
		domain.TransferStatusConflict:          http.StatusConflict,
		domain.TransferStatusInFlight:          http.StatusAccepted,
		domain.TransferStatusUnavailable:       http.StatusServiceUnavailable,
	}

	for status, want := range tests {
		if got := transferStatusCode(status); got != want {
			t.Fatalf("%s: expected %d, got %d", status, want, got)
		}
	}
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()

	writeError(rr, http.StatusBadRequest, "invalid_request", "details")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %s", ct)
	}

	var resp dto.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Error != "invalid_request" || resp.Message != "details" {
		t.Fatalf("unexpected error response: %+v", resp)
	}
}
