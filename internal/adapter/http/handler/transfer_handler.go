package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/iho/gotransfer/internal/adapter/http/dto"
	"github.com/iho/gotransfer/internal/adapter/http/middleware"
	"github.com/iho/gotransfer/internal/domain"
)

// TransferService defines the behavior needed by TransferHandler.
type TransferService interface {
	Transfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error)
	GetBalance(ctx context.Context, accountID string) (int64, error)
}

// TransferHandler serves the caller's own account: balance and transfers.
type TransferHandler struct {
	transferUC TransferService
	logger     zerolog.Logger
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transferUC TransferService, logger zerolog.Logger) *TransferHandler {
	return &TransferHandler{transferUC: transferUC, logger: logger}
}

// Balance returns the caller's balance.
func (h *TransferHandler) Balance(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok || caller.AccountID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "caller account required")
		return
	}

	balance, err := h.transferUC.GetBalance(r.Context(), caller.AccountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceResponse{Balance: balance})
}

// Transfer moves funds from the caller to another account.
func (h *TransferHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok || caller.AccountID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "caller account required")
		return
	}

	var req dto.TransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := dto.Validate(&req); errs != nil {
		writeValidationError(w, errs)
		return
	}

	transferReq, err := req.ToDomain(caller.AccountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := h.transferUC.Transfer(r.Context(), transferReq)
	if result != nil && result.Status == domain.TransferStatusInFlight {
		writeJSON(w, http.StatusAccepted, dto.TransferResponse{
			Message:    "Transfer accepted",
			TransferID: result.TransferID,
			Status:     result.Status,
		})
		return
	}
	if err != nil {
		if result == nil {
			writeDomainError(w, err)
			return
		}

		status := transferStatusCode(result.Status)
		if status >= http.StatusInternalServerError {
			h.logger.Error().Err(err).Str("transfer_id", result.TransferID).Msg("transfer failed")
		}
		writeJSON(w, status, dto.ErrorResponse{
			Error:   string(result.Status),
			Message: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, dto.TransferResponse{
		Message:    "Transfer successful",
		TransferID: result.TransferID,
		Status:     result.Status,
	})
}
