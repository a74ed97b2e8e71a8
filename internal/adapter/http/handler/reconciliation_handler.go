package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/iho/gotransfer/internal/adapter/http/dto"
	"github.com/iho/gotransfer/internal/usecase"
)

// ReconciliationService defines the behavior needed by ReconciliationHandler.
type ReconciliationService interface {
	Report(ctx context.Context) (*usecase.ReconciliationReport, error)
	CheckConservation(ctx context.Context, expected int64) (*usecase.ReconciliationReport, error)
}

// ReconciliationHandler serves conservation reports.
type ReconciliationHandler struct {
	reconciliationUC ReconciliationService
}

// NewReconciliationHandler creates a new ReconciliationHandler.
func NewReconciliationHandler(reconciliationUC ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{reconciliationUC: reconciliationUC}
}

// Report returns the current supply. With ?expected=N it also reports
// whether the supply matches N.
func (h *ReconciliationHandler) Report(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("expected")
	if raw == "" {
		report, err := h.reconciliationUC.Report(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, dto.ReconciliationFromReport(report))
		return
	}

	expected, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "expected must be an integer")
		return
	}

	report, err := h.reconciliationUC.CheckConservation(r.Context(), expected)
	if report == nil {
		writeDomainError(w, err)
		return
	}

	balanced := err == nil
	resp := dto.ReconciliationFromReport(report)
	resp.Expected = &expected
	resp.Balanced = &balanced

	writeJSON(w, http.StatusOK, resp)
}
