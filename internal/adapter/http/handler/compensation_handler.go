package handler

import (
	"context"
	"net/http"

	"github.com/iho/gotransfer/internal/adapter/http/dto"
	"github.com/iho/gotransfer/internal/domain"
)

// CompensationService defines the behavior needed by CompensationHandler.
type CompensationService interface {
	ListPending(ctx context.Context, limit int) ([]*domain.Compensation, error)
}

// CompensationHandler exposes pending credit-backs to operators.
type CompensationHandler struct {
	compensationUC CompensationService
}

// NewCompensationHandler creates a new CompensationHandler.
func NewCompensationHandler(compensationUC CompensationService) *CompensationHandler {
	return &CompensationHandler{compensationUC: compensationUC}
}

// ListPending lists unresolved compensations, oldest first.
func (h *CompensationHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 20)

	items, err := h.compensationUC.ListPending(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListResponse[*dto.CompensationResponse]{
		Items: dto.CompensationsFromDomain(items),
		Limit: limit,
	})
}
