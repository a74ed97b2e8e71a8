package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/iho/gotransfer/internal/adapter/http/dto"
	"github.com/iho/gotransfer/internal/domain"
)

const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error:   code,
		Message: message,
	})
}

func writeValidationError(w http.ResponseWriter, details []dto.ValidationError) {
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
		Error:   "invalid_request",
		Message: "Invalid request data",
		Details: details,
	})
}

// writeDomainError maps err to a status and writes it.
func writeDomainError(w http.ResponseWriter, err error) {
	status, code := mapDomainError(err)
	writeError(w, status, code, err.Error())
}

// mapDomainError maps domain errors to HTTP status codes and error codes.
func mapDomainError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrTransferInFlight):
		return http.StatusAccepted, "in_flight"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound, "account_not_found"
	case errors.Is(err, domain.ErrCompensationNotFound):
		return http.StatusNotFound, "compensation_not_found"
	case errors.Is(err, domain.ErrAccountExists):
		return http.StatusConflict, "account_exists"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusBadRequest, "insufficient_funds"
	case errors.Is(err, domain.ErrSameAccount):
		return http.StatusBadRequest, "self_transfer"
	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_amount"
	case errors.Is(err, domain.ErrInvalidAccountID):
		return http.StatusBadRequest, "invalid_account_id"
	case errors.Is(err, domain.ErrUnavailable),
		errors.Is(err, domain.ErrStoreUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// transferStatusCode maps a transfer outcome to an HTTP status.
func transferStatusCode(status domain.TransferStatus) int {
	switch status {
	case domain.TransferStatusSuccess:
		return http.StatusOK
	case domain.TransferStatusInFlight:
		return http.StatusAccepted
	case domain.TransferStatusInsufficientFunds,
		domain.TransferStatusSelfTransfer,
		domain.TransferStatusInvalidAmount:
		return http.StatusBadRequest
	case domain.TransferStatusAccountNotFound:
		return http.StatusNotFound
	case domain.TransferStatusConflict:
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body: "+err.Error())
		return false
	}
	return true
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}
