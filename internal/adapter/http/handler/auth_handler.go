package handler

import (
	"net/http"
	"time"

	"github.com/iho/gotransfer/internal/adapter/http/dto"
	"github.com/iho/gotransfer/internal/adapter/http/middleware"
	"github.com/iho/gotransfer/internal/infrastructure/auth"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	jwtManager *auth.JWTManager
	ttl        time.Duration
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(jwtManager *auth.JWTManager, ttl time.Duration) *AuthHandler {
	return &AuthHandler{
		jwtManager: jwtManager,
		ttl:        ttl,
	}
}

// IssueTokenRequest asks for a token acting as an account.
type IssueTokenRequest struct {
	AccountID string `json:"account_id" validate:"required_unless=Role admin,max=128"`
	Role      string `json:"role" validate:"omitempty,oneof=account admin"`
}

// TokenResponse carries an issued token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CallerResponse describes the authenticated caller.
type CallerResponse struct {
	AccountID string `json:"account_id,omitempty"`
	Admin     bool   `json:"admin"`
}

// IssueToken issues a token for an account. Admin only.
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req IssueTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := dto.Validate(&req); errs != nil {
		writeValidationError(w, errs)
		return
	}

	role := req.Role
	if role == "" {
		role = auth.RoleAccount
	}

	expiresAt := time.Now().Add(h.ttl).UTC()
	token, err := h.jwtManager.Generate(req.AccountID, role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to generate token")
		return
	}

	writeJSON(w, http.StatusCreated, TokenResponse{Token: token, ExpiresAt: expiresAt})
}

// WhoAmI returns the current caller.
func (h *AuthHandler) WhoAmI(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	writeJSON(w, http.StatusOK, CallerResponse{AccountID: caller.AccountID, Admin: caller.Admin})
}
