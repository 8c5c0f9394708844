package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/melizondo/voltcart/internal/models"
	"github.com/melizondo/voltcart/internal/services"
	pkghttp "github.com/melizondo/voltcart/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password, totpCode, url, userAgent string) (*services.AuthResponse, error)
	SetupMFA(ctx context.Context, userID string) (*services.MFASetupResponse, error)
	ActivateMFA(ctx context.Context, userID, code string) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	TOTPCode string `json:"totp_code,omitempty"`
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	authResp, err := h.service.Login(r.Context(), req.Email, req.Password, req.TOTPCode, r.URL.Path, r.UserAgent())
	if err != nil {
		var lockout *models.LockoutError
		switch {
		case errors.As(err, &lockout):
			pkghttp.WriteTooManyRequests(w, fmt.Sprintf(
				"Too many failed login attempts. Try again in %d minutes.", lockout.MinutesLeft))
		case errors.Is(err, models.ErrRateLimitExceeded):
			pkghttp.WriteTooManyRequests(w, "Too many failed login attempts. Please try again later.")
		case errors.Is(err, models.ErrMFARequired):
			pkghttp.WriteUnauthorized(w, "TOTP code required")
		case errors.Is(err, models.ErrMFAInvalid),
			errors.Is(err, models.ErrUnauthorized):
			// Generic message to prevent identity enumeration
			pkghttp.WriteUnauthorized(w, "Authentication failed")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, authResp)
}
