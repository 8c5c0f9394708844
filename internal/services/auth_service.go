package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/melizondo/voltcart/internal/auth"
	"github.com/melizondo/voltcart/internal/models"
	pkgauth "github.com/melizondo/voltcart/pkg/auth"
	pkglogger "github.com/melizondo/voltcart/pkg/logger"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	SetTOTPSecret(ctx context.Context, userID string, secret, nonce []byte) error
	EnableMFA(ctx context.Context, userID string) error
}

// RateLimiter is the attempt-tracking capability the auth flow depends on
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, identity, url, userAgent string) models.RateLimitStatus
	RecordFailedAttempt(ctx context.Context, identity string) error
	ResetFailedAttempts(ctx context.Context, identity string) error
	RemainingAttempts(ctx context.Context, identity string) int
}

// AuthService handles the login flow: rate-limit gate, credential check,
// attempt bookkeeping, and security event logging around each outcome.
type AuthService struct {
	users   UserRepository
	limiter RateLimiter
	events  EventSink
	tokens  *auth.TokenManager
	totp    *auth.TOTPManager
	logger  *slog.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(users UserRepository, limiter RateLimiter, events EventSink, tokens *auth.TokenManager, totp *auth.TOTPManager, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:   users,
		limiter: limiter,
		events:  events,
		tokens:  tokens,
		totp:    totp,
		logger:  logger,
	}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// AuthResponse represents the response from a successful login
type AuthResponse struct {
	Token string        `json:"token"`
	User  *UserResponse `json:"user"`
}

// Login authenticates an identity. The rate-limit gate runs before any
// credential work so a locked-out identity is refused regardless of
// credential correctness. Failures record an attempt and a login_failed
// event; success deletes the attempt record and logs login_success.
func (s *AuthService) Login(ctx context.Context, email, password, totpCode, url, userAgent string) (*AuthResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, models.ErrUnauthorized
	}

	if status := s.limiter.CheckRateLimit(ctx, email, url, userAgent); status.Locked {
		return nil, &models.LockoutError{MinutesLeft: status.MinutesLeft}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.recordFailure(ctx, email, "unknown_identity", url, userAgent)
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to load user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		s.recordFailure(ctx, email, "invalid_credentials", url, userAgent)
		return nil, models.ErrUnauthorized
	}

	if user.MFAEnabled {
		if s.totp == nil {
			s.logger.Error("mfa-enabled user but no totp manager configured", slog.String("user_id", user.ID))
			return nil, models.ErrInternalServer
		}
		if totpCode == "" {
			return nil, models.ErrMFARequired
		}
		valid, err := s.totp.Validate(totpCode, user.TOTPSecret, user.TOTPNonce)
		if err != nil || !valid {
			s.recordFailure(ctx, email, "invalid_totp", url, userAgent)
			return nil, models.ErrMFAInvalid
		}
	}

	if err := s.limiter.ResetFailedAttempts(ctx, email); err != nil {
		// Best effort: a stale record only costs the user attempts later
		s.logger.Error("failed to reset attempt record", slog.Any("error", err))
	}

	s.events.LogEvent(ctx, models.EventLoginSuccess, url, userAgent, models.EventDetails{
		"identity": pkglogger.SanitizedEmail(email),
	})

	token, err := s.tokens.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		s.logger.Error("failed to issue session token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &AuthResponse{
		Token: token,
		User: &UserResponse{
			ID:    user.ID,
			Email: user.Email,
			Name:  user.Name,
			Role:  user.Role,
		},
	}, nil
}

func (s *AuthService) recordFailure(ctx context.Context, email, reason, url, userAgent string) {
	if err := s.limiter.RecordFailedAttempt(ctx, email); err != nil {
		s.logger.Error("failed to record login failure", slog.Any("error", err))
	}

	s.events.LogEvent(ctx, models.EventLoginFailed, url, userAgent, models.EventDetails{
		"identity":  pkglogger.SanitizedEmail(email),
		"reason":    reason,
		"remaining": s.limiter.RemainingAttempts(ctx, email),
	})
}

// MFASetupResponse carries enrollment material for the authenticator app
type MFASetupResponse struct {
	Secret    string `json:"secret"`
	QRCodeURL string `json:"qr_code_url"` // data URL with a PNG QR code
}

// SetupMFA generates a TOTP secret for an admin user and stores it
// encrypted. MFA is not active until the first valid code is confirmed.
func (s *AuthService) SetupMFA(ctx context.Context, userID string) (*MFASetupResponse, error) {
	if s.totp == nil {
		return nil, fmt.Errorf("mfa is not configured: %w", models.ErrInternalServer)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	encSecret, nonce, secret, qrURL, err := s.totp.GenerateSecretWithQR(user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate totp secret: %w", err)
	}

	if err := s.users.SetTOTPSecret(ctx, userID, encSecret, nonce); err != nil {
		return nil, fmt.Errorf("failed to store totp secret: %w", err)
	}

	return &MFASetupResponse{Secret: secret, QRCodeURL: qrURL}, nil
}

// ActivateMFA confirms enrollment with a first valid code and enables MFA
func (s *AuthService) ActivateMFA(ctx context.Context, userID, code string) error {
	if s.totp == nil {
		return fmt.Errorf("mfa is not configured: %w", models.ErrInternalServer)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if len(user.TOTPSecret) == 0 {
		return models.ErrBadRequest
	}

	valid, err := s.totp.Validate(code, user.TOTPSecret, user.TOTPNonce)
	if err != nil {
		return fmt.Errorf("failed to validate totp code: %w", err)
	}
	if !valid {
		return models.ErrMFAInvalid
	}

	return s.users.EnableMFA(ctx, userID)
}
