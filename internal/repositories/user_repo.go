package repositories

import (
	"context"
	"fmt"

	"github.com/melizondo/voltcart/internal/database"
	"github.com/melizondo/voltcart/internal/models"
)

// UserRepository handles user data access
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password_hash, name, role, mfa_enabled, totp_secret, totp_nonce, created_at, updated_at`

func (r *UserRepository) scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role,
		&u.MFAEnabled, &u.TOTPSecret, &u.TOTPNonce,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &u, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(r.db.Pool.QueryRow(ctx, query, email))
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.db.Pool.QueryRow(ctx, query, id))
}

// Create inserts a new user and returns the stored row
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (email, password_hash, name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns

	created, err := r.scanUser(r.db.Pool.QueryRow(ctx, query,
		user.Email, user.PasswordHash, user.Name, user.Role,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

// SetTOTPSecret stores the encrypted TOTP secret for a user without enabling
// MFA yet; enablement happens after the first valid code.
func (r *UserRepository) SetTOTPSecret(ctx context.Context, userID string, secret, nonce []byte) error {
	query := `
		UPDATE users
		SET totp_secret = $2, totp_nonce = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := r.db.Pool.Exec(ctx, query, userID, secret, nonce)
	return database.MapPostgresError(err)
}

// EnableMFA marks MFA as active for a user
func (r *UserRepository) EnableMFA(ctx context.Context, userID string) error {
	query := `
		UPDATE users
		SET mfa_enabled = true, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := r.db.Pool.Exec(ctx, query, userID)
	return database.MapPostgresError(err)
}
