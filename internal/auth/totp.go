package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
)

// TOTPManager handles TOTP secret generation, at-rest encryption, and code
// validation for admin accounts.
type TOTPManager struct {
	encryptionKey []byte // 32-byte AES-256 key
	issuer        string
}

// NewTOTPManager creates a new TOTP manager. encryptionKey must be exactly
// 32 bytes for AES-256.
func NewTOTPManager(encryptionKey []byte, issuer string) (*TOTPManager, error) {
	if len(encryptionKey) != 32 {
		return nil, fmt.Errorf("encryption key must be exactly 32 bytes, got %d", len(encryptionKey))
	}

	return &TOTPManager{
		encryptionKey: encryptionKey,
		issuer:        issuer,
	}, nil
}

// GenerateSecretWithQR creates a TOTP secret for an account and returns the
// encrypted secret, its nonce, the plaintext secret for manual entry, and a
// PNG QR code as a data URL.
func (tm *TOTPManager) GenerateSecretWithQR(accountEmail string) (encrypted, nonce []byte, secret, qrDataURL string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      tm.issuer,
		AccountName: accountEmail,
		SecretSize:  32,
		Period:      30,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, nil, "", "", fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	encrypted, nonce, err = tm.encryptSecret([]byte(key.Secret()))
	if err != nil {
		return nil, nil, "", "", fmt.Errorf("failed to encrypt secret: %w", err)
	}

	qr, err := qrcode.New(key.URL(), qrcode.Medium)
	if err != nil {
		return nil, nil, "", "", fmt.Errorf("failed to create QR code: %w", err)
	}

	qrImage, err := qr.PNG(200)
	if err != nil {
		return nil, nil, "", "", fmt.Errorf("failed to encode QR code: %w", err)
	}

	qrDataURL = "data:image/png;base64," + base64.StdEncoding.EncodeToString(qrImage)

	return encrypted, nonce, key.Secret(), qrDataURL, nil
}

// Validate checks a submitted code against an encrypted secret, allowing ±1
// time step for clock drift.
func (tm *TOTPManager) Validate(code string, encrypted, nonce []byte) (bool, error) {
	secret, err := tm.decryptSecret(encrypted, nonce)
	if err != nil {
		return false, err
	}

	valid, err := totp.ValidateCustom(code, string(secret), time.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false, fmt.Errorf("failed to validate TOTP: %w", err)
	}

	return valid, nil
}

// encryptSecret encrypts a TOTP secret with AES-256-GCM
func (tm *TOTPManager) encryptSecret(secret []byte) ([]byte, []byte, error) {
	block, err := aes.NewCipher(tm.encryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nil, nonce, secret, nil), nonce, nil
}

func (tm *TOTPManager) decryptSecret(encrypted, nonce []byte) ([]byte, error) {
	block, err := aes.NewCipher(tm.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, encrypted, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt secret: %w", err)
	}

	return plaintext, nil
}
