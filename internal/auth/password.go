package auth

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrWeakPassword     = errors.New("password does not meet requirements")
	ErrPasswordMismatch = errors.New("password does not match")
)

// DefaultCost matches the hashing cost used by the seed data.
const DefaultCost = 12

// MinPasswordLength is the shortest password accepted anywhere.
const MinPasswordLength = 8

// PasswordManager handles password hashing and validation
type PasswordManager struct {
	minLength int
	cost      int
}

// NewPasswordManager creates a password manager with the default cost.
func NewPasswordManager() *PasswordManager {
	return NewPasswordManagerWithCost(DefaultCost)
}

// NewPasswordManagerWithCost lets tests trade hash strength for speed.
func NewPasswordManagerWithCost(cost int) *PasswordManager {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &PasswordManager{minLength: MinPasswordLength, cost: cost}
}

// HashPassword validates and hashes a password using bcrypt
func (pm *PasswordManager) HashPassword(password string) (string, error) {
	if err := pm.ValidatePassword(password); err != nil {
		return "", err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), pm.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// ComparePassword compares a password with a hash
func (pm *PasswordManager) ComparePassword(hashedPassword, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)); err != nil {
		return ErrPasswordMismatch
	}
	return nil
}

// ValidatePassword checks if a password meets the requirements
func (pm *PasswordManager) ValidatePassword(password string) error {
	if len(password) < pm.minLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, pm.minLength)
	}
	// bcrypt silently ignores everything past 72 bytes
	if len(password) > 72 {
		return fmt.Errorf("%w: must be at most 72 bytes", ErrWeakPassword)
	}
	return nil
}

// NormalizeEmail trims and lowercases an address after checking its format.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(email) > 255 {
		return "", errors.New("email address too long")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", errors.New("invalid email address")
	}
	return email, nil
}
