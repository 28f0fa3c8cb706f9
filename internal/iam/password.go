package iam

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/Sriharan2222/medlog/pkg/types"
)

// bcrypt only reads the first 72 bytes of its input
const maxPasswordBytes = 72

// PasswordManager hashes and checks account passwords with bcrypt
type PasswordManager struct {
	cost int
}

// NewPasswordManager uses bcrypt.DefaultCost
func NewPasswordManager() *PasswordManager {
	return NewPasswordManagerWithCost(bcrypt.DefaultCost)
}

// NewPasswordManagerWithCost is used by tests to keep hashing fast
func NewPasswordManagerWithCost(cost int) *PasswordManager {
	return &PasswordManager{cost: cost}
}

// HashPassword rejects passwords bcrypt would silently truncate
func (pm *PasswordManager) HashPassword(password string) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", types.NewValidationError(types.ErrCodeInvalidInput, "Password must be at most 72 bytes")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), pm.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches hash. A mismatch is not
// an error; a malformed hash is.
func (pm *PasswordManager) VerifyPassword(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("failed to verify password: %w", err)
	}
}
