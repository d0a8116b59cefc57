package utils

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHash returns the password as a bcrypt hash. Values that are
// already bcrypt hashes (pre-hashed secrets injected via environment) pass
// through untouched.
func PasswordHash(password string) ([]byte, error) {
	if strings.HasPrefix(password, "$2a$") || strings.HasPrefix(password, "$2b$") || strings.HasPrefix(password, "$2y$") {
		return []byte(password), nil // already bcrypt
	}
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}
