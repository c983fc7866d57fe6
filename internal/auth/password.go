package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/ksyq12/tsm/internal/errors"
)

// HashPassword bcrypt-hashes password after checking its length.
func HashPassword(password string, minLength int) (string, error) {
	if len(password) < minLength {
		return "", errors.Validation(fmt.Sprintf("password must be at least %d characters", minLength))
	}
	if len(password) > 72 {
		return "", errors.Validation("password must be at most 72 bytes")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, "failed to hash password", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
