package provider

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/marketbridge/identity-session/internal/core/domain"
)

const (
	minPasswordLength = 6
	maxPasswordBytes  = 72
)

func hashPassword(password string) (string, error) {
	if len(password) < minPasswordLength || len(password) > maxPasswordBytes {
		return "", domain.ErrWeakPassword
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", domain.ErrWeakPassword
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// verifyPassword maps a mismatch to domain.ErrWrongCredential.
func verifyPassword(hash, password string) error {
	if hash == "" {
		return domain.ErrWrongCredential
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return domain.ErrWrongCredential
	}
	return err
}
