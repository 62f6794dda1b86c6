package domain

import (
	"errors"
	"fmt"
)

// Provider error categories. Identity provider implementations wrap these so
// callers can classify with errors.Is.
var (
	ErrEmailInUse      = errors.New("email already in use")
	ErrWeakPassword    = errors.New("weak password")
	ErrInvalidEmail    = errors.New("invalid email")
	ErrWrongCredential = errors.New("wrong credential")
	ErrNoSuchAccount   = errors.New("no such account")
	ErrRateLimited     = errors.New("too many requests")
	ErrAccountDisabled = errors.New("account disabled")
	ErrOAuthDisabled   = errors.New("oauth sign-in not configured")
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrNoSession      = errors.New("no active session")
)

// ErrorCode classifies a failed operation for consumers.
type ErrorCode string

const (
	CodeValidation      ErrorCode = "validation"
	CodeEmailInUse      ErrorCode = "email_in_use"
	CodeWeakPassword    ErrorCode = "weak_password"
	CodeInvalidEmail    ErrorCode = "invalid_email"
	CodeWrongCredential ErrorCode = "wrong_credential"
	CodeNoSuchAccount   ErrorCode = "no_such_account"
	CodeRateLimited     ErrorCode = "rate_limited"
	CodeDisabled        ErrorCode = "disabled"
	CodeNoSession       ErrorCode = "no_session"
	CodeStore           ErrorCode = "store"
	CodeProvider        ErrorCode = "provider"
)

var messages = map[ErrorCode]string{
	CodeValidation:      "The submitted details are not valid.",
	CodeEmailInUse:      "An account with this email already exists.",
	CodeWeakPassword:    "Password must be at least 6 characters.",
	CodeInvalidEmail:    "The email address is not valid.",
	CodeWrongCredential: "Incorrect email or password.",
	CodeNoSuchAccount:   "No account found with this email.",
	CodeRateLimited:     "Too many attempts. Please try again later.",
	CodeDisabled:        "This account has been disabled.",
	CodeNoSession:       "You are not signed in.",
	CodeStore:           "Could not save your profile. Please try again.",
	CodeProvider:        "Authentication failed. Please try again.",
}

// Message returns the user-facing text for the code.
func (c ErrorCode) Message() string {
	if m, ok := messages[c]; ok {
		return m
	}
	return messages[CodeProvider]
}

// AuthError is a classified operation failure.
type AuthError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NewAuthError builds an AuthError with the default message for code.
func NewAuthError(code ErrorCode, err error) *AuthError {
	return &AuthError{Code: code, Message: code.Message(), Err: err}
}

// ValidationError is returned for bad input, before any I/O happens.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return "validation: " + e.Message }

// StoreError marks a failed record store call.
type StoreError struct {
	Collection string
	Op         string
	Err        error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Classify maps any error produced by an operation to an AuthError.
func Classify(err error) *AuthError {
	if err == nil {
		return nil
	}

	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return &AuthError{Code: CodeValidation, Message: ve.Message, Err: err}
	}
	var se *StoreError
	if errors.As(err, &se) {
		return NewAuthError(CodeStore, err)
	}

	switch {
	case errors.Is(err, ErrEmailInUse):
		return NewAuthError(CodeEmailInUse, err)
	case errors.Is(err, ErrWeakPassword):
		return NewAuthError(CodeWeakPassword, err)
	case errors.Is(err, ErrInvalidEmail):
		return NewAuthError(CodeInvalidEmail, err)
	case errors.Is(err, ErrWrongCredential):
		return NewAuthError(CodeWrongCredential, err)
	case errors.Is(err, ErrNoSuchAccount):
		return NewAuthError(CodeNoSuchAccount, err)
	case errors.Is(err, ErrRateLimited):
		return NewAuthError(CodeRateLimited, err)
	case errors.Is(err, ErrAccountDisabled):
		return NewAuthError(CodeDisabled, err)
	case errors.Is(err, ErrNoSession):
		return NewAuthError(CodeNoSession, err)
	}
	return NewAuthError(CodeProvider, err)
}
