package accounts

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeValidation          = "VALIDATION_ERROR"
	TextCodeDuplicateEmail      = "DUPLICATE_EMAIL"
	TextCodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	TextCodeAccountNotVerified  = "ACCOUNT_NOT_VERIFIED"
	TextCodeAccountLocked       = "ACCOUNT_LOCKED"
	TextCodeInvalidCreds        = "INVALID_CREDENTIALS"
	TextCodeInvalidToken        = "INVALID_OR_EXPIRED_TOKEN"
	TextCodeTokenExpired        = "TOKEN_EXPIRED"
	TextCodeTokenSignature      = "TOKEN_SIGNATURE_INVALID"
	TextCodeTokenMalformed      = "TOKEN_MALFORMED"
	TextCodeTargetMismatch      = "TOKEN_TARGET_MISMATCH"
	TextCodeUnauthorized        = "UNAUTHORIZED"
	TextCodeUnauthenticated     = "UNAUTHENTICATED"
	TextCodeInvalidRole         = "INVALID_ROLE"
	TextCodeEmptyPassword       = "EMPTY_PASSWORD"
	TextCodeInvalidTransition   = "INVALID_ACCOUNT_STATE_TRANSITION"
	TextCodeTerminalState       = "TERMINAL_ACCOUNT_STATE"
	TextCodeInternal            = "INTERNAL_ERROR"
	TextCodeMissingUpdateFields = "MISSING_UPDATE_FIELDS"
)

// ErrDuplicateEmail is returned when an email is already registered
var ErrDuplicateEmail = goerrors.New("Email already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(goerrors.CodeBadRequest)

// ErrAccountNotFound is returned when the target account does not exist
var ErrAccountNotFound = goerrors.New("User not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrAccountNotVerified is returned on login before the email is verified
var ErrAccountNotVerified = goerrors.New("Email not verified", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountNotVerified).
	WithCode(goerrors.CodeBadRequest)

// ErrAccountLocked is returned on login while the account is locked
var ErrAccountLocked = goerrors.New("Account locked", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountLocked).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidCredentials covers both unknown accounts and wrong passwords
var ErrInvalidCredentials = goerrors.New("Incorrect credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidOrExpiredToken is the public face of every token failure
var ErrInvalidOrExpiredToken = goerrors.New("Invalid or expired token", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenExpired token expiry has passed
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenSignatureInvalid token signature did not verify
var ErrTokenSignatureInvalid = goerrors.New("token signature is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenSignature).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed token could not be decoded
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrTargetMismatch verification token was issued for another account
var ErrTargetMismatch = goerrors.New("Invalid or expired token", goerrors.CategoryAuth).
	WithTextCode(TextCodeTargetMismatch).
	WithCode(goerrors.CodeBadRequest)

// ErrUnauthorized actor role or identity does not satisfy the operation
var ErrUnauthorized = goerrors.New("Operation not permitted", goerrors.CategoryAuthz).
	WithTextCode(TextCodeUnauthorized).
	WithCode(goerrors.CodeForbidden)

// ErrUnauthenticated request carried no usable access token
var ErrUnauthenticated = goerrors.New("Could not validate credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidRole role is not part of the fixed enumeration
var ErrInvalidRole = goerrors.New("Invalid role", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidRole).
	WithCode(goerrors.CodeBadRequest)

// ErrNoEmptyString password must not be empty
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid account state transition", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrTerminalState is returned when attempting to move away from deleted.
var ErrTerminalState = goerrors.New("account state is terminal", goerrors.CategoryConflict).
	WithTextCode(TextCodeTerminalState).
	WithCode(goerrors.CodeConflict)

// FieldError describes a single failed field constraint
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors is the structured result of payload validation
type FieldErrors []FieldError

func (f FieldErrors) Error() string {
	parts := make([]string, 0, len(f))
	for _, fe := range f {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return strings.Join(parts, "; ")
}

// NewValidationError builds a fresh validation error carrying field errors
func NewValidationError(message string, fields FieldErrors) *goerrors.Error {
	if message == "" {
		message = "Invalid request payload"
	}
	err := goerrors.New(message, goerrors.CategoryValidation).
		WithTextCode(TextCodeValidation).
		WithCode(goerrors.CodeBadRequest)
	if len(fields) > 0 {
		err = err.WithMetadata(map[string]any{"fields": fields})
	}
	return err
}

// NewInternalError wraps an unexpected failure without leaking it to callers
func NewInternalError(err error, message string) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, message).
		WithTextCode(TextCodeInternal).
		WithCode(goerrors.CodeInternal)
}

// HasTextCode reports whether err is a rich error with the given text code
func HasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// IsValidationError reports whether err describes rejected input
func IsValidationError(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.Category == goerrors.CategoryValidation
}

// ValidationFields extracts the field errors attached by NewValidationError
func ValidationFields(err error) FieldErrors {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Metadata == nil {
		return nil
	}
	fields, _ := richErr.Metadata["fields"].(FieldErrors)
	return fields
}
