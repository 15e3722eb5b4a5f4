package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/vault/internal/ledger"
)

// RuntimeError represents an error detected by the engine itself, outside
// the ledger rules.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// VaultID identifies the affected vault.
	VaultID string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeVaultNotFound indicates a step names a vault that does not exist.
	ErrCodeVaultNotFound RuntimeErrorCode = "VAULT_NOT_FOUND"

	// ErrCodeQueueClosed indicates a request was submitted after Stop.
	ErrCodeQueueClosed RuntimeErrorCode = "QUEUE_CLOSED"

	// ErrCodeInvalidRequest indicates a malformed request.
	ErrCodeInvalidRequest RuntimeErrorCode = "INVALID_REQUEST"

	// ErrCodeInternal marks rejected steps that failed for a reason other
	// than a ledger or runtime rule (storage failures).
	ErrCodeInternal RuntimeErrorCode = "INTERNAL"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.VaultID != "" {
		return fmt.Sprintf("%s: %s (vault=%s)", e.Code, e.Message, e.VaultID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsVaultNotFound returns true if the error is a missing vault error.
// Uses errors.As to handle wrapped errors.
func IsVaultNotFound(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeVaultNotFound
	}
	return false
}

// IsQueueClosed returns true if the error reports a stopped engine.
func IsQueueClosed(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeQueueClosed
	}
	return false
}

// IsInvalidRequest returns true if the error reports a malformed request.
func IsInvalidRequest(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeInvalidRequest
	}
	return false
}

// NewVaultNotFoundError creates a RuntimeError for a missing vault.
func NewVaultNotFoundError(vaultID string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeVaultNotFound,
		Message: "vault does not exist",
		VaultID: vaultID,
	}
}

func newInvalidRequestError(format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidRequest,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrorCode returns the code recorded on a rejected step for err: the ledger
// code if err is a ledger error, the runtime code if it is a RuntimeError,
// and INTERNAL otherwise.
func ErrorCode(err error) string {
	if code := ledger.CodeOf(err); code != "" {
		return string(code)
	}
	var re *RuntimeError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return string(ErrCodeInternal)
}
