package ledger

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes ledger errors.
type ErrorCode string

const (
	// CodeOverflow indicates an addition would exceed the uint64 range.
	CodeOverflow ErrorCode = "OVERFLOW"

	// CodeUnderflow indicates a subtraction would go below zero.
	CodeUnderflow ErrorCode = "UNDERFLOW"

	// CodeInsufficientUserBalance indicates a withdrawal exceeds the recorded balance.
	CodeInsufficientUserBalance ErrorCode = "INSUFFICIENT_USER_BALANCE"

	// CodeNoDepositRecord indicates a withdrawal by a depositor with no entry.
	CodeNoDepositRecord ErrorCode = "NO_DEPOSIT_RECORD"

	// CodeLedgerFull indicates a new depositor would exceed the vault capacity.
	CodeLedgerFull ErrorCode = "LEDGER_FULL"

	// CodeTransferFailed indicates the transfer service rejected the request.
	CodeTransferFailed ErrorCode = "TRANSFER_FAILED"
)

// Error is a ledger transition failure. Every Error aborts the whole step.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Depositor is the identity the failed step acted for.
	Depositor string

	// Amount is the requested amount.
	Amount uint64

	// Err is the underlying cause (transfer service error).
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Depositor != "" {
		msg = fmt.Sprintf("%s (depositor=%s, amount=%d)", msg, e.Depositor, e.Amount)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so callers can write
// errors.Is(err, ledger.ErrOverflow).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrOverflow                = &Error{Code: CodeOverflow, Message: "arithmetic overflow"}
	ErrUnderflow               = &Error{Code: CodeUnderflow, Message: "arithmetic underflow"}
	ErrInsufficientUserBalance = &Error{Code: CodeInsufficientUserBalance, Message: "insufficient user balance"}
	ErrNoDepositRecord         = &Error{Code: CodeNoDepositRecord, Message: "no deposit record"}
	ErrLedgerFull              = &Error{Code: CodeLedgerFull, Message: "ledger full"}
	ErrTransferFailed          = &Error{Code: CodeTransferFailed, Message: "transfer failed"}
)

// CodeOf returns the ledger error code carried by err, or "" if err is not
// a ledger error.
func CodeOf(err error) ErrorCode {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

func newError(code ErrorCode, message, depositor string, amount uint64) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Depositor: depositor,
		Amount:    amount,
	}
}
