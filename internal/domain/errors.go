package domain

import (
	"errors"
	"fmt"
)

// Category sentinels. Wrap with NewDomainError to add operation context.
var (
	ErrNotFound          = fmt.Errorf("not found")
	ErrInvalidInput      = fmt.Errorf("invalid input")
	ErrInsufficientFunds = fmt.Errorf("insufficient funds")
	ErrWriteConflict     = fmt.Errorf("write conflict")
	ErrPartialTransfer   = fmt.Errorf("transfer partially applied")
	ErrPermissionDenied  = fmt.Errorf("permission denied")
	ErrProviderError     = fmt.Errorf("provider error")
)

// Sentinel errors for specific subsystems.
var (
	ErrToolNotFound    = fmt.Errorf("tool: %w", ErrNotFound)
	ErrAccountNotFound = fmt.Errorf("account: %w", ErrNotFound)
	ErrThreadNotFound  = fmt.Errorf("thread: %w", ErrNotFound)
	ErrAgentNotFound   = fmt.Errorf("agent: %w", ErrNotFound)
	ErrAuthInvalid     = fmt.Errorf("authentication failed")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Ledger.Transfer")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode is a machine-parseable error category for monitoring and alerting.
type ErrorCode string

// Error codes. Every sentinel error maps to exactly one code.
const (
	CodeUnknown           ErrorCode = "UNKNOWN"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeInvalidInput      ErrorCode = "INVALID_INPUT"
	CodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"
	CodeWriteConflict     ErrorCode = "WRITE_CONFLICT"
	CodePartialTransfer   ErrorCode = "PARTIAL_TRANSFER"
	CodePermissionDenied  ErrorCode = "PERMISSION_DENIED"
	CodeProviderError     ErrorCode = "PROVIDER_ERROR"
	CodeToolNotFound      ErrorCode = "TOOL_NOT_FOUND"
	CodeAccountNotFound   ErrorCode = "ACCOUNT_NOT_FOUND"
	CodeThreadNotFound    ErrorCode = "THREAD_NOT_FOUND"
	CodeAgentNotFound     ErrorCode = "AGENT_NOT_FOUND"
	CodeAuthInvalid       ErrorCode = "AUTH_INVALID"
)

// errorCodeList maps sentinel errors to their machine-parseable codes.
// Order matters: specific sentinels are checked before the categories
// they wrap.
var errorCodeList = []struct {
	err  error
	code ErrorCode
}{
	{ErrToolNotFound, CodeToolNotFound},
	{ErrAccountNotFound, CodeAccountNotFound},
	{ErrThreadNotFound, CodeThreadNotFound},
	{ErrAgentNotFound, CodeAgentNotFound},
	{ErrInsufficientFunds, CodeInsufficientFunds},
	{ErrWriteConflict, CodeWriteConflict},
	{ErrPartialTransfer, CodePartialTransfer},
	{ErrPermissionDenied, CodePermissionDenied},
	{ErrProviderError, CodeProviderError},
	{ErrAuthInvalid, CodeAuthInvalid},
	{ErrInvalidInput, CodeInvalidInput},
	{ErrNotFound, CodeNotFound},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It walks the error chain with errors.Is, preferring the most specific
// sentinel. Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	for _, e := range errorCodeList {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return CodeUnknown
}
