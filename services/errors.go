package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a DomainError so callers can pattern-match on the
// class of failure instead of its message.
type ErrorKind int

const (
	// KindValidation covers malformed or missing input, detected before any
	// chain interaction. Safe to retry with corrected input.
	KindValidation ErrorKind = iota
	// KindNotFound covers lookups that resolved to nothing the caller may see.
	KindNotFound
	// KindPrecondition covers operations whose local or on-chain precondition
	// is not met yet (e.g. escrow not paid). Retry later, after the
	// precondition changes.
	KindPrecondition
	// KindConflict covers lost optimistic-concurrency races such as two
	// pickups of the same order. Do not retry blindly.
	KindConflict
	// KindChainRead covers failed read-only contract calls. A read that
	// succeeds and returns false/zero is not a ChainRead error.
	KindChainRead
	// KindChainWrite covers failed submissions, reverts and bad receipts. Any
	// local writes made in the same request are rolled back.
	KindChainWrite
	// KindChainTimeout covers chain calls that exceeded their deadline.
	KindChainTimeout
)

// String returns the stable name of the kind, used in responses and logs.
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindNotFound:
		return "NOT_FOUND"
	case KindPrecondition:
		return "PRECONDITION_FAILED"
	case KindConflict:
		return "CONFLICT"
	case KindChainRead:
		return "CHAIN_READ_ERROR"
	case KindChainWrite:
		return "CHAIN_WRITE_ERROR"
	case KindChainTimeout:
		return "CHAIN_TIMEOUT"
	default:
		return "INTERNAL_ERROR"
	}
}

// DomainError is the tagged error type every service operation returns.
// Message is user-visible and stable; Err carries the structured cause and is
// never exposed to clients (it may reference node internals, never credentials).
type DomainError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// ErrValidation builds a validation-class error.
func ErrValidation(message string) *DomainError {
	return &DomainError{Kind: KindValidation, Message: message}
}

// ErrNotFound builds a not-found error.
func ErrNotFound(message string) *DomainError {
	return &DomainError{Kind: KindNotFound, Message: message}
}

// ErrPrecondition builds a precondition-class error.
func ErrPrecondition(message string) *DomainError {
	return &DomainError{Kind: KindPrecondition, Message: message}
}

// ErrConflict builds a conflict-class error.
func ErrConflict(message string) *DomainError {
	return &DomainError{Kind: KindConflict, Message: message}
}

// ErrChainRead wraps a failed read-only chain call.
func ErrChainRead(message string, cause error) *DomainError {
	return &DomainError{Kind: kindForChainErr(KindChainRead, cause), Message: message, Err: cause}
}

// ErrChainWrite wraps a failed chain submission or receipt.
func ErrChainWrite(message string, cause error) *DomainError {
	return &DomainError{Kind: kindForChainErr(KindChainWrite, cause), Message: message, Err: cause}
}

// kindForChainErr upgrades chain errors to KindChainTimeout when the cause is
// a missed deadline, so callers can tell "node slow" from "node said no".
func kindForChainErr(kind ErrorKind, cause error) ErrorKind {
	var de *DomainError
	if errors.As(cause, &de) && de.Kind == KindChainTimeout {
		return KindChainTimeout
	}
	return kind
}

// AsDomainError extracts a DomainError from err, or wraps err as an internal
// chain-write failure when it carries no classification.
func AsDomainError(err error) *DomainError {
	var de *DomainError
	if errors.As(err, &de) {
		return de
	}
	return &DomainError{Kind: KindChainWrite, Message: "Unexpected error.", Err: err}
}
