// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Common application errors.
var (
	// Caller errors.
	ErrInvalidInput = errors.New("invalid input")

	// Reference errors.
	ErrUnknownProduct  = errors.New("unknown product")
	ErrUnknownSupplier = errors.New("unknown supplier")
	ErrUnknownInvoice  = errors.New("unknown invoice")

	// Catalog errors.
	ErrDuplicateProduct = errors.New("duplicate product")

	// Workflow errors.
	ErrIncompleteValidation = errors.New("incomplete validation")
	ErrLineFinalized        = errors.New("line already in terminal state")
	ErrInvoiceSaved         = errors.New("invoice already saved")

	// Storage errors.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrDatabaseCorrupted   = errors.New("database corrupted")

	// Configuration errors.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// DuplicateProductError reports a normalized-name collision on product
// creation. It carries the conflicting product id so the caller can add an
// alias to the existing product instead.
type DuplicateProductError struct {
	NormalizedName string
	ConflictingID  int64
}

func (e *DuplicateProductError) Error() string {
	return fmt.Sprintf("duplicate product: %q already exists as product %d", e.NormalizedName, e.ConflictingID)
}

func (e *DuplicateProductError) Unwrap() error {
	return ErrDuplicateProduct
}

// NewDuplicateProductError creates a DuplicateProductError for the given
// normalized name and existing product id.
func NewDuplicateProductError(normalizedName string, conflictingID int64) error {
	return &DuplicateProductError{
		NormalizedName: normalizedName,
		ConflictingID:  conflictingID,
	}
}

// IncompleteValidationError reports a finalize attempt while some lines are
// still pending. Indices identify the offending lines within the invoice.
type IncompleteValidationError struct {
	Indices []int
}

func (e *IncompleteValidationError) Error() string {
	parts := make([]string, len(e.Indices))
	for i, idx := range e.Indices {
		parts[i] = fmt.Sprintf("%d", idx)
	}
	return fmt.Sprintf("incomplete validation: lines [%s] still pending", strings.Join(parts, ", "))
}

func (e *IncompleteValidationError) Unwrap() error {
	return ErrIncompleteValidation
}

// NewIncompleteValidationError creates an IncompleteValidationError for the
// given pending line indices.
func NewIncompleteValidationError(indices []int) error {
	return &IncompleteValidationError{Indices: indices}
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry. Only
// serialization failures on the shared store are safe to replay wholesale;
// reference and validation errors surface to the caller unchanged.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrConcurrencyConflict) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
