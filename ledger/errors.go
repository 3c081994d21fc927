/*
errors.go - Centralized error types for the reconciliation engine

PURPOSE:
  All expected failure kinds in one place. Business-rule violations
  (insufficient balance, invalid input) are ordinary error values the
  caller inspects with errors.Is; nothing panics across the package
  boundary, and unexpected store faults are wrapped with ErrStoreFailed
  at the operation boundary.

ERROR CATEGORIES:
  1. Not-found errors  - Referenced wallet/transaction/user missing
  2. Rule violations   - Mutations the ledger refuses to apply
  3. Collaborator errors - Store or media-upload failures

USAGE:
  if errors.Is(err, ledger.ErrInsufficientBalance) {
      var detail *ledger.InsufficientBalanceError
      if errors.As(err, &detail) { ... }
  }
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/finvault/wallet-engine/docstore"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrWalletNotFound is returned when a referenced wallet doesn't exist.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrTransactionNotFound is returned when a referenced transaction doesn't exist.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrUserNotFound is returned when a referenced user doesn't exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrInsufficientBalance is returned when an expense would drive a
	// wallet's amount negative.
	ErrInsufficientBalance = errors.New("insufficient balance in wallet")

	// ErrCannotDelete is returned when deleting an income transaction would
	// drive the wallet's amount negative.
	ErrCannotDelete = errors.New("cannot delete this transaction")

	// ErrInvalidInput is returned for missing amount/type/wallet reference,
	// non-positive amounts, or a missing category on an expense.
	ErrInvalidInput = errors.New("invalid transaction data")

	// ErrUploadFailed is returned when the media collaborator fails.
	ErrUploadFailed = errors.New("upload failed")

	// ErrStoreFailed wraps unexpected document-store failures.
	ErrStoreFailed = errors.New("store operation failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	WalletID  string
	Available Amount
	Requested Amount
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance in wallet %s: available %v, requested %v",
		e.WalletID, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// ValidationError names the field that failed input validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid transaction data: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, docstore.ErrConflict)
}

// IsClientError returns true if the error is due to a business-rule
// violation or invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrCannotDelete) ||
		errors.Is(err, ErrInvalidInput)
}

// IsNotFound returns true if the error indicates a missing document.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWalletNotFound) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, docstore.ErrNotFound)
}

// storeErr wraps unexpected store faults so they surface as ErrStoreFailed
// without losing the underlying cause. Conflict errors pass through so the
// retry loop can see them.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, docstore.ErrConflict) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrStoreFailed, op, err)
}
