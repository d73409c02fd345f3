package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationError marks malformed input: missing required fields or a
// reconciliation mismatch beyond tolerance. Maps to HTTP 400.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// ReconciliationError is a ValidationError carrying both sides of the failed
// arithmetic identity so the caller can re-prompt extraction or let the user
// edit. Amounts are never silently auto-corrected.
type ReconciliationError struct {
	Expected decimal.Decimal // header amount
	Computed decimal.Decimal // items + tax + tip - discount
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("receipt totals do not reconcile: header amount %s, computed %s",
		e.Expected.StringFixed(2), e.Computed.StringFixed(2))
}

// ConflictError signals that a fingerprint already exists and force was not
// set. Carries the existing expense id so an idempotent client retry can
// become a no-op. Maps to HTTP 409.
type ConflictError struct {
	ExistingID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("expense already exists: %s", e.ExistingID)
}

// NotFoundError marks an unknown entity. Batch operations skip these
// per-item; single-entity operations map it to HTTP 404.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// InconsistentStateError means a compensating delete failed after a partial
// write. The store now holds an orphaned row and operators must reconcile
// manually. Must never be swallowed. Maps to HTTP 500.
type InconsistentStateError struct {
	ExpenseID string
	Cause     error
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("inconsistent state: compensating delete failed for expense %s: %v", e.ExpenseID, e.Cause)
}

func (e *InconsistentStateError) Unwrap() error { return e.Cause }

// UpstreamError marks a failed or timed-out call to the tabular store or the
// extraction provider. Retryable; maps to HTTP 502.
type UpstreamError struct {
	Op    string
	Cause error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s failed: %v", e.Op, e.Cause)
}

func (e *UpstreamError) Unwrap() error { return e.Cause }
