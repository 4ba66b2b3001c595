package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Error types for consistent error handling across the ledger.

// ErrNotConfigured indicates the store credentials are missing.
type ErrNotConfigured struct {
	Reason string
}

func (e *ErrNotConfigured) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("store not configured: %s", e.Reason)
	}
	return "store not configured"
}

// ErrSetupIncomplete indicates the credentials work but the tables do not exist yet.
type ErrSetupIncomplete struct{}

func (e *ErrSetupIncomplete) Error() string {
	return "store tables not found: run the setup script"
}

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrStoreUnavailable indicates a failure talking to the table store.
type ErrStoreUnavailable struct {
	Table string
	Op    string
	Err   error
}

func (e *ErrStoreUnavailable) Error() string {
	return fmt.Sprintf("store error [%s %s]: %v", e.Op, e.Table, e.Err)
}

func (e *ErrStoreUnavailable) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrInsufficientFunds indicates not enough balance for a settlement.
type ErrInsufficientFunds struct {
	Available decimal.Decimal
	Required  decimal.Decimal
}

func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds: available=%s required=%s",
		e.Available.StringFixed(2), e.Required.StringFixed(2))
}

// ErrConflict indicates the resource is in a state that forbids the operation
// (e.g. paying a list that is already completed).
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// ErrPartialWrite indicates a multi-step write failed and undoing the steps
// already applied also failed, so the stored balance may be out of sync.
type ErrPartialWrite struct {
	Operation       string
	OperationID     string
	Err             error
	CompensationErr error
}

func (e *ErrPartialWrite) Error() string {
	return fmt.Sprintf("partial write in %s (operation %s): %v; compensation failed: %v",
		e.Operation, e.OperationID, e.Err, e.CompensationErr)
}

func (e *ErrPartialWrite) Unwrap() error {
	return e.Err
}
