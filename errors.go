package settlement

import (
	"errors"
	"fmt"

	"github.com/NIMOLA/hermeos-backend-sub002/payment"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound          = errors.New("settlement: not found")
	ErrAlreadyExists     = errors.New("settlement: already exists")
	ErrInvalidInput      = errors.New("settlement: invalid input")
	ErrStateConflict     = errors.New("settlement: record is not in the expected state")
	ErrInvalidTransition = errors.New("settlement: invalid stage transition")

	// Payment reference ledger errors
	ErrEntryNotFound        = errors.New("settlement: payment reference not found")
	ErrSettlementInProgress = errors.New("settlement: concurrent settlement in progress for reference")
	ErrReferenceMismatch    = errors.New("settlement: reference already used for a different payment")
	ErrRejected             = errors.New("settlement: payment reference was rejected")
	ErrAmountMismatch       = errors.New("settlement: amount does not match units at current price")

	// Inventory errors
	ErrPropertyNotFound      = errors.New("settlement: property not found")
	ErrPropertyHalted        = errors.New("settlement: property writes halted")
	ErrInsufficientInventory = errors.New("settlement: insufficient inventory")

	// Ownership errors
	ErrOwnershipNotFound = errors.New("settlement: ownership not found")

	// Tier and capability errors
	ErrTierNotFound = errors.New("settlement: tier not found")

	// Store errors
	ErrStorageFailure     = errors.New("settlement: storage failure")
	ErrStoreNotReady      = errors.New("settlement: store not ready")
	ErrStoreClosed        = errors.New("settlement: store is closed")
	ErrTransactionFailed  = errors.New("settlement: transaction failed")
	ErrMigrationFailed    = errors.New("settlement: migration failed")
	ErrInvariantViolation = errors.New("settlement: inventory invariant violated")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("settlement: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "settlement: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("settlement: %d errors occurred", len(e.Errors))
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ErrOrNil returns e if it holds errors, otherwise nil.
func (e *MultiError) ErrOrNil() error {
	if e == nil || !e.HasErrors() {
		return nil
	}
	return *e
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrPropertyNotFound) ||
		errors.Is(err, ErrOwnershipNotFound) ||
		errors.Is(err, ErrTierNotFound)
}

// IsRetryable returns true if the error is temporary and the caller may retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSettlementInProgress) ||
		errors.Is(err, ErrStorageFailure) ||
		errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed)
}

// IsRejection returns true if the error is a terminal business rejection.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInsufficientInventory) ||
		errors.Is(err, ErrPropertyNotFound) ||
		errors.Is(err, ErrPropertyHalted) ||
		errors.Is(err, ErrAmountMismatch) ||
		errors.Is(err, ErrRejected)
}

// IsFatal returns true for errors that indicate corrupted state rather than
// a normal business condition.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInvariantViolation)
}

// ReasonError maps a stored rejection reason to its sentinel.
func ReasonError(reason string) error {
	switch reason {
	case payment.ReasonInventoryExhausted:
		return ErrInsufficientInventory
	case payment.ReasonStorageFailure:
		return ErrStorageFailure
	case payment.ReasonInvariantViolation:
		return ErrInvariantViolation
	case payment.ReasonPropertyNotFound:
		return ErrPropertyNotFound
	case payment.ReasonPropertyHalted:
		return ErrPropertyHalted
	case payment.ReasonAmountMismatch:
		return ErrAmountMismatch
	default:
		return ErrRejected
	}
}

// rejectionReason maps an error from the transactional core to the reason
// stored on the ledger entry.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientInventory):
		return payment.ReasonInventoryExhausted
	case errors.Is(err, ErrInvariantViolation):
		return payment.ReasonInvariantViolation
	case errors.Is(err, ErrPropertyNotFound):
		return payment.ReasonPropertyNotFound
	case errors.Is(err, ErrPropertyHalted):
		return payment.ReasonPropertyHalted
	case errors.Is(err, ErrAmountMismatch):
		return payment.ReasonAmountMismatch
	default:
		return payment.ReasonStorageFailure
	}
}
