// Package payment models the payment reference ledger, the idempotency gate
// in front of every settlement.
package payment

import (
	"time"

	"github.com/NIMOLA/hermeos-backend-sub002/id"
	"github.com/NIMOLA/hermeos-backend-sub002/types"
)

// State is the settlement state of a payment reference.
type State string

const (
	StatePending  State = "pending"
	StateSettling State = "settling"
	StateSettled  State = "settled"
	StateRejected State = "rejected"
)

// Terminal reports whether s is a final outcome.
func (s State) Terminal() bool {
	return s == StateSettled || s == StateRejected
}

// CanTransition reports whether the ledger allows from -> to.
func CanTransition(from, to State) bool {
	switch from {
	case StatePending:
		return to == StateSettling || to == StateRejected
	case StateSettling:
		return to == StateSettled || to == StateRejected
	default:
		return false
	}
}

// Rejection reason codes stored on rejected entries.
const (
	ReasonInventoryExhausted = "inventory_exhausted"
	ReasonStorageFailure     = "storage_failure"
	ReasonInvariantViolation = "invariant_violation"
	ReasonPropertyNotFound   = "property_not_found"
	ReasonPropertyHalted     = "property_halted"
	ReasonAmountMismatch     = "amount_mismatch"
)

// Entry is one payment reference and its settlement outcome.
type Entry struct {
	types.Entity

	ID          id.SettlementID `json:"id"`
	Reference   string          `json:"reference"`
	PropertyID  id.PropertyID   `json:"property_id"`
	UserID      string          `json:"user_id"`
	Units       int64           `json:"units"`
	Amount      types.Money     `json:"amount"`
	State       State           `json:"state"`
	Reason      string          `json:"reason,omitempty"`
	OwnershipID id.OwnershipID  `json:"ownership_id"`
	Attempts    int             `json:"attempts"`
	SettledAt   *time.Time      `json:"settled_at,omitempty"`
}

// NewEntry builds a pending entry for a confirmed payment.
func NewEntry(reference string, propertyID id.PropertyID, userID string, units int64, amount types.Money) *Entry {
	return &Entry{
		Entity:     types.NewEntity(),
		ID:         id.NewSettlementID(),
		Reference:  reference,
		PropertyID: propertyID,
		UserID:     userID,
		Units:      units,
		Amount:     amount,
		State:      StatePending,
	}
}

// SameRequest reports whether other describes the same payment as e.
func (e *Entry) SameRequest(other *Entry) bool {
	return e.Reference == other.Reference &&
		e.PropertyID.String() == other.PropertyID.String() &&
		e.UserID == other.UserID &&
		e.Units == other.Units &&
		e.Amount == other.Amount
}

// ListOpts selects entries for the recovery pass.
type ListOpts struct {
	States        []State
	UpdatedBefore time.Time
	Limit         int
}
