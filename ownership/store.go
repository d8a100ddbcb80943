package ownership

import (
	"context"

	"github.com/NIMOLA/hermeos-backend-sub002/id"
)

// Store is the ownership ledger contract.
type Store interface {
	// Grant merges units into the (user, property) record or creates it.
	Grant(ctx context.Context, p GrantParams) (*Ownership, error)
	GetOwnership(ctx context.Context, ownershipID id.OwnershipID) (*Ownership, error)
	ListOwnerships(ctx context.Context, opts ListOpts) ([]*Ownership, error)
	// TransitionOwnership moves a record from one of from to to, failing
	// with a state conflict when the current status is not in from.
	TransitionOwnership(ctx context.Context, ownershipID id.OwnershipID, from []Status, to Status) (*Ownership, error)
	// SumUnitsByUser totals active-like units held by userID.
	SumUnitsByUser(ctx context.Context, userID string) (int64, error)
	// SumUnitsByProperty totals active-like units held in propertyID.
	SumUnitsByProperty(ctx context.Context, propertyID id.PropertyID) (int64, error)
}
