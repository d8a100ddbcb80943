package property

import (
	"context"

	"github.com/NIMOLA/hermeos-backend-sub002/id"
)

// Store is the inventory allocator contract.
//
// Reserve must be a single guarded decrement: it either subtracts units from
// AvailableUnits while AvailableUnits >= units, or changes nothing and
// returns an insufficient-inventory error. Release is its inverse and must
// never push AvailableUnits above TotalUnits.
//
// LockProperty reads the property and, inside a transaction, holds it
// against concurrent writers until the transaction ends. Transactions that
// touch both a property and its ownerships lock the property first.
type Store interface {
	CreateProperty(ctx context.Context, p *Property) error
	GetProperty(ctx context.Context, propertyID id.PropertyID) (*Property, error)
	LockProperty(ctx context.Context, propertyID id.PropertyID) (*Property, error)
	ListProperties(ctx context.Context, opts ListOpts) ([]*Property, error)
	Reserve(ctx context.Context, propertyID id.PropertyID, units int64) error
	Release(ctx context.Context, propertyID id.PropertyID, units int64) error
	SetHalted(ctx context.Context, propertyID id.PropertyID, halted bool, reason string) error
}
