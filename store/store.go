// Package store defines the aggregate persistence contract for the
// settlement engine. Backends live in the subpackages.
package store

import (
	"context"

	"github.com/NIMOLA/hermeos-backend-sub002/capability"
	"github.com/NIMOLA/hermeos-backend-sub002/ownership"
	"github.com/NIMOLA/hermeos-backend-sub002/payment"
	"github.com/NIMOLA/hermeos-backend-sub002/property"
	"github.com/NIMOLA/hermeos-backend-sub002/tier"
)

// Store is the unified storage interface for all settlement entities.
// Entity method names are disjoint, so the per-entity contracts embed
// without conflicts.
type Store interface {
	payment.Store
	property.Store
	ownership.Store
	tier.Store
	capability.Store

	// WithTx runs fn inside one all-or-nothing transaction. The Store handed
	// to fn is bound to that transaction; if fn returns an error every write
	// made through it is rolled back. Calling WithTx on a transaction-bound
	// Store joins the outer transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
