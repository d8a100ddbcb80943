package settlement

import (
	"github.com/NIMOLA/hermeos-backend-sub002/ownership"
	"github.com/NIMOLA/hermeos-backend-sub002/payment"
	"github.com/NIMOLA/hermeos-backend-sub002/tier"
	"github.com/NIMOLA/hermeos-backend-sub002/types"
)

// Re-export common types so callers rarely need the entity packages.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// Tier is re-exported from tier package.
type Tier = tier.Tier

// State is the payment reference state, re-exported from payment package.
type State = payment.State

// OwnershipStatus is re-exported from ownership package.
type OwnershipStatus = ownership.Status

// Re-export helpers
var (
	Sum       = types.Sum
	NewEntity = types.NewEntity
	TierFor   = tier.ForUnits
)
