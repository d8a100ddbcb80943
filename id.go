package settlement

import "github.com/NIMOLA/hermeos-backend-sub002/id"

// ID is the primary identifier type for all settlement entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix

// Typed aliases re-exported for convenience.
type (
	PropertyID   = id.PropertyID
	OwnershipID  = id.OwnershipID
	SettlementID = id.SettlementID
)

// ParsePropertyID parses a "prop_" identifier.
var ParsePropertyID = id.ParsePropertyID

// ParseOwnershipID parses an "own_" identifier.
var ParseOwnershipID = id.ParseOwnershipID
