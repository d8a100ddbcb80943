// Package tier derives membership tiers from aggregate unit holdings.
package tier

import (
	"context"

	"github.com/NIMOLA/hermeos-backend-sub002/types"
)

// Tier is a membership rank.
type Tier string

const (
	Standard Tier = "Standard"
	Tier1    Tier = "Tier 1"
	Tier2    Tier = "Tier 2"
	Tier3    Tier = "Tier 3"
)

// Thresholds, in units, at which each tier starts.
const (
	Tier1Units int64 = 1
	Tier2Units int64 = 500
	Tier3Units int64 = 1000
)

// ForUnits maps an active unit total to a tier. It is monotonic in units.
func ForUnits(units int64) Tier {
	switch {
	case units >= Tier3Units:
		return Tier3
	case units >= Tier2Units:
		return Tier2
	case units >= Tier1Units:
		return Tier1
	default:
		return Standard
	}
}

// Rank orders tiers: Standard is 0, Tier 3 is 3. Unknown tiers rank -1.
func (t Tier) Rank() int {
	switch t {
	case Standard:
		return 0
	case Tier1:
		return 1
	case Tier2:
		return 2
	case Tier3:
		return 3
	default:
		return -1
	}
}

// Label is the partner title shown to members.
func (t Tier) Label() string {
	switch t {
	case Tier1:
		return "Yield Partner"
	case Tier2:
		return "Contributing Partner"
	case Tier3:
		return "Guardian Partner"
	default:
		return "Standard"
	}
}

// Record is the cached tier projection for one user.
type Record struct {
	types.Entity

	UserID string `json:"user_id"`
	Tier   Tier   `json:"tier"`
	Units  int64  `json:"units"`
}

// Store persists tier projections.
type Store interface {
	GetTier(ctx context.Context, userID string) (*Record, error)
	// SaveTier upserts the record for rec.UserID.
	SaveTier(ctx context.Context, rec *Record) error
}
