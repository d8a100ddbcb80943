// Package property models the unit inventory of a fractional property.
package property

import (
	"github.com/NIMOLA/hermeos-backend-sub002/id"
	"github.com/NIMOLA/hermeos-backend-sub002/types"
)

// Property is a fixed supply of units offered for fractional ownership.
// TotalUnits never changes after creation; AvailableUnits is owned by the
// inventory allocator and is the only field settlement mutates.
type Property struct {
	types.Entity

	ID             id.PropertyID `json:"id"`
	Name           string        `json:"name"`
	TotalUnits     int64         `json:"total_units"`
	AvailableUnits int64         `json:"available_units"`
	PricePerUnit   types.Money   `json:"price_per_unit"`
	Halted         bool          `json:"halted"`
	HaltReason     string        `json:"halt_reason,omitempty"`
}

// SoldUnits returns the units currently held by owners.
func (p *Property) SoldUnits() int64 {
	return p.TotalUnits - p.AvailableUnits
}

// InBounds reports whether AvailableUnits lies within [0, TotalUnits].
func (p *Property) InBounds() bool {
	return p.AvailableUnits >= 0 && p.AvailableUnits <= p.TotalUnits
}

// PriceFor returns the expected payment for units.
func (p *Property) PriceFor(units int64) types.Money {
	return p.PricePerUnit.Mul(units)
}

// ListOpts filters property listings.
type ListOpts struct {
	HaltedOnly bool
	Limit      int
	Offset     int
}
