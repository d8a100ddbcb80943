// Package ownership models per-user unit holdings.
package ownership

import (
	"github.com/NIMOLA/hermeos-backend-sub002/id"
	"github.com/NIMOLA/hermeos-backend-sub002/types"
)

// Status is the lifecycle state of a holding.
type Status string

const (
	StatusActive           Status = "active"
	StatusLocked           Status = "locked"
	StatusDeveloperReserve Status = "developer_reserve"
	StatusExited           Status = "exited"
)

// ActiveLike lists the statuses whose units count against inventory and
// toward a user's tier.
var ActiveLike = []Status{StatusActive, StatusLocked, StatusDeveloperReserve}

// IsActiveLike reports whether units under s are still held.
func (s Status) IsActiveLike() bool {
	switch s {
	case StatusActive, StatusLocked, StatusDeveloperReserve:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s.IsActiveLike() || s == StatusExited
}

// Ownership is one user's holding in one property. There is at most one
// record per (UserID, PropertyID); repeat purchases grow Units.
type Ownership struct {
	types.Entity

	ID               id.OwnershipID `json:"id"`
	UserID           string         `json:"user_id"`
	PropertyID       id.PropertyID  `json:"property_id"`
	Units            int64          `json:"units"`
	AcquisitionPrice types.Money    `json:"acquisition_price"`
	CurrentValue     types.Money    `json:"current_value"`
	Status           Status         `json:"status"`
}

// GrantParams describes units being credited to a user.
type GrantParams struct {
	UserID           string
	PropertyID       id.PropertyID
	Units            int64
	AcquisitionPrice types.Money
	// Status for a newly created record. Empty means StatusActive.
	Status Status
}

// InitialStatus returns the status a new record created from p gets.
func (p GrantParams) InitialStatus() Status {
	if p.Status == "" {
		return StatusActive
	}
	return p.Status
}

// Absorb applies a grant to an existing record. A held record accumulates
// units and cost basis; an exited record is reopened with the new purchase
// only. It reports whether the record was reopened.
func (o *Ownership) Absorb(p GrantParams) (reopened bool) {
	if !o.Status.IsActiveLike() {
		o.Units = p.Units
		o.AcquisitionPrice = p.AcquisitionPrice
		o.CurrentValue = p.AcquisitionPrice
		o.Status = p.InitialStatus()
		o.Touch()
		return true
	}

	o.Units += p.Units
	o.AcquisitionPrice = o.AcquisitionPrice.Add(p.AcquisitionPrice)
	o.CurrentValue = o.CurrentValue.Add(p.AcquisitionPrice)
	o.Touch()
	return false
}

// FromGrant builds a new record for p.
func FromGrant(p GrantParams) *Ownership {
	return &Ownership{
		Entity:           types.NewEntity(),
		ID:               id.NewOwnershipID(),
		UserID:           p.UserID,
		PropertyID:       p.PropertyID,
		Units:            p.Units,
		AcquisitionPrice: p.AcquisitionPrice,
		CurrentValue:     p.AcquisitionPrice,
		Status:           p.InitialStatus(),
	}
}

// ListOpts filters ownership listings. Empty fields match everything.
type ListOpts struct {
	UserID     string
	PropertyID id.PropertyID
	Statuses   []Status
	Limit      int
	Offset     int
}

// Matches reports whether o passes the filter, ignoring paging.
func (opts ListOpts) Matches(o *Ownership) bool {
	if opts.UserID != "" && o.UserID != opts.UserID {
		return false
	}
	if !opts.PropertyID.IsNil() && o.PropertyID.String() != opts.PropertyID.String() {
		return false
	}
	if len(opts.Statuses) == 0 {
		return true
	}
	for _, s := range opts.Statuses {
		if o.Status == s {
			return true
		}
	}
	return false
}
