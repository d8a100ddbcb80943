package settlement

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/NIMOLA/hermeos-backend-sub002/finance"
	"github.com/NIMOLA/hermeos-backend-sub002/id"
	"github.com/NIMOLA/hermeos-backend-sub002/ownership"
	"github.com/NIMOLA/hermeos-backend-sub002/types"
)

// Payout is one holder's share of a distribution.
type Payout struct {
	OwnershipID id.OwnershipID  `json:"ownership_id"`
	UserID      string          `json:"user_id"`
	Units       int64           `json:"units"`
	Amount      decimal.Decimal `json:"amount"`
}

// Distribution previews how a period's gross rental income is divided.
type Distribution struct {
	PropertyID id.PropertyID   `json:"property_id"`
	Gross      decimal.Decimal `json:"gross"`
	Split      finance.Split   `json:"split"`
	Payouts    []Payout        `json:"payouts"`
	// Distributed is the sum of payouts.
	Distributed decimal.Decimal `json:"distributed"`
	// Unallocated is the member pool share of unsold units plus rounding.
	Unallocated decimal.Decimal `json:"unallocated"`
}

// DistributionPreview applies the rental split to gross and pays the member
// pool pro rata across every active-like holding on the property. It writes
// nothing.
func (e *Engine) DistributionPreview(ctx context.Context, propertyID id.PropertyID, gross types.Money) (*Distribution, error) {
	if gross.IsNegative() {
		return nil, ValidationError{Field: "gross", Message: "must not be negative"}
	}

	p, err := e.store.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	holdings, err := e.store.ListOwnerships(ctx, ownership.ListOpts{
		PropertyID: propertyID,
		Statuses:   ownership.ActiveLike,
	})
	if err != nil {
		return nil, err
	}

	split := finance.RentalSplit(gross.Decimal())
	d := &Distribution{
		PropertyID:  propertyID,
		Gross:       gross.Decimal(),
		Split:       split,
		Payouts:     make([]Payout, 0, len(holdings)),
		Distributed: decimal.Zero,
	}
	for _, o := range holdings {
		amount := finance.ProRata(split.MemberPool, o.Units, p.TotalUnits)
		d.Payouts = append(d.Payouts, Payout{
			OwnershipID: o.ID,
			UserID:      o.UserID,
			Units:       o.Units,
			Amount:      amount,
		})
		d.Distributed = d.Distributed.Add(amount)
	}
	d.Unallocated = split.MemberPool.Sub(d.Distributed)
	return d, nil
}

// ProjectInvestment projects returns for buying units at the property's
// current price.
func (e *Engine) ProjectInvestment(ctx context.Context, propertyID id.PropertyID, units int64) (finance.Projection, error) {
	if units <= 0 {
		return finance.Projection{}, ValidationError{Field: "units", Message: "must be positive"}
	}
	p, err := e.store.GetProperty(ctx, propertyID)
	if err != nil {
		return finance.Projection{}, err
	}
	return finance.Projections(units, p.PricePerUnit.Decimal()), nil
}
