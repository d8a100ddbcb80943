package mongo

import (
	"time"

	"github.com/NIMOLA/hermeos-backend-sub002/capability"
	"github.com/NIMOLA/hermeos-backend-sub002/id"
	"github.com/NIMOLA/hermeos-backend-sub002/ownership"
	"github.com/NIMOLA/hermeos-backend-sub002/payment"
	"github.com/NIMOLA/hermeos-backend-sub002/property"
	"github.com/NIMOLA/hermeos-backend-sub002/tier"
	"github.com/NIMOLA/hermeos-backend-sub002/types"
)

// ==================== Property models ====================

type propertyModel struct {
	ID             string    `bson:"_id"`
	Name           string    `bson:"name"`
	TotalUnits     int64     `bson:"total_units"`
	AvailableUnits int64     `bson:"available_units"`
	PricePerUnit   int64     `bson:"price_per_unit"`
	Halted         bool      `bson:"halted"`
	HaltReason     string    `bson:"halt_reason"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

func toPropertyModel(p *property.Property) *propertyModel {
	return &propertyModel{
		ID:             p.ID.String(),
		Name:           p.Name,
		TotalUnits:     p.TotalUnits,
		AvailableUnits: p.AvailableUnits,
		PricePerUnit:   p.PricePerUnit.Int64(),
		Halted:         p.Halted,
		HaltReason:     p.HaltReason,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func fromPropertyModel(m *propertyModel) (*property.Property, error) {
	propID, err := id.ParsePropertyID(m.ID)
	if err != nil {
		return nil, err
	}
	return &property.Property{
		Entity:         entity(m.CreatedAt, m.UpdatedAt),
		ID:             propID,
		Name:           m.Name,
		TotalUnits:     m.TotalUnits,
		AvailableUnits: m.AvailableUnits,
		PricePerUnit:   types.Money(m.PricePerUnit),
		Halted:         m.Halted,
		HaltReason:     m.HaltReason,
	}, nil
}

// ==================== Entry models ====================

// entryModel is keyed by the payment reference so the primary index doubles
// as the idempotency guard.
type entryModel struct {
	Reference   string     `bson:"_id"`
	ID          string     `bson:"id"`
	PropertyID  string     `bson:"property_id"`
	UserID      string     `bson:"user_id"`
	Units       int64      `bson:"units"`
	Amount      int64      `bson:"amount"`
	State       string     `bson:"state"`
	Reason      string     `bson:"reason"`
	OwnershipID string     `bson:"ownership_id,omitempty"`
	Attempts    int        `bson:"attempts"`
	SettledAt   *time.Time `bson:"settled_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}

func toEntryModel(e *payment.Entry) *entryModel {
	m := &entryModel{
		Reference:  e.Reference,
		ID:         e.ID.String(),
		PropertyID: e.PropertyID.String(),
		UserID:     e.UserID,
		Units:      e.Units,
		Amount:     e.Amount.Int64(),
		State:      string(e.State),
		Reason:     e.Reason,
		Attempts:   e.Attempts,
		SettledAt:  e.SettledAt,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
	if !e.OwnershipID.IsNil() {
		m.OwnershipID = e.OwnershipID.String()
	}
	return m
}

func fromEntryModel(m *entryModel) (*payment.Entry, error) {
	settlementID, err := id.ParseSettlementID(m.ID)
	if err != nil {
		return nil, err
	}
	propID, err := id.ParsePropertyID(m.PropertyID)
	if err != nil {
		return nil, err
	}
	e := &payment.Entry{
		Entity:     entity(m.CreatedAt, m.UpdatedAt),
		ID:         settlementID,
		Reference:  m.Reference,
		PropertyID: propID,
		UserID:     m.UserID,
		Units:      m.Units,
		Amount:     types.Money(m.Amount),
		State:      payment.State(m.State),
		Reason:     m.Reason,
		Attempts:   m.Attempts,
	}
	if m.OwnershipID != "" {
		if e.OwnershipID, err = id.ParseOwnershipID(m.OwnershipID); err != nil {
			return nil, err
		}
	}
	if m.SettledAt != nil {
		at := m.SettledAt.UTC()
		e.SettledAt = &at
	}
	return e, nil
}

// ==================== Ownership models ====================

type ownershipModel struct {
	ID               string    `bson:"_id"`
	UserID           string    `bson:"user_id"`
	PropertyID       string    `bson:"property_id"`
	Units            int64     `bson:"units"`
	AcquisitionPrice int64     `bson:"acquisition_price"`
	CurrentValue     int64     `bson:"current_value"`
	Status           string    `bson:"status"`
	CreatedAt        time.Time `bson:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at"`
}

func toOwnershipModel(o *ownership.Ownership) *ownershipModel {
	return &ownershipModel{
		ID:               o.ID.String(),
		UserID:           o.UserID,
		PropertyID:       o.PropertyID.String(),
		Units:            o.Units,
		AcquisitionPrice: o.AcquisitionPrice.Int64(),
		CurrentValue:     o.CurrentValue.Int64(),
		Status:           string(o.Status),
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

func fromOwnershipModel(m *ownershipModel) (*ownership.Ownership, error) {
	ownID, err := id.ParseOwnershipID(m.ID)
	if err != nil {
		return nil, err
	}
	propID, err := id.ParsePropertyID(m.PropertyID)
	if err != nil {
		return nil, err
	}
	return &ownership.Ownership{
		Entity:           entity(m.CreatedAt, m.UpdatedAt),
		ID:               ownID,
		UserID:           m.UserID,
		PropertyID:       propID,
		Units:            m.Units,
		AcquisitionPrice: types.Money(m.AcquisitionPrice),
		CurrentValue:     types.Money(m.CurrentValue),
		Status:           ownership.Status(m.Status),
	}, nil
}

// ==================== Tier and capability models ====================

type tierModel struct {
	UserID    string    `bson:"_id"`
	Tier      string    `bson:"tier"`
	Units     int64     `bson:"units"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func fromTierModel(m *tierModel) *tier.Record {
	return &tier.Record{
		Entity: entity(m.CreatedAt, m.UpdatedAt),
		UserID: m.UserID,
		Tier:   tier.Tier(m.Tier),
		Units:  m.Units,
	}
}

type kycModel struct {
	UserID    string    `bson:"_id"`
	Status    string    `bson:"status"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type grantModel struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Name      string    `bson:"name"`
	Source    string    `bson:"source"`
	GrantedAt time.Time `bson:"granted_at"`
}

func fromGrantModel(m *grantModel) (*capability.Grant, error) {
	grantID, err := id.ParseGrantID(m.ID)
	if err != nil {
		return nil, err
	}
	return &capability.Grant{
		ID:        grantID,
		UserID:    m.UserID,
		Name:      m.Name,
		Source:    m.Source,
		GrantedAt: m.GrantedAt.UTC(),
	}, nil
}

// ==================== Helpers ====================

func now() time.Time {
	return time.Now().UTC()
}

func entity(created, updated time.Time) types.Entity {
	return types.Entity{CreatedAt: created.UTC(), UpdatedAt: updated.UTC()}
}

func statusStrings(statuses []ownership.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func stateStrings(states []payment.State) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}

// sourceStates lists the states from which the ledger may move to `to`.
func sourceStates(to payment.State) []string {
	var out []string
	for _, from := range []payment.State{payment.StatePending, payment.StateSettling, payment.StateSettled, payment.StateRejected} {
		if payment.CanTransition(from, to) {
			out = append(out, string(from))
		}
	}
	return out
}
