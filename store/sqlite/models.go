package sqlite

import (
	"database/sql"
	"strings"
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

const propertyColumns = `id, name, total_units, available_units, price_per_unit, halted, halt_reason, created_at, updated_at`

type propertyModel struct {
	ID             string
	Name           string
	TotalUnits     int64
	AvailableUnits int64
	PricePerUnit   int64
	Halted         bool
	HaltReason     string
	CreatedAt      int64
	UpdatedAt      int64
}

func (m *propertyModel) dest() []any {
	return []any{&m.ID, &m.Name, &m.TotalUnits, &m.AvailableUnits, &m.PricePerUnit,
		&m.Halted, &m.HaltReason, &m.CreatedAt, &m.UpdatedAt}
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

const entryColumns = `reference, id, property_id, user_id, units, amount, state, reason, ownership_id, attempts, settled_at, created_at, updated_at`

type entryModel struct {
	Reference   string
	ID          string
	PropertyID  string
	UserID      string
	Units       int64
	Amount      int64
	State       string
	Reason      string
	OwnershipID sql.NullString
	Attempts    int
	SettledAt   sql.NullInt64
	CreatedAt   int64
	UpdatedAt   int64
}

func (m *entryModel) dest() []any {
	return []any{&m.Reference, &m.ID, &m.PropertyID, &m.UserID, &m.Units, &m.Amount, &m.State,
		&m.Reason, &m.OwnershipID, &m.Attempts, &m.SettledAt, &m.CreatedAt, &m.UpdatedAt}
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
	if m.OwnershipID.Valid {
		if e.OwnershipID, err = id.ParseOwnershipID(m.OwnershipID.String); err != nil {
			return nil, err
		}
	}
	if m.SettledAt.Valid {
		at := fromTS(m.SettledAt.Int64)
		e.SettledAt = &at
	}
	return e, nil
}

// ==================== Ownership models ====================

const ownershipColumns = `id, user_id, property_id, units, acquisition_price, current_value, status, created_at, updated_at`

type ownershipModel struct {
	ID               string
	UserID           string
	PropertyID       string
	Units            int64
	AcquisitionPrice int64
	CurrentValue     int64
	Status           string
	CreatedAt        int64
	UpdatedAt        int64
}

func (m *ownershipModel) dest() []any {
	return []any{&m.ID, &m.UserID, &m.PropertyID, &m.Units, &m.AcquisitionPrice,
		&m.CurrentValue, &m.Status, &m.CreatedAt, &m.UpdatedAt}
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

// ==================== Tier and grant models ====================

type tierModel struct {
	UserID    string
	Tier      string
	Units     int64
	CreatedAt int64
	UpdatedAt int64
}

func fromTierModel(m *tierModel) *tier.Record {
	return &tier.Record{
		Entity: entity(m.CreatedAt, m.UpdatedAt),
		UserID: m.UserID,
		Tier:   tier.Tier(m.Tier),
		Units:  m.Units,
	}
}

type grantModel struct {
	ID        string
	UserID    string
	Name      string
	Source    string
	GrantedAt int64
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
		GrantedAt: fromTS(m.GrantedAt),
	}, nil
}

// ==================== Helpers ====================

func now() time.Time {
	return time.Now().UTC()
}

func ts(t time.Time) int64 {
	return t.UnixNano()
}

func fromTS(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func entity(created, updated int64) types.Entity {
	return types.Entity{CreatedAt: fromTS(created), UpdatedAt: fromTS(updated)}
}

// inList renders "?, ?, ?" for n placeholders.
func inList(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func statusArgs(statuses []ownership.Status) []any {
	out := make([]any, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func stateArgs(states []payment.State) []any {
	out := make([]any, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}

// sourceStates lists the states from which the ledger may move to `to`.
func sourceStates(to payment.State) []any {
	var out []any
	for _, from := range []payment.State{payment.StatePending, payment.StateSettling, payment.StateSettled, payment.StateRejected} {
		if payment.CanTransition(from, to) {
			out = append(out, string(from))
		}
	}
	return out
}
