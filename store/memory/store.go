// Package memory provides an in-process store.Store for tests and
// single-node development. Transactions copy the whole state and swap it in
// on commit, so every transaction is serialized behind one lock.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	settlement "github.com/NIMOLA/hermeos-backend-sub002"
	"github.com/NIMOLA/hermeos-backend-sub002/capability"
	"github.com/NIMOLA/hermeos-backend-sub002/id"
	"github.com/NIMOLA/hermeos-backend-sub002/ownership"
	"github.com/NIMOLA/hermeos-backend-sub002/payment"
	"github.com/NIMOLA/hermeos-backend-sub002/property"
	"github.com/NIMOLA/hermeos-backend-sub002/store"
	"github.com/NIMOLA/hermeos-backend-sub002/tier"
	"github.com/NIMOLA/hermeos-backend-sub002/types"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type locker interface {
	Lock()
	Unlock()
	RLock()
	RUnlock()
}

// noLock is used by transaction-bound stores; the parent holds the real lock.
type noLock struct{}

func (noLock) Lock()    {}
func (noLock) Unlock()  {}
func (noLock) RLock()   {}
func (noLock) RUnlock() {}

type state struct {
	properties map[string]*property.Property
	ownerships map[string]*ownership.Ownership
	ownerIndex map[string]string // user|property -> ownership id
	entries    map[string]*payment.Entry
	tiers      map[string]*tier.Record
	kyc        map[string]capability.KYCStatus
	grants     map[string]map[string]*capability.Grant
}

func newState() *state {
	return &state{
		properties: make(map[string]*property.Property),
		ownerships: make(map[string]*ownership.Ownership),
		ownerIndex: make(map[string]string),
		entries:    make(map[string]*payment.Entry),
		tiers:      make(map[string]*tier.Record),
		kyc:        make(map[string]capability.KYCStatus),
		grants:     make(map[string]map[string]*capability.Grant),
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.properties {
		cp := *v
		c.properties[k] = &cp
	}
	for k, v := range st.ownerships {
		cp := *v
		c.ownerships[k] = &cp
	}
	for k, v := range st.ownerIndex {
		c.ownerIndex[k] = v
	}
	for k, v := range st.entries {
		c.entries[k] = copyEntry(v)
	}
	for k, v := range st.tiers {
		cp := *v
		c.tiers[k] = &cp
	}
	for k, v := range st.kyc {
		c.kyc[k] = v
	}
	for user, set := range st.grants {
		cs := make(map[string]*capability.Grant, len(set))
		for name, g := range set {
			cp := *g
			cs[name] = &cp
		}
		c.grants[user] = cs
	}
	return c
}

// Store is the in-memory store.Store.
type Store struct {
	mu   locker
	st   *state
	inTx bool
}

// New returns an empty store.
func New() *Store {
	return &Store{mu: &sync.RWMutex{}, st: newState()}
}

// WithTx implements store.Store.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	tx := &Store{mu: noLock{}, st: work, inTx: true}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// ==================== Payment reference ledger ====================

func (s *Store) RecordAttempt(_ context.Context, e *payment.Entry) (*payment.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.st.entries[e.Reference]; ok {
		return copyEntry(existing), false, nil
	}
	s.st.entries[e.Reference] = copyEntry(e)
	return copyEntry(e), true, nil
}

func (s *Store) GetEntry(_ context.Context, reference string) (*payment.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.st.entries[reference]
	if !ok {
		return nil, settlement.ErrEntryNotFound
	}
	return copyEntry(e), nil
}

func (s *Store) MarkSettling(_ context.Context, reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.st.transition(reference, payment.StateSettling)
	if err != nil {
		return err
	}
	e.Touch()
	return nil
}

func (s *Store) MarkSettled(_ context.Context, reference string, ownershipID id.OwnershipID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.st.transition(reference, payment.StateSettled)
	if err != nil {
		return err
	}
	at := now()
	e.OwnershipID = ownershipID
	e.SettledAt = &at
	e.UpdatedAt = at
	return nil
}

func (s *Store) MarkRejected(_ context.Context, reference, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.st.transition(reference, payment.StateRejected)
	if err != nil {
		return err
	}
	e.Reason = reason
	e.Touch()
	return nil
}

func (s *Store) ClaimStale(_ context.Context, reference string, cutoff time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.st.entries[reference]
	if !ok {
		return false, settlement.ErrEntryNotFound
	}
	if e.State.Terminal() || !e.UpdatedAt.Before(cutoff) {
		return false, nil
	}
	e.Attempts++
	e.Touch()
	return true, nil
}

func (s *Store) ListEntries(_ context.Context, opts payment.ListOpts) ([]*payment.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*payment.Entry
	for _, e := range s.st.entries {
		if len(opts.States) > 0 && !hasState(opts.States, e.State) {
			continue
		}
		if !opts.UpdatedBefore.IsZero() && !e.UpdatedAt.Before(opts.UpdatedBefore) {
			continue
		}
		out = append(out, copyEntry(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (st *state) transition(reference string, to payment.State) (*payment.Entry, error) {
	e, ok := st.entries[reference]
	if !ok {
		return nil, settlement.ErrEntryNotFound
	}
	if !payment.CanTransition(e.State, to) {
		return nil, fmt.Errorf("%w: reference %q is %s, cannot move to %s",
			settlement.ErrStateConflict, reference, e.State, to)
	}
	e.State = to
	return e, nil
}

// ==================== Inventory ====================

func (s *Store) CreateProperty(_ context.Context, p *property.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.st.properties[p.ID.String()]; exists {
		return settlement.ErrAlreadyExists
	}
	cp := *p
	s.st.properties[p.ID.String()] = &cp
	return nil
}

func (s *Store) GetProperty(_ context.Context, propertyID id.PropertyID) (*property.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.st.properties[propertyID.String()]
	if !ok {
		return nil, settlement.ErrPropertyNotFound
	}
	cp := *p
	return &cp, nil
}

// LockProperty is GetProperty: transactions already run one at a time.
func (s *Store) LockProperty(ctx context.Context, propertyID id.PropertyID) (*property.Property, error) {
	return s.GetProperty(ctx, propertyID)
}

func (s *Store) ListProperties(_ context.Context, opts property.ListOpts) ([]*property.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*property.Property
	for _, p := range s.st.properties {
		if opts.HaltedOnly && !p.Halted {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return page(out, opts.Offset, opts.Limit), nil
}

func (s *Store) Reserve(_ context.Context, propertyID id.PropertyID, units int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.st.properties[propertyID.String()]
	if !ok {
		return settlement.ErrPropertyNotFound
	}
	if p.Halted {
		return settlement.ErrPropertyHalted
	}
	if units <= 0 {
		return settlement.ErrInvalidInput
	}
	if p.AvailableUnits < units {
		return settlement.ErrInsufficientInventory
	}
	p.AvailableUnits -= units
	p.Touch()
	return nil
}

func (s *Store) Release(_ context.Context, propertyID id.PropertyID, units int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.st.properties[propertyID.String()]
	if !ok {
		return settlement.ErrPropertyNotFound
	}
	if p.Halted {
		return settlement.ErrPropertyHalted
	}
	if units <= 0 {
		return settlement.ErrInvalidInput
	}
	if p.AvailableUnits+units > p.TotalUnits {
		return fmt.Errorf("%w: releasing %d units on %s would exceed total %d",
			settlement.ErrInvariantViolation, units, propertyID, p.TotalUnits)
	}
	p.AvailableUnits += units
	p.Touch()
	return nil
}

func (s *Store) SetHalted(_ context.Context, propertyID id.PropertyID, halted bool, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.st.properties[propertyID.String()]
	if !ok {
		return settlement.ErrPropertyNotFound
	}
	p.Halted = halted
	p.HaltReason = reason
	if !halted {
		p.HaltReason = ""
	}
	p.Touch()
	return nil
}

// ==================== Ownership ====================

func (s *Store) Grant(_ context.Context, g ownership.GrantParams) (*ownership.Ownership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g.Units <= 0 || g.UserID == "" {
		return nil, settlement.ErrInvalidInput
	}

	key := ownerKey(g.UserID, g.PropertyID)
	if ownID, ok := s.st.ownerIndex[key]; ok {
		o := s.st.ownerships[ownID]
		o.Absorb(g)
		cp := *o
		return &cp, nil
	}

	o := ownership.FromGrant(g)
	s.st.ownerships[o.ID.String()] = o
	s.st.ownerIndex[key] = o.ID.String()
	cp := *o
	return &cp, nil
}

func (s *Store) GetOwnership(_ context.Context, ownershipID id.OwnershipID) (*ownership.Ownership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.st.ownerships[ownershipID.String()]
	if !ok {
		return nil, settlement.ErrOwnershipNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *Store) ListOwnerships(_ context.Context, opts ownership.ListOpts) ([]*ownership.Ownership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*ownership.Ownership
	for _, o := range s.st.ownerships {
		if !opts.Matches(o) {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return page(out, opts.Offset, opts.Limit), nil
}

func (s *Store) TransitionOwnership(_ context.Context, ownershipID id.OwnershipID, from []ownership.Status, to ownership.Status) (*ownership.Ownership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.st.ownerships[ownershipID.String()]
	if !ok {
		return nil, settlement.ErrOwnershipNotFound
	}
	allowed := false
	for _, f := range from {
		if o.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: ownership %s is %s", settlement.ErrStateConflict, ownershipID, o.Status)
	}
	o.Status = to
	o.Touch()
	cp := *o
	return &cp, nil
}

func (s *Store) SumUnitsByUser(_ context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, o := range s.st.ownerships {
		if o.UserID == userID && o.Status.IsActiveLike() {
			total += o.Units
		}
	}
	return total, nil
}

func (s *Store) SumUnitsByProperty(_ context.Context, propertyID id.PropertyID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, o := range s.st.ownerships {
		if o.PropertyID.String() == propertyID.String() && o.Status.IsActiveLike() {
			total += o.Units
		}
	}
	return total, nil
}

// ==================== Tier ====================

func (s *Store) GetTier(_ context.Context, userID string) (*tier.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.st.tiers[userID]
	if !ok {
		return nil, settlement.ErrTierNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *Store) SaveTier(_ context.Context, rec *tier.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	if existing, ok := s.st.tiers[rec.UserID]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else if cp.CreatedAt.IsZero() {
		cp.Entity = types.NewEntity()
	}
	cp.UpdatedAt = now()
	s.st.tiers[rec.UserID] = &cp
	return nil
}

// ==================== Capabilities ====================

func (s *Store) SetKYCStatus(_ context.Context, userID string, status capability.KYCStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.st.kyc[userID] = status
	return nil
}

func (s *Store) GetKYCStatus(_ context.Context, userID string) (capability.KYCStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.st.kyc[userID]; ok {
		return st, nil
	}
	return capability.KYCPending, nil
}

func (s *Store) ListApprovedUsers(_ context.Context, after string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var users []string
	for user, st := range s.st.kyc {
		if st == capability.KYCApproved && user > after {
			users = append(users, user)
		}
	}
	sort.Strings(users)
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (s *Store) ListGrants(_ context.Context, userID string) ([]*capability.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.st.grants[userID]
	out := make([]*capability.Grant, 0, len(set))
	for _, g := range set {
		cp := *g
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GrantCapabilities(_ context.Context, userID string, names []string, source string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.st.grants[userID]
	if !ok {
		set = make(map[string]*capability.Grant)
		s.st.grants[userID] = set
	}

	var inserted []string
	for _, name := range names {
		if _, exists := set[name]; exists {
			continue
		}
		set[name] = &capability.Grant{
			ID:        id.NewGrantID(),
			UserID:    userID,
			Name:      name,
			Source:    source,
			GrantedAt: now(),
		}
		inserted = append(inserted, name)
	}
	return inserted, nil
}

func (s *Store) RevokeCapabilities(_ context.Context, userID string, names []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.st.grants[userID]
	var removed []string
	for _, name := range names {
		if _, exists := set[name]; exists {
			delete(set, name)
			removed = append(removed, name)
		}
	}
	return removed, nil
}

// ==================== Helpers ====================

func now() time.Time {
	return time.Now().UTC()
}

func ownerKey(userID string, propertyID id.PropertyID) string {
	return userID + "|" + propertyID.String()
}

func copyEntry(e *payment.Entry) *payment.Entry {
	cp := *e
	if e.SettledAt != nil {
		at := *e.SettledAt
		cp.SettledAt = &at
	}
	return &cp
}

func hasState(states []payment.State, s payment.State) bool {
	for _, x := range states {
		if x == s {
			return true
		}
	}
	return false
}

func page[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
