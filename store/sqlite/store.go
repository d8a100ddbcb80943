// Package sqlite implements store.Store on SQLite through the grove sqlite
// driver. The store holds a single connection, so every statement and
// transaction is serialized; guarded UPDATEs and a CHECK constraint on
// available_units keep inventory in bounds regardless.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate" // registers the sqlite migration executor
	"github.com/xraph/grove/migrate"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	settlement "github.com/NIMOLA/hermeos-backend-sub002"
	"github.com/NIMOLA/hermeos-backend-sub002/capability"
	"github.com/NIMOLA/hermeos-backend-sub002/id"
	"github.com/NIMOLA/hermeos-backend-sub002/ownership"
	"github.com/NIMOLA/hermeos-backend-sub002/payment"
	"github.com/NIMOLA/hermeos-backend-sub002/property"
	"github.com/NIMOLA/hermeos-backend-sub002/store"
	"github.com/NIMOLA/hermeos-backend-sub002/tier"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// querier is satisfied by both *sqlitedriver.SqliteDB and driver.Tx.
type querier interface {
	Exec(ctx context.Context, query string, args ...any) (driver.Result, error)
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) driver.Row
}

// Store implements store.Store using SQLite via grove.
type Store struct {
	db   *grove.DB
	sdb  *sqlitedriver.SqliteDB
	q    querier
	inTx bool
}

// New creates a store on an open grove database.
func New(db *grove.DB) *Store {
	sdb := sqlitedriver.Unwrap(db)
	return &Store{db: db, sdb: sdb, q: sdb}
}

// Open opens the database file at path, creating it if needed.
func Open(ctx context.Context, path string) (*Store, error) {
	sdb := sqlitedriver.New()
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	if err := sdb.Open(ctx, dsn, driver.WithPoolSize(1)); err != nil {
		return nil, fmt.Errorf("settlement/sqlite: open: %w", err)
	}
	db, err := grove.Open(sdb)
	if err != nil {
		_ = sdb.Close() //nolint:errcheck // the open error wins
		return nil, fmt.Errorf("settlement/sqlite: open: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		_ = db.Close() //nolint:errcheck // the ping error wins
		return nil, fmt.Errorf("settlement/sqlite: ping: %w", err)
	}
	return New(db), nil
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// WithTx runs fn in a transaction. A transaction-bound store joins it.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	tx, err := s.sdb.BeginTx(ctx, &driver.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: %w", settlement.ErrTransactionFailed, err)
	}
	// Rollback after Commit is a no-op.
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // best effort

	if err := fn(ctx, &Store{db: s.db, sdb: s.sdb, q: tx, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("%w: create executor: %w", settlement.ErrMigrationFailed, err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %w", settlement.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database. Transaction-bound stores leave it open.
func (s *Store) Close() error {
	if s.inTx {
		return nil
	}
	return s.db.Close()
}

// ==================== Payment reference ledger ====================

func (s *Store) RecordAttempt(ctx context.Context, e *payment.Entry) (*payment.Entry, bool, error) {
	m := new(entryModel)
	err := s.q.QueryRow(ctx, `
INSERT INTO settlement_entries (reference, id, property_id, user_id, units, amount, state, attempts, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (reference) DO NOTHING
RETURNING `+entryColumns,
		e.Reference, e.ID.String(), e.PropertyID.String(), e.UserID, e.Units, e.Amount.Int64(),
		string(e.State), e.Attempts, ts(e.CreatedAt), ts(e.UpdatedAt),
	).Scan(m.dest()...)
	if err == nil {
		stored, err := fromEntryModel(m)
		return stored, true, err
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, classify(err)
	}

	stored, err := s.GetEntry(ctx, e.Reference)
	if err != nil {
		return nil, false, err
	}
	return stored, false, nil
}

func (s *Store) GetEntry(ctx context.Context, reference string) (*payment.Entry, error) {
	m := new(entryModel)
	err := s.q.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM settlement_entries WHERE reference = ?`, reference,
	).Scan(m.dest()...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, settlement.ErrEntryNotFound
		}
		return nil, err
	}
	return fromEntryModel(m)
}

func (s *Store) MarkSettling(ctx context.Context, reference string) error {
	return s.transition(ctx, reference, payment.StateSettling,
		`state = ?, updated_at = ?`, string(payment.StateSettling), ts(now()))
}

func (s *Store) MarkSettled(ctx context.Context, reference string, ownershipID id.OwnershipID) error {
	at := ts(now())
	return s.transition(ctx, reference, payment.StateSettled,
		`state = ?, ownership_id = ?, settled_at = ?, updated_at = ?`,
		string(payment.StateSettled), ownershipID.String(), at, at)
}

func (s *Store) MarkRejected(ctx context.Context, reference, reason string) error {
	return s.transition(ctx, reference, payment.StateRejected,
		`state = ?, reason = ?, updated_at = ?`, string(payment.StateRejected), reason, ts(now()))
}

// transition applies set to reference when its state may move to `to`.
func (s *Store) transition(ctx context.Context, reference string, to payment.State, set string, setArgs ...any) error {
	from := sourceStates(to)
	args := append(append([]any{}, setArgs...), reference)
	args = append(args, from...)

	res, err := s.q.Exec(ctx,
		`UPDATE settlement_entries SET `+set+` WHERE reference = ? AND state IN (`+inList(len(from))+`)`,
		args...)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	e, err := s.GetEntry(ctx, reference)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: reference %q is %s, cannot move to %s",
		settlement.ErrStateConflict, reference, e.State, to)
}

func (s *Store) ClaimStale(ctx context.Context, reference string, cutoff time.Time) (bool, error) {
	res, err := s.q.Exec(ctx, `
UPDATE settlement_entries SET attempts = attempts + 1, updated_at = ?
WHERE reference = ? AND state IN ('pending', 'settling') AND updated_at < ?`,
		ts(now()), reference, ts(cutoff))
	if err != nil {
		return false, classify(err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return true, nil
	}
	if _, err := s.GetEntry(ctx, reference); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) ListEntries(ctx context.Context, opts payment.ListOpts) ([]*payment.Entry, error) {
	var (
		where []string
		args  []any
	)
	if len(opts.States) > 0 {
		where = append(where, `state IN (`+inList(len(opts.States))+`)`)
		args = append(args, stateArgs(opts.States)...)
	}
	if !opts.UpdatedBefore.IsZero() {
		where = append(where, `updated_at < ?`)
		args = append(args, ts(opts.UpdatedBefore))
	}

	q := `SELECT ` + entryColumns + ` FROM settlement_entries`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY updated_at ASC` + limitOffset(opts.Limit, 0)

	rows, err := s.q.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*payment.Entry
	for rows.Next() {
		m := new(entryModel)
		if err := rows.Scan(m.dest()...); err != nil {
			return nil, err
		}
		e, err := fromEntryModel(m)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// ==================== Inventory ====================

func (s *Store) CreateProperty(ctx context.Context, p *property.Property) error {
	_, err := s.q.Exec(ctx, `
INSERT INTO settlement_properties (`+propertyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.Name, p.TotalUnits, p.AvailableUnits, p.PricePerUnit.Int64(),
		p.Halted, p.HaltReason, ts(p.CreatedAt), ts(p.UpdatedAt))
	return classify(err)
}

func (s *Store) GetProperty(ctx context.Context, propertyID id.PropertyID) (*property.Property, error) {
	m := new(propertyModel)
	err := s.q.QueryRow(ctx,
		`SELECT `+propertyColumns+` FROM settlement_properties WHERE id = ?`, propertyID.String(),
	).Scan(m.dest()...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, settlement.ErrPropertyNotFound
		}
		return nil, err
	}
	return fromPropertyModel(m)
}

// LockProperty is GetProperty: the single connection already serializes
// transactions.
func (s *Store) LockProperty(ctx context.Context, propertyID id.PropertyID) (*property.Property, error) {
	return s.GetProperty(ctx, propertyID)
}

func (s *Store) ListProperties(ctx context.Context, opts property.ListOpts) ([]*property.Property, error) {
	q := `SELECT ` + propertyColumns + ` FROM settlement_properties`
	if opts.HaltedOnly {
		q += ` WHERE halted = 1`
	}
	q += ` ORDER BY id ASC` + limitOffset(opts.Limit, opts.Offset)

	rows, err := s.q.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*property.Property
	for rows.Next() {
		m := new(propertyModel)
		if err := rows.Scan(m.dest()...); err != nil {
			return nil, err
		}
		p, err := fromPropertyModel(m)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) Reserve(ctx context.Context, propertyID id.PropertyID, units int64) error {
	if units <= 0 {
		return settlement.ErrInvalidInput
	}
	res, err := s.q.Exec(ctx, `
UPDATE settlement_properties SET available_units = available_units - ?, updated_at = ?
WHERE id = ? AND halted = 0 AND available_units >= ?`,
		units, ts(now()), propertyID.String(), units)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	p, err := s.GetProperty(ctx, propertyID)
	if err != nil {
		return err
	}
	if p.Halted {
		return settlement.ErrPropertyHalted
	}
	return settlement.ErrInsufficientInventory
}

func (s *Store) Release(ctx context.Context, propertyID id.PropertyID, units int64) error {
	if units <= 0 {
		return settlement.ErrInvalidInput
	}
	res, err := s.q.Exec(ctx, `
UPDATE settlement_properties SET available_units = available_units + ?, updated_at = ?
WHERE id = ? AND halted = 0 AND available_units + ? <= total_units`,
		units, ts(now()), propertyID.String(), units)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	p, err := s.GetProperty(ctx, propertyID)
	if err != nil {
		return err
	}
	if p.Halted {
		return settlement.ErrPropertyHalted
	}
	return fmt.Errorf("%w: releasing %d units on %s would exceed total %d",
		settlement.ErrInvariantViolation, units, propertyID, p.TotalUnits)
}

func (s *Store) SetHalted(ctx context.Context, propertyID id.PropertyID, halted bool, reason string) error {
	if !halted {
		reason = ""
	}
	res, err := s.q.Exec(ctx,
		`UPDATE settlement_properties SET halted = ?, halt_reason = ?, updated_at = ? WHERE id = ?`,
		halted, reason, ts(now()), propertyID.String())
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return settlement.ErrPropertyNotFound
	}
	return nil
}

// ==================== Ownership ====================

// activeLikeSQL is the literal IN list of active-like statuses.
var activeLikeSQL = func() string {
	quoted := make([]string, len(ownership.ActiveLike))
	for i, s := range ownership.ActiveLike {
		quoted[i] = "'" + string(s) + "'"
	}
	return strings.Join(quoted, ", ")
}()

// Grant upserts on (user_id, property_id). A held record accumulates units
// and cost basis; an exited record is reopened with the new purchase only.
func (s *Store) Grant(ctx context.Context, g ownership.GrantParams) (*ownership.Ownership, error) {
	if g.Units <= 0 || g.UserID == "" {
		return nil, settlement.ErrInvalidInput
	}

	held := `settlement_ownerships.status IN (` + activeLikeSQL + `)`
	at := ts(now())
	m := new(ownershipModel)
	err := s.q.QueryRow(ctx, `
INSERT INTO settlement_ownerships (`+ownershipColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, property_id) DO UPDATE SET
    units = CASE WHEN `+held+` THEN settlement_ownerships.units + excluded.units ELSE excluded.units END,
    acquisition_price = CASE WHEN `+held+`
        THEN settlement_ownerships.acquisition_price + excluded.acquisition_price ELSE excluded.acquisition_price END,
    current_value = CASE WHEN `+held+`
        THEN settlement_ownerships.current_value + excluded.acquisition_price ELSE excluded.acquisition_price END,
    status = CASE WHEN `+held+` THEN settlement_ownerships.status ELSE excluded.status END,
    updated_at = excluded.updated_at
RETURNING `+ownershipColumns,
		id.NewOwnershipID().String(), g.UserID, g.PropertyID.String(), g.Units,
		g.AcquisitionPrice.Int64(), g.AcquisitionPrice.Int64(), string(g.InitialStatus()), at, at,
	).Scan(m.dest()...)
	if err != nil {
		return nil, classify(err)
	}
	return fromOwnershipModel(m)
}

func (s *Store) GetOwnership(ctx context.Context, ownershipID id.OwnershipID) (*ownership.Ownership, error) {
	m := new(ownershipModel)
	err := s.q.QueryRow(ctx,
		`SELECT `+ownershipColumns+` FROM settlement_ownerships WHERE id = ?`, ownershipID.String(),
	).Scan(m.dest()...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, settlement.ErrOwnershipNotFound
		}
		return nil, err
	}
	return fromOwnershipModel(m)
}

func (s *Store) ListOwnerships(ctx context.Context, opts ownership.ListOpts) ([]*ownership.Ownership, error) {
	var (
		where []string
		args  []any
	)
	if opts.UserID != "" {
		where = append(where, `user_id = ?`)
		args = append(args, opts.UserID)
	}
	if !opts.PropertyID.IsNil() {
		where = append(where, `property_id = ?`)
		args = append(args, opts.PropertyID.String())
	}
	if len(opts.Statuses) > 0 {
		where = append(where, `status IN (`+inList(len(opts.Statuses))+`)`)
		args = append(args, statusArgs(opts.Statuses)...)
	}

	q := `SELECT ` + ownershipColumns + ` FROM settlement_ownerships`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY id ASC` + limitOffset(opts.Limit, opts.Offset)

	rows, err := s.q.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*ownership.Ownership
	for rows.Next() {
		m := new(ownershipModel)
		if err := rows.Scan(m.dest()...); err != nil {
			return nil, err
		}
		o, err := fromOwnershipModel(m)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func (s *Store) TransitionOwnership(ctx context.Context, ownershipID id.OwnershipID, from []ownership.Status, to ownership.Status) (*ownership.Ownership, error) {
	args := []any{string(to), ts(now()), ownershipID.String()}
	args = append(args, statusArgs(from)...)

	m := new(ownershipModel)
	err := s.q.QueryRow(ctx, `
UPDATE settlement_ownerships SET status = ?, updated_at = ?
WHERE id = ? AND status IN (`+inList(len(from))+`)
RETURNING `+ownershipColumns, args...,
	).Scan(m.dest()...)
	if err == nil {
		return fromOwnershipModel(m)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, classify(err)
	}

	o, err := s.GetOwnership(ctx, ownershipID)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: ownership %s is %s", settlement.ErrStateConflict, ownershipID, o.Status)
}

func (s *Store) SumUnitsByUser(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := s.q.QueryRow(ctx,
		`SELECT COALESCE(SUM(units), 0) FROM settlement_ownerships WHERE user_id = ? AND status IN (`+activeLikeSQL+`)`,
		userID,
	).Scan(&total)
	return total, err
}

func (s *Store) SumUnitsByProperty(ctx context.Context, propertyID id.PropertyID) (int64, error) {
	var total int64
	err := s.q.QueryRow(ctx,
		`SELECT COALESCE(SUM(units), 0) FROM settlement_ownerships WHERE property_id = ? AND status IN (`+activeLikeSQL+`)`,
		propertyID.String(),
	).Scan(&total)
	return total, err
}

// ==================== Tier ====================

func (s *Store) GetTier(ctx context.Context, userID string) (*tier.Record, error) {
	m := new(tierModel)
	err := s.q.QueryRow(ctx,
		`SELECT user_id, tier, units, created_at, updated_at FROM settlement_tiers WHERE user_id = ?`, userID,
	).Scan(&m.UserID, &m.Tier, &m.Units, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, settlement.ErrTierNotFound
		}
		return nil, err
	}
	return fromTierModel(m), nil
}

func (s *Store) SaveTier(ctx context.Context, rec *tier.Record) error {
	at := now()
	created := rec.CreatedAt
	if created.IsZero() {
		created = at
	}
	_, err := s.q.Exec(ctx, `
INSERT INTO settlement_tiers (user_id, tier, units, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET tier = excluded.tier, units = excluded.units, updated_at = excluded.updated_at`,
		rec.UserID, string(rec.Tier), rec.Units, ts(created), ts(at))
	return classify(err)
}

// ==================== Capabilities ====================

func (s *Store) SetKYCStatus(ctx context.Context, userID string, status capability.KYCStatus) error {
	_, err := s.q.Exec(ctx, `
INSERT INTO settlement_kyc (user_id, status, updated_at) VALUES (?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`,
		userID, string(status), ts(now()))
	return classify(err)
}

func (s *Store) GetKYCStatus(ctx context.Context, userID string) (capability.KYCStatus, error) {
	var status string
	err := s.q.QueryRow(ctx, `SELECT status FROM settlement_kyc WHERE user_id = ?`, userID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return capability.KYCPending, nil
		}
		return "", err
	}
	return capability.KYCStatus(status), nil
}

func (s *Store) ListApprovedUsers(ctx context.Context, after string, limit int) ([]string, error) {
	rows, err := s.q.Query(ctx, `
SELECT user_id FROM settlement_kyc WHERE status = ? AND user_id > ?
ORDER BY user_id ASC`+limitOffset(limit, 0),
		string(capability.KYCApproved), after)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) ListGrants(ctx context.Context, userID string) ([]*capability.Grant, error) {
	rows, err := s.q.Query(ctx, `
SELECT id, user_id, name, source, granted_at FROM settlement_grants
WHERE user_id = ? ORDER BY name ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []*capability.Grant{}
	for rows.Next() {
		m := new(grantModel)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Name, &m.Source, &m.GrantedAt); err != nil {
			return nil, err
		}
		g, err := fromGrantModel(m)
		if err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

func (s *Store) GrantCapabilities(ctx context.Context, userID string, names []string, source string) ([]string, error) {
	var inserted []string
	at := ts(now())
	for _, name := range names {
		res, err := s.q.Exec(ctx, `
INSERT INTO settlement_grants (id, user_id, name, source, granted_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id, name) DO NOTHING`,
			id.NewGrantID().String(), userID, name, source, at)
		if err != nil {
			return inserted, classify(err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			inserted = append(inserted, name)
		}
	}
	return inserted, nil
}

func (s *Store) RevokeCapabilities(ctx context.Context, userID string, names []string) ([]string, error) {
	var removed []string
	for _, name := range names {
		res, err := s.q.Exec(ctx,
			`DELETE FROM settlement_grants WHERE user_id = ? AND name = ?`, userID, name)
		if err != nil {
			return removed, classify(err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			removed = append(removed, name)
		}
	}
	return removed, nil
}

// ==================== Helpers ====================

// classify maps constraint violations and lock contention to settlement
// sentinels and leaves other errors untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var sqlErr *sqlite.Error
	if !errors.As(err, &sqlErr) {
		return err
	}
	switch sqlErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return fmt.Errorf("%w: %s", settlement.ErrAlreadyExists, sqlErr.Error())
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return fmt.Errorf("%w: %s", settlement.ErrPropertyNotFound, sqlErr.Error())
	case sqlite3.SQLITE_CONSTRAINT_CHECK:
		return fmt.Errorf("%w: %s", settlement.ErrInvariantViolation, sqlErr.Error())
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_BUSY_SNAPSHOT, sqlite3.SQLITE_LOCKED:
		return fmt.Errorf("%w: %s", settlement.ErrTransactionFailed, sqlErr.Error())
	default:
		return err
	}
}

func limitOffset(limit, offset int) string {
	var b strings.Builder
	switch {
	case limit > 0:
		fmt.Fprintf(&b, " LIMIT %d", limit)
	case offset > 0:
		// SQLite requires a LIMIT before OFFSET.
		b.WriteString(" LIMIT -1")
	}
	if offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", offset)
	}
	return b.String()
}
