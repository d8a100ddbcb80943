// Package postgres implements store.Store on PostgreSQL through the grove
// pg driver.
//
// Every inventory mutation is a single guarded UPDATE, so correctness under
// concurrent settlement does not depend on the isolation level. A CHECK
// constraint on available_units backs the guards up: a violation surfaces as
// settlement.ErrInvariantViolation. Transactions that lock both a property
// and an ownership row take the property first.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/pgdriver"
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate" // registers the pg migration executor
	"github.com/xraph/grove/migrate"

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

// querier is satisfied by both *pgdriver.PgDB and driver.Tx.
type querier interface {
	Exec(ctx context.Context, query string, args ...any) (driver.Result, error)
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) driver.Row
}

// Store implements store.Store using PostgreSQL via grove.
type Store struct {
	db   *grove.DB
	pg   *pgdriver.PgDB
	q    querier
	inTx bool
}

// New creates a store on an open grove database.
func New(db *grove.DB) *Store {
	pg := pgdriver.Unwrap(db)
	return &Store{db: db, pg: pg, q: pg}
}

// Open connects to dsn and verifies the connection. The returned store owns
// the grove database.
func Open(ctx context.Context, dsn string, opts ...driver.Option) (*Store, error) {
	pgdb := pgdriver.New()
	if err := pgdb.Open(ctx, dsn, opts...); err != nil {
		return nil, fmt.Errorf("settlement/postgres: connect: %w", err)
	}
	db, err := grove.Open(pgdb)
	if err != nil {
		_ = pgdb.Close() //nolint:errcheck // the open error wins
		return nil, fmt.Errorf("settlement/postgres: open: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		_ = db.Close() //nolint:errcheck // the ping error wins
		return nil, fmt.Errorf("settlement/postgres: ping: %w", err)
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

	tx, err := s.pg.BeginTx(ctx, &driver.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin: %w", settlement.ErrTransactionFailed, err)
	}
	// Rollback after Commit is a no-op.
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // best effort

	if err := fn(ctx, &Store{db: s.db, pg: s.pg, q: tx, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
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
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (reference) DO NOTHING
RETURNING `+entryColumns,
		e.Reference, e.ID.String(), e.PropertyID.String(), e.UserID, e.Units, e.Amount.Int64(),
		string(e.State), e.Attempts, e.CreatedAt, e.UpdatedAt,
	).Scan(m.dest()...)
	if err == nil {
		stored, err := fromEntryModel(m)
		return stored, true, err
	}
	if !isNoRows(err) {
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
		`SELECT `+entryColumns+` FROM settlement_entries WHERE reference = $1`, reference,
	).Scan(m.dest()...)
	if err != nil {
		if isNoRows(err) {
			return nil, settlement.ErrEntryNotFound
		}
		return nil, err
	}
	return fromEntryModel(m)
}

func (s *Store) MarkSettling(ctx context.Context, reference string) error {
	res, err := s.q.Exec(ctx, `
UPDATE settlement_entries SET state = $2, updated_at = $3
WHERE reference = $1 AND state = ANY($4)`,
		reference, string(payment.StateSettling), now(), sourceStates(payment.StateSettling))
	if err != nil {
		return classify(err)
	}
	return s.checkTransition(ctx, res, reference, payment.StateSettling)
}

func (s *Store) MarkSettled(ctx context.Context, reference string, ownershipID id.OwnershipID) error {
	at := now()
	res, err := s.q.Exec(ctx, `
UPDATE settlement_entries SET state = $2, ownership_id = $3, settled_at = $4, updated_at = $4
WHERE reference = $1 AND state = ANY($5)`,
		reference, string(payment.StateSettled), ownershipID.String(), at, sourceStates(payment.StateSettled))
	if err != nil {
		return classify(err)
	}
	return s.checkTransition(ctx, res, reference, payment.StateSettled)
}

func (s *Store) MarkRejected(ctx context.Context, reference, reason string) error {
	res, err := s.q.Exec(ctx, `
UPDATE settlement_entries SET state = $2, reason = $3, updated_at = $4
WHERE reference = $1 AND state = ANY($5)`,
		reference, string(payment.StateRejected), reason, now(), sourceStates(payment.StateRejected))
	if err != nil {
		return classify(err)
	}
	return s.checkTransition(ctx, res, reference, payment.StateRejected)
}

// checkTransition turns a guarded UPDATE that matched nothing into the
// reason it matched nothing.
func (s *Store) checkTransition(ctx context.Context, res driver.Result, reference string, to payment.State) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 1 {
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
UPDATE settlement_entries SET attempts = attempts + 1, updated_at = $3
WHERE reference = $1 AND state IN ('pending', 'settling') AND updated_at < $2`,
		reference, cutoff, now())
	if err != nil {
		return false, classify(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 1 {
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
		args = append(args, stateStrings(opts.States))
		where = append(where, fmt.Sprintf("state = ANY($%d)", len(args)))
	}
	if !opts.UpdatedBefore.IsZero() {
		args = append(args, opts.UpdatedBefore)
		where = append(where, fmt.Sprintf("updated_at < $%d", len(args)))
	}

	q := `SELECT ` + entryColumns + ` FROM settlement_entries`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY updated_at ASC`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

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
INSERT INTO settlement_properties (`+propertyColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID.String(), p.Name, p.TotalUnits, p.AvailableUnits, p.PricePerUnit.Int64(),
		p.Halted, p.HaltReason, p.CreatedAt, p.UpdatedAt)
	return classify(err)
}

func (s *Store) GetProperty(ctx context.Context, propertyID id.PropertyID) (*property.Property, error) {
	m := new(propertyModel)
	err := s.q.QueryRow(ctx,
		`SELECT `+propertyColumns+` FROM settlement_properties WHERE id = $1`, propertyID.String(),
	).Scan(m.dest()...)
	if err != nil {
		if isNoRows(err) {
			return nil, settlement.ErrPropertyNotFound
		}
		return nil, err
	}
	return fromPropertyModel(m)
}

// LockProperty takes the row lock Reserve and Release would take, up front.
func (s *Store) LockProperty(ctx context.Context, propertyID id.PropertyID) (*property.Property, error) {
	m := new(propertyModel)
	err := s.q.QueryRow(ctx,
		`SELECT `+propertyColumns+` FROM settlement_properties WHERE id = $1 FOR UPDATE`, propertyID.String(),
	).Scan(m.dest()...)
	if err != nil {
		if isNoRows(err) {
			return nil, settlement.ErrPropertyNotFound
		}
		return nil, classify(err)
	}
	return fromPropertyModel(m)
}

func (s *Store) ListProperties(ctx context.Context, opts property.ListOpts) ([]*property.Property, error) {
	q := `SELECT ` + propertyColumns + ` FROM settlement_properties`
	if opts.HaltedOnly {
		q += ` WHERE halted`
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
UPDATE settlement_properties SET available_units = available_units - $2, updated_at = $3
WHERE id = $1 AND NOT halted AND available_units >= $2`,
		propertyID.String(), units, now())
	if err != nil {
		return classify(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 1 {
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
UPDATE settlement_properties SET available_units = available_units + $2, updated_at = $3
WHERE id = $1 AND NOT halted AND available_units + $2 <= total_units`,
		propertyID.String(), units, now())
	if err != nil {
		return classify(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 1 {
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
	res, err := s.q.Exec(ctx, `
UPDATE settlement_properties SET halted = $2, halt_reason = $3, updated_at = $4 WHERE id = $1`,
		propertyID.String(), halted, reason, now())
	if err != nil {
		return classify(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return settlement.ErrPropertyNotFound
	}
	return nil
}

// ==================== Ownership ====================

// Grant upserts on (user_id, property_id). A held record accumulates units
// and cost basis; an exited record is reopened with the new purchase only.
func (s *Store) Grant(ctx context.Context, g ownership.GrantParams) (*ownership.Ownership, error) {
	if g.Units <= 0 || g.UserID == "" {
		return nil, settlement.ErrInvalidInput
	}

	at := now()
	m := new(ownershipModel)
	err := s.q.QueryRow(ctx, `
INSERT INTO settlement_ownerships AS o (`+ownershipColumns+`)
VALUES ($1, $2, $3, $4, $5, $5, $6, $7, $7)
ON CONFLICT (user_id, property_id) DO UPDATE SET
    units = CASE WHEN o.status = ANY($8) THEN o.units + EXCLUDED.units ELSE EXCLUDED.units END,
    acquisition_price = CASE WHEN o.status = ANY($8)
        THEN o.acquisition_price + EXCLUDED.acquisition_price ELSE EXCLUDED.acquisition_price END,
    current_value = CASE WHEN o.status = ANY($8)
        THEN o.current_value + EXCLUDED.acquisition_price ELSE EXCLUDED.acquisition_price END,
    status = CASE WHEN o.status = ANY($8) THEN o.status ELSE EXCLUDED.status END,
    updated_at = EXCLUDED.updated_at
RETURNING `+ownershipColumns,
		id.NewOwnershipID().String(), g.UserID, g.PropertyID.String(), g.Units,
		g.AcquisitionPrice.Int64(), string(g.InitialStatus()), at, statusStrings(ownership.ActiveLike),
	).Scan(m.dest()...)
	if err != nil {
		return nil, classify(err)
	}
	return fromOwnershipModel(m)
}

func (s *Store) GetOwnership(ctx context.Context, ownershipID id.OwnershipID) (*ownership.Ownership, error) {
	m := new(ownershipModel)
	err := s.q.QueryRow(ctx,
		`SELECT `+ownershipColumns+` FROM settlement_ownerships WHERE id = $1`, ownershipID.String(),
	).Scan(m.dest()...)
	if err != nil {
		if isNoRows(err) {
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
		args = append(args, opts.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if !opts.PropertyID.IsNil() {
		args = append(args, opts.PropertyID.String())
		where = append(where, fmt.Sprintf("property_id = $%d", len(args)))
	}
	if len(opts.Statuses) > 0 {
		args = append(args, statusStrings(opts.Statuses))
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
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
	m := new(ownershipModel)
	err := s.q.QueryRow(ctx, `
UPDATE settlement_ownerships SET status = $2, updated_at = $3
WHERE id = $1 AND status = ANY($4)
RETURNING `+ownershipColumns,
		ownershipID.String(), string(to), now(), statusStrings(from),
	).Scan(m.dest()...)
	if err == nil {
		return fromOwnershipModel(m)
	}
	if !isNoRows(err) {
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
		`SELECT COALESCE(SUM(units), 0) FROM settlement_ownerships WHERE user_id = $1 AND status = ANY($2)`,
		userID, statusStrings(ownership.ActiveLike),
	).Scan(&total)
	return total, err
}

func (s *Store) SumUnitsByProperty(ctx context.Context, propertyID id.PropertyID) (int64, error) {
	var total int64
	err := s.q.QueryRow(ctx,
		`SELECT COALESCE(SUM(units), 0) FROM settlement_ownerships WHERE property_id = $1 AND status = ANY($2)`,
		propertyID.String(), statusStrings(ownership.ActiveLike),
	).Scan(&total)
	return total, err
}

// ==================== Tier ====================

func (s *Store) GetTier(ctx context.Context, userID string) (*tier.Record, error) {
	m := new(tierModel)
	err := s.q.QueryRow(ctx,
		`SELECT user_id, tier, units, created_at, updated_at FROM settlement_tiers WHERE user_id = $1`, userID,
	).Scan(&m.UserID, &m.Tier, &m.Units, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
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
INSERT INTO settlement_tiers (user_id, tier, units, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id) DO UPDATE SET tier = EXCLUDED.tier, units = EXCLUDED.units, updated_at = EXCLUDED.updated_at`,
		rec.UserID, string(rec.Tier), rec.Units, created, at)
	return classify(err)
}

// ==================== Capabilities ====================

func (s *Store) SetKYCStatus(ctx context.Context, userID string, status capability.KYCStatus) error {
	_, err := s.q.Exec(ctx, `
INSERT INTO settlement_kyc (user_id, status, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
		userID, string(status), now())
	return classify(err)
}

func (s *Store) GetKYCStatus(ctx context.Context, userID string) (capability.KYCStatus, error) {
	var status string
	err := s.q.QueryRow(ctx, `SELECT status FROM settlement_kyc WHERE user_id = $1`, userID).Scan(&status)
	if err != nil {
		if isNoRows(err) {
			return capability.KYCPending, nil
		}
		return "", err
	}
	return capability.KYCStatus(status), nil
}

// ListApprovedUsers orders by byte value so the cursor matches Go string
// comparison regardless of the database collation.
func (s *Store) ListApprovedUsers(ctx context.Context, after string, limit int) ([]string, error) {
	q := `SELECT user_id FROM settlement_kyc
WHERE status = $1 AND user_id COLLATE "C" > $2
ORDER BY user_id COLLATE "C"` + limitOffset(limit, 0)

	rows, err := s.q.Query(ctx, q, string(capability.KYCApproved), after)
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
WHERE user_id = $1 ORDER BY name ASC`, userID)
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
	at := now()
	for _, name := range names {
		res, err := s.q.Exec(ctx, `
INSERT INTO settlement_grants (id, user_id, name, source, granted_at) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id, name) DO NOTHING`,
			id.NewGrantID().String(), userID, name, source, at)
		if err != nil {
			return inserted, classify(err)
		}
		if rows, err := res.RowsAffected(); err == nil && rows == 1 {
			inserted = append(inserted, name)
		}
	}
	return inserted, nil
}

func (s *Store) RevokeCapabilities(ctx context.Context, userID string, names []string) ([]string, error) {
	var removed []string
	for _, name := range names {
		res, err := s.q.Exec(ctx,
			`DELETE FROM settlement_grants WHERE user_id = $1 AND name = $2`, userID, name)
		if err != nil {
			return removed, classify(err)
		}
		if rows, err := res.RowsAffected(); err == nil && rows == 1 {
			removed = append(removed, name)
		}
	}
	return removed, nil
}

// ==================== Helpers ====================

func now() time.Time {
	return time.Now().UTC()
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}

// PostgreSQL error codes the store maps to sentinels.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// classify maps constraint violations and aborted transactions to settlement
// sentinels and leaves other errors untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %s", settlement.ErrAlreadyExists, pgErr.ConstraintName)
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: %s", settlement.ErrPropertyNotFound, pgErr.ConstraintName)
	case codeCheckViolation:
		return fmt.Errorf("%w: %s", settlement.ErrInvariantViolation, pgErr.ConstraintName)
	case codeSerializationFailure, codeDeadlockDetected:
		return fmt.Errorf("%w: %s (%s)", settlement.ErrTransactionFailed, pgErr.Message, pgErr.Code)
	default:
		return err
	}
}

func limitOffset(limit, offset int) string {
	var b strings.Builder
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}
	if offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", offset)
	}
	return b.String()
}
