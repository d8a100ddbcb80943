// Package mongo implements store.Store on MongoDB. Transactions need a
// replica set or sharded cluster; a standalone server rejects WithTx.
//
// MongoDB has no foreign keys or CHECK constraints. Inventory bounds are
// enforced by guarded filters on every write plus a collection validator
// installed by Migrate, and ownership grants do not verify the property.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"
	"github.com/xraph/grove/migrate"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	settlement "github.com/NIMOLA/hermeos-backend-sub002"
	"github.com/NIMOLA/hermeos-backend-sub002/capability"
	"github.com/NIMOLA/hermeos-backend-sub002/id"
	"github.com/NIMOLA/hermeos-backend-sub002/ownership"
	"github.com/NIMOLA/hermeos-backend-sub002/payment"
	"github.com/NIMOLA/hermeos-backend-sub002/property"
	"github.com/NIMOLA/hermeos-backend-sub002/store"
	"github.com/NIMOLA/hermeos-backend-sub002/tier"
)

// Collection name constants.
const (
	colProperties = "settlement_properties"
	colEntries    = "settlement_entries"
	colOwnerships = "settlement_ownerships"
	colTiers      = "settlement_tiers"
	colKYC        = "settlement_kyc"
	colGrants     = "settlement_grants"
)

// Server error codes the store reacts to.
const (
	codeNamespaceExists   = 48
	codeValidationFailure = 121
)

const labelTransientTransaction = "TransientTransactionError"

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via grove.
type Store struct {
	db   *grove.DB
	mdb  *mongodriver.MongoDB
	sess *mongo.Session
}

// New creates a store on an open grove database.
func New(db *grove.DB) *Store {
	return &Store{db: db, mdb: mongodriver.Unwrap(db)}
}

// Open connects to uri and uses the database named dbName. The returned
// store owns the grove database.
func Open(ctx context.Context, uri, dbName string) (*Store, error) {
	mdb := mongodriver.New()
	if err := mdb.Open(ctx, uri, mongodriver.WithDatabase(dbName)); err != nil {
		return nil, fmt.Errorf("settlement/mongo: connect: %w", err)
	}
	db, err := grove.Open(mdb)
	if err != nil {
		_ = mdb.Close() //nolint:errcheck // the open error wins
		return nil, fmt.Errorf("settlement/mongo: open: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		_ = db.Close() //nolint:errcheck // the ping error wins
		return nil, fmt.Errorf("settlement/mongo: ping: %w", err)
	}
	return New(db), nil
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Database returns the underlying mongo database.
func (s *Store) Database() *mongo.Database { return s.mdb.Database() }

func (s *Store) col(name string) *mongo.Collection { return s.mdb.Collection(name) }

// bind attaches the store's session, if any, to ctx.
func (s *Store) bind(ctx context.Context) context.Context {
	if s.sess == nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, s.sess)
}

// WithTx runs fn in a multi-document transaction on a client session. A
// transaction-bound store joins it. The driver invokes fn again when the
// transaction aborts with a transient error such as a write conflict.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if s.sess != nil {
		return fn(s.bind(ctx), s)
	}

	sess, err := s.mdb.Client().StartSession()
	if err != nil {
		return fmt.Errorf("%w: %w", settlement.ErrTransactionFailed, err)
	}
	defer sess.EndSession(context.WithoutCancel(ctx))

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx, &Store{db: s.db, mdb: s.mdb, sess: sess})
	})
	if isTransient(err) && !errors.Is(err, settlement.ErrTransactionFailed) {
		return fmt.Errorf("%w: %w", settlement.ErrTransactionFailed, err)
	}
	return err
}

// Migrate installs the property validator and all indexes using the grove
// orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.mdb)
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

// Close disconnects the client. Transaction-bound stores leave it open.
func (s *Store) Close() error {
	if s.sess != nil {
		return nil
	}
	return s.db.Close()
}

// ==================== Payment reference ledger ====================

func (s *Store) RecordAttempt(ctx context.Context, e *payment.Entry) (*payment.Entry, bool, error) {
	ctx = s.bind(ctx)
	if _, err := s.col(colEntries).InsertOne(ctx, toEntryModel(e)); err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			return nil, false, classify(err)
		}
		stored, err := s.GetEntry(ctx, e.Reference)
		if err != nil {
			return nil, false, err
		}
		return stored, false, nil
	}

	stored := *e
	return &stored, true, nil
}

func (s *Store) GetEntry(ctx context.Context, reference string) (*payment.Entry, error) {
	var m entryModel
	err := s.col(colEntries).FindOne(s.bind(ctx), bson.M{"_id": reference}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, settlement.ErrEntryNotFound
		}
		return nil, fmt.Errorf("settlement/mongo: get entry: %w", err)
	}
	return fromEntryModel(&m)
}

func (s *Store) MarkSettling(ctx context.Context, reference string) error {
	return s.transition(ctx, reference, payment.StateSettling, bson.M{
		"state":      string(payment.StateSettling),
		"updated_at": now(),
	})
}

func (s *Store) MarkSettled(ctx context.Context, reference string, ownershipID id.OwnershipID) error {
	at := now()
	return s.transition(ctx, reference, payment.StateSettled, bson.M{
		"state":        string(payment.StateSettled),
		"ownership_id": ownershipID.String(),
		"settled_at":   at,
		"updated_at":   at,
	})
}

func (s *Store) MarkRejected(ctx context.Context, reference, reason string) error {
	return s.transition(ctx, reference, payment.StateRejected, bson.M{
		"state":      string(payment.StateRejected),
		"reason":     reason,
		"updated_at": now(),
	})
}

// transition applies set to reference when its state may move to `to`.
func (s *Store) transition(ctx context.Context, reference string, to payment.State, set bson.M) error {
	ctx = s.bind(ctx)
	res, err := s.col(colEntries).UpdateOne(ctx,
		bson.M{"_id": reference, "state": bson.M{"$in": sourceStates(to)}},
		bson.M{"$set": set},
	)
	if err != nil {
		return classify(err)
	}
	if res.MatchedCount == 1 {
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
	ctx = s.bind(ctx)
	res, err := s.col(colEntries).UpdateOne(ctx,
		bson.M{
			"_id":        reference,
			"state":      bson.M{"$in": bson.A{string(payment.StatePending), string(payment.StateSettling)}},
			"updated_at": bson.M{"$lt": cutoff},
		},
		bson.M{"$inc": bson.M{"attempts": 1}, "$set": bson.M{"updated_at": now()}},
	)
	if err != nil {
		return false, classify(err)
	}
	if res.MatchedCount == 1 {
		return true, nil
	}
	if _, err := s.GetEntry(ctx, reference); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) ListEntries(ctx context.Context, opts payment.ListOpts) ([]*payment.Entry, error) {
	filter := bson.M{}
	if len(opts.States) > 0 {
		filter["state"] = bson.M{"$in": stateStrings(opts.States)}
	}
	if !opts.UpdatedBefore.IsZero() {
		filter["updated_at"] = bson.M{"$lt": opts.UpdatedBefore}
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	var models []entryModel
	if err := s.findAll(ctx, colEntries, filter, findOpts, &models); err != nil {
		return nil, fmt.Errorf("settlement/mongo: list entries: %w", err)
	}

	result := make([]*payment.Entry, 0, len(models))
	for i := range models {
		e, err := fromEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, nil
}

// ==================== Inventory ====================

func (s *Store) CreateProperty(ctx context.Context, p *property.Property) error {
	_, err := s.col(colProperties).InsertOne(s.bind(ctx), toPropertyModel(p))
	return classify(err)
}

func (s *Store) GetProperty(ctx context.Context, propertyID id.PropertyID) (*property.Property, error) {
	var m propertyModel
	err := s.col(colProperties).FindOne(s.bind(ctx), bson.M{"_id": propertyID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, settlement.ErrPropertyNotFound
		}
		return nil, fmt.Errorf("settlement/mongo: get property: %w", err)
	}
	return fromPropertyModel(&m)
}

// LockProperty writes to the property document so a concurrent transaction
// that also writes it aborts with a write conflict instead of interleaving.
func (s *Store) LockProperty(ctx context.Context, propertyID id.PropertyID) (*property.Property, error) {
	var m propertyModel
	err := s.col(colProperties).FindOneAndUpdate(s.bind(ctx),
		bson.M{"_id": propertyID.String()},
		bson.M{"$set": bson.M{"locked_at": now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, settlement.ErrPropertyNotFound
		}
		return nil, classify(err)
	}
	return fromPropertyModel(&m)
}

func (s *Store) ListProperties(ctx context.Context, opts property.ListOpts) ([]*property.Property, error) {
	filter := bson.M{}
	if opts.HaltedOnly {
		filter["halted"] = true
	}

	var models []propertyModel
	if err := s.findAll(ctx, colProperties, filter, pageOpts(opts.Limit, opts.Offset), &models); err != nil {
		return nil, fmt.Errorf("settlement/mongo: list properties: %w", err)
	}

	result := make([]*property.Property, 0, len(models))
	for i := range models {
		p, err := fromPropertyModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, nil
}

func (s *Store) Reserve(ctx context.Context, propertyID id.PropertyID, units int64) error {
	if units <= 0 {
		return settlement.ErrInvalidInput
	}
	ctx = s.bind(ctx)
	res, err := s.col(colProperties).UpdateOne(ctx,
		bson.M{"_id": propertyID.String(), "halted": false, "available_units": bson.M{"$gte": units}},
		bson.M{"$inc": bson.M{"available_units": -units}, "$set": bson.M{"updated_at": now()}},
	)
	if err != nil {
		return classify(err)
	}
	if res.MatchedCount == 1 {
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
	ctx = s.bind(ctx)
	res, err := s.col(colProperties).UpdateOne(ctx,
		bson.M{
			"_id":    propertyID.String(),
			"halted": false,
			"$expr": bson.M{"$lte": bson.A{
				bson.M{"$add": bson.A{"$available_units", units}},
				"$total_units",
			}},
		},
		bson.M{"$inc": bson.M{"available_units": units}, "$set": bson.M{"updated_at": now()}},
	)
	if err != nil {
		return classify(err)
	}
	if res.MatchedCount == 1 {
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
	res, err := s.col(colProperties).UpdateOne(s.bind(ctx),
		bson.M{"_id": propertyID.String()},
		bson.M{"$set": bson.M{"halted": halted, "halt_reason": reason, "updated_at": now()}},
	)
	if err != nil {
		return classify(err)
	}
	if res.MatchedCount == 0 {
		return settlement.ErrPropertyNotFound
	}
	return nil
}

// ==================== Ownership ====================

// Grant merges into the (user, property) record. A held record accumulates
// units and cost basis; an exited record is reopened with the new purchase
// only. Losing the insert race to a concurrent grant aborts the transaction,
// so it surfaces as settlement.ErrTransactionFailed for the caller to re-run.
func (s *Store) Grant(ctx context.Context, g ownership.GrantParams) (*ownership.Ownership, error) {
	if g.Units <= 0 || g.UserID == "" {
		return nil, settlement.ErrInvalidInput
	}
	ctx = s.bind(ctx)
	coll := s.col(colOwnerships)
	after := options.FindOneAndUpdate().SetReturnDocument(options.After)
	price := g.AcquisitionPrice.Int64()

	var m ownershipModel
	err := coll.FindOneAndUpdate(ctx,
		bson.M{
			"user_id":     g.UserID,
			"property_id": g.PropertyID.String(),
			"status":      bson.M{"$in": statusStrings(ownership.ActiveLike)},
		},
		bson.M{
			"$inc": bson.M{"units": g.Units, "acquisition_price": price, "current_value": price},
			"$set": bson.M{"updated_at": now()},
		},
		after,
	).Decode(&m)
	if err == nil {
		return fromOwnershipModel(&m)
	}
	if !isNoDocuments(err) {
		return nil, classify(err)
	}

	err = coll.FindOneAndUpdate(ctx,
		bson.M{"user_id": g.UserID, "property_id": g.PropertyID.String()},
		bson.M{"$set": bson.M{
			"units":             g.Units,
			"acquisition_price": price,
			"current_value":     price,
			"status":            string(g.InitialStatus()),
			"updated_at":        now(),
		}},
		after,
	).Decode(&m)
	if err == nil {
		return fromOwnershipModel(&m)
	}
	if !isNoDocuments(err) {
		return nil, classify(err)
	}

	o := ownership.FromGrant(g)
	if _, err := coll.InsertOne(ctx, toOwnershipModel(o)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: concurrent grant for %s on %s: %w",
				settlement.ErrTransactionFailed, g.UserID, g.PropertyID, err)
		}
		return nil, classify(err)
	}
	return o, nil
}

func (s *Store) GetOwnership(ctx context.Context, ownershipID id.OwnershipID) (*ownership.Ownership, error) {
	var m ownershipModel
	err := s.col(colOwnerships).FindOne(s.bind(ctx), bson.M{"_id": ownershipID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, settlement.ErrOwnershipNotFound
		}
		return nil, fmt.Errorf("settlement/mongo: get ownership: %w", err)
	}
	return fromOwnershipModel(&m)
}

func (s *Store) ListOwnerships(ctx context.Context, opts ownership.ListOpts) ([]*ownership.Ownership, error) {
	filter := bson.M{}
	if opts.UserID != "" {
		filter["user_id"] = opts.UserID
	}
	if !opts.PropertyID.IsNil() {
		filter["property_id"] = opts.PropertyID.String()
	}
	if len(opts.Statuses) > 0 {
		filter["status"] = bson.M{"$in": statusStrings(opts.Statuses)}
	}

	var models []ownershipModel
	if err := s.findAll(ctx, colOwnerships, filter, pageOpts(opts.Limit, opts.Offset), &models); err != nil {
		return nil, fmt.Errorf("settlement/mongo: list ownerships: %w", err)
	}

	result := make([]*ownership.Ownership, 0, len(models))
	for i := range models {
		o, err := fromOwnershipModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, nil
}

func (s *Store) TransitionOwnership(ctx context.Context, ownershipID id.OwnershipID, from []ownership.Status, to ownership.Status) (*ownership.Ownership, error) {
	ctx = s.bind(ctx)
	var m ownershipModel
	err := s.col(colOwnerships).FindOneAndUpdate(ctx,
		bson.M{"_id": ownershipID.String(), "status": bson.M{"$in": statusStrings(from)}},
		bson.M{"$set": bson.M{"status": string(to), "updated_at": now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err == nil {
		return fromOwnershipModel(&m)
	}
	if !isNoDocuments(err) {
		return nil, classify(err)
	}

	o, err := s.GetOwnership(ctx, ownershipID)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: ownership %s is %s", settlement.ErrStateConflict, ownershipID, o.Status)
}

func (s *Store) SumUnitsByUser(ctx context.Context, userID string) (int64, error) {
	return s.sumUnits(ctx, bson.M{"user_id": userID})
}

func (s *Store) SumUnitsByProperty(ctx context.Context, propertyID id.PropertyID) (int64, error) {
	return s.sumUnits(ctx, bson.M{"property_id": propertyID.String()})
}

// sumUnits totals active-like units over the records matching filter.
func (s *Store) sumUnits(ctx context.Context, filter bson.M) (int64, error) {
	ctx = s.bind(ctx)
	filter["status"] = bson.M{"$in": statusStrings(ownership.ActiveLike)}

	cursor, err := s.col(colOwnerships).Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$units"}}},
		}}},
	})
	if err != nil {
		return 0, fmt.Errorf("settlement/mongo: sum units: %w", err)
	}

	var out []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &out); err != nil {
		return 0, fmt.Errorf("settlement/mongo: sum units: %w", err)
	}
	if len(out) == 0 {
		return 0, nil
	}
	return out[0].Total, nil
}

// ==================== Tier ====================

func (s *Store) GetTier(ctx context.Context, userID string) (*tier.Record, error) {
	var m tierModel
	err := s.col(colTiers).FindOne(s.bind(ctx), bson.M{"_id": userID}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, settlement.ErrTierNotFound
		}
		return nil, fmt.Errorf("settlement/mongo: get tier: %w", err)
	}
	return fromTierModel(&m), nil
}

func (s *Store) SaveTier(ctx context.Context, rec *tier.Record) error {
	at := now()
	created := rec.CreatedAt
	if created.IsZero() {
		created = at
	}
	_, err := s.col(colTiers).UpdateOne(s.bind(ctx),
		bson.M{"_id": rec.UserID},
		bson.M{
			"$set":         bson.M{"tier": string(rec.Tier), "units": rec.Units, "updated_at": at},
			"$setOnInsert": bson.M{"created_at": created},
		},
		options.UpdateOne().SetUpsert(true),
	)
	return classify(err)
}

// ==================== Capabilities ====================

func (s *Store) SetKYCStatus(ctx context.Context, userID string, status capability.KYCStatus) error {
	_, err := s.col(colKYC).UpdateOne(s.bind(ctx),
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"status": string(status), "updated_at": now()}},
		options.UpdateOne().SetUpsert(true),
	)
	return classify(err)
}

func (s *Store) GetKYCStatus(ctx context.Context, userID string) (capability.KYCStatus, error) {
	var m kycModel
	err := s.col(colKYC).FindOne(s.bind(ctx), bson.M{"_id": userID}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return capability.KYCPending, nil
		}
		return "", fmt.Errorf("settlement/mongo: get kyc status: %w", err)
	}
	return capability.KYCStatus(m.Status), nil
}

func (s *Store) ListApprovedUsers(ctx context.Context, after string, limit int) ([]string, error) {
	findOpts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetProjection(bson.M{"_id": 1})
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}

	var models []kycModel
	filter := bson.M{"status": string(capability.KYCApproved), "_id": bson.M{"$gt": after}}
	if err := s.findAll(ctx, colKYC, filter, findOpts, &models); err != nil {
		return nil, fmt.Errorf("settlement/mongo: list approved users: %w", err)
	}

	users := make([]string, len(models))
	for i, m := range models {
		users[i] = m.UserID
	}
	return users, nil
}

func (s *Store) ListGrants(ctx context.Context, userID string) ([]*capability.Grant, error) {
	var models []grantModel
	findOpts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	if err := s.findAll(ctx, colGrants, bson.M{"user_id": userID}, findOpts, &models); err != nil {
		return nil, fmt.Errorf("settlement/mongo: list grants: %w", err)
	}

	result := make([]*capability.Grant, 0, len(models))
	for i := range models {
		g, err := fromGrantModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	return result, nil
}

func (s *Store) GrantCapabilities(ctx context.Context, userID string, names []string, source string) ([]string, error) {
	ctx = s.bind(ctx)
	var inserted []string
	at := now()
	for _, name := range names {
		res, err := s.col(colGrants).UpdateOne(ctx,
			bson.M{"user_id": userID, "name": name},
			bson.M{"$setOnInsert": bson.M{"_id": id.NewGrantID().String(), "source": source, "granted_at": at}},
			options.UpdateOne().SetUpsert(true),
		)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			return inserted, classify(err)
		}
		if res.UpsertedCount == 1 {
			inserted = append(inserted, name)
		}
	}
	return inserted, nil
}

func (s *Store) RevokeCapabilities(ctx context.Context, userID string, names []string) ([]string, error) {
	ctx = s.bind(ctx)
	var removed []string
	for _, name := range names {
		res, err := s.col(colGrants).DeleteOne(ctx, bson.M{"user_id": userID, "name": name})
		if err != nil {
			return removed, classify(err)
		}
		if res.DeletedCount == 1 {
			removed = append(removed, name)
		}
	}
	return removed, nil
}

// ==================== Helpers ====================

func (s *Store) findAll(ctx context.Context, col string, filter bson.M, opts *options.FindOptionsBuilder, out any) error {
	ctx = s.bind(ctx)
	cursor, err := s.col(col).Find(ctx, filter, opts)
	if err != nil {
		return err
	}
	return cursor.All(ctx, out)
}

func pageOpts(limit, offset int) *options.FindOptionsBuilder {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	return opts
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// classify maps duplicate keys and validator rejections to settlement
// sentinels and leaves other errors untouched.
// isTransient reports whether the server marked err as safe to retry as a
// whole transaction.
func isTransient(err error) bool {
	var le mongo.LabeledError
	return errors.As(err, &le) && le.HasErrorLabel(labelTransientTransaction)
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %w", settlement.ErrAlreadyExists, err)
	}
	var se mongo.ServerError
	if errors.As(err, &se) && se.HasErrorCode(codeValidationFailure) {
		return fmt.Errorf("%w: %w", settlement.ErrInvariantViolation, err)
	}
	return err
}
