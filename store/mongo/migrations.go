package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/grove/drivers/mongodriver"
	"github.com/xraph/grove/drivers/mongodriver/mongomigrate"
	"github.com/xraph/grove/migrate"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Migrations is the grove migration group for the settlement store (MongoDB).
var Migrations = migrate.NewGroup("settlement")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_settlement_properties",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				mdb, err := unwrapExecutor(exec)
				if err != nil {
					return err
				}
				return createValidatedCollection(ctx, mdb.Database())
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				mdb, err := unwrapExecutor(exec)
				if err != nil {
					return err
				}
				return mdb.Collection(colProperties).Drop(ctx)
			},
		},
		&migrate.Migration{
			Name:    "create_settlement_indexes",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				mdb, err := unwrapExecutor(exec)
				if err != nil {
					return err
				}
				for col, models := range migrationIndexes() {
					if _, err := mdb.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
						return fmt.Errorf("%s indexes: %w", col, err)
					}
				}
				return nil
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				mdb, err := unwrapExecutor(exec)
				if err != nil {
					return err
				}
				for _, col := range []string{colEntries, colOwnerships, colTiers, colKYC, colGrants} {
					if err := mdb.Collection(col).Drop(ctx); err != nil {
						return err
					}
				}
				return nil
			},
		},
	)
}

// unwrapExecutor returns the driver behind a mongo migration executor. Its
// Exec and Query are unsupported; migrations use the driver directly.
func unwrapExecutor(exec migrate.Executor) (*mongodriver.MongoDB, error) {
	me, ok := exec.(*mongomigrate.Executor)
	if !ok {
		return nil, fmt.Errorf("settlement/mongo: unexpected migration executor %T", exec)
	}
	return me.DB(), nil
}

// propertyValidator keeps available_units within [0, total_units].
var propertyValidator = bson.M{"$expr": bson.M{"$and": bson.A{
	bson.M{"$gt": bson.A{"$total_units", 0}},
	bson.M{"$gt": bson.A{"$price_per_unit", 0}},
	bson.M{"$gte": bson.A{"$available_units", 0}},
	bson.M{"$lte": bson.A{"$available_units", "$total_units"}},
}}}

func createValidatedCollection(ctx context.Context, db *mongo.Database) error {
	err := db.CreateCollection(ctx, colProperties, options.CreateCollection().SetValidator(propertyValidator))
	if err == nil {
		return nil
	}
	var ce mongo.CommandError
	if !errors.As(err, &ce) || ce.Code != codeNamespaceExists {
		return err
	}
	return db.RunCommand(ctx, bson.D{
		{Key: "collMod", Value: colProperties},
		{Key: "validator", Value: propertyValidator},
	}).Err()
}

// migrationIndexes returns the index definitions for all settlement
// collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colProperties: {
			{Keys: bson.D{{Key: "halted", Value: 1}}},
		},
		colEntries: {
			{
				Keys:    bson.D{{Key: "id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "state", Value: 1}, {Key: "updated_at", Value: 1}}},
		},
		colOwnerships: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "property_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "property_id", Value: 1}, {Key: "status", Value: 1}}},
		},
		colKYC: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "_id", Value: 1}}},
		},
		colGrants: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}
}
