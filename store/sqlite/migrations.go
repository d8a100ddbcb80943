package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the settlement store (SQLite).
var Migrations = migrate.NewGroup("settlement")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_settlement_properties",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS settlement_properties (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    total_units     INTEGER NOT NULL CHECK (total_units > 0),
    available_units INTEGER NOT NULL,
    price_per_unit  INTEGER NOT NULL CHECK (price_per_unit > 0),
    halted          INTEGER NOT NULL DEFAULT 0,
    halt_reason     TEXT NOT NULL DEFAULT '',
    created_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL,
    CONSTRAINT settlement_properties_available_bounds
        CHECK (available_units >= 0 AND available_units <= total_units)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS settlement_properties`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_settlement_entries",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS settlement_entries (
    reference    TEXT PRIMARY KEY,
    id           TEXT NOT NULL UNIQUE,
    property_id  TEXT NOT NULL,
    user_id      TEXT NOT NULL,
    units        INTEGER NOT NULL CHECK (units > 0),
    amount       INTEGER NOT NULL,
    state        TEXT NOT NULL DEFAULT 'pending',
    reason       TEXT NOT NULL DEFAULT '',
    ownership_id TEXT,
    attempts     INTEGER NOT NULL DEFAULT 0,
    settled_at   INTEGER,
    created_at   INTEGER NOT NULL,
    updated_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_settlement_entries_state ON settlement_entries (state, updated_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS settlement_entries`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_settlement_ownerships",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS settlement_ownerships (
    id                TEXT PRIMARY KEY,
    user_id           TEXT NOT NULL,
    property_id       TEXT NOT NULL REFERENCES settlement_properties (id),
    units             INTEGER NOT NULL CHECK (units > 0),
    acquisition_price INTEGER NOT NULL DEFAULT 0,
    current_value     INTEGER NOT NULL DEFAULT 0,
    status            TEXT NOT NULL DEFAULT 'active',
    created_at        INTEGER NOT NULL,
    updated_at        INTEGER NOT NULL,
    UNIQUE (user_id, property_id)
);
CREATE INDEX IF NOT EXISTS idx_settlement_ownerships_property ON settlement_ownerships (property_id, status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS settlement_ownerships`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_settlement_tiers",
			Version: "20250101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS settlement_tiers (
    user_id    TEXT PRIMARY KEY,
    tier       TEXT NOT NULL,
    units      INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS settlement_tiers`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_settlement_capabilities",
			Version: "20250101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS settlement_kyc (
    user_id    TEXT PRIMARY KEY,
    status     TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS settlement_grants (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL,
    name       TEXT NOT NULL,
    source     TEXT NOT NULL DEFAULT '',
    granted_at INTEGER NOT NULL,
    UNIQUE (user_id, name)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS settlement_grants;
DROP TABLE IF EXISTS settlement_kyc;
`)
				return err
			},
		},
	)
}
