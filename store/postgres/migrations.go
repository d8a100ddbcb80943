package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the settlement store (PostgreSQL).
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
    total_units     BIGINT NOT NULL CHECK (total_units > 0),
    available_units BIGINT NOT NULL,
    price_per_unit  BIGINT NOT NULL CHECK (price_per_unit > 0),
    halted          BOOLEAN NOT NULL DEFAULT FALSE,
    halt_reason     TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT settlement_properties_available_bounds
        CHECK (available_units >= 0 AND available_units <= total_units)
);

CREATE INDEX IF NOT EXISTS idx_settlement_properties_halted ON settlement_properties (halted) WHERE halted;
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
    units        BIGINT NOT NULL CHECK (units > 0),
    amount       BIGINT NOT NULL,
    state        TEXT NOT NULL DEFAULT 'pending',
    reason       TEXT NOT NULL DEFAULT '',
    ownership_id TEXT,
    attempts     INT NOT NULL DEFAULT 0,
    settled_at   TIMESTAMPTZ,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_settlement_entries_open
    ON settlement_entries (updated_at) WHERE state IN ('pending', 'settling');
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
    units             BIGINT NOT NULL CHECK (units > 0),
    acquisition_price BIGINT NOT NULL DEFAULT 0,
    current_value     BIGINT NOT NULL DEFAULT 0,
    status            TEXT NOT NULL DEFAULT 'active',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
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
    units      BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_settlement_kyc_approved ON settlement_kyc (user_id) WHERE status = 'APPROVED';

CREATE TABLE IF NOT EXISTS settlement_grants (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL,
    name       TEXT NOT NULL,
    source     TEXT NOT NULL DEFAULT '',
    granted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (user_id, name)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS settlement_grants, settlement_kyc`)
				return err
			},
		},
	)
}
