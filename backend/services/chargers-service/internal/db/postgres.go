package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	libdb "chargehub/backend/libs/db"
)

// NewPostgres reuses shared DB initializer.
func NewPostgres(dsn string) (*sqlx.DB, error) {
	return libdb.NewPostgresDB(dsn, libdb.Options{})
}

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS btree_gist`,
	`CREATE TABLE IF NOT EXISTS chargers (
		id             UUID PRIMARY KEY,
		station_id     UUID NOT NULL,
		connector_type TEXT NOT NULL,
		price          DOUBLE PRECISION NOT NULL DEFAULT 0,
		charging_speed DOUBLE PRECISION NOT NULL DEFAULT 0,
		status         TEXT NOT NULL DEFAULT 'AVAILABLE'
			CHECK (status IN ('AVAILABLE', 'IN_USE', 'OUT_OF_ORDER', 'TEMPORARILY_DISABLED')),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS chargers_station_idx ON chargers (station_id)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id         UUID PRIMARY KEY,
		user_id    UUID NOT NULL,
		charger_id UUID NOT NULL REFERENCES chargers (id),
		start_time TIMESTAMPTZ NOT NULL,
		end_time   TIMESTAMPTZ NOT NULL,
		used       BOOLEAN NOT NULL DEFAULT FALSE,
		CHECK (start_time < end_time),
		CONSTRAINT reservations_no_overlap EXCLUDE USING gist (
			charger_id WITH =,
			tstzrange(start_time, end_time, '[)') WITH &&
		)
	)`,
	`CREATE INDEX IF NOT EXISTS reservations_user_idx ON reservations (user_id, start_time)`,
	`CREATE TABLE IF NOT EXISTS charge_sessions (
		id             UUID PRIMARY KEY,
		user_id        UUID NOT NULL,
		charger_id     UUID NOT NULL REFERENCES chargers (id),
		reservation_id UUID REFERENCES reservations (id) ON DELETE SET NULL,
		start_time     TIMESTAMPTZ NOT NULL,
		end_time       TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS charge_sessions_one_open_idx ON charge_sessions (charger_id) WHERE end_time IS NULL`,
	`CREATE INDEX IF NOT EXISTS charge_sessions_user_idx ON charge_sessions (user_id, start_time DESC)`,
	`CREATE INDEX IF NOT EXISTS charge_sessions_charger_idx ON charge_sessions (charger_id, start_time DESC)`,
}

// Migrate creates the tables used by the chargers service.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	return libdb.InTx(ctx, db, nil, func(tx *sqlx.Tx) error {
		for i, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("db: migrate step %d: %w", i+1, err)
			}
		}
		return nil
	})
}
