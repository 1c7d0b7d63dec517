package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	libdb "chargehub/backend/libs/db"
	"chargehub/backend/services/chargers-service/internal/models"
)

// Postgres SQLSTATE codes the store translates.
const (
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgExclusionViolation   = "23P01"
	pgUniqueViolation      = "23505"
)

const selectChargerForUpdate = `
	SELECT id, station_id, connector_type, price, charging_speed, status, updated_at
	FROM chargers
	WHERE id = $1
	FOR UPDATE
`

// PostgresStore implements Store on top of Postgres row locks.
type PostgresStore struct {
	db          *sqlx.DB
	lockTimeout time.Duration
}

// NewPostgresStore returns a store. lockTimeout bounds how long a transaction waits for a
// charger row lock; zero waits for the server default.
func NewPostgresStore(db *sqlx.DB, lockTimeout time.Duration) *PostgresStore {
	return &PostgresStore{db: db, lockTimeout: lockTimeout}
}

// Stores returns stores bound to the pool.
func (s *PostgresStore) Stores() Stores {
	return bind(s.db)
}

// WithinCharger runs fn inside a transaction holding SELECT ... FOR UPDATE on the charger row.
func (s *PostgresStore) WithinCharger(ctx context.Context, chargerID uuid.UUID, fn TxFunc) error {
	err := libdb.InTx(ctx, s.db, nil, func(tx *sqlx.Tx) error {
		if s.lockTimeout > 0 {
			// SET does not accept bind parameters.
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}

		var charger models.Charger
		if err := tx.GetContext(ctx, &charger, selectChargerForUpdate, chargerID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrChargerNotFound
			}
			return err
		}

		return fn(ctx, bind(tx), &charger)
	})
	return translate(err)
}

func bind(q sqlx.ExtContext) Stores {
	return Stores{
		Chargers:     &chargerRepo{q: q},
		Reservations: &reservationRepo{q: q},
		Sessions:     &sessionRepo{q: q},
	}
}

// translate maps lock contention and constraint failures onto store sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: %s", ErrLockTimeout, pgErr.Message)
		case pgExclusionViolation:
			return fmt.Errorf("%w: %s", ErrOverlap, pgErr.ConstraintName)
		case pgUniqueViolation:
			// Only the one-open-session-per-charger index can fire here.
			return fmt.Errorf("%w: %s", ErrLockTimeout, pgErr.ConstraintName)
		}
	}
	return err
}

func affectedOrNotFound(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
