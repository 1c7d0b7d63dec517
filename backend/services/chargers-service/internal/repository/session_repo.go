package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"chargehub/backend/services/chargers-service/internal/models"
)

const sessionColumns = `id, user_id, charger_id, reservation_id, start_time, end_time`

type sessionRepo struct {
	q sqlx.ExtContext
}

func (r *sessionRepo) Create(ctx context.Context, session *models.ChargeSession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	const query = `
		INSERT INTO charge_sessions (` + sessionColumns + `)
		VALUES (:id, :user_id, :charger_id, :reservation_id, :start_time, :end_time)
	`
	_, err := sqlx.NamedExecContext(ctx, r.q, query, session)
	return translate(err)
}

func (r *sessionRepo) GetOpenByCharger(ctx context.Context, chargerID uuid.UUID) (*models.ChargeSession, error) {
	const query = `SELECT ` + sessionColumns + ` FROM charge_sessions WHERE charger_id = $1 AND end_time IS NULL`
	var s models.ChargeSession
	if err := sqlx.GetContext(ctx, r.q, &s, query, chargerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Close sets end_time on an open session.
func (r *sessionRepo) Close(ctx context.Context, id uuid.UUID, end time.Time) error {
	const query = `UPDATE charge_sessions SET end_time = $2 WHERE id = $1 AND end_time IS NULL`
	result, err := r.q.ExecContext(ctx, query, id, end)
	if err != nil {
		return err
	}
	return affectedOrNotFound(result, ErrSessionNotFound)
}

func (r *sessionRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.ChargeSession, error) {
	const query = `SELECT ` + sessionColumns + ` FROM charge_sessions WHERE user_id = $1 ORDER BY start_time DESC`
	return r.list(ctx, query, userID)
}

func (r *sessionRepo) ListByCharger(ctx context.Context, chargerID uuid.UUID) ([]models.ChargeSession, error) {
	const query = `SELECT ` + sessionColumns + ` FROM charge_sessions WHERE charger_id = $1 ORDER BY start_time DESC`
	return r.list(ctx, query, chargerID)
}

func (r *sessionRepo) list(ctx context.Context, query string, args ...any) ([]models.ChargeSession, error) {
	sessions := []models.ChargeSession{}
	if err := sqlx.SelectContext(ctx, r.q, &sessions, query, args...); err != nil {
		return nil, err
	}
	return sessions, nil
}
