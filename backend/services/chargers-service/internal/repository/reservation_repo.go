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

const reservationColumns = `id, user_id, charger_id, start_time, end_time, used`

type reservationRepo struct {
	q sqlx.ExtContext
}

func (r *reservationRepo) Create(ctx context.Context, reservation *models.Reservation) error {
	if reservation.ID == uuid.Nil {
		reservation.ID = uuid.New()
	}
	const query = `
		INSERT INTO reservations (` + reservationColumns + `)
		VALUES (:id, :user_id, :charger_id, :start_time, :end_time, :used)
	`
	_, err := sqlx.NamedExecContext(ctx, r.q, query, reservation)
	return translate(err)
}

func (r *reservationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	const query = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	var res models.Reservation
	if err := sqlx.GetContext(ctx, r.q, &res, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return &res, nil
}

func (r *reservationRepo) ListByCharger(ctx context.Context, chargerID uuid.UUID) ([]models.Reservation, error) {
	const query = `SELECT ` + reservationColumns + ` FROM reservations WHERE charger_id = $1 ORDER BY start_time`
	return r.list(ctx, query, chargerID)
}

func (r *reservationRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Reservation, error) {
	const query = `SELECT ` + reservationColumns + ` FROM reservations WHERE user_id = $1 ORDER BY start_time`
	return r.list(ctx, query, userID)
}

func (r *reservationRepo) ListCovering(ctx context.Context, userID uuid.UUID, at time.Time) ([]models.Reservation, error) {
	const query = `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE user_id = $1 AND start_time <= $2 AND end_time > $2
		ORDER BY start_time
	`
	return r.list(ctx, query, userID, at)
}

func (r *reservationRepo) MarkUsed(ctx context.Context, id uuid.UUID) error {
	const query = `UPDATE reservations SET used = TRUE WHERE id = $1`
	result, err := r.q.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(result, ErrReservationNotFound)
}

func (r *reservationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM reservations WHERE id = $1`
	result, err := r.q.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(result, ErrReservationNotFound)
}

func (r *reservationRepo) list(ctx context.Context, query string, args ...any) ([]models.Reservation, error) {
	reservations := []models.Reservation{}
	if err := sqlx.SelectContext(ctx, r.q, &reservations, query, args...); err != nil {
		return nil, err
	}
	return reservations, nil
}
