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

const chargerColumns = `id, station_id, connector_type, price, charging_speed, status, updated_at`

type chargerRepo struct {
	q sqlx.ExtContext
}

func (r *chargerRepo) Create(ctx context.Context, charger *models.Charger) error {
	if charger.ID == uuid.Nil {
		charger.ID = uuid.New()
	}
	const query = `
		INSERT INTO chargers (` + chargerColumns + `)
		VALUES (:id, :station_id, :connector_type, :price, :charging_speed, :status, :updated_at)
	`
	_, err := sqlx.NamedExecContext(ctx, r.q, query, charger)
	return err
}

func (r *chargerRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Charger, error) {
	const query = `SELECT ` + chargerColumns + ` FROM chargers WHERE id = $1`
	var c models.Charger
	if err := sqlx.GetContext(ctx, r.q, &c, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrChargerNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *chargerRepo) ListByStation(ctx context.Context, stationID uuid.UUID) ([]models.Charger, error) {
	const query = `SELECT ` + chargerColumns + ` FROM chargers WHERE station_id = $1 ORDER BY id`
	chargers := []models.Charger{}
	if err := sqlx.SelectContext(ctx, r.q, &chargers, query, stationID); err != nil {
		return nil, err
	}
	return chargers, nil
}

func (r *chargerRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ChargerStatus, at time.Time) error {
	const query = `UPDATE chargers SET status = $2, updated_at = $3 WHERE id = $1`
	result, err := r.q.ExecContext(ctx, query, id, status, at)
	if err != nil {
		return err
	}
	return affectedOrNotFound(result, ErrChargerNotFound)
}
