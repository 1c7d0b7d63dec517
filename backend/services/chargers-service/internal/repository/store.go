package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"chargehub/backend/services/chargers-service/internal/models"
)

var (
	// ErrChargerNotFound indicates a missing charger row.
	ErrChargerNotFound = errors.New("charger not found")
	// ErrReservationNotFound indicates a missing reservation row.
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrSessionNotFound indicates no matching (open) charge session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrLockTimeout is returned when the charger row could not be locked in time.
	ErrLockTimeout = errors.New("charger is locked by another writer")
	// ErrOverlap is returned when the storage layer itself rejects an overlapping reservation.
	ErrOverlap = errors.New("reservation overlaps an existing reservation")
)

// ChargerStore persists chargers.
type ChargerStore interface {
	Create(ctx context.Context, charger *models.Charger) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Charger, error)
	ListByStation(ctx context.Context, stationID uuid.UUID) ([]models.Charger, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.ChargerStatus, at time.Time) error
}

// ReservationStore persists reservations. Lists are ordered by start time ascending.
type ReservationStore interface {
	Create(ctx context.Context, reservation *models.Reservation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	ListByCharger(ctx context.Context, chargerID uuid.UUID) ([]models.Reservation, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Reservation, error)
	// ListCovering returns the user's reservations with start <= at < end.
	ListCovering(ctx context.Context, userID uuid.UUID, at time.Time) ([]models.Reservation, error)
	MarkUsed(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// SessionStore persists charge sessions. Lists are ordered by start time descending.
type SessionStore interface {
	Create(ctx context.Context, session *models.ChargeSession) error
	GetOpenByCharger(ctx context.Context, chargerID uuid.UUID) (*models.ChargeSession, error)
	Close(ctx context.Context, id uuid.UUID, end time.Time) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.ChargeSession, error)
	ListByCharger(ctx context.Context, chargerID uuid.UUID) ([]models.ChargeSession, error)
}

// Stores groups the three stores bound to the same connection or transaction.
type Stores struct {
	Chargers     ChargerStore
	Reservations ReservationStore
	Sessions     SessionStore
}

// TxFunc is the body of a per-charger critical section. charger is the locked row as read
// at the start of the transaction.
type TxFunc func(ctx context.Context, tx Stores, charger *models.Charger) error

// Store is the durable state behind the charger core.
type Store interface {
	// Stores returns non-transactional stores for reads.
	Stores() Stores
	// WithinCharger locks the charger row and runs fn in a single transaction; every write made
	// through tx commits together or not at all. Returns ErrChargerNotFound for unknown ids.
	WithinCharger(ctx context.Context, chargerID uuid.UUID, fn TxFunc) error
}
