package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"chargehub/backend/services/chargers-service/internal/models"
)

// Transition describes a committed charger state change.
type Transition struct {
	ChargerID uuid.UUID            `json:"chargerId"`
	Event     Event                `json:"event"`
	From      models.ChargerStatus `json:"from"`
	To        models.ChargerStatus `json:"to"`
	// UserID is uuid.Nil for operator actions.
	UserID          uuid.UUID             `json:"userId"`
	Opened          *models.ChargeSession `json:"opened,omitempty"`
	Closed          *models.ChargeSession `json:"closed,omitempty"`
	ReservationUsed *uuid.UUID            `json:"reservationUsed,omitempty"`
	At              time.Time             `json:"at"`
}

// ReservationChangeKind names what happened to a reservation.
type ReservationChangeKind string

const (
	ReservationAdmitted  ReservationChangeKind = "admitted"
	ReservationCancelled ReservationChangeKind = "cancelled"
	ReservationUsed      ReservationChangeKind = "used"
)

// ReservationChange describes a committed reservation write.
type ReservationChange struct {
	Kind        ReservationChangeKind
	Reservation models.Reservation
	At          time.Time
}

// Observer is notified after a write commits. Implementations handle their own failures;
// nothing they do can undo or fail the committed operation.
type Observer interface {
	OnTransition(ctx context.Context, t Transition)
	OnReservationChange(ctx context.Context, change ReservationChange)
}

// Observers fans out to every member in order.
type Observers []Observer

func (o Observers) OnTransition(ctx context.Context, t Transition) {
	for _, obs := range o {
		obs.OnTransition(ctx, t)
	}
}

func (o Observers) OnReservationChange(ctx context.Context, change ReservationChange) {
	for _, obs := range o {
		obs.OnReservationChange(ctx, change)
	}
}

// NopObserver can be embedded by observers interested in only one kind of change.
type NopObserver struct{}

func (NopObserver) OnTransition(context.Context, Transition)               {}
func (NopObserver) OnReservationChange(context.Context, ReservationChange) {}
