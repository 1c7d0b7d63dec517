package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chargehub/backend/libs/clock"
	"chargehub/backend/services/chargers-service/internal/apperr"
	"chargehub/backend/services/chargers-service/internal/models"
	"chargehub/backend/services/chargers-service/internal/repository"
)

// StateMachine drives charger status and charge sessions. Every transition runs inside the
// charger's critical section and writes sessions, status and reservation flag together.
type StateMachine struct {
	section  *criticalSection
	clock    clock.Clock
	observer Observer
	logger   *zap.Logger
}

// NewStateMachine builds a state machine.
func NewStateMachine(deps Deps) *StateMachine {
	deps = deps.withDefaults()
	return &StateMachine{
		section:  deps.section(),
		clock:    deps.Clock,
		observer: deps.Observer,
		logger:   deps.Logger.With(zap.String("component", "state_machine")),
	}
}

// Unlock starts a charge session for userID on the charger.
func (m *StateMachine) Unlock(ctx context.Context, chargerID, userID uuid.UUID) error {
	_, err := m.transition(ctx, chargerID, userID, EventUnlock)
	return err
}

// Lock ends the caller's charge session and makes the charger available.
func (m *StateMachine) Lock(ctx context.Context, chargerID, userID uuid.UUID) error {
	_, err := m.transition(ctx, chargerID, userID, EventLock)
	return err
}

// SetStatus applies an operator status change. IN_USE cannot be set directly.
func (m *StateMachine) SetStatus(ctx context.Context, chargerID uuid.UUID, status models.ChargerStatus) (*models.Charger, error) {
	event, err := eventForStatus(status)
	if err != nil {
		return nil, err
	}
	return m.transition(ctx, chargerID, uuid.Nil, event)
}

// Disable marks the charger temporarily disabled.
func (m *StateMachine) Disable(ctx context.Context, chargerID uuid.UUID) (*models.Charger, error) {
	return m.transition(ctx, chargerID, uuid.Nil, EventDisable)
}

// Enable makes the charger available again.
func (m *StateMachine) Enable(ctx context.Context, chargerID uuid.UUID) (*models.Charger, error) {
	return m.transition(ctx, chargerID, uuid.Nil, EventEnable)
}

func (m *StateMachine) transition(ctx context.Context, chargerID, userID uuid.UUID, event Event) (*models.Charger, error) {
	var (
		result  Transition
		updated models.Charger
	)
	apply := func(ctx context.Context, tx repository.Stores, charger *models.Charger) error {
		t, err := m.step(ctx, tx, charger, userID, event)
		if err != nil {
			return err
		}
		result = t
		updated = *charger
		updated.Status = t.To
		updated.UpdatedAt = t.At
		return nil
	}
	committed := func(ctx context.Context) {
		m.logger.Info("charger transition",
			zap.String("charger_id", chargerID.String()),
			zap.String("event", string(event)),
			zap.String("from", string(result.From)),
			zap.String("to", string(result.To)),
		)
		m.observer.OnTransition(ctx, result)
	}
	if err := m.section.run(ctx, chargerID, apply, committed); err != nil {
		m.logger.Debug("charger transition rejected",
			zap.String("charger_id", chargerID.String()),
			zap.String("event", string(event)),
			zap.Error(err),
		)
		return nil, err
	}
	return &updated, nil
}

// step decides and applies one transition on the locked charger.
func (m *StateMachine) step(ctx context.Context, tx repository.Stores, charger *models.Charger, userID uuid.UUID, event Event) (Transition, error) {
	open, err := tx.Sessions.GetOpenByCharger(ctx, charger.ID)
	if err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		return Transition{}, err
	}

	if event == EventLock && open == nil {
		return Transition{}, apperr.NotFound(msgAlreadyAvailable)
	}

	r, err := decide(charger.Status, event)
	if err != nil {
		return Transition{}, err
	}

	now := m.clock.Now()

	if r.needsOwner && open.UserID != userID {
		return Transition{}, apperr.InvalidState(msgLockedByOther)
	}

	var reservation *models.Reservation
	if r.openNew {
		reservation, err = covering(ctx, tx.Reservations, userID, &charger.ID, now)
		if err != nil {
			return Transition{}, err
		}
	}
	if r.needsCovering && reservation == nil {
		return Transition{}, apperr.InvalidState(msgInUse)
	}

	t := Transition{
		ChargerID: charger.ID,
		Event:     event,
		From:      charger.Status,
		To:        r.next,
		UserID:    userID,
		At:        now,
	}

	if r.closeOpen && open != nil {
		if err := tx.Sessions.Close(ctx, open.ID, now); err != nil {
			return Transition{}, err
		}
		closed := *open
		closed.EndTime = &now
		t.Closed = &closed
	}

	if r.openNew {
		session := models.ChargeSession{UserID: userID, ChargerID: charger.ID, StartTime: now}
		if reservation != nil {
			session.ReservationID = &reservation.ID
			if !reservation.Used {
				if err := tx.Reservations.MarkUsed(ctx, reservation.ID); err != nil {
					return Transition{}, err
				}
				t.ReservationUsed = &reservation.ID
			}
		}
		if err := tx.Sessions.Create(ctx, &session); err != nil {
			return Transition{}, err
		}
		t.Opened = &session
	}

	if err := tx.Chargers.UpdateStatus(ctx, charger.ID, r.next, now); err != nil {
		return Transition{}, err
	}
	return t, nil
}
