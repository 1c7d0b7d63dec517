package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chargehub/backend/libs/clock"
	"chargehub/backend/services/chargers-service/internal/apperr"
	"chargehub/backend/services/chargers-service/internal/models"
	"chargehub/backend/services/chargers-service/internal/repository"
)

// DefaultNearTermHorizon is the look-ahead used when callers do not pass one.
const DefaultNearTermHorizon = 5 * 24 * time.Hour

// ReservationFilter selects reservations by charger or by user, never both.
type ReservationFilter struct {
	ChargerID *uuid.UUID
	UserID    *uuid.UUID
}

// Planner admits reservations and answers reservation queries.
type Planner struct {
	section  *criticalSection
	store    repository.Store
	clock    clock.Clock
	cache    *ReservationCache
	observer Observer
	horizon  time.Duration
	logger   *zap.Logger
}

// NewPlanner builds a planner. cache may be nil.
func NewPlanner(deps Deps, cache *ReservationCache, horizon time.Duration) *Planner {
	deps = deps.withDefaults()
	if horizon <= 0 {
		horizon = DefaultNearTermHorizon
	}
	return &Planner{
		section:  deps.section(),
		store:    deps.Store,
		clock:    deps.Clock,
		cache:    cache,
		observer: deps.Observer,
		horizon:  horizon,
		logger:   deps.Logger.With(zap.String("component", "planner")),
	}
}

// Admit validates r and stores it unless it overlaps another reservation on the same charger.
func (p *Planner) Admit(ctx context.Context, r models.Reservation) (*models.Reservation, error) {
	now := p.clock.Now()
	if !r.StartTime.Before(r.EndTime) {
		return nil, apperr.InvalidArgument("Start timestamp must be before end timestamp")
	}
	if r.StartTime.Before(now) || r.EndTime.Before(now) {
		return nil, apperr.InvalidArgument("Reservation cannot be in the past")
	}

	r.ID = uuid.New()
	r.Used = false

	err := p.section.run(ctx, r.ChargerID, func(ctx context.Context, tx repository.Stores, _ *models.Charger) error {
		existing, err := tx.Reservations.ListByCharger(ctx, r.ChargerID)
		if err != nil {
			return err
		}
		for i := range existing {
			if r.Overlaps(&existing[i]) {
				return apperr.Conflict(msgOverlap)
			}
		}
		return tx.Reservations.Create(ctx, &r)
	}, func(ctx context.Context) {
		p.observer.OnReservationChange(ctx, ReservationChange{Kind: ReservationAdmitted, Reservation: r, At: now})
	})
	if err != nil {
		p.logger.Debug("reservation rejected",
			zap.String("charger_id", r.ChargerID.String()),
			zap.String("user_id", r.UserID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	p.logger.Info("reservation admitted",
		zap.String("reservation_id", r.ID.String()),
		zap.String("charger_id", r.ChargerID.String()),
		zap.Time("start", r.StartTime),
		zap.Time("end", r.EndTime),
	)
	return &r, nil
}

// NearTerm returns reservations on the charger starting within (now, now+horizon), earliest
// first. A non-positive horizon uses the configured default.
func (p *Planner) NearTerm(ctx context.Context, chargerID uuid.UUID, horizon time.Duration) ([]models.Reservation, error) {
	if horizon <= 0 {
		horizon = p.horizon
	}

	all, err := p.chargerReservations(ctx, chargerID)
	if err != nil {
		return nil, err
	}

	now := p.clock.Now()
	until := now.Add(horizon)
	out := []models.Reservation{}
	for _, r := range all {
		if r.StartTime.After(now) && r.StartTime.Before(until) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (p *Planner) chargerReservations(ctx context.Context, chargerID uuid.UUID) ([]models.Reservation, error) {
	if list, ok := p.cache.get(chargerID); ok {
		return list, nil
	}

	version := p.cache.version(chargerID)
	stores := p.store.Stores()
	if _, err := stores.Chargers.GetByID(ctx, chargerID); err != nil {
		return nil, storeError(err)
	}
	list, err := stores.Reservations.ListByCharger(ctx, chargerID)
	if err != nil {
		return nil, storeError(err)
	}
	p.cache.put(chargerID, version, list)
	return list, nil
}

// FindCovering returns the user's reservation containing at, or nil when there is none.
func (p *Planner) FindCovering(ctx context.Context, userID uuid.UUID, at time.Time) (*models.Reservation, error) {
	r, err := covering(ctx, p.store.Stores().Reservations, userID, nil, at)
	return r, storeError(err)
}

// FindCoveringOnCharger is FindCovering restricted to one charger.
func (p *Planner) FindCoveringOnCharger(ctx context.Context, userID, chargerID uuid.UUID, at time.Time) (*models.Reservation, error) {
	r, err := covering(ctx, p.store.Stores().Reservations, userID, &chargerID, at)
	return r, storeError(err)
}

// covering picks the earliest-starting reservation of userID containing at.
func covering(ctx context.Context, reservations repository.ReservationStore, userID uuid.UUID, chargerID *uuid.UUID, at time.Time) (*models.Reservation, error) {
	list, err := reservations.ListCovering(ctx, userID, at)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if chargerID == nil || list[i].ChargerID == *chargerID {
			return &list[i], nil
		}
	}
	return nil, nil
}

// Cancel deletes the reservation and returns it.
func (p *Planner) Cancel(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	chargerID, err := p.chargerOf(ctx, id)
	if err != nil {
		return nil, err
	}

	var removed models.Reservation
	err = p.section.run(ctx, chargerID, func(ctx context.Context, tx repository.Stores, _ *models.Charger) error {
		r, err := tx.Reservations.GetByID(ctx, id)
		if err != nil {
			return err
		}
		removed = *r
		return tx.Reservations.Delete(ctx, id)
	}, func(ctx context.Context) {
		p.observer.OnReservationChange(ctx, ReservationChange{Kind: ReservationCancelled, Reservation: removed, At: p.clock.Now()})
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("reservation cancelled", zap.String("reservation_id", id.String()))
	return &removed, nil
}

// MarkUsed flips the used flag once, while now lies within [start, end].
func (p *Planner) MarkUsed(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	chargerID, err := p.chargerOf(ctx, id)
	if err != nil {
		return nil, err
	}

	var used models.Reservation
	var now time.Time
	err = p.section.run(ctx, chargerID, func(ctx context.Context, tx repository.Stores, _ *models.Charger) error {
		r, err := tx.Reservations.GetByID(ctx, id)
		if err != nil {
			return err
		}
		now = p.clock.Now()
		if err := checkUsable(r, now); err != nil {
			return err
		}
		if err := tx.Reservations.MarkUsed(ctx, id); err != nil {
			return err
		}
		r.Used = true
		used = *r
		return nil
	}, func(ctx context.Context) {
		p.observer.OnReservationChange(ctx, ReservationChange{Kind: ReservationUsed, Reservation: used, At: now})
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("reservation marked used", zap.String("reservation_id", id.String()))
	return &used, nil
}

// checkUsable applies the markUsed preconditions in order. Both boundaries are inclusive.
func checkUsable(r *models.Reservation, now time.Time) error {
	switch {
	case r.Used:
		return apperr.InvalidState("Reservation already marked as used")
	case now.Before(r.StartTime):
		return apperr.InvalidState("Reservation not started yet")
	case now.After(r.EndTime):
		return apperr.InvalidState("Reservation already ended")
	}
	return nil
}

// Get returns one reservation.
func (p *Planner) Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	r, err := p.store.Stores().Reservations.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	return r, nil
}

// List returns reservations for exactly one of charger or user.
func (p *Planner) List(ctx context.Context, filter ReservationFilter) ([]models.Reservation, error) {
	if (filter.ChargerID == nil) == (filter.UserID == nil) {
		return nil, apperr.InvalidArgument("Exactly one of chargerId or userId must be provided")
	}

	var (
		list []models.Reservation
		err  error
	)
	if filter.ChargerID != nil {
		list, err = p.store.Stores().Reservations.ListByCharger(ctx, *filter.ChargerID)
	} else {
		list, err = p.store.Stores().Reservations.ListByUser(ctx, *filter.UserID)
	}
	if err != nil {
		return nil, storeError(err)
	}
	return list, nil
}

func (p *Planner) chargerOf(ctx context.Context, reservationID uuid.UUID) (uuid.UUID, error) {
	r, err := p.store.Stores().Reservations.GetByID(ctx, reservationID)
	if err != nil {
		return uuid.Nil, storeError(err)
	}
	return r.ChargerID, nil
}
