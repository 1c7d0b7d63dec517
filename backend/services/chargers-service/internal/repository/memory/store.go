// Package memory is an in-process implementation of repository.Store used by tests and
// single-instance deployments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"chargehub/backend/services/chargers-service/internal/lock"
	"chargehub/backend/services/chargers-service/internal/models"
	"chargehub/backend/services/chargers-service/internal/repository"
)

// Store keeps all rows in maps. WithinCharger stages writes and applies them in one step on
// success, so a failing transaction leaves nothing behind.
type Store struct {
	mu           sync.RWMutex
	chargers     map[uuid.UUID]models.Charger
	reservations map[uuid.UUID]models.Reservation
	sessions     map[uuid.UUID]models.ChargeSession

	rowLocks *lock.Keyed
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		chargers:     make(map[uuid.UUID]models.Charger),
		reservations: make(map[uuid.UUID]models.Reservation),
		sessions:     make(map[uuid.UUID]models.ChargeSession),
		rowLocks:     lock.NewKeyed(),
	}
}

// Stores returns autocommit stores.
func (s *Store) Stores() repository.Stores {
	return (&txn{s: s}).stores()
}

// WithinCharger serializes fn against every other transaction on the same charger.
func (s *Store) WithinCharger(ctx context.Context, chargerID uuid.UUID, fn repository.TxFunc) error {
	release, err := s.rowLocks.Acquire(ctx, chargerID.String())
	if err != nil {
		return fmt.Errorf("%w: %w", repository.ErrLockTimeout, err)
	}
	defer release()

	s.mu.RLock()
	charger, ok := s.chargers[chargerID]
	s.mu.RUnlock()
	if !ok {
		return repository.ErrChargerNotFound
	}

	tx := &txn{
		s:            s,
		chargers:     newOverlay[models.Charger](),
		reservations: newOverlay[models.Reservation](),
		sessions:     newOverlay[models.ChargeSession](),
	}
	if err := fn(ctx, tx.stores(), &charger); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// overlay holds staged puts and deletes for one table.
type overlay[T any] struct {
	puts map[uuid.UUID]T
	dels map[uuid.UUID]struct{}
}

func newOverlay[T any]() *overlay[T] {
	return &overlay[T]{puts: make(map[uuid.UUID]T), dels: make(map[uuid.UUID]struct{})}
}

// txn is a view over the store. Nil overlays mean writes go straight to the maps.
type txn struct {
	s            *Store
	chargers     *overlay[models.Charger]
	reservations *overlay[models.Reservation]
	sessions     *overlay[models.ChargeSession]
}

func (t *txn) stores() repository.Stores {
	return repository.Stores{
		Chargers:     &chargerStore{t: t},
		Reservations: &reservationStore{t: t},
		Sessions:     &sessionStore{t: t},
	}
}

func (t *txn) commit() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	apply(t.s.chargers, t.chargers)
	apply(t.s.reservations, t.reservations)
	apply(t.s.sessions, t.sessions)
}

func apply[T any](base map[uuid.UUID]T, o *overlay[T]) {
	for id := range o.dels {
		delete(base, id)
	}
	for id, v := range o.puts {
		base[id] = v
	}
}

// The helpers below expect the caller to hold s.mu.

func lookup[T any](base map[uuid.UUID]T, o *overlay[T], id uuid.UUID) (T, bool) {
	if o != nil {
		if _, gone := o.dels[id]; gone {
			var zero T
			return zero, false
		}
		if v, ok := o.puts[id]; ok {
			return v, true
		}
	}
	v, ok := base[id]
	return v, ok
}

func filter[T any](base map[uuid.UUID]T, o *overlay[T], keep func(T) bool) []T {
	out := []T{}
	for id, v := range base {
		if o != nil {
			if _, gone := o.dels[id]; gone {
				continue
			}
			if staged, ok := o.puts[id]; ok {
				v = staged
			}
		}
		if keep(v) {
			out = append(out, v)
		}
	}
	if o != nil {
		for id, v := range o.puts {
			if _, inBase := base[id]; !inBase && keep(v) {
				out = append(out, v)
			}
		}
	}
	return out
}

func put[T any](base map[uuid.UUID]T, o *overlay[T], id uuid.UUID, v T) {
	if o == nil {
		base[id] = v
		return
	}
	delete(o.dels, id)
	o.puts[id] = v
}

func remove[T any](base map[uuid.UUID]T, o *overlay[T], id uuid.UUID) {
	if o == nil {
		delete(base, id)
		return
	}
	delete(o.puts, id)
	o.dels[id] = struct{}{}
}

type chargerStore struct{ t *txn }

func (c *chargerStore) Create(_ context.Context, charger *models.Charger) error {
	if charger.ID == uuid.Nil {
		charger.ID = uuid.New()
	}
	c.t.s.mu.Lock()
	defer c.t.s.mu.Unlock()
	put(c.t.s.chargers, c.t.chargers, charger.ID, *charger)
	return nil
}

func (c *chargerStore) GetByID(_ context.Context, id uuid.UUID) (*models.Charger, error) {
	c.t.s.mu.RLock()
	defer c.t.s.mu.RUnlock()
	v, ok := lookup(c.t.s.chargers, c.t.chargers, id)
	if !ok {
		return nil, repository.ErrChargerNotFound
	}
	return &v, nil
}

func (c *chargerStore) ListByStation(_ context.Context, stationID uuid.UUID) ([]models.Charger, error) {
	c.t.s.mu.RLock()
	defer c.t.s.mu.RUnlock()
	out := filter(c.t.s.chargers, c.t.chargers, func(v models.Charger) bool { return v.StationID == stationID })
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (c *chargerStore) UpdateStatus(_ context.Context, id uuid.UUID, status models.ChargerStatus, at time.Time) error {
	c.t.s.mu.Lock()
	defer c.t.s.mu.Unlock()
	v, ok := lookup(c.t.s.chargers, c.t.chargers, id)
	if !ok {
		return repository.ErrChargerNotFound
	}
	v.Status = status
	v.UpdatedAt = at
	put(c.t.s.chargers, c.t.chargers, id, v)
	return nil
}

type reservationStore struct{ t *txn }

func (r *reservationStore) Create(_ context.Context, reservation *models.Reservation) error {
	if reservation.ID == uuid.Nil {
		reservation.ID = uuid.New()
	}
	r.t.s.mu.Lock()
	defer r.t.s.mu.Unlock()
	clash := filter(r.t.s.reservations, r.t.reservations, func(v models.Reservation) bool {
		return v.ChargerID == reservation.ChargerID && v.Overlaps(reservation)
	})
	if len(clash) > 0 {
		return fmt.Errorf("%w: %s", repository.ErrOverlap, clash[0].ID)
	}
	put(r.t.s.reservations, r.t.reservations, reservation.ID, *reservation)
	return nil
}

func (r *reservationStore) GetByID(_ context.Context, id uuid.UUID) (*models.Reservation, error) {
	r.t.s.mu.RLock()
	defer r.t.s.mu.RUnlock()
	v, ok := lookup(r.t.s.reservations, r.t.reservations, id)
	if !ok {
		return nil, repository.ErrReservationNotFound
	}
	return &v, nil
}

func (r *reservationStore) ListByCharger(_ context.Context, chargerID uuid.UUID) ([]models.Reservation, error) {
	return r.list(func(v models.Reservation) bool { return v.ChargerID == chargerID }), nil
}

func (r *reservationStore) ListByUser(_ context.Context, userID uuid.UUID) ([]models.Reservation, error) {
	return r.list(func(v models.Reservation) bool { return v.UserID == userID }), nil
}

func (r *reservationStore) ListCovering(_ context.Context, userID uuid.UUID, at time.Time) ([]models.Reservation, error) {
	return r.list(func(v models.Reservation) bool { return v.UserID == userID && v.Covers(at) }), nil
}

func (r *reservationStore) MarkUsed(_ context.Context, id uuid.UUID) error {
	r.t.s.mu.Lock()
	defer r.t.s.mu.Unlock()
	v, ok := lookup(r.t.s.reservations, r.t.reservations, id)
	if !ok {
		return repository.ErrReservationNotFound
	}
	v.Used = true
	put(r.t.s.reservations, r.t.reservations, id, v)
	return nil
}

func (r *reservationStore) Delete(_ context.Context, id uuid.UUID) error {
	r.t.s.mu.Lock()
	defer r.t.s.mu.Unlock()
	if _, ok := lookup(r.t.s.reservations, r.t.reservations, id); !ok {
		return repository.ErrReservationNotFound
	}
	remove(r.t.s.reservations, r.t.reservations, id)
	return nil
}

func (r *reservationStore) list(keep func(models.Reservation) bool) []models.Reservation {
	r.t.s.mu.RLock()
	defer r.t.s.mu.RUnlock()
	out := filter(r.t.s.reservations, r.t.reservations, keep)
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

type sessionStore struct{ t *txn }

func (s *sessionStore) Create(_ context.Context, session *models.ChargeSession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	s.t.s.mu.Lock()
	defer s.t.s.mu.Unlock()
	if session.Open() {
		open := filter(s.t.s.sessions, s.t.sessions, func(v models.ChargeSession) bool {
			return v.ChargerID == session.ChargerID && v.Open()
		})
		if len(open) > 0 {
			return fmt.Errorf("%w: charger %s already has an open session", repository.ErrLockTimeout, session.ChargerID)
		}
	}
	put(s.t.s.sessions, s.t.sessions, session.ID, *session)
	return nil
}

func (s *sessionStore) GetOpenByCharger(_ context.Context, chargerID uuid.UUID) (*models.ChargeSession, error) {
	s.t.s.mu.RLock()
	defer s.t.s.mu.RUnlock()
	open := filter(s.t.s.sessions, s.t.sessions, func(v models.ChargeSession) bool {
		return v.ChargerID == chargerID && v.Open()
	})
	if len(open) == 0 {
		return nil, repository.ErrSessionNotFound
	}
	return &open[0], nil
}

func (s *sessionStore) Close(_ context.Context, id uuid.UUID, end time.Time) error {
	s.t.s.mu.Lock()
	defer s.t.s.mu.Unlock()
	v, ok := lookup(s.t.s.sessions, s.t.sessions, id)
	if !ok || !v.Open() {
		return repository.ErrSessionNotFound
	}
	v.EndTime = &end
	put(s.t.s.sessions, s.t.sessions, id, v)
	return nil
}

func (s *sessionStore) ListByUser(_ context.Context, userID uuid.UUID) ([]models.ChargeSession, error) {
	return s.list(func(v models.ChargeSession) bool { return v.UserID == userID }), nil
}

func (s *sessionStore) ListByCharger(_ context.Context, chargerID uuid.UUID) ([]models.ChargeSession, error) {
	return s.list(func(v models.ChargeSession) bool { return v.ChargerID == chargerID }), nil
}

func (s *sessionStore) list(keep func(models.ChargeSession) bool) []models.ChargeSession {
	s.t.s.mu.RLock()
	defer s.t.s.mu.RUnlock()
	out := filter(s.t.s.sessions, s.t.sessions, keep)
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out
}
