package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chargehub/backend/libs/clock"
	"chargehub/backend/services/chargers-service/internal/lock"
	"chargehub/backend/services/chargers-service/internal/models"
	"chargehub/backend/services/chargers-service/internal/repository"
	"chargehub/backend/services/chargers-service/internal/repository/memory"
)

var t0 = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

type recorder struct {
	mu          sync.Mutex
	transitions []Transition
	changes     []ReservationChange
}

func (r *recorder) OnTransition(_ context.Context, t Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, t)
}

func (r *recorder) OnReservationChange(_ context.Context, c ReservationChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) lastTransition() Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transitions[len(r.transitions)-1]
}

type fixture struct {
	store    *memory.Store
	clock    *clock.Manual
	cache    *ReservationCache
	recorder *recorder
	planner  *Planner
	machine  *StateMachine
	queries  *Queries
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    memory.NewStore(),
		clock:    clock.NewManual(t0),
		cache:    NewReservationCache(time.Minute),
		recorder: &recorder{},
	}
	deps := Deps{
		Store:    f.store,
		Locker:   lock.NewKeyed(),
		Clock:    f.clock,
		Observer: Observers{f.cache, f.recorder},
		Retry:    RetryPolicy{AcquireTimeout: time.Second, MaxRetries: 3, Backoff: time.Millisecond},
		Logger:   zap.NewNop(),
	}
	f.planner = NewPlanner(deps, f.cache, 0)
	f.machine = NewStateMachine(deps)
	f.queries = NewQueries(f.store, nil, zap.NewNop())
	return f
}

func (f *fixture) charger(t *testing.T, status models.ChargerStatus) models.Charger {
	t.Helper()
	c := models.Charger{StationID: uuid.New(), ConnectorType: "CCS2", Price: 0.35, ChargingSpeed: 150, Status: status, UpdatedAt: t0}
	require.NoError(t, f.store.Stores().Chargers.Create(context.Background(), &c))
	return c
}

func (f *fixture) reserve(t *testing.T, userID, chargerID uuid.UUID, start, end time.Time) models.Reservation {
	t.Helper()
	r, err := f.planner.Admit(context.Background(), models.Reservation{UserID: userID, ChargerID: chargerID, StartTime: start, EndTime: end})
	require.NoError(t, err)
	return *r
}

func (f *fixture) status(t *testing.T, chargerID uuid.UUID) models.ChargerStatus {
	t.Helper()
	c, err := f.store.Stores().Chargers.GetByID(context.Background(), chargerID)
	require.NoError(t, err)
	return c.Status
}

func (f *fixture) openSessions(t *testing.T, chargerID uuid.UUID) []models.ChargeSession {
	t.Helper()
	all, err := f.store.Stores().Sessions.ListByCharger(context.Background(), chargerID)
	require.NoError(t, err)
	var open []models.ChargeSession
	for _, s := range all {
		if s.Open() {
			open = append(open, s)
		}
	}
	return open
}

// requireConsistent checks IN_USE <=> exactly one open session and pairwise non-overlap.
func (f *fixture) requireConsistent(t *testing.T, chargerID uuid.UUID) {
	t.Helper()
	open := f.openSessions(t, chargerID)
	require.LessOrEqual(t, len(open), 1)
	require.Equal(t, f.status(t, chargerID) == models.ChargerInUse, len(open) == 1)

	list, err := f.store.Stores().Reservations.ListByCharger(context.Background(), chargerID)
	require.NoError(t, err)
	for i := range list {
		for j := i + 1; j < len(list); j++ {
			require.False(t, list[i].Overlaps(&list[j]), "reservations %s and %s overlap", list[i].ID, list[j].ID)
		}
	}
}

var _ repository.Store = (*memory.Store)(nil)
