package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chargehub/backend/services/chargers-service/internal/apperr"
	"chargehub/backend/services/chargers-service/internal/models"
)

func TestAdmit_Validation(t *testing.T) {
	f := newFixture(t)
	c := f.charger(t, models.ChargerAvailable)
	user := uuid.New()

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		msg   string
	}{
		{"start equals end", t0.Add(time.Hour), t0.Add(time.Hour), "Start timestamp must be before end timestamp"},
		{"start after end", t0.Add(2 * time.Hour), t0.Add(time.Hour), "Start timestamp must be before end timestamp"},
		{"start in the past", t0.Add(-time.Minute), t0.Add(time.Hour), "Reservation cannot be in the past"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.planner.Admit(context.Background(), models.Reservation{UserID: user, ChargerID: c.ID, StartTime: tt.start, EndTime: tt.end})
			require.Error(t, err)
			assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))
			assert.Equal(t, tt.msg, apperr.MessageOf(err))
		})
	}

	// now itself is not in the past.
	_, err := f.planner.Admit(context.Background(), models.Reservation{UserID: user, ChargerID: c.ID, StartTime: t0, EndTime: t0.Add(time.Hour)})
	assert.NoError(t, err)
}

func TestAdmit_OverlapAndTouching(t *testing.T) {
	f := newFixture(t)
	c := f.charger(t, models.ChargerAvailable)
	ctx := context.Background()

	first := f.reserve(t, uuid.New(), c.ID, t0.Add(time.Hour), t0.Add(2*time.Hour))
	assert.False(t, first.Used)
	assert.NotEqual(t, uuid.Nil, first.ID)

	_, err := f.planner.Admit(ctx, models.Reservation{UserID: uuid.New(), ChargerID: c.ID, StartTime: t0.Add(90 * time.Minute), EndTime: t0.Add(105 * time.Minute)})
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, "Reservation overlaps with an existing reservation", apperr.MessageOf(err))

	touching := f.reserve(t, uuid.New(), c.ID, t0.Add(2*time.Hour), t0.Add(3*time.Hour))
	assert.NotEqual(t, first.ID, touching.ID)

	// Other chargers are independent.
	other := f.charger(t, models.ChargerAvailable)
	f.reserve(t, uuid.New(), other.ID, t0.Add(time.Hour), t0.Add(2*time.Hour))

	f.requireConsistent(t, c.ID)
}

func TestAdmit_ConflictRegardlessOfOrder(t *testing.T) {
	a := [2]time.Time{t0.Add(time.Hour), t0.Add(3 * time.Hour)}
	b := [2]time.Time{t0.Add(2 * time.Hour), t0.Add(4 * time.Hour)}

	for _, order := range [][2][2]time.Time{{a, b}, {b, a}} {
		f := newFixture(t)
		c := f.charger(t, models.ChargerAvailable)
		f.reserve(t, uuid.New(), c.ID, order[0][0], order[0][1])
		_, err := f.planner.Admit(context.Background(), models.Reservation{UserID: uuid.New(), ChargerID: c.ID, StartTime: order[1][0], EndTime: order[1][1]})
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	}
}

func TestAdmit_UnknownCharger(t *testing.T) {
	f := newFixture(t)
	_, err := f.planner.Admit(context.Background(), models.Reservation{UserID: uuid.New(), ChargerID: uuid.New(), StartTime: t0.Add(time.Hour), EndTime: t0.Add(2 * time.Hour)})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestAdmit_ConcurrentSameIntervalAdmitsOne(t *testing.T) {
	f := newFixture(t)
	c := f.charger(t, models.ChargerAvailable)

	const workers = 24
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.planner.Admit(context.Background(), models.Reservation{
				UserID: uuid.New(), ChargerID: c.ID, StartTime: t0.Add(time.Hour), EndTime: t0.Add(2 * time.Hour),
			})
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.KindOf(err) == apperr.KindConflict:
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, conflicts)
	f.requireConsistent(t, c.ID)
}

func TestNearTerm_WindowAndOrder(t *testing.T) {
	f := newFixture(t)
	c := f.charger(t, models.ChargerAvailable)
	user := uuid.New()

	current := f.reserve(t, user, c.ID, t0, t0.Add(time.Hour))
	late := f.reserve(t, user, c.ID, t0.Add(48*time.Hour), t0.Add(49*time.Hour))
	soon := f.reserve(t, user, c.ID, t0.Add(2*time.Hour), t0.Add(3*time.Hour))
	f.reserve(t, user, c.ID, t0.Add(6*24*time.Hour), t0.Add(6*24*time.Hour+time.Hour))

	got, err := f.planner.NearTerm(context.Background(), c.ID, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, soon.ID, got[0].ID)
	assert.Equal(t, late.ID, got[1].ID)

	got, err = f.planner.NearTerm(context.Background(), c.ID, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, soon.ID, got[0].ID)

	// A reservation starting exactly now is not upcoming.
	for _, r := range got {
		assert.NotEqual(t, current.ID, r.ID)
	}
}

func TestNearTerm_CacheInvalidatedByWrites(t *testing.T) {
	f := newFixture(t)
	c := f.charger(t, models.ChargerAvailable)
	ctx := context.Background()

	got, err := f.planner.NearTerm(ctx, c.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	r := f.reserve(t, uuid.New(), c.ID, t0.Add(time.Hour), t0.Add(2*time.Hour))
	got, err = f.planner.NearTerm(ctx, c.ID, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)

	_, err = f.planner.Cancel(ctx, r.ID)
	require.NoError(t, err)
	got, err = f.planner.NearTerm(ctx, c.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	// Time moving on is reflected even when the list is cached.
	f.reserve(t, uuid.New(), c.ID, t0.Add(time.Hour), t0.Add(2*time.Hour))
	_, err = f.planner.NearTerm(ctx, c.ID, 0)
	require.NoError(t, err)
	f.clock.Advance(90 * time.Minute)
	got, err = f.planner.NearTerm(ctx, c.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = f.planner.NearTerm(ctx, uuid.New(), 0)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestFindCovering_HalfOpen(t *testing.T) {
	f := newFixture(t)
	c := f.charger(t, models.ChargerAvailable)
	other := f.charger(t, models.ChargerAvailable)
	user := uuid.New()
	r := f.reserve(t, user, c.ID, t0.Add(time.Hour), t0.Add(2*time.Hour))
	ctx := context.Background()

	got, err := f.planner.FindCovering(ctx, user, t0.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, r.ID, got.ID)

	got, err = f.planner.FindCovering(ctx, user, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = f.planner.FindCovering(ctx, uuid.New(), t0.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = f.planner.FindCoveringOnCharger(ctx, user, other.ID, t0.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	c := f.charger(t, models.ChargerAvailable)
	r := f.reserve(t, uuid.New(), c.ID, t0.Add(time.Hour), t0.Add(2*time.Hour))
	ctx := context.Background()

	removed, err := f.planner.Cancel(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r, *removed)

	_, err = f.planner.Cancel(ctx, r.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, "Reservation not found", apperr.MessageOf(err))

	kinds := []ReservationChangeKind{}
	for _, ch := range f.recorder.changes {
		kinds = append(kinds, ch.Kind)
	}
	assert.Equal(t, []ReservationChangeKind{ReservationAdmitted, ReservationCancelled}, kinds)
}

func TestMarkUsed(t *testing.T) {
	start, end := t0.Add(time.Hour), t0.Add(2*time.Hour)

	tests := []struct {
		name string
		now  time.Time
		msg  string
	}{
		{"one minute before start", start.Add(-time.Minute), "Reservation not started yet"},
		{"exactly at start", start, ""},
		{"inside", start.Add(30 * time.Minute), ""},
		{"exactly at end", end, ""},
		{"after end", end.Add(time.Second), "Reservation already ended"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			c := f.charger(t, models.ChargerAvailable)
			r := f.reserve(t, uuid.New(), c.ID, start, end)
			f.clock.Set(tt.now)

			got, err := f.planner.MarkUsed(context.Background(), r.ID)
			if tt.msg != "" {
				require.Error(t, err)
				assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
				assert.Equal(t, tt.msg, apperr.MessageOf(err))
				stored, _ := f.planner.Get(context.Background(), r.ID)
				assert.False(t, stored.Used)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Used)
		})
	}
}

func TestMarkUsed_OnlyOnce(t *testing.T) {
	f := newFixture(t)
	c := f.charger(t, models.ChargerAvailable)
	r := f.reserve(t, uuid.New(), c.ID, t0.Add(time.Hour), t0.Add(2*time.Hour))
	f.clock.Advance(90 * time.Minute)
	ctx := context.Background()

	_, err := f.planner.MarkUsed(ctx, r.ID)
	require.NoError(t, err)

	_, err = f.planner.MarkUsed(ctx, r.ID)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
	assert.Equal(t, "Reservation already marked as used", apperr.MessageOf(err))

	_, err = f.planner.MarkUsed(ctx, uuid.New())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestList_Filter(t *testing.T) {
	f := newFixture(t)
	c := f.charger(t, models.ChargerAvailable)
	user := uuid.New()
	f.reserve(t, user, c.ID, t0.Add(time.Hour), t0.Add(2*time.Hour))
	f.reserve(t, uuid.New(), c.ID, t0.Add(3*time.Hour), t0.Add(4*time.Hour))
	ctx := context.Background()

	byCharger, err := f.planner.List(ctx, ReservationFilter{ChargerID: &c.ID})
	require.NoError(t, err)
	assert.Len(t, byCharger, 2)

	byUser, err := f.planner.List(ctx, ReservationFilter{UserID: &user})
	require.NoError(t, err)
	assert.Len(t, byUser, 1)

	_, err = f.planner.List(ctx, ReservationFilter{})
	assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))
	_, err = f.planner.List(ctx, ReservationFilter{ChargerID: &c.ID, UserID: &user})
	assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))

	_, err = f.planner.Get(ctx, uuid.New())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
