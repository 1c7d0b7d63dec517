package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chargehub/backend/services/chargers-service/internal/apperr"
	"chargehub/backend/services/chargers-service/internal/models"
)

type mockSessionCache struct {
	mock.Mock
}

func (m *mockSessionCache) Get(ctx context.Context, chargerID uuid.UUID) (*models.ChargeSession, uint64, error) {
	args := m.Called(ctx, chargerID)
	s, _ := args.Get(0).(*models.ChargeSession)
	return s, args.Get(1).(uint64), args.Error(2)
}

func (m *mockSessionCache) Fill(ctx context.Context, session models.ChargeSession, generation uint64) error {
	return m.Called(ctx, session, generation).Error(0)
}

func TestQueries_Chargers(t *testing.T) {
	f := newFixture(t)
	c := f.charger(t, models.ChargerAvailable)
	ctx := context.Background()

	got, err := f.queries.GetCharger(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ConnectorType, got.ConnectorType)

	_, err = f.queries.GetCharger(ctx, uuid.New())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	list, err := f.queries.ListChargersByStation(ctx, c.StationID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, c.ID, list[0].ID)
}

func TestQueries_Sessions(t *testing.T) {
	f := newFixture(t)
	c := f.charger(t, models.ChargerAvailable)
	user := uuid.New()
	ctx := context.Background()

	require.NoError(t, f.machine.Unlock(ctx, c.ID, user))
	f.clock.Advance(time.Hour)
	require.NoError(t, f.machine.Lock(ctx, c.ID, user))
	f.clock.Advance(time.Hour)
	require.NoError(t, f.machine.Unlock(ctx, c.ID, user))

	all, err := f.queries.ListChargeSessions(ctx, user, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := f.queries.ListChargeSessions(ctx, user, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.True(t, active[0].Open())

	byCharger, err := f.queries.ListChargerSessions(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, byCharger, 2)
	assert.True(t, byCharger[0].StartTime.After(byCharger[1].StartTime))

	_, err = f.queries.ListChargerSessions(ctx, uuid.New())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestQueries_CurrentSessionReadsThroughCache(t *testing.T) {
	f := newFixture(t)
	c := f.charger(t, models.ChargerAvailable)
	ctx := context.Background()
	require.NoError(t, f.machine.Unlock(ctx, c.ID, uuid.New()))
	open := f.openSessions(t, c.ID)[0]

	cache := &mockSessionCache{}
	cache.On("Get", mock.Anything, c.ID).Return(nil, uint64(7), nil).Once()
	cache.On("Fill", mock.Anything, open, uint64(7)).Return(nil).Once()
	cache.On("Get", mock.Anything, c.ID).Return(&open, uint64(7), nil).Once()
	q := NewQueries(f.store, cache, zap.NewNop())

	got, err := q.CurrentSession(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, open.ID, got.ID)

	got, err = q.CurrentSession(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, open.ID, got.ID)
	cache.AssertExpectations(t)
}

func TestQueries_CurrentSessionCacheFailureFallsBack(t *testing.T) {
	f := newFixture(t)
	c := f.charger(t, models.ChargerAvailable)
	ctx := context.Background()

	cache := &mockSessionCache{}
	cache.On("Get", mock.Anything, c.ID).Return(nil, uint64(0), errors.New("redis down"))
	q := NewQueries(f.store, cache, zap.NewNop())

	_, err := q.CurrentSession(ctx, c.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, "No active session on this charger", apperr.MessageOf(err))
	cache.AssertExpectations(t)
}
