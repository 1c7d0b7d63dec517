package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chargehub/backend/services/chargers-service/internal/apperr"
	"chargehub/backend/services/chargers-service/internal/models"
	"chargehub/backend/services/chargers-service/internal/repository"
)

// SessionCache keeps the open session of each charger close at hand. Get returns a nil session
// on a miss, together with the charger's cache generation. Fill stores session only while the
// generation is still the one Get returned; every committed transition advances it.
type SessionCache interface {
	Get(ctx context.Context, chargerID uuid.UUID) (*models.ChargeSession, uint64, error)
	Fill(ctx context.Context, session models.ChargeSession, generation uint64) error
}

// Queries serves read-only charger and session lookups.
type Queries struct {
	store  repository.Store
	cache  SessionCache
	logger *zap.Logger
}

// NewQueries builds the read side. cache may be nil.
func NewQueries(store repository.Store, cache SessionCache, logger *zap.Logger) *Queries {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queries{store: store, cache: cache, logger: logger.With(zap.String("component", "queries"))}
}

// GetCharger returns one charger.
func (q *Queries) GetCharger(ctx context.Context, id uuid.UUID) (*models.Charger, error) {
	c, err := q.store.Stores().Chargers.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	return c, nil
}

// ListChargersByStation returns the chargers of one station.
func (q *Queries) ListChargersByStation(ctx context.Context, stationID uuid.UUID) ([]models.Charger, error) {
	list, err := q.store.Stores().Chargers.ListByStation(ctx, stationID)
	if err != nil {
		return nil, storeError(err)
	}
	return list, nil
}

// ListChargeSessions returns the user's sessions, newest first, optionally only open ones.
func (q *Queries) ListChargeSessions(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]models.ChargeSession, error) {
	list, err := q.store.Stores().Sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeError(err)
	}
	if !activeOnly {
		return list, nil
	}
	active := []models.ChargeSession{}
	for _, s := range list {
		if s.Open() {
			active = append(active, s)
		}
	}
	return active, nil
}

// ListChargerSessions returns every session recorded on the charger, newest first.
func (q *Queries) ListChargerSessions(ctx context.Context, chargerID uuid.UUID) ([]models.ChargeSession, error) {
	stores := q.store.Stores()
	if _, err := stores.Chargers.GetByID(ctx, chargerID); err != nil {
		return nil, storeError(err)
	}
	list, err := stores.Sessions.ListByCharger(ctx, chargerID)
	if err != nil {
		return nil, storeError(err)
	}
	return list, nil
}

// CurrentSession returns the open session on the charger, reading through the cache.
func (q *Queries) CurrentSession(ctx context.Context, chargerID uuid.UUID) (*models.ChargeSession, error) {
	fill := false
	var generation uint64
	if q.cache != nil {
		cached, gen, err := q.cache.Get(ctx, chargerID)
		switch {
		case err != nil:
			q.logger.Warn("active session cache read failed", zap.String("charger_id", chargerID.String()), zap.Error(err))
		case cached != nil:
			return cached, nil
		default:
			fill, generation = true, gen
		}
	}

	session, err := q.store.Stores().Sessions.GetOpenByCharger(ctx, chargerID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, apperr.NotFound("No active session on this charger")
		}
		return nil, storeError(err)
	}

	if fill {
		if err := q.cache.Fill(ctx, *session, generation); err != nil {
			q.logger.Warn("active session cache write failed", zap.String("charger_id", chargerID.String()), zap.Error(err))
		}
	}
	return session, nil
}
