package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chargehub/backend/services/chargers-service/internal/models"
	"chargehub/backend/services/chargers-service/internal/service"
)

// ActiveSession is the cached form of an open charge session.
type ActiveSession struct {
	SessionID     uuid.UUID  `json:"session_id"`
	ChargerID     uuid.UUID  `json:"charger_id"`
	UserID        uuid.UUID  `json:"user_id"`
	ReservationID *uuid.UUID `json:"reservation_id,omitempty"`
	StartTime     time.Time  `json:"start_time"`
}

func fromModel(s models.ChargeSession) ActiveSession {
	return ActiveSession{
		SessionID:     s.ID,
		ChargerID:     s.ChargerID,
		UserID:        s.UserID,
		ReservationID: s.ReservationID,
		StartTime:     s.StartTime,
	}
}

func (a ActiveSession) toModel() models.ChargeSession {
	return models.ChargeSession{
		ID:            a.SessionID,
		UserID:        a.UserID,
		ChargerID:     a.ChargerID,
		ReservationID: a.ReservationID,
		StartTime:     a.StartTime,
	}
}

// fillScript sets the session only while the charger generation still matches ARGV[1].
var fillScript = redis.NewScript(`
local gen = redis.call("GET", KEYS[2])
if not gen then gen = "0" end
if gen ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
else
	redis.call("SET", KEYS[1], ARGV[2])
end
return 1
`)

// Store caches the open session of each charger and follows charger transitions. Each charger
// has a generation counter, bumped by every write that comes from a committed transition, so a
// read-through fill started before the transition cannot overwrite its result.
type Store struct {
	service.NopObserver

	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewStore returns redis-backed store.
func NewStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Store {
	return &Store{client: client, ttl: ttl, logger: logger}
}

func (s *Store) key(chargerID uuid.UUID) string {
	return fmt.Sprintf("chargers:active:%s", chargerID)
}

func (s *Store) generationKey(chargerID uuid.UUID) string {
	return fmt.Sprintf("chargers:active:%s:gen", chargerID)
}

// Save caches session and advances the charger generation.
func (s *Store) Save(ctx context.Context, session models.ChargeSession) error {
	data, err := json.Marshal(fromModel(session))
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, s.generationKey(session.ChargerID))
		pipe.Set(ctx, s.key(session.ChargerID), data, s.ttl)
		return nil
	})
	return err
}

// Fill caches session unless the charger generation moved past generation.
func (s *Store) Fill(ctx context.Context, session models.ChargeSession, generation uint64) error {
	data, err := json.Marshal(fromModel(session))
	if err != nil {
		return err
	}
	keys := []string{s.key(session.ChargerID), s.generationKey(session.ChargerID)}
	stored, err := fillScript.Run(ctx, s.client, keys, strconv.FormatUint(generation, 10), data, s.ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if stored == 0 {
		s.logger.Debug("stale active session fill skipped",
			zap.String("charger_id", session.ChargerID.String()),
			zap.Uint64("generation", generation),
		)
	}
	return nil
}

// Get returns the cached session, or nil on a miss, and the charger generation.
func (s *Store) Get(ctx context.Context, chargerID uuid.UUID) (*models.ChargeSession, uint64, error) {
	values, err := s.client.MGet(ctx, s.key(chargerID), s.generationKey(chargerID)).Result()
	if err != nil {
		return nil, 0, err
	}

	var generation uint64
	if raw, ok := values[1].(string); ok {
		if generation, err = strconv.ParseUint(raw, 10, 64); err != nil {
			return nil, 0, fmt.Errorf("active session generation: %w", err)
		}
	}

	raw, ok := values[0].(string)
	if !ok {
		return nil, generation, nil
	}
	var cached ActiveSession
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return nil, 0, err
	}
	session := cached.toModel()
	return &session, generation, nil
}

// Delete removes cached session and advances the charger generation.
func (s *Store) Delete(ctx context.Context, chargerID uuid.UUID) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, s.generationKey(chargerID))
		pipe.Del(ctx, s.key(chargerID))
		return nil
	})
	return err
}

// OnTransition mirrors the committed session state into the cache.
func (s *Store) OnTransition(ctx context.Context, t service.Transition) {
	var err error
	switch {
	case t.Opened != nil:
		err = s.Save(ctx, *t.Opened)
	case t.Closed != nil:
		err = s.Delete(ctx, t.ChargerID)
	default:
		return
	}
	if err != nil {
		s.logger.Warn("failed to sync active session cache",
			zap.String("charger_id", t.ChargerID.String()),
			zap.Error(err),
		)
	}
}

var _ service.SessionCache = (*Store)(nil)
