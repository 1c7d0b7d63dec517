package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"chargehub/backend/services/chargers-service/internal/models"
)

// ReservationCache holds each charger's full reservation list for near-term reads. Entries are
// dropped whenever a reservation or transition on the charger commits; ttl bounds staleness
// for writes made by other instances.
type ReservationCache struct {
	store *cache.Cache

	mu       sync.Mutex
	versions map[uuid.UUID]uint64
}

// NewReservationCache returns a cache. A zero ttl disables caching; the nil cache is usable.
func NewReservationCache(ttl time.Duration) *ReservationCache {
	if ttl <= 0 {
		return nil
	}
	return &ReservationCache{
		store:    cache.New(ttl, 2*ttl),
		versions: make(map[uuid.UUID]uint64),
	}
}

func (c *ReservationCache) get(chargerID uuid.UUID) ([]models.Reservation, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.store.Get(chargerID.String())
	if !ok {
		return nil, false
	}
	return v.([]models.Reservation), true
}

func (c *ReservationCache) version(chargerID uuid.UUID) uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[chargerID]
}

// put stores list only if nothing invalidated the charger since version was read.
func (c *ReservationCache) put(chargerID uuid.UUID, version uint64, list []models.Reservation) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[chargerID] != version {
		return
	}
	c.store.SetDefault(chargerID.String(), list)
}

func (c *ReservationCache) invalidate(chargerID uuid.UUID) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[chargerID]++
	c.store.Delete(chargerID.String())
}

func (c *ReservationCache) OnTransition(_ context.Context, t Transition) {
	if t.ReservationUsed != nil {
		c.invalidate(t.ChargerID)
	}
}

func (c *ReservationCache) OnReservationChange(_ context.Context, change ReservationChange) {
	c.invalidate(change.Reservation.ChargerID)
}
