// Package events fans committed charger transitions out to live subscribers.
package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chargehub/backend/services/chargers-service/internal/service"
)

const defaultBuffer = 16

// Hub delivers transitions to per-charger subscribers. Slow subscribers lose events rather
// than delaying the caller.
type Hub struct {
	service.NopObserver

	mu     sync.RWMutex
	subs   map[uuid.UUID]map[*Subscription]struct{}
	buffer int
	logger *zap.Logger
}

// Subscription receives transitions of one charger on C until Close.
type Subscription struct {
	ChargerID uuid.UUID
	C         <-chan service.Transition

	ch   chan service.Transition
	hub  *Hub
	once sync.Once
}

// NewHub returns a hub. buffer is the per-subscriber queue length.
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		subs:   make(map[uuid.UUID]map[*Subscription]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers interest in chargerID.
func (h *Hub) Subscribe(chargerID uuid.UUID) *Subscription {
	ch := make(chan service.Transition, h.buffer)
	sub := &Subscription{ChargerID: chargerID, C: ch, ch: ch, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[chargerID] == nil {
		h.subs[chargerID] = make(map[*Subscription]struct{})
	}
	h.subs[chargerID][sub] = struct{}{}
	return sub
}

// Close unregisters the subscription and closes C. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[s.ChargerID], s)
		if len(h.subs[s.ChargerID]) == 0 {
			delete(h.subs, s.ChargerID)
		}
		close(s.ch)
	})
}

// Subscribers returns the number of live subscriptions on chargerID.
func (h *Hub) Subscribers(chargerID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[chargerID])
}

// OnTransition publishes t to the charger's subscribers.
func (h *Hub) OnTransition(_ context.Context, t service.Transition) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[t.ChargerID] {
		select {
		case sub.ch <- t:
		default:
			h.logger.Warn("dropping charger event, subscriber buffer full",
				zap.String("charger_id", t.ChargerID.String()),
				zap.String("event", string(t.Event)),
			)
		}
	}
}
