package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"chargehub/backend/services/chargers-service/internal/models"
	"chargehub/backend/services/chargers-service/internal/service"
	"chargehub/backend/services/chargers-service/internal/ws"
)

// ChargersHandlers serves charger reads, unlock/lock and operator status changes.
type ChargersHandlers struct {
	machine *service.StateMachine
	planner *service.Planner
	queries *service.Queries
	stream  *ws.Server
	logger  *zap.Logger
}

// NewChargersHandlers returns handler.
func NewChargersHandlers(machine *service.StateMachine, planner *service.Planner, queries *service.Queries, stream *ws.Server, logger *zap.Logger) *ChargersHandlers {
	return &ChargersHandlers{machine: machine, planner: planner, queries: queries, stream: stream, logger: logger}
}

type statusRequest struct {
	Status models.ChargerStatus `json:"status"`
}

// Get handles GET /api/v1/chargers/{chargerId}.
func (h *ChargersHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "chargerId")
	if !ok {
		return
	}
	charger, err := h.queries.GetCharger(r.Context(), id)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, charger)
}

// ByStation handles GET /api/v1/stations/{stationId}/chargers.
func (h *ChargersHandlers) ByStation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "stationId")
	if !ok {
		return
	}
	chargers, err := h.queries.ListChargersByStation(r.Context(), id)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, chargers)
}

// NearTerm handles GET /api/v1/chargers/{chargerId}/reservations?horizon=48h.
func (h *ChargersHandlers) NearTerm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "chargerId")
	if !ok {
		return
	}
	var horizon time.Duration
	if raw := r.URL.Query().Get("horizon"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid horizon")
			return
		}
		horizon = parsed
	}
	if _, err := h.queries.GetCharger(r.Context(), id); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	reservations, err := h.planner.NearTerm(r.Context(), id, horizon)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, reservations)
}

// CurrentSession handles GET /api/v1/chargers/{chargerId}/session.
func (h *ChargersHandlers) CurrentSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "chargerId")
	if !ok {
		return
	}
	session, err := h.queries.CurrentSession(r.Context(), id)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// Unlock handles PATCH /api/v1/chargers/{chargerId}/unlock.
func (h *ChargersHandlers) Unlock(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "chargerId")
	if !ok {
		return
	}
	if err := h.machine.Unlock(r.Context(), id, p.UserID); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Lock handles PATCH /api/v1/chargers/{chargerId}/lock.
func (h *ChargersHandlers) Lock(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "chargerId")
	if !ok {
		return
	}
	if err := h.machine.Lock(r.Context(), id, p.UserID); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Disable handles PATCH /api/v1/chargers/{chargerId}/disable.
func (h *ChargersHandlers) Disable(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "chargerId")
	if !ok {
		return
	}
	charger, err := h.machine.Disable(r.Context(), id)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, charger)
}

// Enable handles PATCH /api/v1/chargers/{chargerId}/enable.
func (h *ChargersHandlers) Enable(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "chargerId")
	if !ok {
		return
	}
	charger, err := h.machine.Enable(r.Context(), id)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, charger)
}

// SetStatus handles PATCH /api/v1/chargers/{chargerId} with {"status": "..."}.
func (h *ChargersHandlers) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "chargerId")
	if !ok {
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	charger, err := h.machine.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, charger)
}

// Events handles GET /api/v1/chargers/{chargerId}/events and streams transitions over a websocket.
func (h *ChargersHandlers) Events(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "chargerId")
	if !ok {
		return
	}
	if _, err := h.queries.GetCharger(r.Context(), id); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	h.stream.Serve(w, r, id)
}
