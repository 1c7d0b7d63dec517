package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chargehub/backend/services/chargers-service/internal/http/middleware"
	"chargehub/backend/services/chargers-service/internal/models"
	"chargehub/backend/services/chargers-service/internal/service"
)

// ReservationsHandlers serves reservation admission and queries.
type ReservationsHandlers struct {
	planner *service.Planner
	logger  *zap.Logger
}

// NewReservationsHandlers returns handler.
func NewReservationsHandlers(planner *service.Planner, logger *zap.Logger) *ReservationsHandlers {
	return &ReservationsHandlers{planner: planner, logger: logger}
}

type createReservationRequest struct {
	ChargerID      uuid.UUID  `json:"chargerId"`
	UserID         *uuid.UUID `json:"userId,omitempty"`
	StartTimestamp time.Time  `json:"startTimestamp"`
	EndTimestamp   time.Time  `json:"endTimestamp"`
}

// Create handles POST /api/v1/reservations. Operators may book on behalf of another user.
func (h *ReservationsHandlers) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req createReservationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ChargerID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "chargerId is required")
		return
	}
	userID := p.UserID
	if req.UserID != nil && *req.UserID != p.UserID {
		if !p.IsOperator() {
			writeError(w, http.StatusForbidden, "cannot reserve for another user")
			return
		}
		userID = *req.UserID
	}

	reservation, err := h.planner.Admit(r.Context(), models.Reservation{
		UserID:    userID,
		ChargerID: req.ChargerID,
		StartTime: req.StartTimestamp,
		EndTime:   req.EndTimestamp,
	})
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, reservation)
}

// List handles GET /api/v1/reservations?chargerId= or ?userId=.
func (h *ReservationsHandlers) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	chargerID, ok := queryID(w, r, "chargerId")
	if !ok {
		return
	}
	userID, ok := queryID(w, r, "userId")
	if !ok {
		return
	}
	if userID != nil && *userID != p.UserID && !p.IsOperator() {
		writeError(w, http.StatusForbidden, "cannot list reservations of another user")
		return
	}

	reservations, err := h.planner.List(r.Context(), service.ReservationFilter{ChargerID: chargerID, UserID: userID})
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, reservations)
}

// Get handles GET /api/v1/reservations/{reservationId}.
func (h *ReservationsHandlers) Get(w http.ResponseWriter, r *http.Request) {
	reservation, ok := h.owned(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, reservation)
}

// Cancel handles DELETE /api/v1/reservations/{reservationId}.
func (h *ReservationsHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	reservation, ok := h.owned(w, r)
	if !ok {
		return
	}
	removed, err := h.planner.Cancel(r.Context(), reservation.ID)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, removed)
}

// MarkUsed handles PUT /api/v1/reservations/{reservationId}/used.
func (h *ReservationsHandlers) MarkUsed(w http.ResponseWriter, r *http.Request) {
	reservation, ok := h.owned(w, r)
	if !ok {
		return
	}
	used, err := h.planner.MarkUsed(r.Context(), reservation.ID)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, used)
}

// owned loads the path reservation and hides it from callers that neither own it nor operate.
func (h *ReservationsHandlers) owned(w http.ResponseWriter, r *http.Request) (*models.Reservation, bool) {
	p, ok := principal(w, r)
	if !ok {
		return nil, false
	}
	id, ok := pathID(w, r, "reservationId")
	if !ok {
		return nil, false
	}
	reservation, err := h.planner.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, h.logger, err)
		return nil, false
	}
	if !canAccess(p, reservation.UserID) {
		writeError(w, http.StatusNotFound, "Reservation not found")
		return nil, false
	}
	return reservation, true
}

func canAccess(p middleware.Principal, owner uuid.UUID) bool {
	return p.IsOperator() || p.UserID == owner
}
