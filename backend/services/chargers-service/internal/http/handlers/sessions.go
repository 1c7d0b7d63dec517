package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"chargehub/backend/libs/clock"
	"chargehub/backend/services/chargers-service/internal/report"
	"chargehub/backend/services/chargers-service/internal/service"
)

// SessionsHandlers serves charge-session history and operator statistics.
type SessionsHandlers struct {
	queries *service.Queries
	clock   clock.Clock
	logger  *zap.Logger
}

// NewSessionsHandlers returns handler.
func NewSessionsHandlers(queries *service.Queries, clk clock.Clock, logger *zap.Logger) *SessionsHandlers {
	if clk == nil {
		clk = clock.System()
	}
	return &SessionsHandlers{queries: queries, clock: clk, logger: logger}
}

// Mine handles GET /api/v1/charge-sessions?activeOnly=true. Operators may pass userId.
func (h *SessionsHandlers) Mine(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	userID, ok := queryID(w, r, "userId")
	if !ok {
		return
	}
	target := p.UserID
	if userID != nil && *userID != p.UserID {
		if !p.IsOperator() {
			writeError(w, http.StatusForbidden, "cannot list sessions of another user")
			return
		}
		target = *userID
	}

	activeOnly := false
	if raw := r.URL.Query().Get("activeOnly"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid activeOnly")
			return
		}
		activeOnly = parsed
	}

	sessions, err := h.queries.ListChargeSessions(r.Context(), target, activeOnly)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// Stats handles GET /api/v1/charge-sessions/stats/{chargerId}[?format=xlsx].
func (h *SessionsHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "chargerId")
	if !ok {
		return
	}
	charger, err := h.queries.GetCharger(r.Context(), id)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	sessions, err := h.queries.ListChargerSessions(r.Context(), id)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, sessions)
	case "xlsx":
		var buf bytes.Buffer
		if err := report.WriteSessions(&buf, *charger, sessions, h.clock.Now()); err != nil {
			h.logger.Error("session report failed", zap.String("charger_id", id.String()), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		w.Header().Set("Content-Type", report.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "sessions-"+id.String()+"-"+h.clock.Now().UTC().Format(time.DateOnly)+".xlsx"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	default:
		writeError(w, http.StatusBadRequest, "unsupported format")
	}
}
