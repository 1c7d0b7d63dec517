package httpserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chargehub/backend/services/chargers-service/internal/http/handlers"
	"chargehub/backend/services/chargers-service/internal/http/middleware"
)

// RouterDeps collects handler dependencies.
type RouterDeps struct {
	Chargers     *handlers.ChargersHandlers
	Reservations *handlers.ReservationsHandlers
	Sessions     *handlers.SessionsHandlers
	Auth         func(http.Handler) http.Handler
	RateRPS      float64
	RateBurst    int
}

// NewRouter wires HTTP routes with middleware.
func NewRouter(deps RouterDeps) http.Handler {
	mux := http.NewServeMux()

	public := func(pattern string, handler http.HandlerFunc) {
		mux.Handle(pattern, middleware.Chain(handler, middleware.Instrument(pattern)))
	}
	authenticated := func(pattern string, handler http.HandlerFunc) {
		mux.Handle(pattern, middleware.Chain(handler, middleware.Instrument(pattern), deps.Auth))
	}
	operator := func(pattern string, handler http.HandlerFunc) {
		mux.Handle(pattern, middleware.Chain(handler, middleware.Instrument(pattern), deps.Auth, middleware.RequireOperator))
	}

	public("GET /health", handlers.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	authenticated("GET /api/v1/stations/{stationId}/chargers", deps.Chargers.ByStation)
	authenticated("GET /api/v1/chargers/{chargerId}", deps.Chargers.Get)
	authenticated("GET /api/v1/chargers/{chargerId}/reservations", deps.Chargers.NearTerm)
	authenticated("GET /api/v1/chargers/{chargerId}/session", deps.Chargers.CurrentSession)
	authenticated("GET /api/v1/chargers/{chargerId}/events", deps.Chargers.Events)
	authenticated("PATCH /api/v1/chargers/{chargerId}/unlock", deps.Chargers.Unlock)
	authenticated("PATCH /api/v1/chargers/{chargerId}/lock", deps.Chargers.Lock)
	operator("PATCH /api/v1/chargers/{chargerId}/disable", deps.Chargers.Disable)
	operator("PATCH /api/v1/chargers/{chargerId}/enable", deps.Chargers.Enable)
	operator("PATCH /api/v1/chargers/{chargerId}", deps.Chargers.SetStatus)

	authenticated("POST /api/v1/reservations", deps.Reservations.Create)
	authenticated("GET /api/v1/reservations", deps.Reservations.List)
	authenticated("GET /api/v1/reservations/{reservationId}", deps.Reservations.Get)
	authenticated("DELETE /api/v1/reservations/{reservationId}", deps.Reservations.Cancel)
	authenticated("PUT /api/v1/reservations/{reservationId}/used", deps.Reservations.MarkUsed)

	authenticated("GET /api/v1/charge-sessions", deps.Sessions.Mine)
	operator("GET /api/v1/charge-sessions/stats/{chargerId}", deps.Sessions.Stats)

	return middleware.RateLimit(deps.RateRPS, deps.RateBurst)(mux)
}
