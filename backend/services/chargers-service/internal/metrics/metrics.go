package metrics

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"chargehub/backend/services/chargers-service/internal/service"
)

const namespace = "chargers"

var (
	once sync.Once

	chargerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Committed charger transitions by event and resulting status.",
		},
		[]string{"event", "from", "to"},
	)

	sessionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Length of closed charge sessions.",
			Buckets:   []float64{60, 300, 900, 1800, 3600, 7200, 14400, 28800},
		},
	)

	reservationChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_changes_total",
			Help:      "Committed reservation writes by kind.",
		},
		[]string{"kind"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		},
		[]string{"method", "route", "code"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(chargerTransitions, sessionDuration, reservationChanges, httpRequests, httpDuration)
	})
}

// ObserveRequest records one served HTTP request.
func ObserveRequest(method, route string, code int, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Observer feeds committed core writes into the collectors.
type Observer struct{}

func (Observer) OnTransition(_ context.Context, t service.Transition) {
	chargerTransitions.WithLabelValues(string(t.Event), string(t.From), string(t.To)).Inc()
	if t.Closed != nil {
		sessionDuration.Observe(t.Closed.Duration(t.At).Seconds())
	}
}

func (Observer) OnReservationChange(_ context.Context, change service.ReservationChange) {
	reservationChanges.WithLabelValues(string(change.Kind)).Inc()
}
