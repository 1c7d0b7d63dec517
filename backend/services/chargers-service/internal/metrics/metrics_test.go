package metrics

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"chargehub/backend/services/chargers-service/internal/models"
	"chargehub/backend/services/chargers-service/internal/service"
)

func TestObserver_CountsTransitionsAndReservations(t *testing.T) {
	Register()
	Register()

	now := time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)
	end := now
	closed := &models.ChargeSession{ID: uuid.New(), StartTime: now.Add(-time.Hour), EndTime: &end}
	counter := chargerTransitions.WithLabelValues("lock", "IN_USE", "AVAILABLE")
	before := testutil.ToFloat64(counter)

	var obs service.Observer = Observer{}
	obs.OnTransition(context.Background(), service.Transition{
		Event: service.EventLock, From: models.ChargerInUse, To: models.ChargerAvailable, Closed: closed, At: now,
	})
	obs.OnReservationChange(context.Background(), service.ReservationChange{Kind: service.ReservationAdmitted})

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
	assert.GreaterOrEqual(t, testutil.ToFloat64(reservationChanges.WithLabelValues("admitted")), 1.0)
}

func TestObserveRequest(t *testing.T) {
	before := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/health", "200"))
	ObserveRequest(http.MethodGet, "/health", http.StatusOK, 5*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/health", "200")))
}
