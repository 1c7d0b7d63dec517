package models

import (
	"time"

	"github.com/google/uuid"
)

// ChargeSession records an interval of actual charging. A nil EndTime means the session is open.
type ChargeSession struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	UserID        uuid.UUID  `db:"user_id" json:"userId"`
	ChargerID     uuid.UUID  `db:"charger_id" json:"chargerId"`
	ReservationID *uuid.UUID `db:"reservation_id" json:"reservationId,omitempty"`
	StartTime     time.Time  `db:"start_time" json:"startTimestamp"`
	EndTime       *time.Time `db:"end_time" json:"endTimestamp"`
}

// Open reports whether the session is still in progress.
func (s *ChargeSession) Open() bool {
	return s.EndTime == nil
}

// Duration returns the charged interval, measured up to now for open sessions.
func (s *ChargeSession) Duration(now time.Time) time.Duration {
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return now.Sub(s.StartTime)
}
