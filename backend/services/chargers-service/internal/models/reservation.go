package models

import (
	"time"

	"github.com/google/uuid"
)

// Reservation is a user's claim on a charger for [StartTime, EndTime).
type Reservation struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"userId"`
	ChargerID uuid.UUID `db:"charger_id" json:"chargerId"`
	StartTime time.Time `db:"start_time" json:"startTimestamp"`
	EndTime   time.Time `db:"end_time" json:"endTimestamp"`
	Used      bool      `db:"used" json:"used"`
}

// Overlaps reports whether the half-open intervals [start,end) of r and other intersect.
// Touching endpoints do not overlap.
func (r *Reservation) Overlaps(other *Reservation) bool {
	return r.StartTime.Before(other.EndTime) && r.EndTime.After(other.StartTime)
}

// Covers reports whether at falls inside [start,end).
func (r *Reservation) Covers(at time.Time) bool {
	return !at.Before(r.StartTime) && at.Before(r.EndTime)
}

// Duration is the length of the reserved interval.
func (r *Reservation) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}
