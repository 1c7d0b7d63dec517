package models

import (
	"time"

	"github.com/google/uuid"
)

// ChargerStatus is the operational status stored on a charger row.
type ChargerStatus string

const (
	ChargerAvailable           ChargerStatus = "AVAILABLE"
	ChargerInUse               ChargerStatus = "IN_USE"
	ChargerOutOfOrder          ChargerStatus = "OUT_OF_ORDER"
	ChargerTemporarilyDisabled ChargerStatus = "TEMPORARILY_DISABLED"
)

// Valid reports whether s is one of the known statuses.
func (s ChargerStatus) Valid() bool {
	switch s {
	case ChargerAvailable, ChargerInUse, ChargerOutOfOrder, ChargerTemporarilyDisabled:
		return true
	}
	return false
}

// Charger is a physical charging point at a station.
type Charger struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	StationID     uuid.UUID     `db:"station_id" json:"stationId"`
	ConnectorType string        `db:"connector_type" json:"connectorType"`
	Price         float64       `db:"price" json:"price"`
	ChargingSpeed float64       `db:"charging_speed" json:"chargingSpeed"`
	Status        ChargerStatus `db:"status" json:"status"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updatedAt"`
}
