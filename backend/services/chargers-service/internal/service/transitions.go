package service

import (
	"fmt"

	"chargehub/backend/services/chargers-service/internal/apperr"
	"chargehub/backend/services/chargers-service/internal/models"
)

// Event is an actor intent applied to a charger.
type Event string

const (
	EventUnlock     Event = "unlock"
	EventLock       Event = "lock"
	EventDisable    Event = "disable"
	EventEnable     Event = "enable"
	EventOutOfOrder Event = "out_of_order"
)

// Caller-facing messages.
const (
	msgInvalidCharger    = "Invalid charger id"
	msgOutOfOrder        = "Charger is out of order"
	msgDisabled          = "Charger is temporarily disabled"
	msgInUse             = "Charger is in use"
	msgAlreadyAvailable  = "The charger is already available"
	msgLockedByOther     = "You cannot lock a charger that is already being used by another user"
	msgChargerBusy       = "Charger is busy, try again"
	msgReservationAbsent = "Reservation not found"
	msgOverlap           = "Reservation overlaps with an existing reservation"
)

// rule is one row of the transition table.
type rule struct {
	next models.ChargerStatus
	// closeOpen closes the open session, if any, at now.
	closeOpen bool
	// openNew opens a session for the acting user and consumes their covering reservation.
	openNew bool
	// needsCovering requires the acting user to hold a reservation covering now.
	needsCovering bool
	// needsOwner requires the open session to belong to the acting user.
	needsOwner bool
	fail       *apperr.Error
}

// operatorRule closes any open session so that IN_USE stays equivalent to having exactly one
// open session once the charger leaves IN_USE.
func operatorRule(next models.ChargerStatus) rule {
	return rule{next: next, closeOpen: true}
}

var transitions = map[models.ChargerStatus]map[Event]rule{
	models.ChargerAvailable: {
		EventUnlock:     {next: models.ChargerInUse, openNew: true},
		EventLock:       {fail: apperr.NotFound(msgAlreadyAvailable)},
		EventDisable:    operatorRule(models.ChargerTemporarilyDisabled),
		EventEnable:     operatorRule(models.ChargerAvailable),
		EventOutOfOrder: operatorRule(models.ChargerOutOfOrder),
	},
	models.ChargerInUse: {
		EventUnlock:     {next: models.ChargerInUse, closeOpen: true, openNew: true, needsCovering: true},
		EventLock:       {next: models.ChargerAvailable, closeOpen: true, needsOwner: true},
		EventDisable:    operatorRule(models.ChargerTemporarilyDisabled),
		EventEnable:     operatorRule(models.ChargerAvailable),
		EventOutOfOrder: operatorRule(models.ChargerOutOfOrder),
	},
	models.ChargerOutOfOrder: {
		EventUnlock:     {fail: apperr.InvalidState(msgOutOfOrder)},
		EventLock:       {fail: apperr.NotFound(msgAlreadyAvailable)},
		EventDisable:    operatorRule(models.ChargerTemporarilyDisabled),
		EventEnable:     operatorRule(models.ChargerAvailable),
		EventOutOfOrder: operatorRule(models.ChargerOutOfOrder),
	},
	models.ChargerTemporarilyDisabled: {
		EventUnlock:     {fail: apperr.InvalidState(msgDisabled)},
		EventLock:       {fail: apperr.NotFound(msgAlreadyAvailable)},
		EventDisable:    operatorRule(models.ChargerTemporarilyDisabled),
		EventEnable:     operatorRule(models.ChargerAvailable),
		EventOutOfOrder: operatorRule(models.ChargerOutOfOrder),
	},
}

// decide looks up the rule for (status, event). A rule with fail set is a rejected transition.
func decide(status models.ChargerStatus, event Event) (rule, error) {
	r, ok := transitions[status][event]
	if !ok {
		return rule{}, apperr.Internal("unsupported charger transition", fmt.Errorf("%s on %s", event, status))
	}
	if r.fail != nil {
		return r, r.fail
	}
	return r, nil
}

// eventForStatus maps an operator target status to its event.
func eventForStatus(status models.ChargerStatus) (Event, error) {
	switch status {
	case models.ChargerAvailable:
		return EventEnable, nil
	case models.ChargerTemporarilyDisabled:
		return EventDisable, nil
	case models.ChargerOutOfOrder:
		return EventOutOfOrder, nil
	case models.ChargerInUse:
		return "", apperr.InvalidArgument("Status IN_USE can only be reached by unlocking the charger")
	default:
		return "", apperr.InvalidArgument("Unknown charger status")
	}
}
