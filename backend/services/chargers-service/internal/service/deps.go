// Package service holds the charger core: reservation admission, the charger state machine
// and the read-side queries built on top of the stores.
package service

import (
	"go.uber.org/zap"

	"chargehub/backend/libs/clock"
	"chargehub/backend/services/chargers-service/internal/lock"
	"chargehub/backend/services/chargers-service/internal/repository"
)

// Deps are the collaborators shared by the planner and the state machine.
type Deps struct {
	Store    repository.Store
	Locker   lock.Locker
	Clock    clock.Clock
	Observer Observer
	Retry    RetryPolicy
	Logger   *zap.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Locker == nil {
		d.Locker = lock.NewKeyed()
	}
	if d.Clock == nil {
		d.Clock = clock.System()
	}
	if d.Observer == nil {
		d.Observer = Observers{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return d
}

func (d Deps) section() *criticalSection {
	return &criticalSection{store: d.Store, locker: d.Locker, policy: d.Retry, logger: d.Logger}
}
