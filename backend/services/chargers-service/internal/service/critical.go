package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chargehub/backend/services/chargers-service/internal/apperr"
	"chargehub/backend/services/chargers-service/internal/lock"
	"chargehub/backend/services/chargers-service/internal/repository"
)

// RetryPolicy bounds how a critical section reacts to racing writers.
type RetryPolicy struct {
	// AcquireTimeout caps the wait for the charger lock. Zero waits as long as ctx allows.
	AcquireTimeout time.Duration
	// MaxRetries is the number of extra attempts after a ConcurrencyConflict.
	MaxRetries int
	// Backoff is multiplied by the attempt number before each retry.
	Backoff time.Duration
}

// criticalSection runs per-charger transactions: locker first, then the store transaction.
type criticalSection struct {
	store  repository.Store
	locker lock.Locker
	policy RetryPolicy
	logger *zap.Logger
}

// run executes fn under the charger lock, retrying ConcurrencyConflicts. committed, if set, runs
// once after the transaction commits and before the lock is released, so post-commit effects
// on one charger are applied in commit order.
func (c *criticalSection) run(ctx context.Context, chargerID uuid.UUID, fn repository.TxFunc, committed func(context.Context)) error {
	for attempt := 0; ; attempt++ {
		err := c.attempt(ctx, chargerID, fn, committed)
		if err == nil || !apperr.IsRetryable(err) || attempt >= c.policy.MaxRetries {
			return err
		}

		c.logger.Debug("retrying charger transaction",
			zap.String("charger_id", chargerID.String()),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		timer := time.NewTimer(c.policy.Backoff * time.Duration(attempt+1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

func (c *criticalSection) attempt(ctx context.Context, chargerID uuid.UUID, fn repository.TxFunc, committed func(context.Context)) error {
	lockCtx := ctx
	if c.policy.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, c.policy.AcquireTimeout)
		defer cancel()
	}

	release, err := c.locker.Acquire(lockCtx, chargerID.String())
	if err != nil {
		return apperr.ConcurrencyConflict(msgChargerBusy, err)
	}
	defer release()

	if err := c.store.WithinCharger(ctx, chargerID, fn); err != nil {
		return storeError(err)
	}
	if committed != nil {
		committed(ctx)
	}
	return nil
}

// storeError converts repository sentinels into error kinds. Errors that already carry a kind
// pass through.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrChargerNotFound):
		return apperr.NotFound(msgInvalidCharger)
	case errors.Is(err, repository.ErrReservationNotFound):
		return apperr.NotFound(msgReservationAbsent)
	case errors.Is(err, repository.ErrOverlap):
		return apperr.Conflict(msgOverlap)
	case errors.Is(err, repository.ErrLockTimeout):
		return apperr.ConcurrencyConflict(msgChargerBusy, err)
	default:
		return apperr.Internal("storage failure", err)
	}
}
