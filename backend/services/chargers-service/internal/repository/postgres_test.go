package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chargehub/backend/services/chargers-service/internal/models"
)

func newMockStore(t *testing.T, lockTimeout time.Duration) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return NewPostgresStore(sqlx.NewDb(mockDB, "pgx"), lockTimeout), mock
}

func chargerRows(c models.Charger) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "station_id", "connector_type", "price", "charging_speed", "status", "updated_at"}).
		AddRow(c.ID.String(), c.StationID.String(), c.ConnectorType, c.Price, c.ChargingSpeed, string(c.Status), c.UpdatedAt)
}

func TestWithinCharger_CommitsWritesUnderRowLock(t *testing.T) {
	store, mock := newMockStore(t, 2*time.Second)
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	charger := models.Charger{ID: uuid.New(), StationID: uuid.New(), ConnectorType: "CCS", Status: models.ChargerAvailable, UpdatedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL lock_timeout = '2000ms'")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs(charger.ID).WillReturnRows(chargerRows(charger))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO charge_sessions")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), charger.ID, nil, now, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE chargers SET status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs(charger.ID, models.ChargerInUse, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithinCharger(context.Background(), charger.ID, func(ctx context.Context, tx Stores, locked *models.Charger) error {
		assert.Equal(t, models.ChargerAvailable, locked.Status)
		assert.Equal(t, "CCS", locked.ConnectorType)
		session := &models.ChargeSession{UserID: uuid.New(), ChargerID: locked.ID, StartTime: now}
		if err := tx.Sessions.Create(ctx, session); err != nil {
			return err
		}
		assert.NotEqual(t, uuid.Nil, session.ID)
		return tx.Chargers.UpdateStatus(ctx, locked.ID, models.ChargerInUse, now)
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinCharger_RollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t, 0)
	charger := models.Charger{ID: uuid.New(), StationID: uuid.New(), Status: models.ChargerInUse}
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs(charger.ID).WillReturnRows(chargerRows(charger))
	mock.ExpectRollback()

	err := store.WithinCharger(context.Background(), charger.ID, func(context.Context, Stores, *models.Charger) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinCharger_UnknownCharger(t *testing.T) {
	store, mock := newMockStore(t, 0)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := store.WithinCharger(context.Background(), id, func(context.Context, Stores, *models.Charger) error {
		t.Fatal("fn must not run")
		return nil
	})

	assert.ErrorIs(t, err, ErrChargerNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinCharger_LockTimeout(t *testing.T) {
	store, mock := newMockStore(t, time.Second)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL lock_timeout")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs(id).
		WillReturnError(&pgconn.PgError{Code: pgLockNotAvailable, Message: "canceling statement due to lock timeout"})
	mock.ExpectRollback()

	err := store.WithinCharger(context.Background(), id, func(context.Context, Stores, *models.Charger) error {
		return nil
	})

	assert.ErrorIs(t, err, ErrLockTimeout)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))
	assert.ErrorIs(t, translate(&pgconn.PgError{Code: pgDeadlockDetected}), ErrLockTimeout)
	assert.ErrorIs(t, translate(&pgconn.PgError{Code: pgSerializationFailure}), ErrLockTimeout)
	assert.ErrorIs(t, translate(&pgconn.PgError{Code: pgExclusionViolation, ConstraintName: "reservations_no_overlap"}), ErrOverlap)
	assert.ErrorIs(t, translate(&pgconn.PgError{Code: pgUniqueViolation}), ErrLockTimeout)

	other := &pgconn.PgError{Code: "42P01"}
	assert.Same(t, error(other), translate(other))
}

func TestReservationRepo_ListCovering(t *testing.T) {
	store, mock := newMockStore(t, 0)
	userID, chargerID := uuid.New(), uuid.New()
	at := time.Date(2026, 3, 10, 10, 30, 0, 0, time.UTC)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND start_time <= $2 AND end_time > $2")).
		WithArgs(userID, at).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "charger_id", "start_time", "end_time", "used"}).
			AddRow(id.String(), userID.String(), chargerID.String(), at.Add(-30*time.Minute), at.Add(30*time.Minute), false))

	got, err := store.Stores().Reservations.ListCovering(context.Background(), userID, at)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
	assert.Equal(t, chargerID, got[0].ChargerID)
	assert.False(t, got[0].Used)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_MissingRows(t *testing.T) {
	store, mock := newMockStore(t, 0)
	id := uuid.New()
	repo := store.Stores().Reservations

	mock.ExpectQuery(regexp.QuoteMeta("FROM reservations WHERE id = $1")).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM reservations")).WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE reservations SET used = TRUE")).WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrReservationNotFound)
	assert.ErrorIs(t, repo.Delete(context.Background(), id), ErrReservationNotFound)
	assert.ErrorIs(t, repo.MarkUsed(context.Background(), id), ErrReservationNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_CreateOverlapRejectedByConstraint(t *testing.T) {
	store, mock := newMockStore(t, 0)
	r := &models.Reservation{UserID: uuid.New(), ChargerID: uuid.New(), StartTime: time.Now(), EndTime: time.Now().Add(time.Hour)}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reservations")).
		WillReturnError(&pgconn.PgError{Code: pgExclusionViolation, ConstraintName: "reservations_no_overlap"})

	err := store.Stores().Reservations.Create(context.Background(), r)
	assert.ErrorIs(t, err, ErrOverlap)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepo_OpenAndClose(t *testing.T) {
	store, mock := newMockStore(t, 0)
	chargerID, userID, sessionID := uuid.New(), uuid.New(), uuid.New()
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	repo := store.Stores().Sessions

	mock.ExpectQuery(regexp.QuoteMeta("WHERE charger_id = $1 AND end_time IS NULL")).WithArgs(chargerID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "charger_id", "reservation_id", "start_time", "end_time"}).
			AddRow(sessionID.String(), userID.String(), chargerID.String(), nil, start, nil))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE charge_sessions SET end_time = $2")).WithArgs(sessionID, end).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE charge_sessions SET end_time = $2")).WithArgs(sessionID, end).
		WillReturnResult(sqlmock.NewResult(0, 0))

	open, err := repo.GetOpenByCharger(context.Background(), chargerID)
	require.NoError(t, err)
	assert.True(t, open.Open())
	assert.Nil(t, open.ReservationID)
	assert.Equal(t, userID, open.UserID)

	require.NoError(t, repo.Close(context.Background(), sessionID, end))
	assert.ErrorIs(t, repo.Close(context.Background(), sessionID, end), ErrSessionNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChargerRepo_ListByStationEmpty(t *testing.T) {
	store, mock := newMockStore(t, 0)
	stationID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM chargers WHERE station_id = $1")).WithArgs(stationID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "station_id", "connector_type", "price", "charging_speed", "status", "updated_at"}))

	got, err := store.Stores().Chargers.ListByStation(context.Background(), stationID)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}
