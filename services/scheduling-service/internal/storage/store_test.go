package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/slotkeeper/libs/db"
	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/booking"
	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/outbox"
)

func appointmentRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "operator_id", "client_id", "start_time", "end_time", "status", "notes", "version", "created_at", "updated_at"})
}

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return newStore(mock, nil, time.UTC), mock
}

func TestInsertAppointmentExclusionViolation(t *testing.T) {
	store, mock := newMockStore(t)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectBeginTx(updateOptions)
	mock.ExpectQuery("INSERT INTO appointments").
		WillReturnError(&pgconn.PgError{Code: db.CodeExclusionViolation})
	mock.ExpectRollback()

	err := store.Update(context.Background(), func(tx booking.Tx) error {
		_, err := tx.InsertAppointment(context.Background(), model.Appointment{
			ID: uuid.NewString(), OperatorID: "op-1", ClientID: "c-1",
			StartTime: start, EndTime: start.Add(30 * time.Minute), Status: model.StatusPending, Version: 1,
		})
		return err
	})
	require.ErrorIs(t, err, booking.ErrSlotUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSerializationFailureOnCommitIsTransient(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBeginTx(updateOptions)
	mock.ExpectExec("INSERT INTO availability_windows").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit().WillReturnError(&pgconn.PgError{Code: db.CodeSerializationFailure})

	err := store.Update(context.Background(), func(tx booking.Tx) error {
		return tx.InsertWindow(context.Background(), model.AvailabilityWindow{
			ID: uuid.NewString(), OperatorID: "op-1", DayOfWeek: time.Monday, StartMinute: 540, EndMinute: 720,
		})
	})
	require.ErrorIs(t, err, booking.ErrTransient)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBeginDeadlockIsTransient(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBeginTx(viewOptions).WillReturnError(&pgconn.PgError{Code: db.CodeDeadlockDetected})

	err := store.View(context.Background(), func(booking.Tx) error { return nil })
	require.ErrorIs(t, err, booking.ErrTransient)
}

func TestGetAppointmentLocksOnlyInUpdate(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.NewString()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	now := time.Now()

	mock.ExpectBeginTx(viewOptions)
	mock.ExpectQuery(`FROM appointments WHERE id = \$1$`).
		WithArgs(id).
		WillReturnRows(appointmentRows().AddRow(id, "op-1", "c-1", start, start.Add(30*time.Minute), "pending", "", 1, now, now))
	mock.ExpectCommit()

	mock.ExpectBeginTx(updateOptions)
	mock.ExpectQuery(`FROM appointments WHERE id = \$1 FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(appointmentRows().AddRow(id, "op-1", "c-1", start, start.Add(30*time.Minute), "confirmed", "", 2, now, now))
	mock.ExpectCommit()

	var viewed, locked model.Appointment
	require.NoError(t, store.View(context.Background(), func(tx booking.Tx) error {
		var err error
		viewed, err = tx.GetAppointment(context.Background(), id)
		return err
	}))
	require.NoError(t, store.Update(context.Background(), func(tx booking.Tx) error {
		var err error
		locked, err = tx.GetAppointment(context.Background(), id)
		return err
	}))

	assert.Equal(t, model.StatusPending, viewed.Status)
	assert.Equal(t, model.StatusConfirmed, locked.Status)
	assert.Equal(t, 2, locked.Version)
	assert.True(t, viewed.StartTime.Equal(start))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAppointmentMalformedIDIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBeginTx(viewOptions)
	mock.ExpectRollback()

	err := store.View(context.Background(), func(tx booking.Tx) error {
		_, err := tx.GetAppointment(context.Background(), "not-a-uuid")
		return err
	})
	require.ErrorIs(t, err, booking.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAppointmentStatusStaleVersion(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.NewString()

	mock.ExpectBeginTx(updateOptions)
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(id, 1, "confirmed").
		WillReturnRows(appointmentRows())
	mock.ExpectRollback()

	err := store.Update(context.Background(), func(tx booking.Tx) error {
		_, err := tx.UpdateAppointmentStatus(context.Background(), id, 1, model.StatusConfirmed)
		return err
	})
	require.ErrorIs(t, err, booking.ErrTransient)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListAppointmentsBuildsFilter(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.NewString()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	now := time.Now()

	mock.ExpectBeginTx(viewOptions)
	mock.ExpectQuery(`WHERE operator_id = \$1 AND status = \$2 ORDER BY`).
		WithArgs("op-1", "pending").
		WillReturnRows(appointmentRows().AddRow(id, "op-1", "c-1", start, start.Add(30*time.Minute), "pending", "first visit", 1, now, now))
	mock.ExpectCommit()

	var got []model.Appointment
	require.NoError(t, store.View(context.Background(), func(tx booking.Tx) error {
		var err error
		got, err = tx.ListAppointments(context.Background(), booking.AppointmentFilter{OperatorID: "op-1", Status: model.StatusPending})
		return err
	}))
	require.Len(t, got, 1)
	assert.Equal(t, "first visit", got[0].Notes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteWindowMissing(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.NewString()

	mock.ExpectBeginTx(updateOptions)
	mock.ExpectExec("DELETE FROM availability_windows").
		WithArgs(id, "op-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	err := store.Update(context.Background(), func(tx booking.Tx) error {
		return tx.DeleteWindow(context.Background(), "op-1", id)
	})
	require.ErrorIs(t, err, booking.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendEventWritesOutbox(t *testing.T) {
	store, mock := newMockStore(t)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	appt := model.Appointment{ID: uuid.NewString(), OperatorID: "op-1", ClientID: "c-1", StartTime: start, EndTime: start.Add(30 * time.Minute), Status: model.StatusPending, Version: 1}

	mock.ExpectBeginTx(updateOptions)
	mock.ExpectExec("INSERT INTO outbox_events").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := store.Update(context.Background(), func(tx booking.Tx) error {
		evt, err := outbox.AppointmentCreated(appt, model.RoleClient, start)
		if err != nil {
			return err
		}
		return tx.AppendEvent(context.Background(), evt)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
