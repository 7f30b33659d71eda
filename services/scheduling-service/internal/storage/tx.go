package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/slotkeeper/libs/db"
	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/booking"
	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/outbox"
)

type pgTx struct {
	tx       pgx.Tx
	writable bool
	outbox   *outbox.Repository
	loc      *time.Location
}

const windowColumns = `id::text, operator_id, day_of_week, start_minute, end_minute, created_at, updated_at`

const exceptionColumns = `id::text, operator_id, day, is_available, start_minute, end_minute, reason, created_at, updated_at`

const appointmentColumns = `id::text, operator_id, client_id, start_time, end_time, status, notes, version, created_at, updated_at`

// validID rejects ids Postgres would refuse to cast to uuid.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (t *pgTx) ListWindows(ctx context.Context, operatorID string) ([]model.AvailabilityWindow, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+windowColumns+`
		FROM availability_windows
		WHERE operator_id = $1
		ORDER BY day_of_week, start_minute, id
	`, operatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AvailabilityWindow
	for rows.Next() {
		w, err := t.scanWindow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (t *pgTx) GetWindow(ctx context.Context, operatorID, id string) (model.AvailabilityWindow, error) {
	if !validID(id) {
		return model.AvailabilityWindow{}, booking.ErrNotFound
	}
	w, err := t.scanWindow(t.tx.QueryRow(ctx, `
		SELECT `+windowColumns+`
		FROM availability_windows
		WHERE operator_id = $1 AND id = $2
	`, operatorID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.AvailabilityWindow{}, booking.ErrNotFound
	}
	return w, err
}

func (t *pgTx) InsertWindow(ctx context.Context, w model.AvailabilityWindow) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO availability_windows (id, operator_id, day_of_week, start_minute, end_minute, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, w.ID, w.OperatorID, int(w.DayOfWeek), w.StartMinute, w.EndMinute, w.CreatedAt, w.UpdatedAt)
	return err
}

func (t *pgTx) UpdateWindow(ctx context.Context, w model.AvailabilityWindow) error {
	if !validID(w.ID) {
		return booking.ErrNotFound
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE availability_windows
		SET day_of_week = $3,
			start_minute = $4,
			end_minute = $5,
			updated_at = $6
		WHERE id = $1 AND operator_id = $2
	`, w.ID, w.OperatorID, int(w.DayOfWeek), w.StartMinute, w.EndMinute, w.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrNotFound
	}
	return nil
}

func (t *pgTx) DeleteWindow(ctx context.Context, operatorID, id string) error {
	if !validID(id) {
		return booking.ErrNotFound
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM availability_windows WHERE id = $1 AND operator_id = $2`, id, operatorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrNotFound
	}
	return nil
}

func (t *pgTx) ListExceptions(ctx context.Context, operatorID string, from, to time.Time) ([]model.ExceptionDay, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+exceptionColumns+`
		FROM exception_days
		WHERE operator_id = $1 AND day >= $2::date AND day < $3::date
		ORDER BY day
	`, operatorID, model.DateKey(from), model.DateKey(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ExceptionDay
	for rows.Next() {
		e, err := t.scanException(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *pgTx) GetException(ctx context.Context, operatorID string, date time.Time) (model.ExceptionDay, error) {
	e, err := t.scanException(t.tx.QueryRow(ctx, `
		SELECT `+exceptionColumns+`
		FROM exception_days
		WHERE operator_id = $1 AND day = $2::date
	`, operatorID, model.DateKey(date)))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ExceptionDay{}, booking.ErrNotFound
	}
	return e, err
}

func (t *pgTx) UpsertException(ctx context.Context, e model.ExceptionDay) (model.ExceptionDay, error) {
	return t.scanException(t.tx.QueryRow(ctx, `
		INSERT INTO exception_days (id, operator_id, day, is_available, start_minute, end_minute, reason, created_at, updated_at)
		VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (operator_id, day) DO UPDATE
		SET is_available = EXCLUDED.is_available,
			start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute,
			reason = EXCLUDED.reason,
			updated_at = EXCLUDED.updated_at
		RETURNING `+exceptionColumns+`
	`, e.ID, e.OperatorID, model.DateKey(e.Date), e.IsAvailable, e.StartMinute, e.EndMinute, e.Reason, e.UpdatedAt))
}

func (t *pgTx) DeleteException(ctx context.Context, operatorID string, date time.Time) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM exception_days WHERE operator_id = $1 AND day = $2::date`, operatorID, model.DateKey(date))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrNotFound
	}
	return nil
}

func (t *pgTx) ListActiveAppointments(ctx context.Context, operatorID string, from, to time.Time) ([]model.Appointment, error) {
	return t.queryAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE operator_id = $1
			AND status <> 'cancelled'
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
	`, operatorID, from, to)
}

func (t *pgTx) ListAppointments(ctx context.Context, f booking.AppointmentFilter) ([]model.Appointment, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.OperatorID != "" {
		add("operator_id = $%d", f.OperatorID)
	}
	if f.ClientID != "" {
		add("client_id = $%d", f.ClientID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if !f.From.IsZero() {
		add("end_time > $%d", f.From)
	}
	if !f.To.IsZero() {
		add("start_time < $%d", f.To)
	}
	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY start_time ASC, id ASC`
	return t.queryAppointments(ctx, query, args...)
}

func (t *pgTx) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	if !validID(id) {
		return model.Appointment{}, booking.ErrNotFound
	}
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	if t.writable {
		query += ` FOR UPDATE`
	}
	a, err := t.scanAppointment(t.tx.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, booking.ErrNotFound
	}
	return a, err
}

func (t *pgTx) InsertAppointment(ctx context.Context, a model.Appointment) (model.Appointment, error) {
	saved, err := t.scanAppointment(t.tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, operator_id, client_id, start_time, end_time, status, notes, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+appointmentColumns+`
	`, a.ID, a.OperatorID, a.ClientID, a.StartTime, a.EndTime, string(a.Status), a.Notes, a.Version, a.CreatedAt, a.UpdatedAt))
	if db.IsExclusionViolation(err) {
		return model.Appointment{}, fmt.Errorf("%w: %w", booking.ErrSlotUnavailable, err)
	}
	return saved, err
}

func (t *pgTx) UpdateAppointmentStatus(ctx context.Context, id string, expectedVersion int, status model.Status) (model.Appointment, error) {
	a, err := t.scanAppointment(t.tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3,
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING `+appointmentColumns+`
	`, id, expectedVersion, string(status)))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return model.Appointment{}, fmt.Errorf("%w: appointment %s changed concurrently", booking.ErrTransient, id)
	case db.IsExclusionViolation(err):
		return model.Appointment{}, fmt.Errorf("%w: %w", booking.ErrSlotUnavailable, err)
	}
	return a, err
}

func (t *pgTx) AppendEvent(ctx context.Context, evt outbox.Event) error {
	return t.outbox.Insert(ctx, t.tx, evt)
}

func (t *pgTx) queryAppointments(ctx context.Context, query string, args ...any) ([]model.Appointment, error) {
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := t.scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (t *pgTx) scanWindow(row pgx.Row) (model.AvailabilityWindow, error) {
	var (
		w   model.AvailabilityWindow
		dow int
	)
	if err := row.Scan(&w.ID, &w.OperatorID, &dow, &w.StartMinute, &w.EndMinute, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return model.AvailabilityWindow{}, err
	}
	w.DayOfWeek = time.Weekday(dow)
	return w, nil
}

func (t *pgTx) scanException(row pgx.Row) (model.ExceptionDay, error) {
	var (
		e   model.ExceptionDay
		day time.Time
	)
	if err := row.Scan(&e.ID, &e.OperatorID, &day, &e.IsAvailable, &e.StartMinute, &e.EndMinute, &e.Reason, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return model.ExceptionDay{}, err
	}
	// date columns come back as UTC midnight; rebuild the calendar date locally.
	e.Date = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, t.loc)
	return e, nil
}

func (t *pgTx) scanAppointment(row pgx.Row) (model.Appointment, error) {
	var (
		a      model.Appointment
		status string
	)
	if err := row.Scan(&a.ID, &a.OperatorID, &a.ClientID, &a.StartTime, &a.EndTime, &status, &a.Notes, &a.Version, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return model.Appointment{}, err
	}
	a.Status = model.Status(status)
	a.StartTime = a.StartTime.In(t.loc)
	a.EndTime = a.EndTime.In(t.loc)
	return a, nil
}
