package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/lifecycle"
	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/metrics"
	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/outbox"
)

const maxNotesLength = 2000

type Config struct {
	// SlotDuration is the fixed length of every booking. Defaults to 30m.
	SlotDuration time.Duration
	// Location is the single time zone the operator's calendar lives in.
	Location *time.Location
	Now      func() time.Time
	Cache    SlotCache
	Metrics  *metrics.SchedulingMetrics
}

// Actor identifies who is calling. ID may be empty for trusted internal
// callers, in which case ownership is not checked.
type Actor struct {
	ID   string
	Role model.Role
}

type Service struct {
	store    Store
	logger   *slog.Logger
	duration time.Duration
	loc      *time.Location
	now      func() time.Time
	cache    SlotCache
	metrics  *metrics.SchedulingMetrics
	tracer   trace.Tracer
}

func NewService(store Store, logger *slog.Logger, cfg Config) *Service {
	if cfg.SlotDuration <= 0 {
		cfg.SlotDuration = availability.DefaultSlotDuration
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		logger:   logger,
		duration: cfg.SlotDuration,
		loc:      cfg.Location,
		now:      cfg.Now,
		cache:    cfg.Cache,
		metrics:  cfg.Metrics,
		tracer:   otel.Tracer("slotkeeper/scheduling-service/booking"),
	}
}

func (s *Service) SlotDuration() time.Duration { return s.duration }

func (s *Service) Location() *time.Location { return s.loc }

// Now is the service clock.
func (s *Service) Now() time.Time { return s.now() }

// GetAvailableSlots lists bookable slot start times for operatorID on the
// calendar date of date. Clients never see slots that already started.
func (s *Service) GetAvailableSlots(ctx context.Context, operatorID string, date time.Time, role model.Role) ([]time.Time, error) {
	operatorID = strings.TrimSpace(operatorID)
	if operatorID == "" || !role.Valid() {
		return nil, fmt.Errorf("%w: operator id and role are required", ErrInvalidRequest)
	}
	ctx, span := s.tracer.Start(ctx, "booking.GetAvailableSlots", trace.WithAttributes(
		attribute.String("operator.id", operatorID),
		attribute.String("actor.role", role.String()),
	))
	defer span.End()

	began := time.Now()
	now := s.now()
	day := model.StartOfDay(date, s.loc)
	dateKey := model.DateKey(day)

	version, cacheOK := s.cacheVersion(ctx, operatorID)
	if cacheOK {
		cached, hit, err := s.cache.Get(ctx, operatorID, version, dateKey, role)
		if err != nil {
			s.logger.Warn("slot cache read failed", "operator_id", operatorID, "err", err)
		} else if hit {
			if role == model.RoleClient {
				cached = dropStarted(cached, now)
			}
			s.metrics.ObserveSlotQuery(role.String(), true, time.Since(began))
			return cached, nil
		}
	}

	var slots []time.Time
	err := s.store.View(ctx, func(tx Tx) error {
		intervals, err := s.effectiveIntervals(ctx, tx, operatorID, day)
		if err != nil {
			return err
		}
		busy, err := tx.ListActiveAppointments(ctx, operatorID, day, day.AddDate(0, 0, 1))
		if err != nil {
			return fmt.Errorf("list appointments: %w", err)
		}
		slots = availability.GenerateSlots(operatorID, intervals, busy, availability.SlotOptions{
			Duration:    s.duration,
			ExcludePast: role == model.RoleClient,
			Now:         now,
		})
		return nil
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	if cacheOK {
		if err := s.cache.Set(ctx, operatorID, version, dateKey, role, slots); err != nil {
			s.logger.Warn("slot cache write failed", "operator_id", operatorID, "err", err)
		}
	}
	s.metrics.ObserveSlotQuery(role.String(), false, time.Since(began))
	span.SetAttributes(attribute.Int("slots.count", len(slots)))
	return slots, nil
}

// CreateAppointment books a pending appointment for clientID starting at
// slotTime. The slot must be one GetAvailableSlots would offer the client;
// the availability and conflict checks run in the same transaction as the
// insert.
func (s *Service) CreateAppointment(ctx context.Context, clientID, operatorID string, slotTime time.Time, notes string) (model.Appointment, error) {
	clientID = strings.TrimSpace(clientID)
	operatorID = strings.TrimSpace(operatorID)
	notes = strings.TrimSpace(notes)
	if clientID == "" || operatorID == "" || slotTime.IsZero() {
		return model.Appointment{}, fmt.Errorf("%w: client id, operator id and slot time are required", ErrInvalidRequest)
	}
	if len(notes) > maxNotesLength {
		return model.Appointment{}, fmt.Errorf("%w: notes exceed %d characters", ErrInvalidRequest, maxNotesLength)
	}

	ctx, span := s.tracer.Start(ctx, "booking.CreateAppointment", trace.WithAttributes(
		attribute.String("operator.id", operatorID),
		attribute.String("slot.start", slotTime.UTC().Format(time.RFC3339)),
	))
	defer span.End()

	start := slotTime.In(s.loc)
	end := start.Add(s.duration)
	now := s.now()
	if start.Before(now) {
		s.metrics.ObserveBooking(metrics.ResultSlotUnavailable)
		return model.Appointment{}, fmt.Errorf("%w: slot has already started", ErrSlotUnavailable)
	}

	var created model.Appointment
	err := s.update(ctx, "create_appointment", func(tx Tx) error {
		intervals, err := s.effectiveIntervals(ctx, tx, operatorID, model.StartOfDay(start, s.loc))
		if err != nil {
			return err
		}
		if !availability.IsSlotStart(intervals, start, s.duration) {
			return fmt.Errorf("%w: outside operator availability", ErrSlotUnavailable)
		}
		existing, err := tx.ListActiveAppointments(ctx, operatorID, start, end)
		if err != nil {
			return fmt.Errorf("list appointments: %w", err)
		}
		if availability.HasConflict(operatorID, start, end, existing) {
			return fmt.Errorf("%w: overlaps an existing appointment", ErrSlotUnavailable)
		}

		appt, err := tx.InsertAppointment(ctx, model.Appointment{
			ID:         uuid.NewString(),
			ClientID:   clientID,
			OperatorID: operatorID,
			StartTime:  start,
			EndTime:    end,
			Status:     model.StatusPending,
			Notes:      notes,
			Version:    1,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if err != nil {
			return err
		}
		evt, err := outbox.AppointmentCreated(appt, model.RoleClient, now)
		if err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, evt); err != nil {
			return fmt.Errorf("append outbox event: %w", err)
		}
		created = appt
		return nil
	})
	if err != nil {
		s.observeBookingFailure(ctx, span, operatorID, start, err)
		return model.Appointment{}, err
	}

	s.invalidate(ctx, operatorID)
	s.metrics.ObserveBooking(metrics.ResultCreated)
	s.logger.Info("appointment booked",
		"appointment_id", created.ID,
		"operator_id", operatorID,
		"client_id", clientID,
		"start_time", created.StartTime.Format(time.RFC3339),
	)
	return created, nil
}

// ScheduleAppointment lets the operator record an appointment directly, with
// any initial status and without checking recurring availability. Active
// appointments still may not overlap.
func (s *Service) ScheduleAppointment(ctx context.Context, operatorID, clientID string, start time.Time, notes string, status model.Status) (model.Appointment, error) {
	operatorID = strings.TrimSpace(operatorID)
	clientID = strings.TrimSpace(clientID)
	notes = strings.TrimSpace(notes)
	if status == "" {
		status = model.StatusPending
	}
	if operatorID == "" || clientID == "" || start.IsZero() {
		return model.Appointment{}, fmt.Errorf("%w: operator id, client id and start time are required", ErrInvalidRequest)
	}
	if _, err := model.ParseStatus(string(status)); err != nil {
		return model.Appointment{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if len(notes) > maxNotesLength {
		return model.Appointment{}, fmt.Errorf("%w: notes exceed %d characters", ErrInvalidRequest, maxNotesLength)
	}

	ctx, span := s.tracer.Start(ctx, "booking.ScheduleAppointment", trace.WithAttributes(
		attribute.String("operator.id", operatorID),
		attribute.String("appointment.status", string(status)),
	))
	defer span.End()

	start = start.In(s.loc)
	end := start.Add(s.duration)
	now := s.now()

	var created model.Appointment
	err := s.update(ctx, "schedule_appointment", func(tx Tx) error {
		if status.Active() {
			existing, err := tx.ListActiveAppointments(ctx, operatorID, start, end)
			if err != nil {
				return fmt.Errorf("list appointments: %w", err)
			}
			if availability.HasConflict(operatorID, start, end, existing) {
				return fmt.Errorf("%w: overlaps an existing appointment", ErrSlotUnavailable)
			}
		}
		appt, err := tx.InsertAppointment(ctx, model.Appointment{
			ID:         uuid.NewString(),
			ClientID:   clientID,
			OperatorID: operatorID,
			StartTime:  start,
			EndTime:    end,
			Status:     status,
			Notes:      notes,
			Version:    1,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if err != nil {
			return err
		}
		evt, err := outbox.AppointmentCreated(appt, model.RoleOperator, now)
		if err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, evt); err != nil {
			return fmt.Errorf("append outbox event: %w", err)
		}
		created = appt
		return nil
	})
	if err != nil {
		s.observeBookingFailure(ctx, span, operatorID, start, err)
		return model.Appointment{}, err
	}

	s.invalidate(ctx, operatorID)
	s.metrics.ObserveBooking(metrics.ResultCreated)
	s.logger.Info("appointment scheduled by operator",
		"appointment_id", created.ID,
		"operator_id", operatorID,
		"client_id", clientID,
		"status", string(created.Status),
		"start_time", created.StartTime.Format(time.RFC3339),
	)
	return created, nil
}

// ChangeAppointmentStatus moves an appointment to target if actor's role
// permits it from the current status. The status is re-read under lock.
func (s *Service) ChangeAppointmentStatus(ctx context.Context, appointmentID string, actor Actor, target model.Status) (model.Appointment, error) {
	appointmentID = strings.TrimSpace(appointmentID)
	if appointmentID == "" || !actor.Role.Valid() {
		return model.Appointment{}, fmt.Errorf("%w: appointment id and role are required", ErrInvalidRequest)
	}

	ctx, span := s.tracer.Start(ctx, "booking.ChangeAppointmentStatus", trace.WithAttributes(
		attribute.String("appointment.id", appointmentID),
		attribute.String("actor.role", actor.Role.String()),
		attribute.String("appointment.target_status", string(target)),
	))
	defer span.End()

	now := s.now()
	var (
		updated  model.Appointment
		previous model.Status
	)
	err := s.update(ctx, "change_status", func(tx Tx) error {
		current, err := tx.GetAppointment(ctx, appointmentID)
		if err != nil {
			return err
		}
		if err := authorize(actor, current); err != nil {
			return err
		}
		next, err := lifecycle.Apply(current, actor.Role, target)
		if err != nil {
			return err
		}
		saved, err := tx.UpdateAppointmentStatus(ctx, appointmentID, current.Version, next.Status)
		if err != nil {
			return err
		}
		evt, err := outbox.AppointmentStatusChanged(saved, current.Status, actor.Role, now)
		if err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, evt); err != nil {
			return fmt.Errorf("append outbox event: %w", err)
		}
		updated, previous = saved, current.Status
		return nil
	})
	if err != nil {
		recordSpanError(span, err)
		s.metrics.ObserveTransition(actor.Role.String(), string(target), transitionResult(err))
		s.logger.Warn("status change rejected",
			"appointment_id", appointmentID,
			"role", actor.Role.String(),
			"target_status", string(target),
			"err", err,
		)
		return model.Appointment{}, err
	}

	s.invalidate(ctx, updated.OperatorID)
	s.metrics.ObserveTransition(actor.Role.String(), string(target), "ok")
	s.logger.Info("appointment status changed",
		"appointment_id", updated.ID,
		"operator_id", updated.OperatorID,
		"role", actor.Role.String(),
		"from", string(previous),
		"to", string(updated.Status),
	)
	return updated, nil
}

func (s *Service) GetAppointment(ctx context.Context, appointmentID string, actor Actor) (model.Appointment, error) {
	var appt model.Appointment
	err := s.store.View(ctx, func(tx Tx) error {
		a, err := tx.GetAppointment(ctx, appointmentID)
		if err != nil {
			return err
		}
		if err := authorize(actor, a); err != nil {
			return err
		}
		appt = a
		return nil
	})
	return appt, err
}

// ListAppointments applies f within what actor may see: clients only their
// own appointments, operators only appointments on their calendar.
func (s *Service) ListAppointments(ctx context.Context, actor Actor, f AppointmentFilter) ([]model.Appointment, error) {
	switch actor.Role {
	case model.RoleClient:
		if actor.ID == "" {
			return nil, fmt.Errorf("%w: client id is required", ErrInvalidRequest)
		}
		f.ClientID = actor.ID
	case model.RoleOperator:
		if f.OperatorID == "" {
			f.OperatorID = actor.ID
		}
		if actor.ID != "" && f.OperatorID != actor.ID {
			return nil, ErrForbidden
		}
	default:
		return nil, fmt.Errorf("%w: unknown role", ErrInvalidRequest)
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return nil, fmt.Errorf("%w: from must be before to", ErrInvalidRequest)
	}

	var out []model.Appointment
	err := s.store.View(ctx, func(tx Tx) error {
		list, err := tx.ListAppointments(ctx, f)
		out = list
		return err
	})
	return out, err
}

// effectiveIntervals resolves the operator's availability for day, which must
// be local midnight.
func (s *Service) effectiveIntervals(ctx context.Context, tx Tx, operatorID string, day time.Time) ([]availability.Interval, error) {
	windows, err := tx.ListWindows(ctx, operatorID)
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}
	var exceptions []model.ExceptionDay
	exc, err := tx.GetException(ctx, operatorID, day)
	switch {
	case err == nil:
		exceptions = append(exceptions, exc)
	case errors.Is(err, ErrNotFound):
	default:
		return nil, fmt.Errorf("get exception: %w", err)
	}
	return availability.ResolveDay(operatorID, day, windows, exceptions), nil
}

// update runs fn in a write transaction, retrying once on a transient failure.
func (s *Service) update(ctx context.Context, operation string, fn func(Tx) error) error {
	err := s.store.Update(ctx, fn)
	if errors.Is(err, ErrTransient) {
		s.metrics.ObserveRetry(operation)
		s.logger.Warn("retrying after transient storage failure", "operation", operation, "err", err)
		err = s.store.Update(ctx, fn)
	}
	return err
}

func (s *Service) cacheVersion(ctx context.Context, operatorID string) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	v, err := s.cache.Version(ctx, operatorID)
	if err != nil {
		s.logger.Warn("slot cache unavailable", "operator_id", operatorID, "err", err)
		return 0, false
	}
	return v, true
}

func (s *Service) invalidate(ctx context.Context, operatorID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, operatorID); err != nil {
		s.logger.Warn("slot cache invalidation failed", "operator_id", operatorID, "err", err)
	}
}

func (s *Service) observeBookingFailure(ctx context.Context, span trace.Span, operatorID string, start time.Time, err error) {
	recordSpanError(span, err)
	switch {
	case errors.Is(err, ErrSlotUnavailable):
		s.metrics.ObserveBooking(metrics.ResultSlotUnavailable)
		s.logger.Warn("booking rejected", "operator_id", operatorID, "start_time", start.Format(time.RFC3339), "err", err)
	case errors.Is(err, ErrInvalidRequest):
		s.metrics.ObserveBooking(metrics.ResultRejected)
	default:
		s.metrics.ObserveBooking(metrics.ResultError)
		s.logger.ErrorContext(ctx, "booking failed", "operator_id", operatorID, "err", err)
	}
}

func authorize(actor Actor, a model.Appointment) error {
	if actor.ID == "" {
		return nil
	}
	switch actor.Role {
	case model.RoleClient:
		if a.ClientID != actor.ID {
			return ErrForbidden
		}
	case model.RoleOperator:
		if a.OperatorID != actor.ID {
			return ErrForbidden
		}
	default:
		return ErrForbidden
	}
	return nil
}

func transitionResult(err error) string {
	switch {
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	}
	return "error"
}

func dropStarted(slots []time.Time, now time.Time) []time.Time {
	out := make([]time.Time, 0, len(slots))
	for _, t := range slots {
		if !t.Before(now) {
			out = append(out, t)
		}
	}
	return out
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
