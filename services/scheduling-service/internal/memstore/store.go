// Package memstore is an in-process booking.Store. Writers are serialized by
// a mutex and work on a copy of the state that replaces the original only
// when the unit of work succeeds.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/booking"
	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/outbox"
)

var errReadOnly = errors.New("write in read-only transaction")

type state struct {
	windows      map[string]model.AvailabilityWindow
	exceptions   map[string]model.ExceptionDay
	appointments map[string]model.Appointment
	events       []outbox.Event
}

func newState() *state {
	return &state{
		windows:      map[string]model.AvailabilityWindow{},
		exceptions:   map[string]model.ExceptionDay{},
		appointments: map[string]model.Appointment{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.windows {
		c.windows[k] = v
	}
	for k, v := range s.exceptions {
		c.exceptions[k] = v
	}
	for k, v := range s.appointments {
		c.appointments[k] = v
	}
	c.events = append([]outbox.Event(nil), s.events...)
	return c
}

type Store struct {
	mu  sync.RWMutex
	st  *state
	now func() time.Time
}

type Option func(*Store)

// WithClock sets the clock used for store-assigned timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{st: newState(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ booking.Store = (*Store)(nil)

func (s *Store) View(ctx context.Context, fn func(booking.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&tx{st: s.st, now: s.now, readOnly: true})
}

func (s *Store) Update(ctx context.Context, fn func(booking.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.st.clone()
	if err := fn(&tx{st: next, now: s.now}); err != nil {
		return err
	}
	s.st = next
	return nil
}

// Events returns every outbox event committed so far.
func (s *Store) Events() []outbox.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]outbox.Event(nil), s.st.events...)
}

type tx struct {
	st       *state
	now      func() time.Time
	readOnly bool
}

func (t *tx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

func exceptionKey(operatorID string, date time.Time) string {
	return operatorID + "|" + model.DateKey(date)
}

func (t *tx) ListWindows(_ context.Context, operatorID string) ([]model.AvailabilityWindow, error) {
	var out []model.AvailabilityWindow
	for _, w := range t.st.windows {
		if w.OperatorID == operatorID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		if out[i].StartMinute != out[j].StartMinute {
			return out[i].StartMinute < out[j].StartMinute
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) GetWindow(_ context.Context, operatorID, id string) (model.AvailabilityWindow, error) {
	w, ok := t.st.windows[id]
	if !ok || w.OperatorID != operatorID {
		return model.AvailabilityWindow{}, booking.ErrNotFound
	}
	return w, nil
}

func (t *tx) InsertWindow(_ context.Context, w model.AvailabilityWindow) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, exists := t.st.windows[w.ID]; exists {
		return fmt.Errorf("window %s already exists", w.ID)
	}
	t.st.windows[w.ID] = w
	return nil
}

func (t *tx) UpdateWindow(ctx context.Context, w model.AvailabilityWindow) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, err := t.GetWindow(ctx, w.OperatorID, w.ID); err != nil {
		return err
	}
	t.st.windows[w.ID] = w
	return nil
}

func (t *tx) DeleteWindow(ctx context.Context, operatorID, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, err := t.GetWindow(ctx, operatorID, id); err != nil {
		return err
	}
	delete(t.st.windows, id)
	return nil
}

func (t *tx) ListExceptions(_ context.Context, operatorID string, from, to time.Time) ([]model.ExceptionDay, error) {
	var out []model.ExceptionDay
	for _, e := range t.st.exceptions {
		if e.OperatorID != operatorID || e.Date.Before(from) || !e.Date.Before(to) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (t *tx) GetException(_ context.Context, operatorID string, date time.Time) (model.ExceptionDay, error) {
	e, ok := t.st.exceptions[exceptionKey(operatorID, date)]
	if !ok {
		return model.ExceptionDay{}, booking.ErrNotFound
	}
	return e, nil
}

func (t *tx) UpsertException(_ context.Context, e model.ExceptionDay) (model.ExceptionDay, error) {
	if err := t.writable(); err != nil {
		return model.ExceptionDay{}, err
	}
	key := exceptionKey(e.OperatorID, e.Date)
	if current, ok := t.st.exceptions[key]; ok {
		e.ID = current.ID
		e.CreatedAt = current.CreatedAt
	}
	t.st.exceptions[key] = e
	return e, nil
}

func (t *tx) DeleteException(_ context.Context, operatorID string, date time.Time) error {
	if err := t.writable(); err != nil {
		return err
	}
	key := exceptionKey(operatorID, date)
	if _, ok := t.st.exceptions[key]; !ok {
		return booking.ErrNotFound
	}
	delete(t.st.exceptions, key)
	return nil
}

func (t *tx) ListActiveAppointments(_ context.Context, operatorID string, from, to time.Time) ([]model.Appointment, error) {
	window := availability.Interval{Start: from, End: to}
	var out []model.Appointment
	for _, a := range t.st.appointments {
		if a.OperatorID != operatorID || !a.Status.Active() {
			continue
		}
		if availability.Overlaps(window, availability.Interval{Start: a.StartTime, End: a.EndTime}) {
			out = append(out, a)
		}
	}
	sortByStart(out)
	return out, nil
}

func (t *tx) ListAppointments(_ context.Context, f booking.AppointmentFilter) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range t.st.appointments {
		if f.OperatorID != "" && a.OperatorID != f.OperatorID {
			continue
		}
		if f.ClientID != "" && a.ClientID != f.ClientID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if !f.From.IsZero() && !a.EndTime.After(f.From) {
			continue
		}
		if !f.To.IsZero() && !a.StartTime.Before(f.To) {
			continue
		}
		out = append(out, a)
	}
	sortByStart(out)
	return out, nil
}

func (t *tx) GetAppointment(_ context.Context, id string) (model.Appointment, error) {
	a, ok := t.st.appointments[id]
	if !ok {
		return model.Appointment{}, booking.ErrNotFound
	}
	return a, nil
}

func (t *tx) InsertAppointment(_ context.Context, a model.Appointment) (model.Appointment, error) {
	if err := t.writable(); err != nil {
		return model.Appointment{}, err
	}
	if _, exists := t.st.appointments[a.ID]; exists {
		return model.Appointment{}, fmt.Errorf("appointment %s already exists", a.ID)
	}
	if a.Status.Active() && t.overlapsActive(a) {
		return model.Appointment{}, booking.ErrSlotUnavailable
	}
	t.st.appointments[a.ID] = a
	return a, nil
}

func (t *tx) UpdateAppointmentStatus(_ context.Context, id string, expectedVersion int, status model.Status) (model.Appointment, error) {
	if err := t.writable(); err != nil {
		return model.Appointment{}, err
	}
	a, ok := t.st.appointments[id]
	if !ok {
		return model.Appointment{}, booking.ErrNotFound
	}
	if a.Version != expectedVersion {
		return model.Appointment{}, fmt.Errorf("%w: appointment %s changed concurrently", booking.ErrTransient, id)
	}
	if status.Active() && !a.Status.Active() {
		candidate := a
		candidate.Status = status
		if t.overlapsActive(candidate) {
			return model.Appointment{}, booking.ErrSlotUnavailable
		}
	}
	a.Status = status
	a.Version++
	a.UpdatedAt = t.now()
	t.st.appointments[id] = a
	return a, nil
}

func (t *tx) AppendEvent(_ context.Context, evt outbox.Event) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.events = append(t.st.events, evt)
	return nil
}

func (t *tx) overlapsActive(a model.Appointment) bool {
	for id, other := range t.st.appointments {
		if id == a.ID {
			continue
		}
		if other.OperatorID != a.OperatorID || !other.Status.Active() {
			continue
		}
		if availability.Overlaps(
			availability.Interval{Start: a.StartTime, End: a.EndTime},
			availability.Interval{Start: other.StartTime, End: other.EndTime},
		) {
			return true
		}
	}
	return false
}

func sortByStart(list []model.Appointment) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].StartTime.Equal(list[j].StartTime) {
			return list[i].ID < list[j].ID
		}
		return list[i].StartTime.Before(list[j].StartTime)
	})
}
