package booking

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/outbox"
)

// Store runs units of work against persistent state. Update must be
// serializable with respect to other Updates: two concurrent bookings of the
// same operator can never both observe a free slot and both insert.
type Store interface {
	View(ctx context.Context, fn func(Tx) error) error
	Update(ctx context.Context, fn func(Tx) error) error
}

// AppointmentFilter narrows ListAppointments. Empty fields match everything.
type AppointmentFilter struct {
	OperatorID string
	ClientID   string
	From       time.Time
	To         time.Time
	Status     model.Status
}

// Tx is the view of the store inside one unit of work. Lookups by id return
// ErrNotFound when nothing matches.
type Tx interface {
	ListWindows(ctx context.Context, operatorID string) ([]model.AvailabilityWindow, error)
	GetWindow(ctx context.Context, operatorID, id string) (model.AvailabilityWindow, error)
	InsertWindow(ctx context.Context, w model.AvailabilityWindow) error
	UpdateWindow(ctx context.Context, w model.AvailabilityWindow) error
	DeleteWindow(ctx context.Context, operatorID, id string) error

	// ListExceptions returns exceptions dated within [from, to).
	ListExceptions(ctx context.Context, operatorID string, from, to time.Time) ([]model.ExceptionDay, error)
	GetException(ctx context.Context, operatorID string, date time.Time) (model.ExceptionDay, error)
	// UpsertException replaces any exception on the same operator and date.
	UpsertException(ctx context.Context, e model.ExceptionDay) (model.ExceptionDay, error)
	DeleteException(ctx context.Context, operatorID string, date time.Time) error

	// ListActiveAppointments returns non-cancelled appointments of the
	// operator overlapping [from, to).
	ListActiveAppointments(ctx context.Context, operatorID string, from, to time.Time) ([]model.Appointment, error)
	ListAppointments(ctx context.Context, f AppointmentFilter) ([]model.Appointment, error)
	// GetAppointment locks the row for the rest of an Update.
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	// InsertAppointment returns ErrSlotUnavailable when the store's own
	// overlap guard rejects the row.
	InsertAppointment(ctx context.Context, a model.Appointment) (model.Appointment, error)
	// UpdateAppointmentStatus applies the change only if the stored version
	// still equals expectedVersion, returning ErrTransient otherwise.
	UpdateAppointmentStatus(ctx context.Context, id string, expectedVersion int, status model.Status) (model.Appointment, error)

	AppendEvent(ctx context.Context, evt outbox.Event) error
}

// SlotCache stores generated slot lists. Entries are scoped by a
// per-operator version so a bump invalidates everything for that operator.
type SlotCache interface {
	Version(ctx context.Context, operatorID string) (int64, error)
	Get(ctx context.Context, operatorID string, version int64, date string, role model.Role) ([]time.Time, bool, error)
	Set(ctx context.Context, operatorID string, version int64, date string, role model.Role, slots []time.Time) error
	Invalidate(ctx context.Context, operatorID string) error
}
