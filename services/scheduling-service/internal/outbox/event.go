package outbox

import (
	"encoding/json"
	"time"

	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/model"
)

// Event types published for appointment changes. The Kafka topic name equals
// the event type.
const (
	TypeAppointmentCreated       = "scheduling.appointment.created.v1"
	TypeAppointmentStatusChanged = "scheduling.appointment.status_changed.v1"

	AggregateAppointment = "appointment"
)

// Event is the domain event envelope written to the outbox table.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type appointmentPayload struct {
	AppointmentID  string    `json:"appointment_id"`
	OperatorID     string    `json:"operator_id"`
	ClientID       string    `json:"client_id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	ChangedBy      string    `json:"changed_by,omitempty"`
	Version        int       `json:"version"`
	OccurredAt     time.Time `json:"occurred_at"`
}

func AppointmentCreated(a model.Appointment, by model.Role, at time.Time) (Event, error) {
	return appointmentEvent(TypeAppointmentCreated, a, "", by, at)
}

func AppointmentStatusChanged(a model.Appointment, previous model.Status, by model.Role, at time.Time) (Event, error) {
	return appointmentEvent(TypeAppointmentStatusChanged, a, previous, by, at)
}

func appointmentEvent(eventType string, a model.Appointment, previous model.Status, by model.Role, at time.Time) (Event, error) {
	payload, err := json.Marshal(appointmentPayload{
		AppointmentID:  a.ID,
		OperatorID:     a.OperatorID,
		ClientID:       a.ClientID,
		StartTime:      a.StartTime.UTC(),
		EndTime:        a.EndTime.UTC(),
		Status:         string(a.Status),
		PreviousStatus: string(previous),
		ChangedBy:      by.String(),
		Version:        a.Version,
		OccurredAt:     at.UTC(),
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: AggregateAppointment,
		AggregateID:   a.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}
