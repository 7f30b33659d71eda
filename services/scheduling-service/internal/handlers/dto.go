package handlers

import (
	"time"

	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/model"
)

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type slotsResponse struct {
	OperatorID  string     `json:"operator_id"`
	Date        string     `json:"date"`
	SlotMinutes int        `json:"slot_minutes"`
	Slots       []slotItem `json:"slots"`
}

type createAppointmentRequest struct {
	OperatorID string `json:"operator_id"`
	StartTime  string `json:"start_time"`
	Notes      string `json:"notes"`
	// Operators only.
	ClientID string `json:"client_id"`
	Status   string `json:"status"`
}

type changeStatusRequest struct {
	Status string `json:"status"`
}

type appointmentItem struct {
	AppointmentID string `json:"appointment_id"`
	OperatorID    string `json:"operator_id"`
	ClientID      string `json:"client_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	Notes         string `json:"notes,omitempty"`
	Version       int    `json:"version"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

func toAppointmentItem(a model.Appointment) appointmentItem {
	return appointmentItem{
		AppointmentID: a.ID,
		OperatorID:    a.OperatorID,
		ClientID:      a.ClientID,
		StartTime:     a.StartTime.Format(time.RFC3339),
		EndTime:       a.EndTime.Format(time.RFC3339),
		Status:        string(a.Status),
		Notes:         a.Notes,
		Version:       a.Version,
		CreatedAt:     a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type windowRequest struct {
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type windowItem struct {
	WindowID   string `json:"window_id"`
	OperatorID string `json:"operator_id"`
	DayOfWeek  int    `json:"day_of_week"`
	Weekday    string `json:"weekday"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
}

func toWindowItem(w model.AvailabilityWindow) windowItem {
	return windowItem{
		WindowID:   w.ID,
		OperatorID: w.OperatorID,
		DayOfWeek:  int(w.DayOfWeek),
		Weekday:    w.DayOfWeek.String(),
		StartTime:  model.FormatClock(w.StartMinute),
		EndTime:    model.FormatClock(w.EndMinute),
	}
}

type exceptionRequest struct {
	IsAvailable bool   `json:"is_available"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Reason      string `json:"reason"`
}

type exceptionItem struct {
	OperatorID  string `json:"operator_id"`
	Date        string `json:"date"`
	IsAvailable bool   `json:"is_available"`
	StartTime   string `json:"start_time,omitempty"`
	EndTime     string `json:"end_time,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

func toExceptionItem(e model.ExceptionDay) exceptionItem {
	item := exceptionItem{
		OperatorID:  e.OperatorID,
		Date:        model.DateKey(e.Date),
		IsAvailable: e.IsAvailable,
		Reason:      e.Reason,
	}
	if e.HasTimes() {
		item.StartTime = model.FormatClock(*e.StartMinute)
		item.EndTime = model.FormatClock(*e.EndMinute)
	}
	return item
}
