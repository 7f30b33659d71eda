package availability

import (
	"time"

	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/model"
)

// HasConflict reports whether [start,end) overlaps an active appointment of
// operatorID. Cancelled appointments and other operators never conflict.
func HasConflict(operatorID string, start, end time.Time, existing []model.Appointment) bool {
	_, found := FirstConflict(operatorID, start, end, existing)
	return found
}

// FirstConflict is HasConflict returning the blocking appointment.
func FirstConflict(operatorID string, start, end time.Time, existing []model.Appointment) (model.Appointment, bool) {
	candidate := Interval{Start: start, End: end}
	for _, a := range existing {
		if a.OperatorID != operatorID || !a.Status.Active() {
			continue
		}
		if Overlaps(candidate, Interval{Start: a.StartTime, End: a.EndTime}) {
			return a, true
		}
	}
	return model.Appointment{}, false
}
