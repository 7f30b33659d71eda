package availability

import (
	"sort"
	"time"

	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/model"
)

// ResolveDay returns the effective availability of operatorID on day, which
// must be local midnight in the operator's location.
//
// An exception for the date wins outright: closed yields nothing, explicit
// hours yield exactly that interval and an open exception without hours
// yields the whole day. Otherwise the recurring windows for the weekday are
// returned in start order. Overlapping windows are not merged.
func ResolveDay(operatorID string, day time.Time, windows []model.AvailabilityWindow, exceptions []model.ExceptionDay) []Interval {
	dayKey := model.DateKey(day)
	for _, e := range exceptions {
		if e.OperatorID != operatorID || model.DateKey(e.Date) != dayKey {
			continue
		}
		if !e.IsAvailable {
			return nil
		}
		if e.HasTimes() {
			return []Interval{minutesInterval(day, *e.StartMinute, *e.EndMinute)}
		}
		return []Interval{{Start: day, End: day.AddDate(0, 0, 1)}}
	}

	var out []Interval
	for _, w := range windows {
		if w.OperatorID != operatorID || w.DayOfWeek != day.Weekday() {
			continue
		}
		if w.StartMinute >= w.EndMinute {
			continue
		}
		out = append(out, minutesInterval(day, w.StartMinute, w.EndMinute))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].End.Before(out[j].End)
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

func minutesInterval(day time.Time, startMinute, endMinute int) Interval {
	return Interval{Start: wallClock(day, startMinute), End: wallClock(day, endMinute)}
}

// wallClock returns clock time minute on day's calendar date in day's
// location. Minute 1440 is the next local midnight.
func wallClock(day time.Time, minute int) time.Time {
	if minute >= model.MinutesPerDay {
		return day.AddDate(0, 0, 1)
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, minute/60, minute%60, 0, 0, day.Location())
}
