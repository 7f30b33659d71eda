package availability

import (
	"sort"
	"time"

	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/model"
)

// DefaultSlotDuration is the booking length when none is configured.
const DefaultSlotDuration = 30 * time.Minute

// SlotOptions tunes GenerateSlots.
type SlotOptions struct {
	Duration time.Duration
	// ExcludePast drops slots starting before Now.
	ExcludePast bool
	Now         time.Time
}

// GenerateSlots walks each interval in Duration steps and returns the start
// of every slot that fits entirely inside it and does not conflict with an
// active appointment of operatorID. The result is sorted and unique by start
// time.
func GenerateSlots(operatorID string, intervals []Interval, busy []model.Appointment, opts SlotOptions) []time.Time {
	duration := opts.Duration
	if duration <= 0 {
		duration = DefaultSlotDuration
	}

	seen := map[int64]struct{}{}
	var slots []time.Time
	for _, iv := range intervals {
		if !iv.End.After(iv.Start) {
			continue
		}
		for t := iv.Start; !t.Add(duration).After(iv.End); t = t.Add(duration) {
			if opts.ExcludePast && t.Before(opts.Now) {
				continue
			}
			if HasConflict(operatorID, t, t.Add(duration), busy) {
				continue
			}
			key := t.UnixNano()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			slots = append(slots, t)
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })
	return slots
}

// IsSlotStart reports whether a booking of duration starting at start lines
// up with the slot grid of one of the intervals.
func IsSlotStart(intervals []Interval, start time.Time, duration time.Duration) bool {
	if duration <= 0 {
		duration = DefaultSlotDuration
	}
	candidate := Interval{Start: start, End: start.Add(duration)}
	for _, iv := range intervals {
		if !iv.Covers(candidate) {
			continue
		}
		if start.Sub(iv.Start)%duration == 0 {
			return true
		}
	}
	return false
}
