package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidWindow    = errors.New("invalid availability window")
	ErrInvalidException = errors.New("invalid exception day")
)

// MinutesPerDay bounds minute-of-day values; 1440 means end of day.
const MinutesPerDay = 24 * 60

// DateLayout is the calendar date format used on the wire and in cache keys.
const DateLayout = "2006-01-02"

// AvailabilityWindow is a weekly recurring block of working time.
type AvailabilityWindow struct {
	ID          string
	OperatorID  string
	DayOfWeek   time.Weekday
	StartMinute int
	EndMinute   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (w AvailabilityWindow) Validate() error {
	if w.OperatorID == "" {
		return fmt.Errorf("%w: operator id is required", ErrInvalidWindow)
	}
	if w.DayOfWeek < time.Sunday || w.DayOfWeek > time.Saturday {
		return fmt.Errorf("%w: day of week %d out of range", ErrInvalidWindow, w.DayOfWeek)
	}
	if w.StartMinute < 0 || w.EndMinute > MinutesPerDay {
		return fmt.Errorf("%w: times must fall within the day", ErrInvalidWindow)
	}
	if w.StartMinute >= w.EndMinute {
		return fmt.Errorf("%w: start must be before end", ErrInvalidWindow)
	}
	return nil
}

// ExceptionDay overrides the recurring windows for one calendar date.
// StartMinute and EndMinute are either both set or both nil.
type ExceptionDay struct {
	ID          string
	OperatorID  string
	Date        time.Time
	IsAvailable bool
	StartMinute *int
	EndMinute   *int
	Reason      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (e ExceptionDay) Validate() error {
	if e.OperatorID == "" {
		return fmt.Errorf("%w: operator id is required", ErrInvalidException)
	}
	if e.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidException)
	}
	if (e.StartMinute == nil) != (e.EndMinute == nil) {
		return fmt.Errorf("%w: start and end must be given together", ErrInvalidException)
	}
	if e.StartMinute == nil {
		return nil
	}
	if !e.IsAvailable {
		return fmt.Errorf("%w: a closed day takes no times", ErrInvalidException)
	}
	if *e.StartMinute < 0 || *e.EndMinute > MinutesPerDay {
		return fmt.Errorf("%w: times must fall within the day", ErrInvalidException)
	}
	if *e.StartMinute >= *e.EndMinute {
		return fmt.Errorf("%w: start must be before end", ErrInvalidException)
	}
	return nil
}

// HasTimes reports whether the exception narrows the day to explicit hours.
func (e ExceptionDay) HasTimes() bool {
	return e.StartMinute != nil && e.EndMinute != nil
}

// DateKey formats the calendar date of t in its own location.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// StartOfDay returns local midnight of t's calendar date in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// ParseDate reads a YYYY-MM-DD date as local midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, loc)
}

// ParseClock reads "HH:MM" into minutes after midnight. "24:00" is accepted
// as the end of the day.
func ParseClock(s string) (int, error) {
	if s == "24:00" {
		return MinutesPerDay, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
