package availability

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/model"
)

// 2026-03-02 is a Monday.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return monday.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func intPtr(v int) *int { return &v }

func appt(op string, start, end time.Time, status model.Status) model.Appointment {
	return model.Appointment{ID: "a-" + start.Format("1504"), OperatorID: op, ClientID: "c-1", StartTime: start, EndTime: end, Status: status}
}

func TestOverlapsHalfOpen(t *testing.T) {
	a := Interval{Start: at(9, 0), End: at(9, 30)}
	b := Interval{Start: at(9, 30), End: at(10, 0)}
	if Overlaps(a, b) || Overlaps(b, a) {
		t.Fatal("adjacent intervals must not overlap")
	}
	c := Interval{Start: at(9, 29), End: at(9, 45)}
	if !Overlaps(a, c) || !Overlaps(c, a) {
		t.Fatal("expected overlap")
	}
	if !a.Contains(at(9, 0)) || a.Contains(at(9, 30)) {
		t.Fatal("start is inside, end is outside")
	}
}

func TestResolveDayExceptionPrecedence(t *testing.T) {
	windows := []model.AvailabilityWindow{
		{OperatorID: "op-1", DayOfWeek: time.Monday, StartMinute: 9 * 60, EndMinute: 17 * 60},
	}

	closed := []model.ExceptionDay{{OperatorID: "op-1", Date: monday, IsAvailable: false}}
	if got := ResolveDay("op-1", monday, windows, closed); len(got) != 0 {
		t.Fatalf("closed exception must yield nothing, got %v", got)
	}

	narrowed := []model.ExceptionDay{{OperatorID: "op-1", Date: monday, IsAvailable: true, StartMinute: intPtr(10 * 60), EndMinute: intPtr(12 * 60)}}
	got := ResolveDay("op-1", monday, windows, narrowed)
	if len(got) != 1 || !got[0].Start.Equal(at(10, 0)) || !got[0].End.Equal(at(12, 0)) {
		t.Fatalf("expected [10:00,12:00), got %v", got)
	}

	fullDay := []model.ExceptionDay{{OperatorID: "op-1", Date: monday, IsAvailable: true}}
	got = ResolveDay("op-1", monday, nil, fullDay)
	if len(got) != 1 || !got[0].Start.Equal(monday) || !got[0].End.Equal(monday.AddDate(0, 0, 1)) {
		t.Fatalf("expected whole day, got %v", got)
	}

	other := []model.ExceptionDay{{OperatorID: "op-2", Date: monday, IsAvailable: false}}
	if got := ResolveDay("op-1", monday, windows, other); len(got) != 1 {
		t.Fatalf("another operator's exception must not apply, got %v", got)
	}
}

func TestResolveDayWindowsSortedNotMerged(t *testing.T) {
	windows := []model.AvailabilityWindow{
		{OperatorID: "op-1", DayOfWeek: time.Monday, StartMinute: 14 * 60, EndMinute: 16 * 60},
		{OperatorID: "op-1", DayOfWeek: time.Monday, StartMinute: 9 * 60, EndMinute: 11 * 60},
		{OperatorID: "op-1", DayOfWeek: time.Monday, StartMinute: 10 * 60, EndMinute: 12 * 60},
		{OperatorID: "op-1", DayOfWeek: time.Tuesday, StartMinute: 9 * 60, EndMinute: 17 * 60},
	}
	got := ResolveDay("op-1", monday, windows, nil)
	if len(got) != 3 {
		t.Fatalf("expected 3 intervals, got %d", len(got))
	}
	if !got[0].Start.Equal(at(9, 0)) || !got[1].Start.Equal(at(10, 0)) || !got[2].Start.Equal(at(14, 0)) {
		t.Fatalf("expected start order 09:00, 10:00, 14:00, got %v", got)
	}
}

func TestGenerateSlotsBoundary(t *testing.T) {
	// 08:00-08:45 fits one 30-minute slot; a partial 08:30 slot is dropped.
	slots := GenerateSlots("op-1", []Interval{{Start: at(8, 0), End: at(8, 45)}}, nil, SlotOptions{Duration: 30 * time.Minute})
	if len(slots) != 1 || !slots[0].Equal(at(8, 0)) {
		t.Fatalf("expected only 08:00, got %v", slots)
	}
}

func TestGenerateSlotsExcludesPast(t *testing.T) {
	iv := []Interval{{Start: at(8, 0), End: at(10, 0)}}
	now := at(9, 15)

	slots := GenerateSlots("op-1", iv, nil, SlotOptions{Duration: 30 * time.Minute, ExcludePast: true, Now: now})
	if len(slots) != 1 || !slots[0].Equal(at(9, 30)) {
		t.Fatalf("expected only 09:30, got %v", slots)
	}

	all := GenerateSlots("op-1", iv, nil, SlotOptions{Duration: 30 * time.Minute, Now: now})
	if len(all) != 4 {
		t.Fatalf("operator view keeps past slots, expected 4 got %d", len(all))
	}
}

func TestGenerateSlotsSkipsActiveAppointments(t *testing.T) {
	iv := []Interval{{Start: at(9, 0), End: at(11, 0)}}
	busy := []model.Appointment{
		appt("op-1", at(9, 30), at(10, 0), model.StatusConfirmed),
		appt("op-1", at(10, 0), at(10, 30), model.StatusCancelled),
		appt("op-1", at(10, 40), at(10, 50), model.StatusPending),
	}
	slots := GenerateSlots("op-1", iv, busy, SlotOptions{})
	want := []time.Time{at(9, 0), at(10, 0)}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %v", len(want), slots)
	}
	for i := range want {
		if !slots[i].Equal(want[i]) {
			t.Fatalf("slot %d: expected %s, got %s", i, want[i].Format("15:04"), slots[i].Format("15:04"))
		}
	}
}

func TestGenerateSlotsDedupesOverlappingWindows(t *testing.T) {
	iv := []Interval{
		{Start: at(9, 0), End: at(10, 0)},
		{Start: at(9, 30), End: at(10, 30)},
	}
	slots := GenerateSlots("op-1", iv, nil, SlotOptions{Duration: 30 * time.Minute})
	want := []time.Time{at(9, 0), at(9, 30), at(10, 0)}
	if len(slots) != len(want) {
		t.Fatalf("expected %d unique slots, got %v", len(want), slots)
	}
	for i := range want {
		if !slots[i].Equal(want[i]) {
			t.Fatalf("slot %d: expected %s, got %s", i, want[i].Format("15:04"), slots[i].Format("15:04"))
		}
	}
}

func TestIsSlotStart(t *testing.T) {
	iv := []Interval{{Start: at(9, 0), End: at(10, 0)}}
	if !IsSlotStart(iv, at(9, 30), 30*time.Minute) {
		t.Fatal("09:30 is on the grid")
	}
	if IsSlotStart(iv, at(9, 10), 30*time.Minute) {
		t.Fatal("09:10 is off the grid")
	}
	if IsSlotStart(iv, at(9, 45), 30*time.Minute) {
		t.Fatal("09:45 would run past the window")
	}
}

func TestConflicts(t *testing.T) {
	existing := []model.Appointment{
		appt("op-1", at(9, 0), at(9, 30), model.StatusCancelled),
		appt("op-2", at(9, 0), at(9, 30), model.StatusConfirmed),
		appt("op-1", at(9, 30), at(10, 0), model.StatusPending),
	}
	if HasConflict("op-1", at(9, 0), at(9, 30), existing) {
		t.Fatal("cancelled and foreign appointments never conflict")
	}
	blocking, ok := FirstConflict("op-1", at(9, 15), at(9, 45), existing)
	if !ok || !blocking.StartTime.Equal(at(9, 30)) {
		t.Fatalf("expected the pending 09:30 appointment to block, got %+v", blocking)
	}
	if HasConflict("op-1", at(10, 0), at(10, 30), existing) {
		t.Fatal("adjacent appointment must not conflict")
	}
}

func TestResolveDayKeepsWallClockOnDSTDays(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	windows := []model.AvailabilityWindow{
		{OperatorID: "op-1", DayOfWeek: time.Sunday, StartMinute: 9 * 60, EndMinute: 10 * 60},
	}
	for _, date := range []string{"2026-03-08", "2026-11-01"} {
		day, err := model.ParseDate(date, ny)
		if err != nil {
			t.Fatal(err)
		}
		got := ResolveDay("op-1", day, windows, nil)
		if len(got) != 1 {
			t.Fatalf("%s: expected one interval, got %v", date, got)
		}
		if got[0].Start.Hour() != 9 || got[0].End.Hour() != 10 {
			t.Fatalf("%s: expected 09:00-10:00 local, got %s-%s", date, got[0].Start.Format("15:04 MST"), got[0].End.Format("15:04 MST"))
		}
		if !IsSlotStart(got, time.Date(day.Year(), day.Month(), day.Day(), 9, 30, 0, 0, ny), 30*time.Minute) {
			t.Fatalf("%s: 09:30 local must be bookable", date)
		}
		if IsSlotStart(got, time.Date(day.Year(), day.Month(), day.Day(), 10, 0, 0, 0, ny), 30*time.Minute) {
			t.Fatalf("%s: 10:00 local is outside the window", date)
		}

		narrowed := []model.ExceptionDay{{OperatorID: "op-1", Date: day, IsAvailable: true, StartMinute: intPtr(10 * 60), EndMinute: intPtr(12 * 60)}}
		got = ResolveDay("op-1", day, windows, narrowed)
		if len(got) != 1 || got[0].Start.Hour() != 10 || got[0].End.Hour() != 12 {
			t.Fatalf("%s: expected exception 10:00-12:00 local, got %v", date, got)
		}
	}

	spring, _ := model.ParseDate("2026-03-08", ny)
	allDay := []model.AvailabilityWindow{{OperatorID: "op-1", DayOfWeek: time.Sunday, StartMinute: 0, EndMinute: model.MinutesPerDay}}
	if got := ResolveDay("op-1", spring, allDay, nil); got[0].Duration() != 23*time.Hour {
		t.Fatalf("spring-forward day lasts 23h, got %v", got[0].Duration())
	}
	fall, _ := model.ParseDate("2026-11-01", ny)
	if got := ResolveDay("op-1", fall, allDay, nil); got[0].Duration() != 25*time.Hour {
		t.Fatalf("fall-back day lasts 25h, got %v", got[0].Duration())
	}
}

func TestGenerateSlotsHidesSlotThatAlreadyStarted(t *testing.T) {
	// At 09:15 the 09:00-09:30 slot has not ended yet but has started, so a
	// client must not be offered it.
	iv := []Interval{{Start: at(9, 0), End: at(10, 0)}}
	slots := GenerateSlots("op-1", iv, nil, SlotOptions{Duration: 30 * time.Minute, ExcludePast: true, Now: at(9, 15)})
	for _, s := range slots {
		if s.Equal(at(9, 0)) {
			t.Fatal("slot starting before now must be hidden even though it ends after now")
		}
	}
	if len(slots) != 1 || !slots[0].Equal(at(9, 30)) {
		t.Fatalf("expected only 09:30, got %v", slots)
	}

	exact := GenerateSlots("op-1", iv, nil, SlotOptions{Duration: 30 * time.Minute, ExcludePast: true, Now: at(9, 30)})
	if len(exact) != 1 || !exact[0].Equal(at(9, 30)) {
		t.Fatalf("slot starting exactly now stays bookable, got %v", exact)
	}
}

func TestGenerateSlotsIgnoresOtherOperators(t *testing.T) {
	iv := []Interval{{Start: at(9, 0), End: at(10, 0)}}
	busy := []model.Appointment{
		appt("op-2", at(9, 0), at(9, 30), model.StatusConfirmed),
		appt("op-1", at(9, 30), at(10, 0), model.StatusPending),
	}
	slots := GenerateSlots("op-1", iv, busy, SlotOptions{Duration: 30 * time.Minute})
	if len(slots) != 1 || !slots[0].Equal(at(9, 0)) {
		t.Fatalf("expected only 09:00, got %v", slots)
	}
}
