package model

import (
	"errors"
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

func TestWindowValidate(t *testing.T) {
	ok := AvailabilityWindow{OperatorID: "op-1", DayOfWeek: time.Monday, StartMinute: 9 * 60, EndMinute: 17 * 60}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid window, got %v", err)
	}

	cases := map[string]AvailabilityWindow{
		"start equals end": {OperatorID: "op-1", DayOfWeek: time.Monday, StartMinute: 600, EndMinute: 600},
		"start after end":  {OperatorID: "op-1", DayOfWeek: time.Monday, StartMinute: 700, EndMinute: 600},
		"past midnight":    {OperatorID: "op-1", DayOfWeek: time.Monday, StartMinute: 600, EndMinute: MinutesPerDay + 1},
		"bad weekday":      {OperatorID: "op-1", DayOfWeek: 7, StartMinute: 0, EndMinute: 60},
		"no operator":      {DayOfWeek: time.Monday, StartMinute: 0, EndMinute: 60},
	}
	for name, w := range cases {
		if err := w.Validate(); !errors.Is(err, ErrInvalidWindow) {
			t.Fatalf("%s: expected ErrInvalidWindow, got %v", name, err)
		}
	}
}

func TestExceptionValidate(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	valid := []ExceptionDay{
		{OperatorID: "op-1", Date: day, IsAvailable: false},
		{OperatorID: "op-1", Date: day, IsAvailable: true},
		{OperatorID: "op-1", Date: day, IsAvailable: true, StartMinute: intPtr(600), EndMinute: intPtr(720)},
	}
	for i, e := range valid {
		if err := e.Validate(); err != nil {
			t.Fatalf("case %d: expected valid, got %v", i, err)
		}
	}

	invalid := []ExceptionDay{
		{OperatorID: "op-1", Date: day, IsAvailable: true, StartMinute: intPtr(720), EndMinute: intPtr(600)},
		{OperatorID: "op-1", Date: day, IsAvailable: true, StartMinute: intPtr(600)},
		{OperatorID: "op-1", Date: day, IsAvailable: false, StartMinute: intPtr(600), EndMinute: intPtr(720)},
		{OperatorID: "op-1", IsAvailable: true},
	}
	for i, e := range invalid {
		if err := e.Validate(); !errors.Is(err, ErrInvalidException) {
			t.Fatalf("case %d: expected ErrInvalidException, got %v", i, err)
		}
	}
}

func TestParseRoleAndStatus(t *testing.T) {
	if r, err := ParseRole("Operator"); err != nil || r != RoleOperator {
		t.Fatalf("expected operator, got %v (%v)", r, err)
	}
	if _, err := ParseRole("admin"); err == nil {
		t.Fatal("expected unknown role error")
	}
	if Role(0).Valid() {
		t.Fatal("zero role must be invalid")
	}
	if s, err := ParseStatus(" confirmed "); err != nil || s != StatusConfirmed {
		t.Fatalf("expected confirmed, got %v (%v)", s, err)
	}
	if StatusCancelled.Active() || !StatusCompleted.Active() {
		t.Fatal("only cancelled appointments are inactive")
	}
	if !StatusCompleted.Terminal() || StatusConfirmed.Terminal() {
		t.Fatal("terminal states are cancelled and completed")
	}
}

func TestClockHelpers(t *testing.T) {
	m, err := ParseClock("09:30")
	if err != nil || m != 570 {
		t.Fatalf("expected 570, got %d (%v)", m, err)
	}
	if m, _ := ParseClock("24:00"); m != MinutesPerDay {
		t.Fatalf("expected end of day, got %d", m)
	}
	if _, err := ParseClock("9am"); err == nil {
		t.Fatal("expected parse error")
	}
	if FormatClock(570) != "09:30" {
		t.Fatalf("unexpected format %q", FormatClock(570))
	}

	loc := time.FixedZone("UTC+3", 3*3600)
	d, err := ParseDate("2026-03-02", loc)
	if err != nil {
		t.Fatal(err)
	}
	late := time.Date(2026, 3, 2, 22, 30, 0, 0, time.UTC) // 01:30 next day in loc
	if got := StartOfDay(late, loc); !got.Equal(d.AddDate(0, 0, 1)) {
		t.Fatalf("expected next local day, got %v", got)
	}
	if DateKey(d) != "2026-03-02" {
		t.Fatalf("unexpected key %q", DateKey(d))
	}
}
