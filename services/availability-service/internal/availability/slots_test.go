package availability

import (
	"testing"
	"time"

	"github.com/agendly/agendly/services/availability-service/internal/model"
)

func TestWalkWindow_Basic(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	window := Interval{Start: day.Add(9 * time.Hour), End: day.Add(10 * time.Hour)}
	busy := []Interval{
		{Start: day.Add(9*time.Hour + 15*time.Minute), End: day.Add(9*time.Hour + 45*time.Minute)},
	}

	slots := WalkWindow(window, 15*time.Minute, 15*time.Minute, busy, day)
	if len(slots) != 4 {
		t.Fatalf("expected 4 slots, got %d", len(slots))
	}
	want := []bool{true, false, false, true}
	for i, s := range slots {
		if s.Available != want[i] {
			t.Fatalf("slot %s: expected available=%v", s.Time, want[i])
		}
	}
	if slots[3].Time != "09:45" || slots[3].Datetime != "2026-01-28T09:45:00Z" {
		t.Fatalf("unexpected last slot %+v", slots[3])
	}
}

func TestWalkWindow_MarksPastUnavailable(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	window := Interval{Start: day.Add(9 * time.Hour), End: day.Add(10 * time.Hour)}

	// Exactly 09:30 is not strictly in the future.
	now := day.Add(9*time.Hour + 30*time.Minute)
	slots := WalkWindow(window, 15*time.Minute, 15*time.Minute, nil, now)
	if len(slots) != 4 {
		t.Fatalf("expected 4 slots, got %d", len(slots))
	}
	for _, s := range slots[:3] {
		if s.Available {
			t.Fatalf("slot %s should be unavailable", s.Time)
		}
	}
	if !slots[3].Available {
		t.Fatal("09:45 should be available")
	}
}

func TestWalkWindow_NoPartialSlots(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	window := Interval{Start: day.Add(9 * time.Hour), End: day.Add(9*time.Hour + 50*time.Minute)}

	slots := WalkWindow(window, time.Hour, 15*time.Minute, nil, day)
	if len(slots) != 0 {
		t.Fatalf("expected no slots when duration exceeds window, got %d", len(slots))
	}
	if WalkWindow(window, 0, 15*time.Minute, nil, day) != nil {
		t.Fatal("expected nil for zero duration")
	}
}

func TestInterval_HalfOpen(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	a := Interval{Start: day.Add(9 * time.Hour), End: day.Add(10 * time.Hour)}
	b := Interval{Start: day.Add(10 * time.Hour), End: day.Add(11 * time.Hour)}
	if a.Overlaps(b) || b.Overlaps(a) {
		t.Fatal("touching intervals must not overlap")
	}
	c := Interval{Start: day.Add(9*time.Hour + 59*time.Minute), End: day.Add(11 * time.Hour)}
	if !a.Overlaps(c) {
		t.Fatal("crossing intervals must overlap")
	}
	if !a.Contains(a) || a.Contains(c) {
		t.Fatal("unexpected Contains result")
	}
}

func TestMergeSlots_AvailableWins(t *testing.T) {
	a := []model.TimeSlot{
		{Time: "09:00", Available: false},
		{Time: "09:15", Available: true},
	}
	b := []model.TimeSlot{
		{Time: "09:15", Available: false},
		{Time: "09:00", Available: true},
		{Time: "08:45", Available: false},
	}
	got := MergeSlots(a, b)
	if len(got) != 3 {
		t.Fatalf("expected 3 merged slots, got %d", len(got))
	}
	if got[0].Time != "08:45" || got[1].Time != "09:00" || got[2].Time != "09:15" {
		t.Fatalf("expected ascending order, got %+v", got)
	}
	if got[0].Available || !got[1].Available || !got[2].Available {
		t.Fatalf("unexpected availability %+v", got)
	}
	if empty := MergeSlots(); empty == nil || len(empty) != 0 {
		t.Fatal("expected empty non-nil slice")
	}
}

func TestBusyIntervals_FiltersRows(t *testing.T) {
	now := time.Now()
	start := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	appts := []model.Appointment{
		{StaffID: "s1", StartTime: start, EndTime: start.Add(time.Hour), Status: model.AppointmentConfirmed},
		{StaffID: "s1", StartTime: start, EndTime: start.Add(time.Hour), Status: model.AppointmentCancelled},
		{StaffID: "s1", StartTime: start, EndTime: start.Add(time.Hour), Status: model.AppointmentPending, DeletedAt: &now},
	}
	blocks := []model.ScheduleBlock{
		{StaffID: "s1", StartTime: start, EndTime: start.Add(time.Hour)},
		{StaffID: "s2", StartTime: start, EndTime: start.Add(time.Hour)},
		{AppliesToAll: true, StartTime: start, EndTime: start.Add(time.Hour)},
	}
	if got := busyIntervals("s1", appts, blocks); len(got) != 3 {
		t.Fatalf("expected 3 busy intervals, got %d", len(got))
	}
}
