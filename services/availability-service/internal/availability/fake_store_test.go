package availability

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/agendly/agendly/services/availability-service/internal/model"
)

// Monday 2 March 2026.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu        sync.Mutex
	durations map[string]int
	timezone  string
	hours     map[time.Weekday]model.DayHours
	schedules map[string]map[time.Weekday][]model.WorkInterval
	appts     []model.Appointment
	blocks    []model.ScheduleBlock
	staff     []model.Staff
	failOn    map[string]error
	calls     map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		durations: map[string]int{"svc-60": 60, "svc-30": 30},
		timezone:  "UTC",
		hours:     map[time.Weekday]model.DayHours{},
		schedules: map[string]map[time.Weekday][]model.WorkInterval{},
		failOn:    map[string]error{},
		calls:     map[string]int{},
	}
}

func (f *fakeStore) hit(op, staffID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if err, ok := f.failOn[op]; ok {
		return err
	}
	if err, ok := f.failOn[op+":"+staffID]; ok {
		return err
	}
	return nil
}

func (f *fakeStore) setSchedule(staffID string, weekday time.Weekday, intervals ...model.WorkInterval) {
	if f.schedules[staffID] == nil {
		f.schedules[staffID] = map[time.Weekday][]model.WorkInterval{}
	}
	f.schedules[staffID][weekday] = intervals
}

func (f *fakeStore) ServiceDuration(_ context.Context, _, serviceID string) (int, error) {
	if err := f.hit("ServiceDuration", ""); err != nil {
		return 0, err
	}
	d, ok := f.durations[serviceID]
	if !ok {
		return 0, ErrNotFound
	}
	return d, nil
}

func (f *fakeStore) BusinessTimezone(context.Context, string) (string, error) {
	if err := f.hit("BusinessTimezone", ""); err != nil {
		return "", err
	}
	return f.timezone, nil
}

func (f *fakeStore) BusinessHoursForDay(_ context.Context, _ string, weekday time.Weekday) (model.DayHours, error) {
	if err := f.hit("BusinessHoursForDay", ""); err != nil {
		return model.DayHours{}, err
	}
	if h, ok := f.hours[weekday]; ok {
		return h, nil
	}
	return model.DayHours{Weekday: weekday, Open: hm(9, 0), Close: hm(18, 0)}, nil
}

func (f *fakeStore) StaffScheduleForDay(_ context.Context, _, staffID string, weekday time.Weekday) ([]model.WorkInterval, error) {
	if err := f.hit("StaffScheduleForDay", staffID); err != nil {
		return nil, err
	}
	return f.schedules[staffID][weekday], nil
}

func (f *fakeStore) AppointmentsOverlapping(_ context.Context, _, staffID string, from, to time.Time, statuses []model.AppointmentStatus) ([]model.Appointment, error) {
	if err := f.hit("AppointmentsOverlapping", staffID); err != nil {
		return nil, err
	}
	var out []model.Appointment
	for _, a := range f.appts {
		if a.StaffID != staffID || a.DeletedAt != nil {
			continue
		}
		if !hasStatus(statuses, a.Status) {
			continue
		}
		if a.StartTime.Before(to) && from.Before(a.EndTime) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) BlocksOverlapping(_ context.Context, _, staffID string, from, to time.Time) ([]model.ScheduleBlock, error) {
	if err := f.hit("BlocksOverlapping", staffID); err != nil {
		return nil, err
	}
	var out []model.ScheduleBlock
	for _, b := range f.blocks {
		if !b.AppliesToAll && b.StaffID != staffID {
			continue
		}
		if b.StartTime.Before(to) && from.Before(b.EndTime) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) ActiveStaff(context.Context, string) ([]model.Staff, error) {
	if err := f.hit("ActiveStaff", ""); err != nil {
		return nil, err
	}
	return f.staff, nil
}

func hasStatus(statuses []model.AppointmentStatus, s model.AppointmentStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

func hm(h, m int) model.Minute { return model.Minute(h*60 + m) }

func at(day time.Time, h, m int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location())
}

func newTestEngine(t *testing.T, store Store, now time.Time) *Engine {
	t.Helper()
	e, err := NewEngine(store, ClockFunc(func() time.Time { return now }), slog.New(slog.NewTextHandler(io.Discard, nil)), Config{
		DefaultTimezone: "UTC",
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}
