package availability

import (
	"context"
	"errors"
	"time"

	"github.com/agendly/agendly/services/availability-service/internal/model"
)

var (
	// ErrNotFound is returned by stores when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput marks caller mistakes (bad date, bad instant, missing ids).
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict is returned by writers when an appointment insert collides with another booking.
	ErrConflict = errors.New("conflict")
)

// NotFoundError names the entity that could not be resolved.
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string { return e.Entity + " not found" }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Store is the read side the engine depends on. Every call is an independent round-trip;
// nothing is cached between calls.
type Store interface {
	// ServiceDuration returns the service length in minutes.
	ServiceDuration(ctx context.Context, businessID, serviceID string) (int, error)
	// BusinessTimezone returns the IANA zone of the business, or "" when unset.
	BusinessTimezone(ctx context.Context, businessID string) (string, error)
	// BusinessHoursForDay resolves default hours against per-weekday overrides.
	BusinessHoursForDay(ctx context.Context, businessID string, weekday time.Weekday) (model.DayHours, error)
	// StaffScheduleForDay returns the staff member's intervals for the weekday; empty means not working.
	StaffScheduleForDay(ctx context.Context, businessID, staffID string, weekday time.Weekday) ([]model.WorkInterval, error)
	// AppointmentsOverlapping returns non-deleted appointments of the staff in the given statuses
	// that intersect [from, to).
	AppointmentsOverlapping(ctx context.Context, businessID, staffID string, from, to time.Time, statuses []model.AppointmentStatus) ([]model.Appointment, error)
	// BlocksOverlapping returns blocks scoped to the staff member or applying to all staff
	// that intersect [from, to).
	BlocksOverlapping(ctx context.Context, businessID, staffID string, from, to time.Time) ([]model.ScheduleBlock, error)
	// ActiveStaff lists bookable staff members in a stable order.
	ActiveStaff(ctx context.Context, businessID string) ([]model.Staff, error)
}

type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)
