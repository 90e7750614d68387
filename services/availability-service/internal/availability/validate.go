package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/agendly/agendly/services/availability-service/internal/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Rejection reasons, checked in this order.
const (
	ReasonTimePassed           = "time already passed"
	ReasonReserved             = "slot already reserved"
	ReasonBusinessClosed       = "business closed this day"
	ReasonOutsideBusinessHours = "outside business hours"
	ReasonOutsideStaffDay      = "outside staff's working day"
	ReasonOutsideStaffHours    = "outside staff's hours"
	ReasonBlocked              = "time blocked"

	ReasonUnverified = "unable to verify availability"
	ReasonNoStaff    = "no staff available"
)

// ValidateSlot re-checks a single (staff, service, start) right before the appointment is
// written. It returns the first failed check as reason, or "" when the slot is bookable.
// A non-nil error means a check could not be performed; callers must treat it as unavailable.
func (e *Engine) ValidateSlot(ctx context.Context, businessID, staffID, serviceID string, start time.Time) (string, error) {
	ctx, span := tracer.Start(ctx, "availability.ValidateSlot", trace.WithAttributes(
		attribute.String("business_id", businessID),
		attribute.String("service_id", serviceID),
		attribute.String("staff_id", staffID),
		attribute.String("start_time", start.Format(time.RFC3339)),
	))
	defer span.End()

	reason, err := e.validate(ctx, businessID, staffID, serviceID, start)
	if err != nil {
		recordError(span, err)
		return ReasonUnverified, err
	}
	span.SetAttributes(attribute.Bool("available", reason == ""), attribute.String("reason", reason))
	return reason, nil
}

func (e *Engine) validate(ctx context.Context, businessID, staffID, serviceID string, start time.Time) (string, error) {
	if businessID == "" || staffID == "" || serviceID == "" {
		return "", fmt.Errorf("%w: business_id, staff_id and service_id are required", ErrInvalidInput)
	}
	if !start.After(e.clock.Now()) {
		return ReasonTimePassed, nil
	}

	duration, err := e.serviceDuration(ctx, businessID, serviceID)
	if err != nil {
		return "", err
	}
	requested := Interval{Start: start, End: start.Add(duration)}

	appts, err := e.store.AppointmentsOverlapping(ctx, businessID, staffID, requested.Start, requested.End, model.BlockingStatuses)
	if err != nil {
		return "", fmt.Errorf("load appointments: %w", err)
	}
	for _, a := range appts {
		if a.Blocks() && requested.Overlaps(Interval{Start: a.StartTime, End: a.EndTime}) {
			return ReasonReserved, nil
		}
	}

	loc, err := e.location(ctx, businessID)
	if err != nil {
		return "", err
	}
	local := start.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	hours, err := e.store.BusinessHoursForDay(ctx, businessID, day.Weekday())
	if err != nil {
		return "", entityErr("business hours", err)
	}
	if hours.IsClosed {
		return ReasonBusinessClosed, nil
	}
	if !(Interval{Start: hours.Open.On(day), End: hours.Close.On(day)}).Contains(requested) {
		return ReasonOutsideBusinessHours, nil
	}

	intervals, err := e.store.StaffScheduleForDay(ctx, businessID, staffID, day.Weekday())
	if err != nil {
		return "", fmt.Errorf("load staff schedule: %w", err)
	}
	if len(intervals) == 0 {
		return ReasonOutsideStaffDay, nil
	}
	inside := false
	for _, iv := range intervals {
		if (Interval{Start: iv.Start.On(day), End: iv.End.On(day)}).Contains(requested) {
			inside = true
			break
		}
	}
	if !inside {
		return ReasonOutsideStaffHours, nil
	}

	blocks, err := e.store.BlocksOverlapping(ctx, businessID, staffID, requested.Start, requested.End)
	if err != nil {
		return "", fmt.Errorf("load schedule blocks: %w", err)
	}
	if overlapsAny(requested, busyIntervals(staffID, nil, blocks)) {
		return ReasonBlocked, nil
	}
	return "", nil
}
