package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/agendly/agendly/services/availability-service/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/agendly/agendly/services/availability-service/availability")

const (
	DefaultStep        = 15 * time.Minute
	DefaultConcurrency = 8
	DefaultTimezone    = "America/Sao_Paulo"
)

type Config struct {
	// Step is the spacing between candidate start times.
	Step time.Duration
	// Concurrency bounds the per-staff fan-out of the any-staff computation.
	Concurrency int
	// DefaultTimezone applies to businesses without a configured zone.
	DefaultTimezone string
}

// Engine computes bookable slots and re-validates a slot right before booking.
// It holds no mutable state; every call reads fresh rows from the store.
type Engine struct {
	store       Store
	clock       Clock
	logger      *slog.Logger
	step        time.Duration
	concurrency int
	defaultLoc  *time.Location
}

func NewEngine(store Store, clock Clock, logger *slog.Logger, cfg Config) (*Engine, error) {
	if store == nil {
		return nil, errors.New("availability: store is required")
	}
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Step <= 0 {
		cfg.Step = DefaultStep
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if strings.TrimSpace(cfg.DefaultTimezone) == "" {
		cfg.DefaultTimezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("availability: load default timezone %q: %w", cfg.DefaultTimezone, err)
	}
	return &Engine{
		store:       store,
		clock:       clock,
		logger:      logger,
		step:        cfg.Step,
		concurrency: cfg.Concurrency,
		defaultLoc:  loc,
	}, nil
}

// dayPlan is everything about (business, service, date) that does not depend on the staff member.
type dayPlan struct {
	businessID string
	day        time.Time // midnight in the business timezone
	duration   time.Duration
	hours      model.DayHours
}

// DaySlots returns the ordered candidate slots of one staff member on date ("YYYY-MM-DD").
// A closed day or a staff member without schedule that weekday yields an empty list, not an error.
func (e *Engine) DaySlots(ctx context.Context, businessID, serviceID, staffID, date string) ([]model.TimeSlot, error) {
	ctx, span := tracer.Start(ctx, "availability.DaySlots", trace.WithAttributes(
		attribute.String("business_id", businessID),
		attribute.String("service_id", serviceID),
		attribute.String("staff_id", staffID),
		attribute.String("date", date),
	))
	defer span.End()

	if strings.TrimSpace(staffID) == "" {
		return nil, fmt.Errorf("%w: staff_id is required", ErrInvalidInput)
	}
	plan, err := e.planDay(ctx, businessID, serviceID, date)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	if plan.hours.IsClosed {
		return []model.TimeSlot{}, nil
	}

	slots, err := e.staffDaySlots(ctx, plan, staffID)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("slots", len(slots)))
	return slots, nil
}

func (e *Engine) planDay(ctx context.Context, businessID, serviceID, date string) (dayPlan, error) {
	if strings.TrimSpace(businessID) == "" || strings.TrimSpace(serviceID) == "" {
		return dayPlan{}, fmt.Errorf("%w: business_id and service_id are required", ErrInvalidInput)
	}
	y, m, d, err := parseDate(date)
	if err != nil {
		return dayPlan{}, err
	}
	duration, err := e.serviceDuration(ctx, businessID, serviceID)
	if err != nil {
		return dayPlan{}, err
	}
	loc, err := e.location(ctx, businessID)
	if err != nil {
		return dayPlan{}, err
	}
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)

	hours, err := e.store.BusinessHoursForDay(ctx, businessID, day.Weekday())
	if err != nil {
		return dayPlan{}, entityErr("business hours", err)
	}
	return dayPlan{businessID: businessID, day: day, duration: duration, hours: hours}, nil
}

// staffDaySlots walks the intersection of business hours with each staff interval.
func (e *Engine) staffDaySlots(ctx context.Context, plan dayPlan, staffID string) ([]model.TimeSlot, error) {
	intervals, err := e.store.StaffScheduleForDay(ctx, plan.businessID, staffID, plan.day.Weekday())
	if err != nil {
		return nil, fmt.Errorf("load staff schedule: %w", err)
	}

	var windows []Interval
	for _, iv := range intervals {
		start := max(plan.hours.Open, iv.Start)
		end := min(plan.hours.Close, iv.End)
		if start >= end {
			continue
		}
		windows = append(windows, Interval{Start: start.On(plan.day), End: end.On(plan.day)})
	}
	if len(windows) == 0 {
		return []model.TimeSlot{}, nil
	}

	dayStart := plan.day
	dayEnd := plan.day.AddDate(0, 0, 1)
	appts, err := e.store.AppointmentsOverlapping(ctx, plan.businessID, staffID, dayStart, dayEnd, model.BlockingStatuses)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	blocks, err := e.store.BlocksOverlapping(ctx, plan.businessID, staffID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("load schedule blocks: %w", err)
	}
	busy := busyIntervals(staffID, appts, blocks)

	now := e.clock.Now()
	lists := make([][]model.TimeSlot, 0, len(windows))
	for _, w := range windows {
		lists = append(lists, WalkWindow(w, plan.duration, e.step, busy, now))
	}
	return MergeSlots(lists...), nil
}

// Duration resolves the length of a service, the same value used to fit slots.
func (e *Engine) Duration(ctx context.Context, businessID, serviceID string) (time.Duration, error) {
	return e.serviceDuration(ctx, businessID, serviceID)
}

func (e *Engine) serviceDuration(ctx context.Context, businessID, serviceID string) (time.Duration, error) {
	mins, err := e.store.ServiceDuration(ctx, businessID, serviceID)
	if err != nil {
		return 0, entityErr("service", err)
	}
	if mins <= 0 {
		return 0, fmt.Errorf("%w: service %s has no positive duration", ErrInvalidInput, serviceID)
	}
	return time.Duration(mins) * time.Minute, nil
}

func (e *Engine) location(ctx context.Context, businessID string) (*time.Location, error) {
	tz, err := e.store.BusinessTimezone(ctx, businessID)
	if err != nil {
		return nil, entityErr("business", err)
	}
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return e.defaultLoc, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		e.logger.Warn("unknown business timezone; using default", "business_id", businessID, "timezone", tz, "err", err)
		return e.defaultLoc, nil
	}
	return loc, nil
}

// parseDate accepts a calendar date ("2006-01-02") or an RFC 3339 instant, whose
// calendar date is taken as written.
func parseDate(date string) (int, time.Month, int, error) {
	date = strings.TrimSpace(date)
	if t, err := time.Parse(time.DateOnly, date); err == nil {
		return t.Year(), t.Month(), t.Day(), nil
	}
	if t, err := time.Parse(time.RFC3339, date); err == nil {
		return t.Year(), t.Month(), t.Day(), nil
	}
	return 0, 0, 0, fmt.Errorf("%w: invalid date %q", ErrInvalidInput, date)
}

// entityErr turns a store not-found into a NotFoundError naming what was missing.
func entityErr(entity string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return &NotFoundError{Entity: entity}
	}
	return fmt.Errorf("load %s: %w", entity, err)
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
