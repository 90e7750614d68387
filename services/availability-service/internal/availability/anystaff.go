package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agendly/agendly/services/availability-service/internal/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// DaySlotsAnyStaff computes DaySlots for every active staff member concurrently and merges
// them: a time is available when at least one staff member is free then.
// Any per-staff failure fails the whole call so an error never reads as availability.
func (e *Engine) DaySlotsAnyStaff(ctx context.Context, businessID, serviceID, date string) ([]model.TimeSlot, error) {
	ctx, span := tracer.Start(ctx, "availability.DaySlotsAnyStaff", trace.WithAttributes(
		attribute.String("business_id", businessID),
		attribute.String("service_id", serviceID),
		attribute.String("date", date),
	))
	defer span.End()

	plan, err := e.planDay(ctx, businessID, serviceID, date)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	if plan.hours.IsClosed {
		return []model.TimeSlot{}, nil
	}

	staff, err := e.store.ActiveStaff(ctx, businessID)
	if err != nil {
		err = fmt.Errorf("load staff: %w", err)
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("staff", len(staff)))
	if len(staff) == 0 {
		return []model.TimeSlot{}, nil
	}

	results := make([][]model.TimeSlot, len(staff))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, s := range staff {
		g.Go(func() error {
			slots, err := e.staffDaySlots(gctx, plan, s.ID)
			if err != nil {
				return fmt.Errorf("staff %s: %w", s.ID, err)
			}
			results[i] = slots
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		recordError(span, err)
		return nil, err
	}
	return MergeSlots(results...), nil
}

// AssignStaff picks the first active staff member, in store order, for whom ValidateSlot
// passes. It returns ReasonNoStaff when nobody can take the booking.
func (e *Engine) AssignStaff(ctx context.Context, businessID, serviceID string, start time.Time) (string, string, error) {
	ctx, span := tracer.Start(ctx, "availability.AssignStaff", trace.WithAttributes(
		attribute.String("business_id", businessID),
		attribute.String("service_id", serviceID),
	))
	defer span.End()

	if !start.After(e.clock.Now()) {
		return "", ReasonTimePassed, nil
	}
	staff, err := e.store.ActiveStaff(ctx, businessID)
	if err != nil {
		err = fmt.Errorf("load staff: %w", err)
		recordError(span, err)
		return "", ReasonUnverified, err
	}

	var lastErr error
	for _, s := range staff {
		reason, err := e.validate(ctx, businessID, s.ID, serviceID, start)
		if err != nil {
			if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidInput) {
				recordError(span, err)
				return "", ReasonUnverified, err
			}
			e.logger.Warn("staff validation failed; trying next", "business_id", businessID, "staff_id", s.ID, "err", err)
			lastErr = err
			continue
		}
		if reason == "" {
			span.SetAttributes(attribute.String("staff_id", s.ID))
			return s.ID, "", nil
		}
	}
	if lastErr != nil {
		recordError(span, lastErr)
		return "", ReasonUnverified, lastErr
	}
	return "", ReasonNoStaff, nil
}
