package availability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agendly/agendly/services/availability-service/internal/model"
)

type SlotsQuery struct {
	BusinessID string
	ServiceID  string
	StaffID    string
	Date       string
}

type AnyStaffQuery struct {
	BusinessID string
	ServiceID  string
	Date       string
}

type ValidateQuery struct {
	BusinessID string
	StaffID    string
	ServiceID  string
	StartTime  string // RFC 3339 instant
}

// SlotsResult is either {Success: true, Data} or {Success: false, Error}.
// An empty Data on success means "no availability this day".
type SlotsResult struct {
	Success bool             `json:"success"`
	Data    []model.TimeSlot `json:"data"`
	Error   string           `json:"error,omitempty"`

	err error
}

// Err returns the underlying failure, for callers that map it to a transport status.
func (r SlotsResult) Err() error { return r.err }

// ValidationResult reports a slot re-check. Success is false only when the check could not run;
// a slot that is simply taken is {Success: true, Available: false, Reason}.
type ValidationResult struct {
	Success   bool   `json:"success"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
	StaffID   string `json:"staff_id,omitempty"`

	err error
}

func (r ValidationResult) Err() error { return r.err }

// GetAvailableSlots never returns an error across the boundary; failures become tagged results.
func (e *Engine) GetAvailableSlots(ctx context.Context, q SlotsQuery) SlotsResult {
	slots, err := e.DaySlots(ctx, q.BusinessID, q.ServiceID, q.StaffID, q.Date)
	if err != nil {
		e.logFailure(ctx, "slot computation failed", err, "business_id", q.BusinessID, "staff_id", q.StaffID, "date", q.Date)
		return slotsFailure(err)
	}
	return SlotsResult{Success: true, Data: slots}
}

func (e *Engine) GetAvailableSlotsAnyStaff(ctx context.Context, q AnyStaffQuery) SlotsResult {
	slots, err := e.DaySlotsAnyStaff(ctx, q.BusinessID, q.ServiceID, q.Date)
	if err != nil {
		e.logFailure(ctx, "any-staff slot computation failed", err, "business_id", q.BusinessID, "date", q.Date)
		return slotsFailure(err)
	}
	return SlotsResult{Success: true, Data: slots}
}

// ValidateTimeSlot is the gate that must run immediately before an appointment insert.
// It fails closed: Available is true only when every check passed.
func (e *Engine) ValidateTimeSlot(ctx context.Context, q ValidateQuery) ValidationResult {
	start, err := parseInstant(q.StartTime)
	if err != nil {
		return validationFailure(err)
	}
	reason, err := e.ValidateSlot(ctx, q.BusinessID, q.StaffID, q.ServiceID, start)
	if err != nil {
		e.logFailure(ctx, "slot validation failed", err, "business_id", q.BusinessID, "staff_id", q.StaffID, "start_time", q.StartTime)
		return validationFailure(err)
	}
	if reason != "" {
		return ValidationResult{Success: true, Available: false, Reason: reason, StaffID: q.StaffID}
	}
	return ValidationResult{Success: true, Available: true, StaffID: q.StaffID}
}

// ValidateAnyStaff runs AssignStaff and reports the chosen staff member in StaffID.
func (e *Engine) ValidateAnyStaff(ctx context.Context, businessID, serviceID, startTime string) ValidationResult {
	start, err := parseInstant(startTime)
	if err != nil {
		return validationFailure(err)
	}
	staffID, reason, err := e.AssignStaff(ctx, businessID, serviceID, start)
	if err != nil {
		e.logFailure(ctx, "staff assignment failed", err, "business_id", businessID, "start_time", startTime)
		return validationFailure(err)
	}
	if reason != "" {
		return ValidationResult{Success: true, Available: false, Reason: reason}
	}
	return ValidationResult{Success: true, Available: true, StaffID: staffID}
}

func (e *Engine) logFailure(ctx context.Context, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	if errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrNotFound) {
		e.logger.InfoContext(ctx, msg, attrs...)
		return
	}
	e.logger.ErrorContext(ctx, msg, attrs...)
}

func slotsFailure(err error) SlotsResult {
	return SlotsResult{Success: false, Error: publicMessage(err, "failed to load availability"), err: err}
}

func validationFailure(err error) ValidationResult {
	return ValidationResult{Success: false, Available: false, Reason: publicMessage(err, ReasonUnverified), err: err}
}

// publicMessage keeps store internals out of responses.
func publicMessage(err error, generic string) string {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf.Error()
	}
	if errors.Is(err, ErrInvalidInput) {
		return err.Error()
	}
	return generic
}

func parseInstant(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid start_time %q", ErrInvalidInput, s)
	}
	return t, nil
}
