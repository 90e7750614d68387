package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/agendly/agendly/libs/httpx"
	"github.com/agendly/agendly/services/availability-service/internal/availability"
	"github.com/agendly/agendly/services/availability-service/internal/events"
	"github.com/agendly/agendly/services/availability-service/internal/model"
	"github.com/go-playground/validator/v10"
)

// AppointmentWriter persists a validated booking. Overlaps surface as availability.ErrConflict.
type AppointmentWriter interface {
	CreateAppointment(ctx context.Context, appt *model.Appointment) (string, error)
}

type AvailabilityHandler struct {
	engine    *availability.Engine
	writer    AppointmentWriter
	publisher events.Publisher
	validate  *validator.Validate
	logger    *slog.Logger
}

func NewAvailabilityHandler(engine *availability.Engine, writer AppointmentWriter, publisher events.Publisher, logger *slog.Logger) *AvailabilityHandler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &AvailabilityHandler{
		engine:    engine,
		writer:    writer,
		publisher: publisher,
		validate:  newValidator(),
		logger:    logger,
	}
}

// Register mounts the public endpoints on mux.
func (h *AvailabilityHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/public/slots", h.Slots)
	mux.HandleFunc("/api/v1/public/slots/validate", h.Validate)
	mux.HandleFunc("/api/v1/public/book", h.Book)
}

type slotsRequest struct {
	BusinessID string `validate:"required,uuid"`
	ServiceID  string `validate:"required,uuid"`
	StaffID    string `validate:"omitempty,uuid|eq=any"`
	Date       string `validate:"required"`
}

type validateRequest struct {
	BusinessID string `json:"business_id" validate:"required,uuid"`
	StaffID    string `json:"staff_id" validate:"omitempty,uuid"`
	ServiceID  string `json:"service_id" validate:"required,uuid"`
	StartTime  string `json:"start_time" validate:"required"`
}

type bookRequest struct {
	BusinessID    string `json:"business_id" validate:"required,uuid"`
	StaffID       string `json:"staff_id" validate:"omitempty,uuid"`
	ServiceID     string `json:"service_id" validate:"required,uuid"`
	StartTime     string `json:"start_time" validate:"required"`
	CustomerName  string `json:"customer_name" validate:"required,max=255"`
	CustomerEmail string `json:"customer_email" validate:"omitempty,email,max=255"`
	CustomerPhone string `json:"customer_phone" validate:"omitempty,max=32"`
}

type bookResponse struct {
	AppointmentID string `json:"appointment_id"`
	StaffID       string `json:"staff_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
}

// Slots serves the per-staff list, or the any-staff merge when staff_id is empty or "any".
func (h *AvailabilityHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	req := slotsRequest{
		BusinessID: strings.TrimSpace(q.Get("business_id")),
		ServiceID:  strings.TrimSpace(q.Get("service_id")),
		StaffID:    strings.TrimSpace(q.Get("staff_id")),
		Date:       strings.TrimSpace(q.Get("date")),
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "business_id, service_id and date are required; ids must be uuids", http.StatusBadRequest)
		return
	}

	var res availability.SlotsResult
	if req.StaffID == "" || req.StaffID == "any" {
		res = h.engine.GetAvailableSlotsAnyStaff(r.Context(), availability.AnyStaffQuery{
			BusinessID: req.BusinessID,
			ServiceID:  req.ServiceID,
			Date:       req.Date,
		})
	} else {
		res = h.engine.GetAvailableSlots(r.Context(), availability.SlotsQuery{
			BusinessID: req.BusinessID,
			ServiceID:  req.ServiceID,
			StaffID:    req.StaffID,
			Date:       req.Date,
		})
	}
	writeJSON(w, statusFor(res.Err()), res)
}

// Validate re-checks one slot. Outcomes, including "unable to verify", are 200; malformed input is 400.
func (h *AvailabilityHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	trimAll(&req.BusinessID, &req.StaffID, &req.ServiceID, &req.StartTime)
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "business_id, service_id and start_time are required; ids must be uuids", http.StatusBadRequest)
		return
	}

	res := h.check(r.Context(), req.BusinessID, req.StaffID, req.ServiceID, req.StartTime)
	status := http.StatusOK
	if errors.Is(res.Err(), availability.ErrInvalidInput) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, res)
}

// Book validates the slot and inserts a pending appointment. With no staff_id the first free
// staff member is assigned.
func (h *AvailabilityHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.writer == nil {
		http.Error(w, "booking disabled", http.StatusServiceUnavailable)
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	trimAll(&req.BusinessID, &req.StaffID, &req.ServiceID, &req.StartTime, &req.CustomerName, &req.CustomerEmail, &req.CustomerPhone)
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "missing or invalid fields", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	res := h.check(ctx, req.BusinessID, req.StaffID, req.ServiceID, req.StartTime)
	if !res.Success {
		status := statusFor(res.Err())
		if status == http.StatusServiceUnavailable {
			http.Error(w, "availability service unavailable", status)
			return
		}
		writeJSON(w, status, res)
		return
	}
	if !res.Available {
		status := http.StatusUnprocessableEntity
		if res.Reason == availability.ReasonReserved {
			status = http.StatusConflict
		}
		writeJSON(w, status, res)
		return
	}

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	duration, err := h.engine.Duration(ctx, req.BusinessID, req.ServiceID)
	if err != nil {
		http.Error(w, "availability service unavailable", http.StatusServiceUnavailable)
		return
	}

	appt := &model.Appointment{
		BusinessID:    req.BusinessID,
		ServiceID:     req.ServiceID,
		StaffID:       res.StaffID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		StartTime:     start,
		EndTime:       start.Add(duration),
		Status:        model.AppointmentPending,
	}
	id, err := h.writer.CreateAppointment(ctx, appt)
	if err != nil {
		if errors.Is(err, availability.ErrConflict) {
			http.Error(w, "time slot already booked", http.StatusConflict)
			return
		}
		h.logger.Error("create appointment failed", "business_id", appt.BusinessID, "staff_id", appt.StaffID, "err", err)
		http.Error(w, "failed to create appointment", http.StatusInternalServerError)
		return
	}

	h.publish(ctx, events.Event{
		Type:      events.TypeAppointmentRequested,
		Key:       appt.BusinessID,
		RequestID: httpx.RequestIDFromContext(ctx),
		Payload: events.AppointmentRequested{
			AppointmentID: id,
			BusinessID:    appt.BusinessID,
			StaffID:       appt.StaffID,
			ServiceID:     appt.ServiceID,
			StartTime:     appt.StartTime,
			EndTime:       appt.EndTime,
			CustomerName:  appt.CustomerName,
			CustomerEmail: appt.CustomerEmail,
			Status:        string(appt.Status),
			OccurredAt:    time.Now().UTC(),
		},
	})

	writeJSON(w, http.StatusCreated, bookResponse{
		AppointmentID: id,
		StaffID:       appt.StaffID,
		StartTime:     appt.StartTime.Format(time.RFC3339),
		EndTime:       appt.EndTime.Format(time.RFC3339),
		Status:        string(appt.Status),
	})
}

// check runs the validator, or staff assignment when staffID is empty, and publishes the decision.
func (h *AvailabilityHandler) check(ctx context.Context, businessID, staffID, serviceID, startTime string) availability.ValidationResult {
	var res availability.ValidationResult
	if staffID == "" {
		res = h.engine.ValidateAnyStaff(ctx, businessID, serviceID, startTime)
	} else {
		res = h.engine.ValidateTimeSlot(ctx, availability.ValidateQuery{
			BusinessID: businessID,
			StaffID:    staffID,
			ServiceID:  serviceID,
			StartTime:  startTime,
		})
	}

	h.publish(ctx, events.Event{
		Type:      events.TypeSlotValidated,
		Key:       businessID,
		RequestID: httpx.RequestIDFromContext(ctx),
		Payload: events.SlotValidated{
			BusinessID: businessID,
			StaffID:    res.StaffID,
			ServiceID:  serviceID,
			StartTime:  startTime,
			Success:    res.Success,
			Available:  res.Available,
			Reason:     res.Reason,
			OccurredAt: time.Now().UTC(),
		},
	})
	return res
}

func (h *AvailabilityHandler) publish(ctx context.Context, evt events.Event) {
	if err := h.publisher.Publish(ctx, evt); err != nil {
		h.logger.Warn("event publish failed", "event_type", evt.Type, "err", err)
	}
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, availability.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, availability.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusServiceUnavailable
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func trimAll(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}
