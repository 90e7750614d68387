package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agendly/agendly/services/availability-service/internal/availability"
	"github.com/agendly/agendly/services/availability-service/internal/events"
	"github.com/agendly/agendly/services/availability-service/internal/model"
)

const (
	businessID = "6f1c2b1e-3d4a-4c5b-9e8f-0a1b2c3d4e5f"
	serviceID  = "0d9e8f7a-6b5c-4d3e-8f1a-2b3c4d5e6f70"
	staffAna   = "a1a1a1a1-1111-4111-8111-111111111111"
	staffBruno = "b2b2b2b2-2222-4222-8222-222222222222"
	unknownID  = "ffffffff-ffff-4fff-8fff-ffffffffffff"
)

var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type memStore struct {
	schedules map[string][]model.WorkInterval
	appts     []model.Appointment
	failAll   error
}

func (s *memStore) ServiceDuration(_ context.Context, _, id string) (int, error) {
	if s.failAll != nil {
		return 0, s.failAll
	}
	if id != serviceID {
		return 0, availability.ErrNotFound
	}
	return 60, nil
}

func (s *memStore) BusinessTimezone(context.Context, string) (string, error) { return "UTC", nil }

func (s *memStore) BusinessHoursForDay(_ context.Context, _ string, wd time.Weekday) (model.DayHours, error) {
	if wd == time.Sunday {
		return model.DayHours{Weekday: wd, IsClosed: true}, nil
	}
	return model.DayHours{Weekday: wd, Open: 9 * 60, Close: 18 * 60}, nil
}

func (s *memStore) StaffScheduleForDay(_ context.Context, _, staffID string, wd time.Weekday) ([]model.WorkInterval, error) {
	if wd != time.Monday {
		return nil, nil
	}
	return s.schedules[staffID], nil
}

func (s *memStore) AppointmentsOverlapping(_ context.Context, _, staffID string, from, to time.Time, _ []model.AppointmentStatus) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range s.appts {
		if a.StaffID == staffID && a.StartTime.Before(to) && from.Before(a.EndTime) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memStore) BlocksOverlapping(context.Context, string, string, time.Time, time.Time) ([]model.ScheduleBlock, error) {
	return nil, nil
}

func (s *memStore) ActiveStaff(context.Context, string) ([]model.Staff, error) {
	return []model.Staff{{ID: staffAna, IsActive: true}, {ID: staffBruno, IsActive: true}}, nil
}

type fakeWriter struct {
	created []model.Appointment
	err     error
}

func (w *fakeWriter) CreateAppointment(_ context.Context, appt *model.Appointment) (string, error) {
	if w.err != nil {
		return "", w.err
	}
	w.created = append(w.created, *appt)
	return "appt-new", nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	store  *memStore
	writer *fakeWriter
	pub    *recordingPublisher
	mux    *http.ServeMux
}

func newHarness(t *testing.T, now time.Time) *harness {
	t.Helper()
	store := &memStore{
		schedules: map[string][]model.WorkInterval{
			staffAna:   {{Start: 9 * 60, End: 17 * 60}},
			staffBruno: {{Start: 9 * 60, End: 12 * 60}},
		},
		appts: []model.Appointment{{
			StaffID:   staffAna,
			StartTime: monday.Add(10 * time.Hour),
			EndTime:   monday.Add(11 * time.Hour),
			Status:    model.AppointmentConfirmed,
		}},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine, err := availability.NewEngine(store, availability.ClockFunc(func() time.Time { return now }), logger, availability.Config{DefaultTimezone: "UTC"})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	h := &harness{store: store, writer: &fakeWriter{}, pub: &recordingPublisher{}, mux: http.NewServeMux()}
	NewAvailabilityHandler(engine, h.writer, h.pub, logger).Register(h.mux)
	return h
}

func (h *harness) do(method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func slotsURL(staff, date string) string {
	return "/api/v1/public/slots?business_id=" + businessID + "&service_id=" + serviceID + "&staff_id=" + staff + "&date=" + date
}

func TestSlots(t *testing.T) {
	h := newHarness(t, monday.Add(-24*time.Hour))

	rec := h.do(http.MethodGet, slotsURL(staffAna, "2026-03-02"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	res := decode[availability.SlotsResult](t, rec)
	if !res.Success || len(res.Data) != 29 {
		t.Fatalf("expected 29 slots, got %+v", res)
	}

	rec = h.do(http.MethodGet, slotsURL("any", "2026-03-02"), "")
	res = decode[availability.SlotsResult](t, rec)
	if rec.Code != http.StatusOK || !res.Success {
		t.Fatalf("any-staff failed: %d %s", rec.Code, rec.Body.String())
	}
	for _, s := range res.Data {
		if s.Time == "10:00" && !s.Available {
			t.Fatal("10:00 should be free through the second staff member")
		}
	}

	rec = h.do(http.MethodGet, slotsURL(staffAna, "2026-03-01"), "")
	res = decode[availability.SlotsResult](t, rec)
	if rec.Code != http.StatusOK || !res.Success || len(res.Data) != 0 {
		t.Fatalf("expected empty closed day, got %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Fatalf("closed day must render an empty array, got %s", rec.Body.String())
	}
}

func TestSlots_Errors(t *testing.T) {
	h := newHarness(t, monday.Add(-24*time.Hour))

	if rec := h.do(http.MethodGet, "/api/v1/public/slots?date=2026-03-02", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing ids, got %d", rec.Code)
	}
	if rec := h.do(http.MethodGet, slotsURL("not-a-uuid", "2026-03-02"), ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad staff id, got %d", rec.Code)
	}
	if rec := h.do(http.MethodGet, slotsURL(staffAna, "March-2nd"), ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rec.Code)
	}

	rec := h.do(http.MethodGet, strings.Replace(slotsURL(staffAna, "2026-03-02"), serviceID, unknownID, 1), "")
	if rec.Code != http.StatusNotFound || decode[availability.SlotsResult](t, rec).Error != "service not found" {
		t.Fatalf("expected 404 service not found, got %d %s", rec.Code, rec.Body.String())
	}

	h.store.failAll = errors.New("dial tcp: connection refused")
	rec = h.do(http.MethodGet, slotsURL(staffAna, "2026-03-02"), "")
	if rec.Code != http.StatusServiceUnavailable || strings.Contains(rec.Body.String(), "refused") {
		t.Fatalf("expected opaque 503, got %d %s", rec.Code, rec.Body.String())
	}

	if rec := h.do(http.MethodPost, slotsURL(staffAna, "2026-03-02"), ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func validateBody(staff, start string) string {
	return `{"business_id":"` + businessID + `","service_id":"` + serviceID + `","staff_id":"` + staff + `","start_time":"` + start + `"}`
}

func TestValidate(t *testing.T) {
	h := newHarness(t, monday.Add(8*time.Hour))

	rec := h.do(http.MethodPost, "/api/v1/public/slots/validate", validateBody(staffAna, "2026-03-02T10:30:00Z"))
	res := decode[availability.ValidationResult](t, rec)
	if rec.Code != http.StatusOK || !res.Success || res.Available || res.Reason != availability.ReasonReserved {
		t.Fatalf("expected reserved, got %d %+v", rec.Code, res)
	}

	rec = h.do(http.MethodPost, "/api/v1/public/slots/validate", validateBody(staffAna, "2026-03-02T07:00:00Z"))
	res = decode[availability.ValidationResult](t, rec)
	if rec.Code != http.StatusOK || res.Available || res.Reason != availability.ReasonTimePassed {
		t.Fatalf("expected time passed, got %d %+v", rec.Code, res)
	}

	rec = h.do(http.MethodPost, "/api/v1/public/slots/validate", validateBody("", "2026-03-02T10:00:00Z"))
	res = decode[availability.ValidationResult](t, rec)
	if !res.Available || res.StaffID != staffBruno {
		t.Fatalf("expected assignment to second staff member, got %+v", res)
	}

	if got := h.pub.types(); len(got) != 3 || got[0] != events.TypeSlotValidated {
		t.Fatalf("expected one validation event per call, got %v", got)
	}

	if rec := h.do(http.MethodPost, "/api/v1/public/slots/validate", validateBody(staffAna, "tomorrow")); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad start_time, got %d", rec.Code)
	}
	if rec := h.do(http.MethodPost, "/api/v1/public/slots/validate", "{"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", rec.Code)
	}

	h.store.failAll = errors.New("timeout")
	rec = h.do(http.MethodPost, "/api/v1/public/slots/validate", validateBody(staffAna, "2026-03-02T12:00:00Z"))
	res = decode[availability.ValidationResult](t, rec)
	if rec.Code != http.StatusOK || res.Success || res.Available || res.Reason != availability.ReasonUnverified {
		t.Fatalf("expected fail-closed 200, got %d %+v", rec.Code, res)
	}
}

func bookBody(staff, start string) string {
	return `{"business_id":"` + businessID + `","service_id":"` + serviceID + `","staff_id":"` + staff +
		`","start_time":"` + start + `","customer_name":"Paula Souza","customer_email":"paula@example.com"}`
}

func TestBook(t *testing.T) {
	h := newHarness(t, monday.Add(8*time.Hour))

	rec := h.do(http.MethodPost, "/api/v1/public/book", bookBody(staffAna, "2026-03-02T11:00:00Z"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[bookResponse](t, rec)
	if resp.AppointmentID != "appt-new" || resp.EndTime != "2026-03-02T12:00:00Z" || resp.Status != "pending" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(h.writer.created) != 1 || h.writer.created[0].StaffID != staffAna {
		t.Fatalf("expected one insert for the requested staff, got %+v", h.writer.created)
	}
	got := h.pub.types()
	if len(got) != 2 || got[1] != events.TypeAppointmentRequested {
		t.Fatalf("expected validation and booking events, got %v", got)
	}

	rec = h.do(http.MethodPost, "/api/v1/public/book", bookBody("", "2026-03-02T10:00:00Z"))
	if rec.Code != http.StatusCreated || decode[bookResponse](t, rec).StaffID != staffBruno {
		t.Fatalf("expected any-staff booking with second staff member, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestBook_Rejections(t *testing.T) {
	h := newHarness(t, monday.Add(8*time.Hour))

	rec := h.do(http.MethodPost, "/api/v1/public/book", bookBody(staffAna, "2026-03-02T10:15:00Z"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for reserved slot, got %d", rec.Code)
	}

	rec = h.do(http.MethodPost, "/api/v1/public/book", bookBody(staffAna, "2026-03-02T16:30:00Z"))
	if rec.Code != http.StatusUnprocessableEntity ||
		decode[availability.ValidationResult](t, rec).Reason != availability.ReasonOutsideStaffHours {
		t.Fatalf("expected 422 outside staff hours, got %d %s", rec.Code, rec.Body.String())
	}

	h.writer.err = availability.ErrConflict
	rec = h.do(http.MethodPost, "/api/v1/public/book", bookBody(staffAna, "2026-03-02T12:00:00Z"))
	if rec.Code != http.StatusConflict || !strings.Contains(rec.Body.String(), "time slot already booked") {
		t.Fatalf("expected 409 from insert conflict, got %d %s", rec.Code, rec.Body.String())
	}

	h.writer.err = errors.New("disk full")
	rec = h.do(http.MethodPost, "/api/v1/public/book", bookBody(staffAna, "2026-03-02T12:00:00Z"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	body := `{"business_id":"` + businessID + `","service_id":"` + serviceID + `","start_time":"2026-03-02T12:00:00Z"}`
	if rec := h.do(http.MethodPost, "/api/v1/public/book", body); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without customer_name, got %d", rec.Code)
	}

	h.store.failAll = errors.New("timeout")
	rec = h.do(http.MethodPost, "/api/v1/public/book", bookBody(staffAna, "2026-03-02T12:00:00Z"))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when validation cannot run, got %d", rec.Code)
	}
	if len(h.writer.created) != 0 {
		t.Fatal("nothing should have been written")
	}
}
