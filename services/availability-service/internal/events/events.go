package events

import (
	"context"
	"time"
)

const (
	TypeSlotValidated        = "availability.slot.validated.v1"
	TypeAppointmentRequested = "booking.appointment.requested.v1"
)

// Event is one outbound message. Key partitions the topic; Payload is JSON-encoded.
type Event struct {
	Type      string
	Key       string
	RequestID string
	Payload   any
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

type SlotValidated struct {
	BusinessID string    `json:"business_id"`
	StaffID    string    `json:"staff_id,omitempty"`
	ServiceID  string    `json:"service_id"`
	StartTime  string    `json:"start_time"`
	Success    bool      `json:"success"`
	Available  bool      `json:"available"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type AppointmentRequested struct {
	AppointmentID string    `json:"appointment_id"`
	BusinessID    string    `json:"business_id"`
	StaffID       string    `json:"staff_id"`
	ServiceID     string    `json:"service_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }
