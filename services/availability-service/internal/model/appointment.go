package model

import "time"

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentNoShow    AppointmentStatus = "no_show"
)

// BlockingStatuses are the statuses that hold a staff member's time.
var BlockingStatuses = []AppointmentStatus{AppointmentPending, AppointmentConfirmed}

type Appointment struct {
	ID            string
	BusinessID    string
	ServiceID     string
	StaffID       string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	StartTime     time.Time
	EndTime       time.Time
	Status        AppointmentStatus
	DeletedAt     *time.Time
	CreatedAt     time.Time
}

// Blocks reports whether the appointment occupies its staff member's time.
func (a Appointment) Blocks() bool {
	if a.DeletedAt != nil {
		return false
	}
	return a.Status == AppointmentPending || a.Status == AppointmentConfirmed
}

// ScheduleBlock is an explicit unavailability window (time off, holiday, maintenance).
// StaffID is empty when AppliesToAll is set.
type ScheduleBlock struct {
	ID           string
	BusinessID   string
	StaffID      string
	AppliesToAll bool
	StartTime    time.Time
	EndTime      time.Time
	Reason       string
}

// TimeSlot is one candidate start time shown to the customer.
type TimeSlot struct {
	Time      string `json:"time"`
	Datetime  string `json:"datetime"`
	Available bool   `json:"available"`
}
