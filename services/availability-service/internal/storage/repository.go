package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agendly/agendly/libs/db"
	"github.com/agendly/agendly/services/availability-service/internal/availability"
	"github.com/agendly/agendly/services/availability-service/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository is the Postgres implementation of availability.Store and the booking writer.
type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) ServiceDuration(ctx context.Context, businessID, serviceID string) (int, error) {
	var minutes int
	err := r.pool.QueryRow(ctx, `
		SELECT duration_minutes
		FROM services
		WHERE id = $1 AND business_id = $2
	`, serviceID, businessID).Scan(&minutes)
	if err != nil {
		return 0, mapErr(err)
	}
	return minutes, nil
}

func (r *Repository) BusinessTimezone(ctx context.Context, businessID string) (string, error) {
	var tz string
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(timezone, '')
		FROM businesses
		WHERE id = $1
	`, businessID).Scan(&tz)
	if err != nil {
		return "", mapErr(err)
	}
	return tz, nil
}

// BusinessHoursForDay prefers the weekday override when custom hours are enabled and
// falls back to the business default pair otherwise.
func (r *Repository) BusinessHoursForDay(ctx context.Context, businessID string, weekday time.Weekday) (model.DayHours, error) {
	var (
		custom            bool
		defOpen, defClose string
		dayOpen, dayClose *string
		dayClosed         *bool
	)
	err := r.pool.QueryRow(ctx, `
		SELECT b.custom_hours_enabled,
			to_char(b.opening_time, 'HH24:MI'),
			to_char(b.closing_time, 'HH24:MI'),
			to_char(h.opening_time, 'HH24:MI'),
			to_char(h.closing_time, 'HH24:MI'),
			h.is_closed
		FROM businesses b
		LEFT JOIN business_hours h
			ON h.business_id = b.id AND h.day_of_week = $2
		WHERE b.id = $1
	`, businessID, int(weekday)).Scan(&custom, &defOpen, &defClose, &dayOpen, &dayClose, &dayClosed)
	if err != nil {
		return model.DayHours{}, mapErr(err)
	}

	if custom && dayClosed != nil {
		if *dayClosed {
			return model.DayHours{Weekday: weekday, IsClosed: true}, nil
		}
		if dayOpen != nil && dayClose != nil {
			return DayHours(weekday, *dayOpen, *dayClose)
		}
	}
	return DayHours(weekday, defOpen, defClose)
}

func (r *Repository) StaffScheduleForDay(ctx context.Context, businessID, staffID string, weekday time.Weekday) ([]model.WorkInterval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT to_char(ss.start_time, 'HH24:MI'), to_char(ss.end_time, 'HH24:MI')
		FROM staff_schedules ss
		JOIN staff s ON s.id = ss.staff_id
		WHERE s.business_id = $1
			AND ss.staff_id = $2
			AND ss.day_of_week = $3
		ORDER BY ss.start_time ASC
	`, businessID, staffID, int(weekday))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intervals []model.WorkInterval
	for rows.Next() {
		var start, end string
		if err := rows.Scan(&start, &end); err != nil {
			return nil, err
		}
		iv, err := WorkInterval(start, end)
		if err != nil {
			return nil, err
		}
		intervals = append(intervals, iv)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return intervals, nil
}

func (r *Repository) AppointmentsOverlapping(ctx context.Context, businessID, staffID string, from, to time.Time, statuses []model.AppointmentStatus) ([]model.Appointment, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, business_id, service_id, staff_id, customer_name,
			COALESCE(customer_email, ''), COALESCE(customer_phone, ''),
			start_time, end_time, status, deleted_at, created_at
		FROM appointments
		WHERE business_id = $1
			AND staff_id = $2
			AND deleted_at IS NULL
			AND status::text = ANY($5)
			AND start_time < $4
			AND end_time > $3
		ORDER BY start_time ASC
	`, businessID, staffID, from, to, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		var appt model.Appointment
		if err := rows.Scan(
			&appt.ID,
			&appt.BusinessID,
			&appt.ServiceID,
			&appt.StaffID,
			&appt.CustomerName,
			&appt.CustomerEmail,
			&appt.CustomerPhone,
			&appt.StartTime,
			&appt.EndTime,
			&appt.Status,
			&appt.DeletedAt,
			&appt.CreatedAt,
		); err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func (r *Repository) BlocksOverlapping(ctx context.Context, businessID, staffID string, from, to time.Time) ([]model.ScheduleBlock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, business_id, COALESCE(staff_id::text, ''), applies_to_all,
			start_time, end_time, COALESCE(reason, '')
		FROM schedule_blocks
		WHERE business_id = $1
			AND (staff_id = $2 OR applies_to_all)
			AND start_time < $4
			AND end_time > $3
		ORDER BY start_time ASC
	`, businessID, staffID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []model.ScheduleBlock
	for rows.Next() {
		var b model.ScheduleBlock
		if err := rows.Scan(&b.ID, &b.BusinessID, &b.StaffID, &b.AppliesToAll, &b.StartTime, &b.EndTime, &b.Reason); err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return blocks, nil
}

func (r *Repository) ActiveStaff(ctx context.Context, businessID string) ([]model.Staff, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, business_id, name, is_active
		FROM staff
		WHERE business_id = $1 AND is_active
		ORDER BY name ASC, id ASC
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var staff []model.Staff
	for rows.Next() {
		var s model.Staff
		if err := rows.Scan(&s.ID, &s.BusinessID, &s.Name, &s.IsActive); err != nil {
			return nil, err
		}
		staff = append(staff, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return staff, nil
}

// CreateAppointment inserts a pending appointment in its own transaction and returns its id.
// Overlapping inserts rejected by the exclusion constraint surface as availability.ErrConflict.
func (r *Repository) CreateAppointment(ctx context.Context, appt *model.Appointment) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id string
	err = tx.QueryRow(ctx, `
		INSERT INTO appointments
			(business_id, service_id, staff_id, customer_name, customer_email, customer_phone, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9)
		RETURNING id
	`, appt.BusinessID, appt.ServiceID, appt.StaffID, appt.CustomerName, appt.CustomerEmail, appt.CustomerPhone,
		appt.StartTime, appt.EndTime, appt.Status).Scan(&id)
	if err != nil {
		return "", mapErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", mapErr(err)
	}
	return id, nil
}

// IsConflict reports exclusion-constraint (23P01) and unique (23505) violations.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "23P01" || pgErr.Code == "23505")
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return availability.ErrNotFound
	case IsConflict(err):
		return fmt.Errorf("%w: %v", availability.ErrConflict, err)
	default:
		return err
	}
}

// DayHours parses an opening/closing pair and rejects an empty or inverted range.
func DayHours(weekday time.Weekday, opening, closing string) (model.DayHours, error) {
	o, err := model.ParseMinute(opening)
	if err != nil {
		return model.DayHours{}, err
	}
	c, err := model.ParseMinute(closing)
	if err != nil {
		return model.DayHours{}, err
	}
	if o >= c {
		return model.DayHours{}, fmt.Errorf("opening %s is not before closing %s", opening, closing)
	}
	return model.DayHours{Weekday: weekday, Open: o, Close: c}, nil
}

func WorkInterval(start, end string) (model.WorkInterval, error) {
	s, err := model.ParseMinute(start)
	if err != nil {
		return model.WorkInterval{}, err
	}
	e, err := model.ParseMinute(end)
	if err != nil {
		return model.WorkInterval{}, err
	}
	return model.WorkInterval{Start: s, End: e}, nil
}
