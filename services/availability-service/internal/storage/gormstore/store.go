package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agendly/agendly/services/availability-service/internal/availability"
	"github.com/agendly/agendly/services/availability-service/internal/model"
	"github.com/agendly/agendly/services/availability-service/internal/storage"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to sqlite (file path or ":memory:") or postgres (DSN) through gorm.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres", "gorm":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("gormstore: unsupported driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gorm open: %w", err)
	}
	return db, nil
}

func ReadyCheck(db *gorm.DB) func(context.Context) error {
	return func(ctx context.Context) error {
		if db == nil {
			return errors.New("db not configured")
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

// Store implements availability.Store and the booking writer on top of gorm.
// Instants are stored in UTC so range comparisons hold on sqlite's text timestamps.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ServiceDuration(ctx context.Context, businessID, serviceID string) (int, error) {
	var svc Service
	err := s.db.WithContext(ctx).
		Where("id = ? AND business_id = ?", serviceID, businessID).
		First(&svc).Error
	if err != nil {
		return 0, mapErr(err)
	}
	return svc.DurationMinutes, nil
}

func (s *Store) BusinessTimezone(ctx context.Context, businessID string) (string, error) {
	var b Business
	if err := s.db.WithContext(ctx).Where("id = ?", businessID).First(&b).Error; err != nil {
		return "", mapErr(err)
	}
	return b.Timezone, nil
}

func (s *Store) BusinessHoursForDay(ctx context.Context, businessID string, weekday time.Weekday) (model.DayHours, error) {
	var b Business
	if err := s.db.WithContext(ctx).Where("id = ?", businessID).First(&b).Error; err != nil {
		return model.DayHours{}, mapErr(err)
	}

	if b.CustomHoursEnabled {
		var rows []BusinessHours
		err := s.db.WithContext(ctx).
			Where("business_id = ? AND day_of_week = ?", businessID, int(weekday)).
			Limit(1).
			Find(&rows).Error
		if err != nil {
			return model.DayHours{}, err
		}
		if len(rows) == 1 {
			h := rows[0]
			if h.IsClosed {
				return model.DayHours{Weekday: weekday, IsClosed: true}, nil
			}
			if h.OpeningTime != nil && h.ClosingTime != nil {
				return storage.DayHours(weekday, *h.OpeningTime, *h.ClosingTime)
			}
		}
	}
	return storage.DayHours(weekday, b.OpeningTime, b.ClosingTime)
}

func (s *Store) StaffScheduleForDay(ctx context.Context, businessID, staffID string, weekday time.Weekday) ([]model.WorkInterval, error) {
	var rows []StaffSchedule
	err := s.db.WithContext(ctx).
		Where("staff_id = ? AND day_of_week = ?", staffID, int(weekday)).
		Where("staff_id IN (?)", s.db.Model(&Staff{}).Select("id").Where("business_id = ?", businessID)).
		Order("start_time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	intervals := make([]model.WorkInterval, 0, len(rows))
	for _, r := range rows {
		iv, err := storage.WorkInterval(r.StartTime, r.EndTime)
		if err != nil {
			return nil, err
		}
		intervals = append(intervals, iv)
	}
	return intervals, nil
}

func (s *Store) AppointmentsOverlapping(ctx context.Context, businessID, staffID string, from, to time.Time, statuses []model.AppointmentStatus) ([]model.Appointment, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}

	var rows []Appointment
	err := s.overlapping(s.db.WithContext(ctx), businessID, staffID, from, to, names).
		Order("start_time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	appts := make([]model.Appointment, 0, len(rows))
	for _, r := range rows {
		appts = append(appts, r.toModel())
	}
	return appts, nil
}

func (s *Store) BlocksOverlapping(ctx context.Context, businessID, staffID string, from, to time.Time) ([]model.ScheduleBlock, error) {
	var rows []ScheduleBlock
	err := s.db.WithContext(ctx).
		Where("business_id = ?", businessID).
		Where("(staff_id = ? OR applies_to_all = ?)", staffID, true).
		Where("start_time < ? AND end_time > ?", to.UTC(), from.UTC()).
		Order("start_time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	blocks := make([]model.ScheduleBlock, 0, len(rows))
	for _, r := range rows {
		b := model.ScheduleBlock{
			ID:           r.ID,
			BusinessID:   r.BusinessID,
			AppliesToAll: r.AppliesToAll,
			StartTime:    r.StartTime,
			EndTime:      r.EndTime,
			Reason:       r.Reason,
		}
		if r.StaffID != nil {
			b.StaffID = *r.StaffID
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

func (s *Store) ActiveStaff(ctx context.Context, businessID string) ([]model.Staff, error) {
	var rows []Staff
	err := s.db.WithContext(ctx).
		Where("business_id = ? AND is_active = ?", businessID, true).
		Order("name ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	staff := make([]model.Staff, 0, len(rows))
	for _, r := range rows {
		staff = append(staff, model.Staff{ID: r.ID, BusinessID: r.BusinessID, Name: r.Name, IsActive: r.IsActive})
	}
	return staff, nil
}

// CreateAppointment checks for an overlapping blocking appointment and inserts inside one
// transaction. Databases without an exclusion constraint rely on this check alone.
func (s *Store) CreateAppointment(ctx context.Context, appt *model.Appointment) (string, error) {
	row := Appointment{
		BusinessID:    appt.BusinessID,
		ServiceID:     appt.ServiceID,
		StaffID:       appt.StaffID,
		CustomerName:  appt.CustomerName,
		CustomerEmail: appt.CustomerEmail,
		CustomerPhone: appt.CustomerPhone,
		StartTime:     appt.StartTime.UTC(),
		EndTime:       appt.EndTime.UTC(),
		Status:        string(appt.Status),
	}
	blocking := make([]string, len(model.BlockingStatuses))
	for i, st := range model.BlockingStatuses {
		blocking[i] = string(st)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		err := s.overlapping(tx.Model(&Appointment{}), appt.BusinessID, appt.StaffID, appt.StartTime, appt.EndTime, blocking).
			Count(&n).Error
		if err != nil {
			return err
		}
		if n > 0 {
			return availability.ErrConflict
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return "", mapErr(err)
	}
	return row.ID, nil
}

func (s *Store) overlapping(q *gorm.DB, businessID, staffID string, from, to time.Time, statuses []string) *gorm.DB {
	return q.
		Where("business_id = ? AND staff_id = ?", businessID, staffID).
		Where("status IN ?", statuses).
		Where("start_time < ? AND end_time > ?", to.UTC(), from.UTC())
}

func (a Appointment) toModel() model.Appointment {
	out := model.Appointment{
		ID:            a.ID,
		BusinessID:    a.BusinessID,
		ServiceID:     a.ServiceID,
		StaffID:       a.StaffID,
		CustomerName:  a.CustomerName,
		CustomerEmail: a.CustomerEmail,
		CustomerPhone: a.CustomerPhone,
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		Status:        model.AppointmentStatus(a.Status),
		CreatedAt:     a.CreatedAt,
	}
	if a.DeletedAt.Valid {
		t := a.DeletedAt.Time
		out.DeletedAt = &t
	}
	return out
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return availability.ErrNotFound
	case errors.Is(err, availability.ErrConflict):
		return err
	case errors.Is(err, gorm.ErrDuplicatedKey), storage.IsConflict(err):
		return fmt.Errorf("%w: %v", availability.ErrConflict, err)
	default:
		return err
	}
}
