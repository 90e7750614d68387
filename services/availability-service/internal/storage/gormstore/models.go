package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// uuidPK assigns a random UUID on insert so the same models work on sqlite and postgres.
type uuidPK struct {
	ID string `gorm:"type:varchar(36);primaryKey"`
}

func (p *uuidPK) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// businesses
type Business struct {
	uuidPK
	Name               string `gorm:"type:varchar(255);not null"`
	Timezone           string `gorm:"type:varchar(64)"`
	CustomHoursEnabled bool   `gorm:"not null"`
	OpeningTime        string `gorm:"type:varchar(5);not null"`
	ClosingTime        string `gorm:"type:varchar(5);not null"`
	CreatedAt          time.Time
}

// business_hours: one optional override per weekday.
type BusinessHours struct {
	uuidPK
	BusinessID  string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_business_day"`
	DayOfWeek   int     `gorm:"not null;uniqueIndex:idx_business_day"`
	OpeningTime *string `gorm:"type:varchar(5)"`
	ClosingTime *string `gorm:"type:varchar(5)"`
	IsClosed    bool    `gorm:"not null"`
}

type Staff struct {
	uuidPK
	BusinessID string `gorm:"type:varchar(36);not null;index"`
	Name       string `gorm:"type:varchar(255);not null"`
	IsActive   bool   `gorm:"not null"`
	CreatedAt  time.Time
}

func (Staff) TableName() string { return "staff" }

type StaffSchedule struct {
	uuidPK
	StaffID   string `gorm:"type:varchar(36);not null;index:idx_staff_day"`
	DayOfWeek int    `gorm:"not null;index:idx_staff_day"`
	StartTime string `gorm:"type:varchar(5);not null"`
	EndTime   string `gorm:"type:varchar(5);not null"`
}

type Service struct {
	uuidPK
	BusinessID      string `gorm:"type:varchar(36);not null;index"`
	Name            string `gorm:"type:varchar(255);not null"`
	DurationMinutes int    `gorm:"not null"`
}

type Appointment struct {
	uuidPK
	BusinessID    string    `gorm:"type:varchar(36);not null;index:idx_appt_staff_range,priority:1"`
	ServiceID     string    `gorm:"type:varchar(36);not null"`
	StaffID       string    `gorm:"type:varchar(36);not null;index:idx_appt_staff_range,priority:2"`
	CustomerName  string    `gorm:"type:varchar(255);not null"`
	CustomerEmail string    `gorm:"type:varchar(255)"`
	CustomerPhone string    `gorm:"type:varchar(32)"`
	StartTime     time.Time `gorm:"not null;index:idx_appt_staff_range,priority:3"`
	EndTime       time.Time `gorm:"not null"`
	Status        string    `gorm:"type:varchar(16);not null;index"`
	CreatedAt     time.Time
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

// schedule_blocks: StaffID is nil for business-wide blocks.
type ScheduleBlock struct {
	uuidPK
	BusinessID   string    `gorm:"type:varchar(36);not null;index"`
	StaffID      *string   `gorm:"type:varchar(36);index"`
	AppliesToAll bool      `gorm:"not null"`
	StartTime    time.Time `gorm:"not null"`
	EndTime      time.Time `gorm:"not null"`
	Reason       string    `gorm:"type:text"`
}

// AutoMigrate creates or updates every table the store reads.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Business{},
		&BusinessHours{},
		&Staff{},
		&StaffSchedule{},
		&Service{},
		&Appointment{},
		&ScheduleBlock{},
	)
}
