package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Minute is a wall-clock time of day expressed as minutes after midnight in the business timezone.
type Minute int

// ParseMinute parses "HH:MM" (or "HH:MM:SS", seconds ignored) into a Minute.
func ParseMinute(s string) (Minute, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return Minute(h*60 + m), nil
}

func (m Minute) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

// On returns the instant at this wall-clock time on day's calendar date, in day's location.
// Built with time.Date so DST transitions resolve the way the local clock does.
func (m Minute) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), int(m)/60, int(m)%60, 0, 0, day.Location())
}

// DayHours are the opening hours of a business for one weekday, after resolving
// the default pair against per-day overrides.
type DayHours struct {
	Weekday  time.Weekday
	Open     Minute
	Close    Minute
	IsClosed bool
}

// WorkInterval is one span of a staff member's weekly schedule.
type WorkInterval struct {
	Start Minute
	End   Minute
}

type Staff struct {
	ID         string
	BusinessID string
	Name       string
	IsActive   bool
}
