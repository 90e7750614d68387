package availability

import (
	"sort"
	"time"

	"github.com/agendly/agendly/services/availability-service/internal/model"
)

type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps uses half-open semantics: [a,b) and [c,d) overlap iff a < d && c < b,
// so back-to-back bookings do not conflict.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Contains reports whether o lies entirely inside i.
func (i Interval) Contains(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

// WalkWindow emits every start in window spaced by step for which a booking of length
// duration still ends by window.End. A start is unavailable when the booking would overlap
// any busy interval or when it is not strictly after now.
//
// All times are expected to be in the same location (timezone).
func WalkWindow(window Interval, duration, step time.Duration, busy []Interval, now time.Time) []model.TimeSlot {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if !window.End.After(window.Start) {
		return nil
	}

	var slots []model.TimeSlot
	for t := window.Start; !t.Add(duration).After(window.End); t = t.Add(step) {
		candidate := Interval{Start: t, End: t.Add(duration)}
		slots = append(slots, model.TimeSlot{
			Time:      t.Format("15:04"),
			Datetime:  t.Format(time.RFC3339),
			Available: t.After(now) && !overlapsAny(candidate, busy),
		})
	}
	return slots
}

func overlapsAny(candidate Interval, busy []Interval) bool {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}

// busyIntervals keeps only rows that really hold staffID's time.
func busyIntervals(staffID string, appts []model.Appointment, blocks []model.ScheduleBlock) []Interval {
	busy := make([]Interval, 0, len(appts)+len(blocks))
	for _, a := range appts {
		if !a.Blocks() {
			continue
		}
		busy = append(busy, Interval{Start: a.StartTime, End: a.EndTime})
	}
	for _, b := range blocks {
		if !b.AppliesToAll && b.StaffID != "" && b.StaffID != staffID {
			continue
		}
		busy = append(busy, Interval{Start: b.StartTime, End: b.EndTime})
	}
	return busy
}

// MergeSlots folds several slot lists into one keyed by time of day. A time is available
// if any list has it available; an available entry is never replaced by an unavailable one.
// The result is sorted by time of day.
func MergeSlots(lists ...[]model.TimeSlot) []model.TimeSlot {
	byTime := make(map[string]model.TimeSlot)
	for _, list := range lists {
		for _, s := range list {
			prev, seen := byTime[s.Time]
			if !seen || (!prev.Available && s.Available) {
				byTime[s.Time] = s
			}
		}
	}

	out := make([]model.TimeSlot, 0, len(byTime))
	for _, s := range byTime {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}
