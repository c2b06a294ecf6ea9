package schedule

import (
	"sort"
	"time"

	"github.com/marqueehq/marquee/api/types/v1alpha1"
)

// ActiveAt reports whether the schedule's window covers the instant t.
// A schedule covers t when it is toggled active, t's calendar day in the
// schedule's zone falls inside [StartDate, EndDate], t's time of day falls
// inside [StartTime, EndTime], and t satisfies the repeat rule. Malformed
// schedules never cover anything.
func ActiveAt(s v1alpha1.Schedule, t time.Time) bool {
	if !s.IsActive {
		return false
	}

	loc := time.UTC
	if s.Timezone != "" {
		l, err := time.LoadLocation(s.Timezone)
		if err != nil {
			return false
		}
		loc = l
	}
	local := t.In(loc)

	startDate, err := time.ParseInLocation(dateLayout, s.StartDate, loc)
	if err != nil {
		return false
	}
	endDate, err := time.ParseInLocation(dateLayout, s.EndDate, loc)
	if err != nil {
		return false
	}

	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	if day.Before(startDate) || day.After(endDate) {
		return false
	}

	if !insideDailyWindow(s, local) {
		return false
	}

	switch s.Repeat {
	case "", v1alpha1.RepeatNone, v1alpha1.RepeatDaily:
		return true
	case v1alpha1.RepeatWeekly:
		wd := int(local.Weekday())
		for _, d := range s.WeekDays {
			if d == wd {
				return true
			}
		}
		return false
	case v1alpha1.RepeatMonthly:
		return local.Day() == startDate.Day()
	default:
		return false
	}
}

// insideDailyWindow checks the time-of-day band. An end before the start
// is treated as a window wrapping past midnight.
func insideDailyWindow(s v1alpha1.Schedule, local time.Time) bool {
	start, err := time.Parse(timeLayout, s.StartTime)
	if err != nil {
		return false
	}
	end, err := time.Parse(timeLayout, s.EndTime)
	if err != nil {
		return false
	}

	minutes := local.Hour()*60 + local.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()

	if endMin < startMin {
		return minutes >= startMin || minutes <= endMin
	}
	return minutes >= startMin && minutes <= endMin
}

// ResolveActive returns the schedule that should drive rendering at t:
// the active-window schedule with the highest priority, ties broken by the
// most recent UpdatedAt stamp. The second return is false when nothing is
// scheduled, which callers must treat as an authoritative empty answer.
func ResolveActive(schedules []v1alpha1.Schedule, t time.Time) (v1alpha1.Schedule, bool) {
	var (
		best  v1alpha1.Schedule
		found bool
	)
	for _, s := range schedules {
		if !ActiveAt(s, t) {
			continue
		}
		p, bp := effectivePriority(s), effectivePriority(best)
		if !found || p > bp ||
			(p == bp && s.UpdatedAt > best.UpdatedAt) {
			best = s
			found = true
		}
	}
	return best, found
}

// effectivePriority treats an unset priority as the default of 1
func effectivePriority(s v1alpha1.Schedule) int {
	if s.Priority == 0 {
		return 1
	}
	return s.Priority
}

// FirstEntry returns the schedule's lowest-order content entry
func FirstEntry(s v1alpha1.Schedule) (v1alpha1.ScheduleEntry, bool) {
	if len(s.Content) == 0 {
		return v1alpha1.ScheduleEntry{}, false
	}
	entries := make([]v1alpha1.ScheduleEntry, len(s.Content))
	copy(entries, s.Content)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Order < entries[j].Order
	})
	return entries[0], true
}
