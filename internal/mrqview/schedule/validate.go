// Package schedule implements validation and active-window evaluation for
// display schedules. Validation gates operator edits before they reach the
// authority; window evaluation decides which instants a schedule covers.
package schedule

import (
	"time"

	"github.com/marqueehq/marquee/api/types/v1alpha1"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// FieldError describes a single invalid field
type FieldError struct {
	// Field is the schedule field that failed validation
	Field string `json:"field"`
	// Message is the operator-facing description
	Message string `json:"message"`
}

// ValidationResult collects field errors from a validation pass
type ValidationResult struct {
	Errors []FieldError `json:"errors,omitempty"`
}

// Valid reports whether the schedule passed every check
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// ErrorFor returns the message recorded for a field, or ""
func (r ValidationResult) ErrorFor(field string) string {
	for _, e := range r.Errors {
		if e.Field == field {
			return e.Message
		}
	}
	return ""
}

func (r *ValidationResult) add(field, message string) {
	r.Errors = append(r.Errors, FieldError{Field: field, Message: message})
}

// Validate checks a schedule against the rules enforced by the operator
// console. It is pure: it never mutates the schedule and never fails with
// an error, it only reports. The authority revalidates on its side, so the
// resolution path does not depend on this gate.
func Validate(s v1alpha1.Schedule) ValidationResult {
	var result ValidationResult

	if s.Name == "" {
		result.add("name", "schedule name is required")
	}

	startDate, startDateErr := time.Parse(dateLayout, s.StartDate)
	if s.StartDate == "" {
		result.add("startDate", "start date is required")
	} else if startDateErr != nil {
		result.add("startDate", "start date must be formatted YYYY-MM-DD")
	}

	endDate, endDateErr := time.Parse(dateLayout, s.EndDate)
	if s.EndDate == "" {
		result.add("endDate", "end date is required")
	} else if endDateErr != nil {
		result.add("endDate", "end date must be formatted YYYY-MM-DD")
	} else if startDateErr == nil && s.StartDate != "" && endDate.Before(startDate) {
		result.add("endDate", "end date must not be before start date")
	}

	if s.StartTime == "" {
		result.add("startTime", "start time is required")
	} else if _, err := time.Parse(timeLayout, s.StartTime); err != nil {
		result.add("startTime", "start time must be formatted HH:MM")
	}

	if s.EndTime == "" {
		result.add("endTime", "end time is required")
	} else if _, err := time.Parse(timeLayout, s.EndTime); err != nil {
		result.add("endTime", "end time must be formatted HH:MM")
	}

	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			result.add("timezone", "timezone must be a valid IANA zone")
		}
	}

	switch s.Repeat {
	case "", v1alpha1.RepeatNone, v1alpha1.RepeatDaily, v1alpha1.RepeatWeekly, v1alpha1.RepeatMonthly:
	default:
		result.add("repeat", "repeat must be one of none, daily, weekly, monthly")
	}

	if s.Repeat == v1alpha1.RepeatWeekly {
		if len(s.WeekDays) == 0 {
			result.add("weekDays", "at least one week day is required for weekly schedules")
		} else {
			for _, d := range s.WeekDays {
				if d < 0 || d > 6 {
					result.add("weekDays", "week days must be indices 0 through 6")
					break
				}
			}
		}
	}

	// Priority is optional; zero means unset and resolves to the default of 1
	if s.Priority != 0 && (s.Priority < 1 || s.Priority > 10) {
		result.add("priority", "priority must be between 1 and 10")
	}

	if len(s.Content) == 0 {
		result.add("content", "at least one content item is required")
	}

	return result
}
