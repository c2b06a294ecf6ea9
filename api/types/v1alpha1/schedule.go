// Package v1alpha1 contains API types shared by the Marquee viewer agent
// and the authority API it consumes.
package v1alpha1

// RepeatRule determines which calendar instants fall inside a schedule's
// active window beyond the first occurrence.
type RepeatRule string

const (
	// RepeatNone limits the schedule to the plain date range
	RepeatNone RepeatRule = "none"
	// RepeatDaily repeats every day inside the date range
	RepeatDaily RepeatRule = "daily"
	// RepeatWeekly repeats on the weekdays listed in WeekDays
	RepeatWeekly RepeatRule = "weekly"
	// RepeatMonthly repeats on the start date's day of month
	RepeatMonthly RepeatRule = "monthly"
)

// Schedule defines a time-boxed, timezone-aware display window over an
// ordered list of content entries. Dates and times are kept as strings in
// the wire format the authority uses: dates as "2006-01-02", times of day
// as "15:04" local to Timezone.
type Schedule struct {
	// ID is the server-assigned identifier
	ID string `json:"id,omitempty"`
	// Name identifies this schedule for management and logging
	Name string `json:"name"`
	// Description is optional operator-facing text
	Description string `json:"description,omitempty"`
	// StartDate is the first calendar day the schedule can be active (inclusive)
	StartDate string `json:"startDate"`
	// EndDate is the last calendar day the schedule can be active (inclusive)
	EndDate string `json:"endDate"`
	// StartTime is when the daily window opens, local to Timezone
	StartTime string `json:"startTime"`
	// EndTime is when the daily window closes, local to Timezone
	EndTime string `json:"endTime"`
	// Timezone is the IANA zone the window is evaluated in
	Timezone string `json:"timezone"`
	// Repeat selects the recurrence rule
	Repeat RepeatRule `json:"repeat"`
	// WeekDays lists weekday indices 0-6 (Sunday=0); required when Repeat is weekly
	WeekDays []int `json:"weekDays,omitempty"`
	// Priority orders simultaneously active schedules (1-10, higher wins;
	// zero is unset and treated as 1)
	Priority int `json:"priority"`
	// IsActive toggles the schedule independently of its window
	IsActive bool `json:"isActive"`
	// Content is the ordered list of entries to display
	Content []ScheduleEntry `json:"content"`
	// UpdatedAt is the authority's last-modified stamp, RFC 3339
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// ScheduleEntry references one content item inside a schedule
type ScheduleEntry struct {
	// ContentRef is the referenced ContentItem ID
	ContentRef string `json:"contentRef"`
	// Order positions the entry within the schedule
	Order int `json:"order"`
	// CustomDuration overrides the item's own duration in seconds, if > 0
	CustomDuration int `json:"customDuration,omitempty"`
}

// ContentType identifies how a content payload should be rendered
type ContentType string

const (
	ContentTypeImage ContentType = "image"
	ContentTypeVideo ContentType = "video"
	ContentTypeURL   ContentType = "url"
	ContentTypeHTML  ContentType = "html"
)

// ContentItem is a single renderable item owned by the content library.
// Schedules reference items, they never embed copies.
type ContentItem struct {
	// ID is the server-assigned identifier
	ID string `json:"id"`
	// Title is the operator-facing name
	Title string `json:"title"`
	// Type selects the rendering path
	Type ContentType `json:"type"`
	// FilePath locates stored media, relative to the authority's media root
	FilePath string `json:"filePath,omitempty"`
	// URL locates remote content for type "url"
	URL string `json:"url,omitempty"`
	// HTMLContent carries inline markup for type "html"
	HTMLContent string `json:"htmlContent,omitempty"`
	// Duration is the default display time in seconds
	Duration int `json:"duration,omitempty"`
	// Approved reports the library approval status
	Approved bool `json:"approved"`
}

// CurrentContentResponse is the authority's answer to "what should this
// viewer render right now". Data is null when nothing is scheduled, which
// is an authoritative statement and not an error.
type CurrentContentResponse struct {
	Success bool         `json:"success"`
	Data    *ContentItem `json:"data"`
	Message string       `json:"message,omitempty"`
}

// ScheduleList wraps schedule collections with metadata
type ScheduleList struct {
	Items []Schedule `json:"items"`
	// TotalCount is the total number of matching schedules
	TotalCount int `json:"totalCount,omitempty"`
}
