package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marqueehq/marquee/api/types/v1alpha1"
)

func at(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return parsed
}

// activeSchedule returns a daily schedule whose window covers the March
// 2026 instants probed below
func activeSchedule() v1alpha1.Schedule {
	return v1alpha1.Schedule{
		Name:      "Morning Loop",
		StartDate: "2026-01-01",
		EndDate:   "2026-12-31",
		StartTime: "08:00",
		EndTime:   "12:00",
		Repeat:    v1alpha1.RepeatDaily,
		IsActive:  true,
		Content: []v1alpha1.ScheduleEntry{
			{ContentRef: "content-1", Order: 0},
		},
	}
}

func TestActiveAt(t *testing.T) {
	base := activeSchedule()

	tests := []struct {
		name   string
		mutate func(*v1alpha1.Schedule)
		at     string
		want   bool
	}{
		{
			name: "inside_window",
			at:   "2026-03-10T09:30:00Z",
			want: true,
		},
		{
			name:   "inactive_schedule",
			mutate: func(s *v1alpha1.Schedule) { s.IsActive = false },
			at:     "2026-03-10T09:30:00Z",
			want:   false,
		},
		{
			name: "before_date_range",
			at:   "2025-12-31T09:30:00Z",
			want: false,
		},
		{
			name: "after_date_range",
			at:   "2027-01-01T09:30:00Z",
			want: false,
		},
		{
			name: "outside_daily_band",
			at:   "2026-03-10T13:00:00Z",
			want: false,
		},
		{
			name: "band_boundary_start",
			at:   "2026-03-10T08:00:00Z",
			want: true,
		},
		{
			name: "band_boundary_end",
			at:   "2026-03-10T12:00:00Z",
			want: true,
		},
		{
			name: "weekly_matching_day",
			mutate: func(s *v1alpha1.Schedule) {
				s.Repeat = v1alpha1.RepeatWeekly
				s.WeekDays = []int{2} // Tuesday
			},
			at:   "2026-03-10T09:30:00Z", // a Tuesday
			want: true,
		},
		{
			name: "weekly_non_matching_day",
			mutate: func(s *v1alpha1.Schedule) {
				s.Repeat = v1alpha1.RepeatWeekly
				s.WeekDays = []int{5}
			},
			at:   "2026-03-10T09:30:00Z",
			want: false,
		},
		{
			name: "monthly_on_anchor_day",
			mutate: func(s *v1alpha1.Schedule) {
				s.Repeat = v1alpha1.RepeatMonthly
			},
			at:   "2026-04-01T09:30:00Z",
			want: true,
		},
		{
			name: "monthly_off_anchor_day",
			mutate: func(s *v1alpha1.Schedule) {
				s.Repeat = v1alpha1.RepeatMonthly
			},
			at:   "2026-04-02T09:30:00Z",
			want: false,
		},
		{
			name: "overnight_band_before_midnight",
			mutate: func(s *v1alpha1.Schedule) {
				s.StartTime = "22:00"
				s.EndTime = "02:00"
			},
			at:   "2026-03-10T23:00:00Z",
			want: true,
		},
		{
			name: "overnight_band_after_midnight",
			mutate: func(s *v1alpha1.Schedule) {
				s.StartTime = "22:00"
				s.EndTime = "02:00"
			},
			at:   "2026-03-10T01:00:00Z",
			want: true,
		},
		{
			name: "overnight_band_midday_gap",
			mutate: func(s *v1alpha1.Schedule) {
				s.StartTime = "22:00"
				s.EndTime = "02:00"
			},
			at:   "2026-03-10T12:00:00Z",
			want: false,
		},
		{
			name:   "malformed_date_never_covers",
			mutate: func(s *v1alpha1.Schedule) { s.StartDate = "bogus" },
			at:     "2026-03-10T09:30:00Z",
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			if tt.mutate != nil {
				tt.mutate(&s)
			}
			assert.Equal(t, tt.want, ActiveAt(s, at(t, tt.at)))
		})
	}
}

func TestActiveAtHonorsTimezone(t *testing.T) {
	s := activeSchedule()
	s.Timezone = "America/New_York"

	// 14:00 UTC is 10:00 in New York, inside the 08:00-12:00 band
	assert.True(t, ActiveAt(s, at(t, "2026-03-10T14:00:00Z")))
	// 09:00 UTC is 05:00 in New York, outside the band
	assert.False(t, ActiveAt(s, at(t, "2026-03-10T09:00:00Z")))
}

func TestResolveActive(t *testing.T) {
	now := at(t, "2026-03-10T09:30:00Z")

	low := activeSchedule()
	low.ID = "low"
	low.Priority = 2

	high := activeSchedule()
	high.ID = "high"
	high.Priority = 8

	dormant := activeSchedule()
	dormant.ID = "dormant"
	dormant.Priority = 10
	dormant.IsActive = false

	t.Run("highest_priority_wins", func(t *testing.T) {
		got, ok := ResolveActive([]v1alpha1.Schedule{low, high, dormant}, now)
		assert.True(t, ok)
		assert.Equal(t, "high", got.ID)
	})

	t.Run("tie_breaks_on_updated_at", func(t *testing.T) {
		older := activeSchedule()
		older.ID = "older"
		older.UpdatedAt = "2026-03-01T00:00:00Z"

		newer := activeSchedule()
		newer.ID = "newer"
		newer.UpdatedAt = "2026-03-09T00:00:00Z"

		got, ok := ResolveActive([]v1alpha1.Schedule{older, newer}, now)
		assert.True(t, ok)
		assert.Equal(t, "newer", got.ID)
	})

	t.Run("unset_priority_resolves_as_default", func(t *testing.T) {
		unset := activeSchedule()
		unset.ID = "unset"
		unset.UpdatedAt = "2026-03-09T00:00:00Z"

		explicit := activeSchedule()
		explicit.ID = "explicit"
		explicit.Priority = 1
		explicit.UpdatedAt = "2026-03-01T00:00:00Z"

		// Unset counts as priority 1, so the tie falls to UpdatedAt
		got, ok := ResolveActive([]v1alpha1.Schedule{explicit, unset}, now)
		assert.True(t, ok)
		assert.Equal(t, "unset", got.ID)
	})

	t.Run("nothing_scheduled", func(t *testing.T) {
		_, ok := ResolveActive([]v1alpha1.Schedule{dormant}, now)
		assert.False(t, ok)
	})

	t.Run("empty_input", func(t *testing.T) {
		_, ok := ResolveActive(nil, now)
		assert.False(t, ok)
	})
}

func TestFirstEntry(t *testing.T) {
	s := activeSchedule()
	s.Content = []v1alpha1.ScheduleEntry{
		{ContentRef: "third", Order: 3},
		{ContentRef: "first", Order: 1},
		{ContentRef: "second", Order: 2},
	}

	entry, ok := FirstEntry(s)
	assert.True(t, ok)
	assert.Equal(t, "first", entry.ContentRef)

	s.Content = nil
	_, ok = FirstEntry(s)
	assert.False(t, ok)
}
