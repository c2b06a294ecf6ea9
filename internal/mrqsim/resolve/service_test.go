package resolve

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marqueehq/marquee/api/types/v1alpha1"
	"github.com/marqueehq/marquee/internal/mrqsim/store/memory"
)

var noon = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func seedSchedule(t *testing.T, repo *memory.Repository, s v1alpha1.Schedule) v1alpha1.Schedule {
	t.Helper()
	if s.StartDate == "" {
		s.StartDate = "2026-01-01"
		s.EndDate = "2026-12-31"
		s.StartTime = "08:00"
		s.EndTime = "18:00"
	}
	if s.Priority == 0 {
		s.Priority = 5
	}
	s.IsActive = true
	created, err := repo.CreateSchedule(context.Background(), s)
	require.NoError(t, err)
	return created
}

func seedContent(t *testing.T, repo *memory.Repository, id string) {
	t.Helper()
	require.NoError(t, repo.PutContent(context.Background(), v1alpha1.ContentItem{
		ID:       id,
		Title:    id,
		Type:     v1alpha1.ContentTypeImage,
		Duration: 10,
	}))
}

func newService(repo *memory.Repository) *Service {
	return NewService(repo, slog.Default()).WithClock(func() time.Time { return noon })
}

func TestCurrentReturnsActiveContent(t *testing.T) {
	repo := memory.NewRepository()
	seedContent(t, repo, "c-1")
	seedSchedule(t, repo, v1alpha1.Schedule{
		Name:    "Daytime",
		Content: []v1alpha1.ScheduleEntry{{ContentRef: "c-1", Order: 0}},
	})

	current, err := newService(repo).Current(context.Background())
	require.NoError(t, err)
	assert.True(t, current.Success)
	require.NotNil(t, current.Data)
	assert.Equal(t, "c-1", current.Data.ID)
}

func TestCurrentPrefersHigherPriority(t *testing.T) {
	repo := memory.NewRepository()
	seedContent(t, repo, "c-low")
	seedContent(t, repo, "c-high")
	seedSchedule(t, repo, v1alpha1.Schedule{
		Name:     "Background",
		Priority: 2,
		Content:  []v1alpha1.ScheduleEntry{{ContentRef: "c-low"}},
	})
	seedSchedule(t, repo, v1alpha1.Schedule{
		Name:     "Takeover",
		Priority: 9,
		Content:  []v1alpha1.ScheduleEntry{{ContentRef: "c-high"}},
	})

	current, err := newService(repo).Current(context.Background())
	require.NoError(t, err)
	require.NotNil(t, current.Data)
	assert.Equal(t, "c-high", current.Data.ID)
}

func TestCurrentUsesLowestOrderEntry(t *testing.T) {
	repo := memory.NewRepository()
	seedContent(t, repo, "c-first")
	seedContent(t, repo, "c-second")
	seedSchedule(t, repo, v1alpha1.Schedule{
		Name: "Loop",
		Content: []v1alpha1.ScheduleEntry{
			{ContentRef: "c-second", Order: 2},
			{ContentRef: "c-first", Order: 1},
		},
	})

	current, err := newService(repo).Current(context.Background())
	require.NoError(t, err)
	require.NotNil(t, current.Data)
	assert.Equal(t, "c-first", current.Data.ID)
}

func TestCurrentAppliesCustomDuration(t *testing.T) {
	repo := memory.NewRepository()
	seedContent(t, repo, "c-1")
	seedSchedule(t, repo, v1alpha1.Schedule{
		Name:    "Loop",
		Content: []v1alpha1.ScheduleEntry{{ContentRef: "c-1", CustomDuration: 45}},
	})

	current, err := newService(repo).Current(context.Background())
	require.NoError(t, err)
	require.NotNil(t, current.Data)
	assert.Equal(t, 45, current.Data.Duration)
}

func TestCurrentEmptyAnswersAreAuthoritative(t *testing.T) {
	t.Run("no_schedules", func(t *testing.T) {
		current, err := newService(memory.NewRepository()).Current(context.Background())
		require.NoError(t, err)
		assert.True(t, current.Success)
		assert.Nil(t, current.Data)
		assert.Equal(t, "No active schedule", current.Message)
	})

	t.Run("schedule_outside_window", func(t *testing.T) {
		repo := memory.NewRepository()
		seedContent(t, repo, "c-1")
		seedSchedule(t, repo, v1alpha1.Schedule{
			Name:      "Night Only",
			StartDate: "2026-01-01",
			EndDate:   "2026-12-31",
			StartTime: "22:00",
			EndTime:   "23:00",
			Content:   []v1alpha1.ScheduleEntry{{ContentRef: "c-1"}},
		})

		current, err := newService(repo).Current(context.Background())
		require.NoError(t, err)
		assert.Nil(t, current.Data)
		assert.Equal(t, "No active schedule", current.Message)
	})

	t.Run("missing_content", func(t *testing.T) {
		repo := memory.NewRepository()
		seedSchedule(t, repo, v1alpha1.Schedule{
			Name:    "Dangling",
			Content: []v1alpha1.ScheduleEntry{{ContentRef: "gone"}},
		})

		current, err := newService(repo).Current(context.Background())
		require.NoError(t, err)
		assert.True(t, current.Success)
		assert.Nil(t, current.Data)
		assert.Equal(t, "Scheduled content unavailable", current.Message)
	})
}
