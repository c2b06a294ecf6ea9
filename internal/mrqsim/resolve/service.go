// Package resolve computes the authority-side answer to "what should a
// viewer render right now" from stored schedules.
package resolve

import (
	"context"
	"log/slog"
	"time"

	"github.com/marqueehq/marquee/api/types/v1alpha1"
	"github.com/marqueehq/marquee/internal/mrqsim/store"
	"github.com/marqueehq/marquee/internal/mrqview/schedule"
)

// Service resolves current content. Clock is injectable for tests.
type Service struct {
	repo   store.Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a resolver over the given repository
func NewService(repo store.Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With("component", "resolve"),
		now:    time.Now,
	}
}

// WithClock overrides the resolver's clock, for tests
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Current returns the content the highest-priority active schedule points
// at. An empty answer is authoritative: Success stays true and Data nil.
func (s *Service) Current(ctx context.Context) (v1alpha1.CurrentContent, error) {
	schedules, err := s.repo.ListSchedules(ctx)
	if err != nil {
		return v1alpha1.CurrentContent{}, err
	}

	now := s.now()
	active, found := schedule.ResolveActive(schedules, now)
	if !found {
		return v1alpha1.CurrentContent{Success: true, Message: "No active schedule"}, nil
	}

	entry, ok := schedule.FirstEntry(active)
	if !ok {
		return v1alpha1.CurrentContent{Success: true, Message: "Schedule has no content"}, nil
	}

	item, err := s.repo.GetContent(ctx, entry.ContentRef)
	if err != nil {
		s.logger.Warn("active schedule references missing content",
			"scheduleId", active.ID,
			"contentRef", entry.ContentRef,
		)
		return v1alpha1.CurrentContent{Success: true, Message: "Scheduled content unavailable"}, nil
	}

	if entry.CustomDuration > 0 {
		item.Duration = entry.CustomDuration
	}

	return v1alpha1.CurrentContent{Success: true, Data: &item}, nil
}
