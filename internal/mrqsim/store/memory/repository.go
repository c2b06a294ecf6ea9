// Package memory provides the in-memory repository used for development
// runs and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marqueehq/marquee/api/types/v1alpha1"
	"github.com/marqueehq/marquee/internal/mrqsim/store"
)

// Repository keeps schedules and content in process memory
type Repository struct {
	mu        sync.RWMutex
	schedules map[string]v1alpha1.Schedule
	content   map[string]v1alpha1.ContentItem
}

// NewRepository creates an empty repository
func NewRepository() *Repository {
	return &Repository{
		schedules: make(map[string]v1alpha1.Schedule),
		content:   make(map[string]v1alpha1.ContentItem),
	}
}

// CreateSchedule stores s under a fresh id
func (r *Repository) CreateSchedule(_ context.Context, s v1alpha1.Schedule) (v1alpha1.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.ID == "" {
		s.ID = uuid.NewString()
	} else if _, exists := r.schedules[s.ID]; exists {
		return v1alpha1.Schedule{}, store.ErrConflict
	}
	s.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	r.schedules[s.ID] = s
	return s, nil
}

// GetSchedule returns the schedule stored under id
func (r *Repository) GetSchedule(_ context.Context, id string) (v1alpha1.Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.schedules[id]
	if !ok {
		return v1alpha1.Schedule{}, store.ErrNotFound
	}
	return s, nil
}

// ListSchedules returns every stored schedule
func (r *Repository) ListSchedules(_ context.Context) ([]v1alpha1.Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]v1alpha1.Schedule, 0, len(r.schedules))
	for _, s := range r.schedules {
		out = append(out, s)
	}
	return out, nil
}

// UpdateSchedule replaces the schedule stored under s.ID
func (r *Repository) UpdateSchedule(_ context.Context, s v1alpha1.Schedule) (v1alpha1.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.schedules[s.ID]; !ok {
		return v1alpha1.Schedule{}, store.ErrNotFound
	}
	s.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	r.schedules[s.ID] = s
	return s, nil
}

// DeleteSchedule removes the schedule from future resolution
func (r *Repository) DeleteSchedule(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.schedules[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.schedules, id)
	return nil
}

// PutContent stores or replaces a content item
func (r *Repository) PutContent(_ context.Context, item v1alpha1.ContentItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	r.content[item.ID] = item
	return nil
}

// GetContent returns the content item stored under id
func (r *Repository) GetContent(_ context.Context, id string) (v1alpha1.ContentItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.content[id]
	if !ok {
		return v1alpha1.ContentItem{}, store.ErrNotFound
	}
	return item, nil
}

// ListContent returns every stored content item
func (r *Repository) ListContent(_ context.Context) ([]v1alpha1.ContentItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]v1alpha1.ContentItem, 0, len(r.content))
	for _, item := range r.content {
		out = append(out, item)
	}
	return out, nil
}
