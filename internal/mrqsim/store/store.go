// Package store defines the simulator's schedule and content persistence
// boundary.
package store

import (
	"context"
	"errors"

	"github.com/marqueehq/marquee/api/types/v1alpha1"
)

// Common store errors
var (
	// ErrNotFound indicates a requested resource doesn't exist
	ErrNotFound = errors.New("resource not found")

	// ErrConflict indicates a resource already exists
	ErrConflict = errors.New("resource already exists")
)

// Repository persists schedules and content items
type Repository interface {
	CreateSchedule(ctx context.Context, s v1alpha1.Schedule) (v1alpha1.Schedule, error)
	GetSchedule(ctx context.Context, id string) (v1alpha1.Schedule, error)
	ListSchedules(ctx context.Context) ([]v1alpha1.Schedule, error)
	UpdateSchedule(ctx context.Context, s v1alpha1.Schedule) (v1alpha1.Schedule, error)
	DeleteSchedule(ctx context.Context, id string) error

	PutContent(ctx context.Context, item v1alpha1.ContentItem) error
	GetContent(ctx context.Context, id string) (v1alpha1.ContentItem, error)
	ListContent(ctx context.Context) ([]v1alpha1.ContentItem, error)
}
