// Package postgres implements the simulator repository on PostgreSQL.
// Schedule bodies are stored as JSONB documents keyed by id; the wire
// format is the storage format, which keeps the simulator honest about
// what the real authority serves.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marqueehq/marquee/api/types/v1alpha1"
	"github.com/marqueehq/marquee/internal/mrqsim/database"
	"github.com/marqueehq/marquee/internal/mrqsim/store"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Repository is the postgres-backed store
type Repository struct {
	db *sql.DB
}

// NewRepository wraps an open database handle
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Migrate applies embedded schema migrations in filename order
func Migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		var exists bool
		err = db.QueryRow("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", name).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}
		if exists {
			continue
		}

		body, err := migrationFiles.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to start transaction for migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(body)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES ($1)", name); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", name, err)
		}
	}

	return nil
}

// CreateSchedule stores s under a fresh id
func (r *Repository) CreateSchedule(ctx context.Context, s v1alpha1.Schedule) (v1alpha1.Schedule, error) {
	const op = "PostgresRepository.CreateSchedule"

	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	body, err := json.Marshal(s)
	if err != nil {
		return v1alpha1.Schedule{}, database.MapError(err, op)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO schedules (id, body) VALUES ($1, $2)",
		s.ID, body,
	)
	if err != nil {
		return v1alpha1.Schedule{}, database.MapError(err, op)
	}
	return s, nil
}

// GetSchedule returns the schedule stored under id
func (r *Repository) GetSchedule(ctx context.Context, id string) (v1alpha1.Schedule, error) {
	const op = "PostgresRepository.GetSchedule"

	var body []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT body FROM schedules WHERE id = $1", id,
	).Scan(&body)
	if err != nil {
		return v1alpha1.Schedule{}, database.MapError(err, op)
	}

	var s v1alpha1.Schedule
	if err := json.Unmarshal(body, &s); err != nil {
		return v1alpha1.Schedule{}, database.MapError(err, op)
	}
	return s, nil
}

// ListSchedules returns every stored schedule
func (r *Repository) ListSchedules(ctx context.Context) ([]v1alpha1.Schedule, error) {
	const op = "PostgresRepository.ListSchedules"

	rows, err := r.db.QueryContext(ctx, "SELECT body FROM schedules ORDER BY created_at")
	if err != nil {
		return nil, database.MapError(err, op)
	}
	defer rows.Close()

	var out []v1alpha1.Schedule
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, database.MapError(err, op)
		}
		var s v1alpha1.Schedule
		if err := json.Unmarshal(body, &s); err != nil {
			return nil, database.MapError(err, op)
		}
		out = append(out, s)
	}
	return out, database.MapError(rows.Err(), op)
}

// UpdateSchedule replaces the schedule stored under s.ID
func (r *Repository) UpdateSchedule(ctx context.Context, s v1alpha1.Schedule) (v1alpha1.Schedule, error) {
	const op = "PostgresRepository.UpdateSchedule"

	s.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	body, err := json.Marshal(s)
	if err != nil {
		return v1alpha1.Schedule{}, database.MapError(err, op)
	}

	result, err := r.db.ExecContext(ctx,
		"UPDATE schedules SET body = $2, updated_at = NOW() WHERE id = $1",
		s.ID, body,
	)
	if err != nil {
		return v1alpha1.Schedule{}, database.MapError(err, op)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return v1alpha1.Schedule{}, database.MapError(sql.ErrNoRows, op)
	}
	return s, nil
}

// DeleteSchedule removes the schedule from future resolution
func (r *Repository) DeleteSchedule(ctx context.Context, id string) error {
	const op = "PostgresRepository.DeleteSchedule"

	result, err := r.db.ExecContext(ctx, "DELETE FROM schedules WHERE id = $1", id)
	if err != nil {
		return database.MapError(err, op)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return database.MapError(sql.ErrNoRows, op)
	}
	return nil
}

// PutContent stores or replaces a content item
func (r *Repository) PutContent(ctx context.Context, item v1alpha1.ContentItem) error {
	const op = "PostgresRepository.PutContent"

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	body, err := json.Marshal(item)
	if err != nil {
		return database.MapError(err, op)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO content_items (id, body) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()
	`, item.ID, body)
	return database.MapError(err, op)
}

// GetContent returns the content item stored under id
func (r *Repository) GetContent(ctx context.Context, id string) (v1alpha1.ContentItem, error) {
	const op = "PostgresRepository.GetContent"

	var body []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT body FROM content_items WHERE id = $1", id,
	).Scan(&body)
	if err != nil {
		return v1alpha1.ContentItem{}, database.MapError(err, op)
	}

	var item v1alpha1.ContentItem
	if err := json.Unmarshal(body, &item); err != nil {
		return v1alpha1.ContentItem{}, database.MapError(err, op)
	}
	return item, nil
}

// ListContent returns every stored content item
func (r *Repository) ListContent(ctx context.Context) ([]v1alpha1.ContentItem, error) {
	const op = "PostgresRepository.ListContent"

	rows, err := r.db.QueryContext(ctx, "SELECT body FROM content_items ORDER BY created_at")
	if err != nil {
		return nil, database.MapError(err, op)
	}
	defer rows.Close()

	var out []v1alpha1.ContentItem
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, database.MapError(err, op)
		}
		var item v1alpha1.ContentItem
		if err := json.Unmarshal(body, &item); err != nil {
			return nil, database.MapError(err, op)
		}
		out = append(out, item)
	}
	return out, database.MapError(rows.Err(), op)
}

var _ store.Repository = (*Repository)(nil)
