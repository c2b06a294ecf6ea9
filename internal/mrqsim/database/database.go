// Package database provides utilities for the simulator's postgres store
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/marqueehq/marquee/internal/mrqsim/store"
)

// Setup opens a pooled connection and verifies it with bounded retries,
// so the simulator survives starting before its database does.
func Setup(connStr string, maxRetries int, retryDelay time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	var pingErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if pingErr = db.Ping(); pingErr == nil {
			return db, nil
		}
		time.Sleep(retryDelay)
	}

	db.Close()
	return nil, fmt.Errorf("failed to ping database after %d attempts: %w", maxRetries+1, pingErr)
}

// MapError converts database-specific errors to store errors
func MapError(err error, op string) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w", op, store.ErrConflict)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: %w", op, store.ErrNotFound)
		}
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, store.ErrNotFound)
	}

	return fmt.Errorf("%s: %w", op, err)
}
