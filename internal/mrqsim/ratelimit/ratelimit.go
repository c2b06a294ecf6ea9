// Package ratelimit keeps one misbehaving viewer from hammering the poll
// and socket endpoints.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// LimitKey identifies a specific rate limit
type LimitKey struct {
	Type     string // e.g. "poll", "ws_connect"
	Token    string // auth token or other unique identifier
	RemoteIP string // remote IP for unauthenticated limits
}

// Limit defines the rate limit configuration
type Limit struct {
	// Rate is the number of operations allowed
	Rate int

	// Period is the time window for the rate
	Period time.Duration

	// BurstSize allows a short burst over the rate (optional)
	BurstSize int
}

// Store handles rate limit state persistence
type Store interface {
	// Increment attempts to increment a counter and returns the current count.
	// Returns ErrLimitExceeded when the limit is passed.
	Increment(ctx context.Context, key LimitKey, limit Limit) (int, error)

	// Reset clears a rate limit counter
	Reset(ctx context.Context, key LimitKey) error
}

// Error types for rate limiting
var (
	ErrLimitExceeded = Error{Code: "RATE_LIMITED", Message: "rate limit exceeded"}
	ErrStoreError    = Error{Code: "STORE_ERROR", Message: "rate limit store error"}
	ErrInvalidKey    = Error{Code: "INVALID_KEY", Message: "invalid rate limit key"}
)

// Error represents a rate limiting error
type Error struct {
	Code    string
	Message string
}

func (e Error) Error() string {
	return e.Message
}

// Service manages rate limiting for the simulator
type Service struct {
	store   Store
	logger  *slog.Logger
	limits  map[string]Limit
	limitsM sync.RWMutex
}

// NewService creates a new rate limiting service
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		limits: make(map[string]Limit),
	}
}

// RegisterLimit adds or updates a rate limit configuration
func (s *Service) RegisterLimit(limitType string, limit Limit) {
	s.limitsM.Lock()
	defer s.limitsM.Unlock()
	s.limits[limitType] = limit
}

// RegisterDefaultLimits configures standard rate limits
func (s *Service) RegisterDefaultLimits() {
	// One poll every few seconds is already generous next to the 30s default
	s.RegisterLimit("poll", Limit{
		Rate:      30,
		Period:    time.Minute,
		BurstSize: 10,
	})
	s.RegisterLimit("ws_connect", Limit{
		Rate:      10,
		Period:    time.Minute,
		BurstSize: 5,
	})
}

// GetLimit returns the configured limit for a key type
func (s *Service) GetLimit(limitType string) Limit {
	s.limitsM.RLock()
	defer s.limitsM.RUnlock()
	return s.limits[limitType]
}

// Allow checks if an operation should be allowed
func (s *Service) Allow(ctx context.Context, key LimitKey) error {
	if key.Type == "" {
		return ErrInvalidKey
	}

	limit := s.GetLimit(key.Type)
	if limit.Rate == 0 {
		s.logger.Warn("no rate limit configured for type", "type", key.Type)
		// Allow if no limit configured
		return nil
	}

	count, err := s.store.Increment(ctx, key, limit)
	if err != nil {
		s.logger.Debug("rate limit check failed",
			"error", err,
			"type", key.Type,
			"remoteIP", key.RemoteIP,
		)
		return err
	}

	s.logger.Debug("rate limit check",
		"type", key.Type,
		"count", count,
		"limit", limit.Rate,
	)
	return nil
}

// Reset clears rate limit counters for a key
func (s *Service) Reset(ctx context.Context, key LimitKey) error {
	if key.Type == "" {
		return ErrInvalidKey
	}
	return s.store.Reset(ctx, key)
}
