// Package request issues current-content requests over the push channel
// and matches their asynchronous replies by correlation id.
package request

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marqueehq/marquee/api/types/v1alpha1"
	"github.com/marqueehq/marquee/internal/mrqview/connection"
	"github.com/marqueehq/marquee/internal/mrqview/events"
)

// DefaultTimeout bounds how long a request waits for its reply
const DefaultTimeout = 2 * time.Second

// Outcome reports how a request concluded
type Outcome string

const (
	// OutcomeResponse means the matching reply arrived in time
	OutcomeResponse Outcome = "response"
	// OutcomeTimeout means no reply arrived; callers fall back to REST
	OutcomeTimeout Outcome = "timeout"
)

// Result is the conclusion of one correlated request. Timeouts are a
// normal outcome, not an error: they only signal the caller to pull over
// REST instead.
type Result struct {
	Outcome   Outcome
	Payload   v1alpha1.CurrentContent
	StartedAt time.Time
	// ObservedAt is the client receipt time of the reply; zero on timeout
	ObservedAt time.Time
}

// Correlator matches request-current-content frames to their replies
type Correlator struct {
	conn    *connection.Manager
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]chan Result

	unsubscribe func()
}

// NewCorrelator wires a correlator to the channel and dispatcher. Close
// must be called to release the response subscription.
func NewCorrelator(conn *connection.Manager, dispatcher *events.Dispatcher, timeout time.Duration, logger *slog.Logger) *Correlator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Correlator{
		conn:    conn,
		timeout: timeout,
		logger:  logger.With("component", "correlator"),
		pending: make(map[string]chan Result),
	}
	c.unsubscribe = dispatcher.Subscribe(events.KindCurrentResponse, c.onResponse)
	return c
}

// RequestCurrent sends one correlated request and waits for its reply. It
// always returns within the configured timeout: a silent channel, a closed
// channel, and a canceled context all produce the timeout outcome.
func (c *Correlator) RequestCurrent(ctx context.Context) Result {
	started := time.Now()

	// A channel that is not open cannot answer; skip straight to fallback
	if !c.conn.IsOpen() {
		return Result{Outcome: OutcomeTimeout, StartedAt: started}
	}

	id := uuid.NewString()
	ch := make(chan Result, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer c.forget(id)

	msg, err := v1alpha1.NewSignalMessage(v1alpha1.SignalRequestCurrent, v1alpha1.RequestCurrent{
		Timestamp: started,
		RequestID: id,
	})
	if err == nil {
		err = c.conn.Send(msg)
	}
	if err != nil {
		c.logger.Warn("failed to send request frame", "error", err, "requestId", id)
		return Result{Outcome: OutcomeTimeout, StartedAt: started}
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case result := <-ch:
		result.StartedAt = started
		return result
	case <-timer.C:
		c.logger.Debug("request timed out", "requestId", id)
		return Result{Outcome: OutcomeTimeout, StartedAt: started}
	case <-ctx.Done():
		return Result{Outcome: OutcomeTimeout, StartedAt: started}
	}
}

// Close releases the response subscription and abandons in-flight
// requests; their callers conclude with the timeout outcome.
func (c *Correlator) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.mu.Lock()
	c.pending = make(map[string]chan Result)
	c.mu.Unlock()
}

// onResponse resolves the pending request matching the reply's id.
// Replies for unknown or already-resolved ids are discarded.
func (c *Correlator) onResponse(payload interface{}) {
	reply, ok := payload.(v1alpha1.CurrentContent)
	if !ok {
		return
	}

	c.mu.Lock()
	ch, found := c.pending[reply.RequestID]
	if found {
		delete(c.pending, reply.RequestID)
	}
	c.mu.Unlock()

	if !found {
		c.logger.Debug("discarding duplicate or stale response", "requestId", reply.RequestID)
		return
	}

	ch <- Result{
		Outcome:    OutcomeResponse,
		Payload:    reply,
		ObservedAt: time.Now(),
	}
}

func (c *Correlator) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}
