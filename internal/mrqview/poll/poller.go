// Package poll implements the always-on REST freshness backstop. Push
// delivery is best effort, so the poller bounds staleness even while the
// channel is healthy.
package poll

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/marqueehq/marquee/api/types/v1alpha1"
	"github.com/marqueehq/marquee/internal/mrqview/events"
	"github.com/marqueehq/marquee/internal/mrqview/render"
)

// DefaultInterval is the poll period; thirty seconds bounds staleness
// without hammering the authority.
const DefaultInterval = 30 * time.Second

// DefaultFailureThreshold is how many consecutive failed polls it takes to
// raise the connectivity-degraded notice.
const DefaultFailureThreshold = 3

// ContentFetcher pulls the current content over REST
type ContentFetcher interface {
	GetCurrentContent(ctx context.Context) (*v1alpha1.CurrentContentResponse, error)
}

// Poller periodically fetches current content and publishes the result as
// a poll-snapshot event. Failures are logged and swallowed so a transient
// blip never clears what is already on screen; only a run of consecutive
// failures surfaces as a non-blocking degraded notice.
type Poller struct {
	fetcher    ContentFetcher
	dispatcher *events.Dispatcher
	logger     *slog.Logger
	threshold  int

	mu       sync.Mutex
	stopCh   chan struct{}
	done     chan struct{}
	failures int
}

// NewPoller creates a stopped poller
func NewPoller(fetcher ContentFetcher, dispatcher *events.Dispatcher, logger *slog.Logger) *Poller {
	return &Poller{
		fetcher:    fetcher,
		dispatcher: dispatcher,
		logger:     logger.With("component", "poller"),
		threshold:  DefaultFailureThreshold,
	}
}

// Start begins polling at the given interval, with an immediate first
// fetch so a dead push channel still yields a populated render state
// within one interval. Starting a running poller is a no-op.
func (p *Poller) Start(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopCh != nil {
		return
	}
	p.stopCh = make(chan struct{})
	p.done = make(chan struct{})

	go p.loop(interval, p.stopCh, p.done)
}

// Stop cancels the pending timer and waits for the loop to exit. It is
// idempotent; no snapshot is published after Stop returns.
func (p *Poller) Stop() {
	p.mu.Lock()
	stopCh := p.stopCh
	done := p.done
	p.stopCh = nil
	p.done = nil
	p.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-done
}

// PollNow performs one fetch outside the timer, used by forced refreshes
func (p *Poller) PollNow(ctx context.Context) {
	p.poll(ctx)
}

func (p *Poller) loop(interval time.Duration, stopCh, done chan struct{}) {
	defer close(done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stopCh
		cancel()
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	started := time.Now()
	current, err := p.fetcher.GetCurrentContent(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.failed(err)
		return
	}

	p.mu.Lock()
	p.failures = 0
	p.mu.Unlock()

	p.dispatcher.Publish(events.KindPollSnapshot, render.Snapshot{
		Content:    current.Data,
		Source:     render.SourcePoll,
		StartedAt:  started,
		ObservedAt: time.Now(),
		Reason:     current.Message,
	})
}

// failed counts a poll failure; the previous render state stays untouched
// because a failed fetch carries no information.
func (p *Poller) failed(err error) {
	p.mu.Lock()
	p.failures++
	failures := p.failures
	p.mu.Unlock()

	p.logger.Warn("poll failed", "error", err, "consecutiveFailures", failures)

	if failures == p.threshold {
		p.dispatcher.Publish(events.KindConnectivityDegraded, failures)
	}
}
