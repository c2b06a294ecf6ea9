package poll

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marqueehq/marquee/api/types/v1alpha1"
	"github.com/marqueehq/marquee/internal/mrqview/errors"
	"github.com/marqueehq/marquee/internal/mrqview/events"
	"github.com/marqueehq/marquee/internal/mrqview/render"
)

// stubFetcher serves scripted responses, one per call, sticking on the
// last one once the script runs out.
type stubFetcher struct {
	mu        sync.Mutex
	responses []func() (*v1alpha1.CurrentContentResponse, error)
	calls     int
}

func (f *stubFetcher) GetCurrentContent(ctx context.Context) (*v1alpha1.CurrentContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i]()
}

func ok(id string) func() (*v1alpha1.CurrentContentResponse, error) {
	return func() (*v1alpha1.CurrentContentResponse, error) {
		return &v1alpha1.CurrentContentResponse{
			Success: true,
			Data:    &v1alpha1.ContentItem{ID: id},
		}, nil
	}
}

func fail() func() (*v1alpha1.CurrentContentResponse, error) {
	return func() (*v1alpha1.CurrentContentResponse, error) {
		return nil, errors.NewError("FETCH_FAILED", "authority unreachable", "GetCurrentContent", errors.ErrFetch)
	}
}

func collect(d *events.Dispatcher, kind events.Kind) chan interface{} {
	ch := make(chan interface{}, 32)
	d.Subscribe(kind, func(payload interface{}) { ch <- payload })
	return ch
}

func TestStartPollsImmediately(t *testing.T) {
	dispatcher := events.NewDispatcher(slog.Default())
	snapshots := collect(dispatcher, events.KindPollSnapshot)

	p := NewPoller(&stubFetcher{responses: []func() (*v1alpha1.CurrentContentResponse, error){ok("c-1")}}, dispatcher, slog.Default())
	p.Start(time.Hour) // the interval must not gate the first fetch
	defer p.Stop()

	select {
	case payload := <-snapshots:
		snapshot := payload.(render.Snapshot)
		require.NotNil(t, snapshot.Content)
		assert.Equal(t, "c-1", snapshot.Content.ID)
		assert.Equal(t, render.SourcePoll, snapshot.Source)
		assert.False(t, snapshot.StartedAt.IsZero())
		assert.False(t, snapshot.ObservedAt.After(time.Now()))
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot published after Start")
	}
}

func TestPollsRepeatOnInterval(t *testing.T) {
	dispatcher := events.NewDispatcher(slog.Default())
	snapshots := collect(dispatcher, events.KindPollSnapshot)

	p := NewPoller(&stubFetcher{responses: []func() (*v1alpha1.CurrentContentResponse, error){ok("c-1")}}, dispatcher, slog.Default())
	p.Start(10 * time.Millisecond)
	defer p.Stop()

	for i := 0; i < 3; i++ {
		select {
		case <-snapshots:
		case <-time.After(2 * time.Second):
			t.Fatalf("expected at least 3 snapshots, got %d", i)
		}
	}
}

func TestFailedPollPublishesNothing(t *testing.T) {
	dispatcher := events.NewDispatcher(slog.Default())
	snapshots := collect(dispatcher, events.KindPollSnapshot)

	p := NewPoller(&stubFetcher{responses: []func() (*v1alpha1.CurrentContentResponse, error){fail()}}, dispatcher, slog.Default())
	p.PollNow(context.Background())

	assert.Empty(t, snapshots)
}

func TestConsecutiveFailuresRaiseDegradedOnce(t *testing.T) {
	dispatcher := events.NewDispatcher(slog.Default())
	degraded := collect(dispatcher, events.KindConnectivityDegraded)

	p := NewPoller(&stubFetcher{responses: []func() (*v1alpha1.CurrentContentResponse, error){fail()}}, dispatcher, slog.Default())
	for i := 0; i < DefaultFailureThreshold+2; i++ {
		p.PollNow(context.Background())
	}

	// The notice fires exactly when the threshold is crossed, not on every
	// failure past it
	assert.Len(t, degraded, 1)
	assert.Equal(t, DefaultFailureThreshold, <-degraded)
}

func TestSuccessResetsFailureCount(t *testing.T) {
	dispatcher := events.NewDispatcher(slog.Default())
	degraded := collect(dispatcher, events.KindConnectivityDegraded)

	fetcher := &stubFetcher{responses: []func() (*v1alpha1.CurrentContentResponse, error){
		fail(), fail(), ok("c-1"), fail(), fail(),
	}}
	p := NewPoller(fetcher, dispatcher, slog.Default())
	for i := 0; i < 5; i++ {
		p.PollNow(context.Background())
	}

	assert.Empty(t, degraded, "the success in the middle must reset the run")
}

func TestEmptyScheduleSnapshotCarriesReason(t *testing.T) {
	dispatcher := events.NewDispatcher(slog.Default())
	snapshots := collect(dispatcher, events.KindPollSnapshot)

	fetcher := &stubFetcher{responses: []func() (*v1alpha1.CurrentContentResponse, error){
		func() (*v1alpha1.CurrentContentResponse, error) {
			return &v1alpha1.CurrentContentResponse{Success: true, Message: "No active schedule"}, nil
		},
	}}
	NewPoller(fetcher, dispatcher, slog.Default()).PollNow(context.Background())

	require.Len(t, snapshots, 1)
	snapshot := (<-snapshots).(render.Snapshot)
	assert.Nil(t, snapshot.Content)
	assert.Equal(t, "No active schedule", snapshot.Reason)
}

func TestStopHaltsPolling(t *testing.T) {
	dispatcher := events.NewDispatcher(slog.Default())
	snapshots := collect(dispatcher, events.KindPollSnapshot)

	p := NewPoller(&stubFetcher{responses: []func() (*v1alpha1.CurrentContentResponse, error){ok("c-1")}}, dispatcher, slog.Default())
	p.Start(5 * time.Millisecond)

	select {
	case <-snapshots:
	case <-time.After(2 * time.Second):
		t.Fatal("poller never started")
	}

	p.Stop()
	for len(snapshots) > 0 {
		<-snapshots
	}
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, snapshots, "no snapshot may land after Stop returns")

	// Stop again is harmless; Start may resume a stopped poller
	p.Stop()
	p.Start(time.Hour)
	p.Stop()
}
