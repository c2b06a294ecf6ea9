// Package sync assembles the viewer's schedule-synchronization subsystem:
// one session object owning the push channel, the fallback poller, the
// request correlator, and the reconciled render state.
package sync

import (
	"context"
	"crypto/tls"
	"log/slog"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/marqueehq/marquee/api/types/v1alpha1"
	"github.com/marqueehq/marquee/internal/mrqview/client"
	"github.com/marqueehq/marquee/internal/mrqview/config"
	"github.com/marqueehq/marquee/internal/mrqview/connection"
	"github.com/marqueehq/marquee/internal/mrqview/errors"
	"github.com/marqueehq/marquee/internal/mrqview/events"
	"github.com/marqueehq/marquee/internal/mrqview/poll"
	"github.com/marqueehq/marquee/internal/mrqview/render"
	"github.com/marqueehq/marquee/internal/mrqview/request"
)

// RoleViewer is the only role allowed to drive a playback session
const RoleViewer = "viewer"

// Session is one viewer's synchronization session. It is created, connected,
// and eventually torn down by the presentation root; nothing about it is
// ambient or global.
type Session struct {
	cfg    *config.Config
	logger *slog.Logger

	dispatcher *events.Dispatcher
	api        *client.Client
	conn       *connection.Manager
	correlator *request.Correlator
	poller     *poll.Poller
	reconciler *render.Reconciler

	ctx    context.Context
	cancel context.CancelFunc

	started      atomic.Bool
	disposed     atomic.Bool
	teardownOnce stdsync.Once
	unsubs       []func()
}

// New constructs a session for the configured identity. Only the viewer
// role may reach the playback surface; any other role is rejected outright
// with a non-retryable error.
func New(cfg *config.Config, logger *slog.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Identity.Role != RoleViewer {
		return nil, errors.NewError("ROLE_MISMATCH",
			"only the viewer role may start a playback session", "sync.New", errors.ErrForbidden)
	}

	opts := []client.Option{}
	if cfg.Token != "" {
		opts = append(opts, client.WithToken(cfg.Token))
	}
	if cfg.InsecureSkipVerify {
		opts = append(opts, client.WithTLSConfig(&tls.Config{InsecureSkipVerify: true}))
	}
	api, err := client.New(cfg.Server, opts...)
	if err != nil {
		return nil, err
	}

	dispatcher := events.NewDispatcher(logger)

	s := &Session{
		cfg:        cfg,
		logger:     logger.With("component", "session"),
		dispatcher: dispatcher,
		api:        api,
	}

	s.reconciler = render.NewReconciler(s.renderChanged, logger)
	s.conn = connection.NewManager(connection.Config{
		URL:          cfg.SignalURL,
		MaxAttempts:  cfg.ReconnectAttempts,
		InitialDelay: cfg.ReconnectDelay,
	}, connection.Identity{
		UserID: cfg.Identity.UserID,
		Role:   cfg.Identity.Role,
		Name:   cfg.Identity.Name,
	}, dispatcher, logger)
	s.correlator = request.NewCorrelator(s.conn, dispatcher, cfg.RequestTimeout, logger)
	s.poller = poll.NewPoller(api, dispatcher, logger)

	return s, nil
}

// Connect starts the push channel and the fallback poller. The poller runs
// regardless of push health; exhausted reconnects just leave it as the
// only source.
func (s *Session) Connect(ctx context.Context) error {
	if s.disposed.Load() {
		return errors.ErrSessionClosed
	}
	// Guard here, not just in the connection manager: a repeated Connect
	// must not leave a second set of event subscriptions behind.
	if !s.started.CompareAndSwap(false, true) {
		return errors.NewError("ALREADY_CONNECTED",
			"session already connected", "Connect", errors.ErrTransport)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	s.subscribe(events.KindConnected, func(interface{}) {
		// A fresh join needs an authoritative answer right away
		go s.requestAndApply()
	})
	s.subscribe(events.KindContentRefresh, func(interface{}) {
		go s.requestAndApply()
	})
	s.subscribe(events.KindCurrentBroadcast, func(payload interface{}) {
		current, ok := payload.(v1alpha1.CurrentContent)
		if !ok || s.disposed.Load() {
			return
		}
		now := time.Now()
		s.reconciler.Apply(render.Snapshot{
			Content:    current.Data,
			Source:     render.SourcePush,
			StartedAt:  now,
			ObservedAt: now,
			Broadcast:  true,
			Reason:     current.Message,
		})
	})
	s.subscribe(events.KindPollSnapshot, func(payload interface{}) {
		snapshot, ok := payload.(render.Snapshot)
		if !ok || s.disposed.Load() {
			return
		}
		s.reconciler.Apply(snapshot)
	})
	s.subscribe(events.KindConnectionFailed, func(interface{}) {
		s.logger.Warn("push channel gave up; continuing on polling alone")
	})

	if err := s.conn.Connect(s.ctx); err != nil {
		return err
	}
	s.poller.Start(s.cfg.PollInterval)
	return nil
}

// OnRenderStateChange registers a handler for render state transitions and
// returns its unsubscribe function
func (s *Session) OnRenderStateChange(handler func(render.State)) func() {
	return s.dispatcher.Subscribe(events.KindRenderStateChanged, func(payload interface{}) {
		if state, ok := payload.(render.State); ok {
			handler(state)
		}
	})
}

// OnConnectivityDegraded registers a handler for the non-blocking notice
// raised after consecutive poll failures
func (s *Session) OnConnectivityDegraded(handler func()) func() {
	return s.dispatcher.Subscribe(events.KindConnectivityDegraded, func(interface{}) {
		handler()
	})
}

// RenderState returns a copy of the current reconciled state
func (s *Session) RenderState() render.State {
	return s.reconciler.State()
}

// ConnectionStatus exposes the push channel state for status surfaces
func (s *Session) ConnectionStatus() connection.Status {
	return s.conn.Status()
}

// Refresh forces an immediate request-plus-poll cycle
func (s *Session) Refresh() {
	if s.disposed.Load() {
		return
	}
	go s.requestAndApply()
	go func() {
		if s.disposed.Load() {
			return
		}
		s.poller.PollNow(s.context())
	}()
}

// context returns the session context, falling back to Background before
// Connect has run
func (s *Session) context() context.Context {
	if s.ctx != nil {
		return s.ctx
	}
	return context.Background()
}

// Teardown releases every resource: the poll timer, in-flight correlated
// requests, the transport, and the reconciler loop. It is idempotent and
// no state mutation happens after it returns, even when called mid-backoff.
func (s *Session) Teardown() {
	s.teardownOnce.Do(func() {
		s.disposed.Store(true)
		if s.cancel != nil {
			s.cancel()
		}
		for _, unsub := range s.unsubs {
			unsub()
		}
		s.unsubs = nil
		s.poller.Stop()
		s.correlator.Close()
		s.conn.Disconnect()
		s.reconciler.Stop()
		s.logger.Info("session torn down")
	})
}

// requestAndApply runs one push-channel request and reconciles the answer;
// a timeout outcome falls back to a direct REST pull.
func (s *Session) requestAndApply() {
	if s.disposed.Load() {
		return
	}
	result := s.correlator.RequestCurrent(s.context())
	if s.disposed.Load() {
		return
	}

	if result.Outcome == request.OutcomeResponse {
		s.reconciler.Apply(render.Snapshot{
			Content:    result.Payload.Data,
			Source:     render.SourcePush,
			StartedAt:  result.StartedAt,
			ObservedAt: result.ObservedAt,
			Reason:     result.Payload.Message,
		})
		return
	}

	s.poller.PollNow(s.context())
}

// renderChanged republishes reconciler transitions through the dispatcher
// so consumers use one subscription surface. The disposal flag keeps a
// late apply from reaching handlers after teardown.
func (s *Session) renderChanged(state render.State) {
	if s.disposed.Load() {
		return
	}
	s.dispatcher.Publish(events.KindRenderStateChanged, state)
}

func (s *Session) subscribe(kind events.Kind, handler events.Handler) {
	s.unsubs = append(s.unsubs, s.dispatcher.Subscribe(kind, handler))
}
