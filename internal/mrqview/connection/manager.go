// Package connection owns the lifecycle of the viewer's push-channel
// session: dialing, the join handshake, disconnect detection, and bounded
// exponential-backoff reconnects.
package connection

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marqueehq/marquee/api/types/v1alpha1"
	"github.com/marqueehq/marquee/internal/mrqview/errors"
	"github.com/marqueehq/marquee/internal/mrqview/events"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

// Status is the connection state machine position
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusOpen         Status = "open"
	StatusReconnecting Status = "reconnecting"
	StatusClosed       Status = "closed"
)

// Identity is presented to the authority on join
type Identity struct {
	UserID string
	Role   string
	Name   string
}

// Config tunes the connection manager
type Config struct {
	// URL is the websocket endpoint, ws:// or wss://
	URL string
	// MaxAttempts bounds consecutive failed connect attempts
	MaxAttempts int
	// InitialDelay seeds the exponential backoff between attempts
	InitialDelay time.Duration
	// HandshakeTimeout bounds a single dial
	HandshakeTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 5
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = time.Second
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 20 * time.Second
	}
	return c
}

// Manager runs one logical push-channel session. Inbound frames are fanned
// out through the dispatcher; outbound control frames queue while the
// channel is not open, best-effort frames drop.
type Manager struct {
	cfg        Config
	identity   Identity
	dispatcher *events.Dispatcher
	logger     *slog.Logger

	mu      sync.Mutex
	status  Status
	conn    *websocket.Conn
	sendCh  chan []byte
	pending [][]byte
	cancel  context.CancelFunc
	done    chan struct{}

	lastConnectedAt time.Time
}

// NewManager creates a manager in the disconnected state
func NewManager(cfg Config, identity Identity, dispatcher *events.Dispatcher, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:        cfg.withDefaults(),
		identity:   identity,
		dispatcher: dispatcher,
		logger:     logger.With("component", "connection"),
		status:     StatusDisconnected,
	}
}

// Status returns the current state machine position
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// IsOpen reports whether frames can be sent right now
func (m *Manager) IsOpen() bool {
	return m.Status() == StatusOpen
}

// LastConnectedAt returns when the channel last reached the open state
func (m *Manager) LastConnectedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastConnectedAt
}

// Connect starts the session loop. Allowed from Disconnected and Closed;
// a second call while a loop is running is an error.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.status != StatusDisconnected && m.status != StatusClosed {
		m.mu.Unlock()
		return errors.NewError("ALREADY_CONNECTED", "connection loop already running", "Connect", errors.ErrTransport)
	}
	m.status = StatusConnecting
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	go func() {
		defer close(done)
		m.run(loopCtx)
	}()
	return nil
}

// Disconnect tears the session down from any state. It is idempotent,
// waits for the loop to exit, and guarantees the transport is released.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.status = StatusClosed
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Send queues a control frame. While the channel is connecting or
// reconnecting the frame is held and flushed on the next open; when the
// session is closed the frame is rejected.
func (m *Manager) Send(msg v1alpha1.SignalMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.status {
	case StatusOpen:
		select {
		case m.sendCh <- data:
			return nil
		default:
			// Writer is wedged; queue for the next session
			m.pending = append(m.pending, data)
			return nil
		}
	case StatusConnecting, StatusReconnecting:
		m.pending = append(m.pending, data)
		return nil
	default:
		return errors.NewError("NOT_CONNECTED", "channel closed", "Send", errors.ErrTransport)
	}
}

// SendBestEffort queues a frame only if the channel is open right now;
// otherwise the frame is silently dropped.
func (m *Manager) SendBestEffort(msg v1alpha1.SignalMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusOpen {
		return
	}
	select {
	case m.sendCh <- data:
	default:
	}
}

// run is the session loop: dial, pump until loss, back off, repeat. It
// exits on context cancellation or once MaxAttempts consecutive dials fail.
func (m *Manager) run(ctx context.Context) {
	attempt := 0
	delay := m.cfg.InitialDelay

	for {
		conn, err := m.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			attempt++
			m.logger.Warn("connect attempt failed",
				"attempt", attempt,
				"maxAttempts", m.cfg.MaxAttempts,
				"error", err,
			)
			if attempt >= m.cfg.MaxAttempts {
				m.setStatus(StatusClosed)
				m.dispatcher.Publish(events.KindConnectionFailed, err)
				return
			}
			m.setStatus(StatusReconnecting)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			continue
		}

		attempt = 0
		delay = m.cfg.InitialDelay
		m.opened(conn)

		m.pump(ctx, conn)
		if ctx.Err() != nil {
			return
		}

		m.setStatus(StatusReconnecting)
		m.dispatcher.Publish(events.KindDisconnected, nil)
	}
}

func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: m.cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, m.cfg.URL, nil)
	if err != nil {
		return nil, errors.NewError("DIAL_FAILED", "websocket dial failed", "dial", errors.ErrTransport)
	}
	return conn, nil
}

// opened transitions to Open, performs the join handshake, and flushes
// frames queued while the channel was down.
func (m *Manager) opened(conn *websocket.Conn) {
	joinData, err := m.joinFrame()
	if err != nil {
		m.logger.Error("failed to encode join frame", "error", err)
	}

	m.mu.Lock()
	if m.status == StatusClosed {
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.status = StatusOpen
	m.conn = conn
	m.lastConnectedAt = time.Now()
	m.sendCh = make(chan []byte, 64)
	if joinData != nil {
		m.sendCh <- joinData
	}
	for _, frame := range m.pending {
		select {
		case m.sendCh <- frame:
		default:
		}
	}
	m.pending = nil
	m.mu.Unlock()

	m.logger.Info("push channel open", "url", m.cfg.URL)
	m.dispatcher.Publish(events.KindConnected, nil)
}

// joinFrame encodes the room-join handshake for the configured identity.
// Returns nil bytes on encode failure so no partial frame is ever queued.
func (m *Manager) joinFrame() ([]byte, error) {
	join, err := v1alpha1.NewSignalMessage(v1alpha1.SignalJoinRoom, v1alpha1.JoinRoom{
		UserID: m.identity.UserID,
		Role:   m.identity.Role,
		Name:   m.identity.Name,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(join)
}

// pump runs the read and write sides until the transport drops or ctx is
// canceled. The connection is closed on every exit path.
func (m *Manager) pump(ctx context.Context, conn *websocket.Conn) {
	m.mu.Lock()
	sendCh := m.sendCh
	m.mu.Unlock()

	writerDone := make(chan struct{})
	readerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		m.writePump(conn, sendCh, readerDone)
	}()
	go func() {
		defer close(readerDone)
		m.readPump(conn)
	}()

	select {
	case <-ctx.Done():
	case <-readerDone:
	}

	if err := conn.Close(); err != nil {
		m.logger.Debug("error closing websocket connection", "error", err)
	}
	<-readerDone
	<-writerDone

	m.mu.Lock()
	m.conn = nil
	m.mu.Unlock()
}

func (m *Manager) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		m.logger.Error("failed to set read deadline", "error", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		m.dispatch(message)
	}
}

func (m *Manager) writePump(conn *websocket.Conn, sendCh chan []byte, readerDone chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	write := func(mt int, payload []byte) error {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		return conn.WriteMessage(mt, payload)
	}

	for {
		select {
		case <-readerDone:
			return
		case message := <-sendCh:
			if err := write(websocket.TextMessage, message); err != nil {
				m.logger.Warn("failed to write message", "error", err)
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, []byte{}); err != nil {
				m.logger.Warn("failed to write ping", "error", err)
				return
			}
		}
	}
}

// dispatch decodes one inbound frame and publishes it by kind
func (m *Manager) dispatch(raw []byte) {
	var msg v1alpha1.SignalMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		m.logger.Warn("invalid signal frame", "error", err)
		return
	}

	switch msg.Event {
	case v1alpha1.SignalContentRefresh:
		var payload v1alpha1.ContentRefresh
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			m.logger.Warn("invalid content-refresh payload", "error", err)
			return
		}
		m.dispatcher.Publish(events.KindContentRefresh, payload)

	case v1alpha1.SignalCurrentBroadcast:
		var payload v1alpha1.CurrentContent
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			m.logger.Warn("invalid broadcast payload", "error", err)
			return
		}
		m.dispatcher.Publish(events.KindCurrentBroadcast, payload)

	case v1alpha1.SignalCurrentResponse:
		var payload v1alpha1.CurrentContent
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			m.logger.Warn("invalid response payload", "error", err)
			return
		}
		m.dispatcher.Publish(events.KindCurrentResponse, payload)

	case v1alpha1.SignalScheduleCreated:
		var payload v1alpha1.ScheduleCreated
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			m.logger.Warn("invalid schedule-created payload", "error", err)
			return
		}
		m.dispatcher.Publish(events.KindScheduleCreated, payload)

	default:
		m.logger.Debug("ignoring unknown signal", "event", msg.Event)
	}
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	// Closed is terminal for this loop; Disconnect already owns the state
	if m.status != StatusClosed {
		m.status = s
	}
	m.mu.Unlock()
}
