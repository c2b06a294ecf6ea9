// Package signal implements the simulator's push channel: a websocket hub
// that places clients into role-scoped rooms, answers correlated
// current-content requests, and fans out broadcasts on schedule changes.
package signal

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marqueehq/marquee/api/types/v1alpha1"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The simulator is a development tool; any origin may connect
		return true
	},
}

// CurrentProvider answers correlated current-content requests
type CurrentProvider interface {
	Current(ctx context.Context) (v1alpha1.CurrentContent, error)
}

// connection is a middleman between one websocket peer and the hub
type connection struct {
	ws     *websocket.Conn
	send   chan []byte
	hub    *Hub
	logger *slog.Logger

	// identity is set by the join-room frame; unjoined peers get nothing
	identity v1alpha1.JoinRoom
	joined   bool
}

// cleanup handles proper connection closure and cleanup
func (c *connection) cleanup() {
	c.hub.unregister <- c

	if err := c.ws.Close(); err != nil {
		c.logger.Debug("error closing websocket connection", "error", err)
	}
}

func (c *connection) readPump() {
	defer c.cleanup()

	c.ws.SetReadLimit(maxMessageSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error("failed to set read deadline", "error", err)
		return
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			break
		}

		var msg v1alpha1.SignalMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.logger.Warn("invalid signal frame", "error", err)
			continue
		}
		c.handle(msg)
	}
}

// handle processes one inbound frame on the reader goroutine
func (c *connection) handle(msg v1alpha1.SignalMessage) {
	switch msg.Event {
	case v1alpha1.SignalJoinRoom:
		var join v1alpha1.JoinRoom
		if err := json.Unmarshal(msg.Data, &join); err != nil {
			c.logger.Warn("invalid join-room payload", "error", err)
			return
		}
		c.hub.join <- joinRequest{conn: c, identity: join}

	case v1alpha1.SignalRequestCurrent:
		var req v1alpha1.RequestCurrent
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			c.logger.Warn("invalid request-current payload", "error", err)
			return
		}
		c.respondCurrent(req)

	default:
		c.logger.Debug("ignoring unknown signal", "event", msg.Event)
	}
}

// respondCurrent resolves and replies under the request's correlation id
func (c *connection) respondCurrent(req v1alpha1.RequestCurrent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	current, err := c.hub.provider.Current(ctx)
	if err != nil {
		c.logger.Error("current-content resolution failed", "error", err)
		current = v1alpha1.CurrentContent{Success: false, Message: "resolution failed"}
	}
	current.RequestID = req.RequestID

	reply, err := v1alpha1.NewSignalMessage(v1alpha1.SignalCurrentResponse, current)
	if err != nil {
		c.logger.Error("failed to encode response", "error", err)
		return
	}
	data, _ := json.Marshal(reply)

	select {
	case c.send <- data:
	default:
		c.logger.Warn("dropping response: connection buffer full")
	}
}

func (c *connection) write(mt int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(mt, payload)
}

func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.ws.Close(); err != nil {
			c.logger.Debug("error closing websocket connection in writePump", "error", err)
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				if err := c.write(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debug("failed to write close message", "error", err)
				}
				return
			}
			if err := c.write(websocket.TextMessage, message); err != nil {
				c.logger.Warn("failed to write message", "error", err)
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, []byte{}); err != nil {
				c.logger.Warn("failed to write ping", "error", err)
				return
			}
		}
	}
}

type joinRequest struct {
	conn     *connection
	identity v1alpha1.JoinRoom
}

type broadcast struct {
	role string
	data []byte
}

// Hub maintains the set of active connections and delivers broadcasts to
// role-scoped rooms
type Hub struct {
	connections map[*connection]bool

	register   chan *connection
	unregister chan *connection
	join       chan joinRequest
	out        chan broadcast

	provider CurrentProvider
	logger   *slog.Logger
}

// NewHub creates a hub answering requests through provider. Run must be
// started before serving connections.
func NewHub(provider CurrentProvider, logger *slog.Logger) *Hub {
	return &Hub{
		connections: make(map[*connection]bool),
		register:    make(chan *connection),
		unregister:  make(chan *connection),
		join:        make(chan joinRequest),
		out:         make(chan broadcast, 16),
		provider:    provider,
		logger:      logger.With("component", "signal-hub"),
	}
}

// Run owns the connection registry until ctx is canceled
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.connections[c] = true
			h.logger.Info("client connected", "connections", len(h.connections))
		case c := <-h.unregister:
			if _, ok := h.connections[c]; ok {
				delete(h.connections, c)
				close(c.send)
				h.logger.Info("client disconnected", "connections", len(h.connections))
			}
		case req := <-h.join:
			req.conn.identity = req.identity
			req.conn.joined = true
			h.logger.Info("client joined room",
				"userId", req.identity.UserID,
				"role", req.identity.Role,
				"name", req.identity.Name,
			)
		case b := <-h.out:
			for c := range h.connections {
				if !c.joined || (b.role != "" && c.identity.Role != b.role) {
					continue
				}
				select {
				case c.send <- b.data:
				default:
					close(c.send)
					delete(h.connections, c)
				}
			}
		}
	}
}

// BroadcastRefresh hints every joined viewer to re-request current content
func (h *Hub) BroadcastRefresh(message string) {
	h.emit("viewer", v1alpha1.SignalContentRefresh, v1alpha1.ContentRefresh{Message: message})
}

// BroadcastCurrent pushes an authoritative current-content update to viewers
func (h *Hub) BroadcastCurrent(current v1alpha1.CurrentContent) {
	h.emit("viewer", v1alpha1.SignalCurrentBroadcast, current)
}

// BroadcastScheduleCreated announces a new schedule to every joined client
func (h *Hub) BroadcastScheduleCreated(s v1alpha1.Schedule) {
	h.emit("", v1alpha1.SignalScheduleCreated, v1alpha1.ScheduleCreated{Schedule: s})
}

func (h *Hub) emit(role string, event v1alpha1.SignalType, payload interface{}) {
	msg, err := v1alpha1.NewSignalMessage(event, payload)
	if err != nil {
		h.logger.Error("failed to encode broadcast", "event", event, "error", err)
		return
	}
	data, _ := json.Marshal(msg)

	select {
	case h.out <- broadcast{role: role, data: data}:
	default:
		h.logger.Warn("dropping broadcast: hub backlog full", "event", event)
	}
}

// ServeWs upgrades an HTTP request into a hub connection
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &connection{
		ws:     ws,
		send:   make(chan []byte, 256),
		hub:    h,
		logger: h.logger,
	}

	c.hub.register <- c

	go c.writePump()
	c.readPump()
}
