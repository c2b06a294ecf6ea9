package signal

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marqueehq/marquee/api/types/v1alpha1"
)

type stubProvider struct {
	current v1alpha1.CurrentContent
}

func (p *stubProvider) Current(ctx context.Context) (v1alpha1.CurrentContent, error) {
	return p.current, nil
}

// wsClient is one websocket peer with its inbound frames buffered
type wsClient struct {
	conn   *websocket.Conn
	frames chan v1alpha1.SignalMessage
}

func startHub(t *testing.T, provider CurrentProvider) (*Hub, string) {
	t.Helper()
	hub := NewHub(provider, slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *wsClient {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	c := &wsClient{conn: conn, frames: make(chan v1alpha1.SignalMessage, 16)}
	go func() {
		for {
			var msg v1alpha1.SignalMessage
			if err := conn.ReadJSON(&msg); err != nil {
				close(c.frames)
				return
			}
			c.frames <- msg
		}
	}()
	return c
}

func (c *wsClient) join(t *testing.T, role string) {
	t.Helper()
	msg, err := v1alpha1.NewSignalMessage(v1alpha1.SignalJoinRoom, v1alpha1.JoinRoom{
		UserID: "u-" + role,
		Role:   role,
		Name:   role,
	})
	require.NoError(t, err)
	require.NoError(t, c.conn.WriteJSON(msg))
}

func (c *wsClient) next(t *testing.T) (v1alpha1.SignalMessage, bool) {
	t.Helper()
	select {
	case msg, ok := <-c.frames:
		return msg, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
		return v1alpha1.SignalMessage{}, false
	}
}

func (c *wsClient) expectSilence(t *testing.T) {
	t.Helper()
	select {
	case msg := <-c.frames:
		t.Fatalf("expected no frame, got %s", msg.Event)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestRequestCurrentIsAnsweredWithCorrelationID(t *testing.T) {
	_, url := startHub(t, &stubProvider{current: v1alpha1.CurrentContent{
		Success: true,
		Data:    &v1alpha1.ContentItem{ID: "c-1"},
	}})

	client := dial(t, url)
	client.join(t, "viewer")

	msg, err := v1alpha1.NewSignalMessage(v1alpha1.SignalRequestCurrent, v1alpha1.RequestCurrent{
		Timestamp: time.Now(),
		RequestID: "req-42",
	})
	require.NoError(t, err)
	require.NoError(t, client.conn.WriteJSON(msg))

	frame, ok := client.next(t)
	require.True(t, ok)
	assert.Equal(t, v1alpha1.SignalCurrentResponse, frame.Event)

	var reply v1alpha1.CurrentContent
	require.NoError(t, json.Unmarshal(frame.Data, &reply))
	assert.Equal(t, "req-42", reply.RequestID)
	require.NotNil(t, reply.Data)
	assert.Equal(t, "c-1", reply.Data.ID)
}

func TestBroadcastsAreRoleScoped(t *testing.T) {
	hub, url := startHub(t, &stubProvider{})

	viewer := dial(t, url)
	viewer.join(t, "viewer")
	admin := dial(t, url)
	admin.join(t, "admin")
	time.Sleep(50 * time.Millisecond) // let the joins land in the registry

	hub.BroadcastRefresh("schedule state changed")

	frame, ok := viewer.next(t)
	require.True(t, ok)
	assert.Equal(t, v1alpha1.SignalContentRefresh, frame.Event)

	admin.expectSilence(t)
}

func TestScheduleCreatedReachesAllRoles(t *testing.T) {
	hub, url := startHub(t, &stubProvider{})

	viewer := dial(t, url)
	viewer.join(t, "viewer")
	admin := dial(t, url)
	admin.join(t, "admin")
	time.Sleep(50 * time.Millisecond)

	hub.BroadcastScheduleCreated(v1alpha1.Schedule{ID: "s-1", Name: "Morning Loop"})

	for _, client := range []*wsClient{viewer, admin} {
		frame, ok := client.next(t)
		require.True(t, ok)
		assert.Equal(t, v1alpha1.SignalScheduleCreated, frame.Event)

		var created v1alpha1.ScheduleCreated
		require.NoError(t, json.Unmarshal(frame.Data, &created))
		assert.Equal(t, "s-1", created.Schedule.ID)
	}
}

func TestUnjoinedPeersReceiveNothing(t *testing.T) {
	hub, url := startHub(t, &stubProvider{})

	lurker := dial(t, url)
	time.Sleep(50 * time.Millisecond)

	hub.BroadcastRefresh("schedule state changed")
	hub.BroadcastCurrent(v1alpha1.CurrentContent{Success: true})

	lurker.expectSilence(t)
}

func TestBroadcastCurrentDeliversContent(t *testing.T) {
	hub, url := startHub(t, &stubProvider{})

	viewer := dial(t, url)
	viewer.join(t, "viewer")
	time.Sleep(50 * time.Millisecond)

	hub.BroadcastCurrent(v1alpha1.CurrentContent{
		Success: true,
		Data:    &v1alpha1.ContentItem{ID: "c-9"},
	})

	frame, ok := viewer.next(t)
	require.True(t, ok)
	assert.Equal(t, v1alpha1.SignalCurrentBroadcast, frame.Event)

	var current v1alpha1.CurrentContent
	require.NoError(t, json.Unmarshal(frame.Data, &current))
	require.NotNil(t, current.Data)
	assert.Equal(t, "c-9", current.Data.ID)
}
