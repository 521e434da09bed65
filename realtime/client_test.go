package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoHandler struct{}

func (echoHandler) HandleInbound(_ context.Context, c *Client, frame InboundFrame) {
	c.Reply(EventType(frame.Event), json.RawMessage(frame.Data))
}

func startClientServer(t *testing.T, r *RoomRouter) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		NewClient(conn, alice, r, echoHandler{}).Serve()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) (EventType, json.RawMessage) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env struct {
		Event EventType       `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&env))
	return env.Event, env.Data
}

func TestClientHandshakeAndJoin(t *testing.T) {
	r := NewRoomRouter()
	conn := dial(t, startClientServer(t, r))

	evt, data := readEnvelope(t, conn)
	require.Equal(t, EventConnected, evt)

	var ack struct {
		ChannelID string   `json:"channel_id"`
		Rooms     []string `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(data, &ack))
	assert.NotEmpty(t, ack.ChannelID)
	assert.Equal(t, []string{"user:1"}, ack.Rooms)

	assert.Eventually(t, func() bool { return r.IsOnline(alice.ID) }, time.Second, 10*time.Millisecond)
}

func TestClientDispatchesInboundFrames(t *testing.T) {
	r := NewRoomRouter()
	conn := dial(t, startClientServer(t, r))
	readEnvelope(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"event": "ping:test", "data": map[string]string{"k": "v"}}))
	evt, data := readEnvelope(t, conn)
	assert.Equal(t, EventType("ping:test"), evt)
	assert.JSONEq(t, `{"k":"v"}`, string(data))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	evt, data = readEnvelope(t, conn)
	assert.Equal(t, EventError, evt)
	assert.Contains(t, string(data), "malformed")
}

func TestClientReceivesHubEvents(t *testing.T) {
	r := NewRoomRouter()
	h := NewHub(r)
	conn := dial(t, startClientServer(t, r))
	readEnvelope(t, conn)
	require.Eventually(t, func() bool { return r.IsOnline(alice.ID) }, time.Second, 10*time.Millisecond)

	h.Publish(MessageCreated(textMessage(1, alice.ID, "admin", "hello from support")))

	evt, data := readEnvelope(t, conn)
	assert.Equal(t, EventMessageCreated, evt)
	assert.Contains(t, string(data), "hello from support")
}

func TestClientDisconnectLeavesRooms(t *testing.T) {
	r := NewRoomRouter()
	conn := dial(t, startClientServer(t, r))
	readEnvelope(t, conn)
	require.Eventually(t, func() bool { return r.IsOnline(alice.ID) }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return !r.IsOnline(alice.ID) }, 2*time.Second, 10*time.Millisecond)
}

func TestClientEnqueueAfterClose(t *testing.T) {
	c := &Client{send: make(chan []byte, 1)}
	assert.True(t, c.Enqueue([]byte("a")))
	assert.False(t, c.Enqueue([]byte("b")), "buffer full")
	c.Close()
	c.Close()
	assert.False(t, c.Enqueue([]byte("c")))
}
