package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yeremiapane/gaming-portal/models"
	"github.com/yeremiapane/gaming-portal/utils"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Send pings to peer with this period. Must be less than pongWait.
	// Maximum inbound frame size. A JSON-escaped rune takes up to 12 bytes, so
	// any text that passes TextMessage.Validate fits with room for the envelope.
	maxMessageSize = 12*models.MaxMessageLength + 1024
	sendBuffer     = 256

	inboundRate  = rate.Limit(5)
	inboundBurst = 10
)

// InboundHandler executes client frames. It runs on the channel's read loop,
// so a slow handler only delays that channel.
type InboundHandler interface {
	HandleInbound(ctx context.Context, c *Client, frame InboundFrame)
}

// Client is one websocket channel. The read pump feeds the InboundHandler;
// the write pump drains the send buffer filled by the Hub and by Reply.
type Client struct {
	id        string
	principal models.Principal
	conn      *websocket.Conn
	router    *RoomRouter
	handler   InboundHandler
	limiter   *rate.Limiter

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClient(conn *websocket.Conn, principal models.Principal, router *RoomRouter, handler InboundHandler) *Client {
	return &Client{
		id:        uuid.NewString(),
		principal: principal,
		conn:      conn,
		router:    router,
		handler:   handler,
		limiter:   rate.NewLimiter(inboundRate, inboundBurst),
		send:      make(chan []byte, sendBuffer),
	}
}

func (c *Client) ID() string                  { return c.id }
func (c *Client) Principal() models.Principal { return c.principal }

func (c *Client) Enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close stops the write pump, which then closes the connection. Safe to call
// more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Reply sends a frame to this channel only.
func (c *Client) Reply(event EventType, data interface{}) {
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		utils.ErrorLogger.Errorf("Error marshaling reply %s: %v", event, err)
		return
	}
	c.Enqueue(frame)
}

// ReplyError sends an error frame to this channel only.
func (c *Client) ReplyError(msg string) {
	c.Reply(EventError, ErrorPayload{Message: msg})
}

// Serve acknowledges the handshake, joins the principal's rooms and starts
// both pumps. It returns immediately.
func (c *Client) Serve() {
	rooms := []RoomID{RoomFor(c.principal)}
	// ack first so it is the first frame the client reads
	c.Reply(EventConnected, ConnectedPayload{ChannelID: c.id, Principal: c.principal, Rooms: rooms})
	c.router.Join(c)

	utils.InfoLogger.WithFields(c.logFields()).Info("Channel opened")

	go c.writePump()
	go c.readPump()
}

func (c *Client) logFields() logrus.Fields {
	return logrus.Fields{
		"channel_id": c.id,
		"user_id":    c.principal.ID,
		"role":       c.principal.Role,
	}
}

// readPump pumps frames from the websocket connection to the handler.
func (c *Client) readPump() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		// no grace period: a reconnect is a fresh join
		c.router.Leave(c.id)
		c.Close()
		c.conn.Close()
		utils.InfoLogger.WithFields(c.logFields()).Info("Channel closed")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				utils.ErrorLogger.WithFields(c.logFields()).Warnf("Read error: %v", err)
			}
			return
		}

		if !c.limiter.Allow() {
			c.ReplyError("rate limit exceeded")
			continue
		}

		var frame InboundFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
			c.ReplyError("malformed frame")
			continue
		}
		if c.handler != nil {
			c.handler.HandleInbound(ctx, c, frame)
		}
	}
}

// writePump pumps frames from the send buffer to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Close() was called
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
