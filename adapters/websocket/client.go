package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/satriahrh/synapse/usecase"
	"github.com/satriahrh/synapse/utils/log"
	"go.uber.org/zap"
)

type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	inbox   chan Frame
	session *usecase.Session
	// owned is set when the connection started its own session; the session
	// ends with the connection.
	owned  bool
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
	closed bool
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
	inboxBuffer    = 16
)

// NewClient creates a new WebSocket client bound to session.
func NewClient(conn *websocket.Conn, session *usecase.Session, owned bool) *Client {
	ctx := log.ContextWithSession(context.Background(), session.ID)
	ctx, cancel := context.WithCancel(ctx)
	return &Client{
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		inbox:   make(chan Frame, inboxBuffer),
		session: session,
		owned:   owned,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Run starts the pumps. handle is called for every inbound frame, one at a
// time and in arrival order.
func (c *Client) Run(handle func(*Client, Frame)) {
	c.setupHandlers()

	go c.processLoop(handle)
	go c.readPump()
	go c.writePump()
}

func (c *Client) setupHandlers() {
	c.conn.SetCloseHandler(func(code int, text string) error {
		log.WithCtx(c.ctx).Debug("WebSocket connection closed", zap.Int("code", code), zap.String("text", text))
		c.Close()
		return nil
	})

	c.conn.SetPingHandler(func(appData string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return c.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
}

// Close gracefully closes the client connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	c.cancel()
	c.conn.Close()
	close(c.send)
}

// IsClosed returns true if the client connection is closed
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Context returns the client's context
func (c *Client) Context() context.Context {
	return c.ctx
}

func (c *Client) Session() *usecase.Session {
	return c.session
}

func (c *Client) SessionID() string {
	return c.session.ID
}

func (c *Client) Owned() bool {
	return c.owned
}

// readPump decodes inbound frames and queues them for processLoop.
func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.WithCtx(c.ctx).Error("WebSocket error", zap.Error(err))
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			c.SendFrame(Frame{Type: FrameError, Error: "malformed frame"})
			continue
		}

		select {
		case c.inbox <- frame:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) processLoop(handle func(*Client, Frame)) {
	for {
		select {
		case frame := <-c.inbox:
			handle(c, frame)
		case <-c.ctx.Done():
			return
		}
	}
}

// writePump handles outgoing WebSocket messages and keeps the peer alive
// with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.WithCtx(c.ctx).Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.WithCtx(c.ctx).Debug("Failed to send ping", zap.Error(err))
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// SendMessage queues a raw message. A client whose buffer is full is
// dropped.
func (c *Client) SendMessage(message []byte) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return websocket.ErrCloseSent
	}

	select {
	case c.send <- message:
		c.mu.RUnlock()
		return nil
	default:
		c.mu.RUnlock()
		c.Close()
		return websocket.ErrCloseSent
	}
}

func (c *Client) SendFrame(f Frame) error {
	payload, err := encodeFrame(f)
	if err != nil {
		return err
	}
	return c.SendMessage(payload)
}
