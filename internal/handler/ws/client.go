package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatlink-backend/pkg/constants"
	"chatlink-backend/pkg/logger"
)

// Envelope is the wire frame for every event in both directions
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// outboundEnvelope carries an arbitrary payload; the inbound side always
// defers parsing to the per-event handler
type outboundEnvelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

var (
	errSendBufferFull   = errors.New("send buffer full")
	errConnectionClosed = errors.New("connection closed")
)

// Client is one user's WebSocket connection. It satisfies the presence layer's
// connection contract: Send never blocks, a full buffer counts as a dead
// connection and the write pump tears it down.
type Client struct {
	handler *Handler
	conn    *websocket.Conn
	send    chan []byte
	userID  uuid.UUID

	// openMu guards openPeer, the counterparty whose conversation the client
	// currently has on screen
	openMu   sync.RWMutex
	openPeer uuid.UUID

	// sendMu serializes Send against close. The presence layer may hold a
	// reference to this client after its teardown started, so a frame must
	// never race the channel close.
	sendMu sync.Mutex
	closed bool
}

func newClient(handler *Handler, conn *websocket.Conn, userID uuid.UUID) *Client {
	return &Client{
		handler: handler,
		conn:    conn,
		send:    make(chan []byte, 256),
		userID:  userID,
	}
}

// Send queues an event for delivery. It never blocks: when the buffer is full
// the client is too far behind and the event is dropped with an error, which
// makes the presence layer treat the user as offline for that delivery.
func (c *Client) Send(event string, payload interface{}) error {
	frame, err := json.Marshal(outboundEnvelope{Event: event, Data: payload})
	if err != nil {
		return err
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return errConnectionClosed
	}

	select {
	case c.send <- frame:
		c.handler.metrics.RecordWebSocketMessage(event, "out")
		return nil
	default:
		c.handler.metrics.RecordWebSocketError("send_buffer_full")
		return errSendBufferFull
	}
}

// OpenConversation reports which peer's conversation the client has open
func (c *Client) OpenConversation() uuid.UUID {
	c.openMu.RLock()
	defer c.openMu.RUnlock()
	return c.openPeer
}

func (c *Client) setOpenConversation(peerID uuid.UUID) {
	c.openMu.Lock()
	c.openPeer = peerID
	c.openMu.Unlock()
}

// close shuts the send channel exactly once, releasing the write pump.
// Synchronized with Send so no frame lands in the channel after it closes.
func (c *Client) close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump reads frames off the connection and dispatches them until the
// connection dies, then runs the disconnect teardown
func (c *Client) readPump() {
	defer func() {
		c.handler.handleDisconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPingInterval))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPingInterval))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.Warn("websocket read failed",
					zap.String("user_id", c.userID.String()),
					zap.Error(err))
			}
			break
		}

		var envelope Envelope
		if err := json.Unmarshal(frame, &envelope); err != nil {
			c.handler.metrics.RecordWebSocketError("invalid_frame")
			logger.Debug("dropping malformed frame", zap.String("user_id", c.userID.String()))
			continue
		}

		c.handler.dispatch(c, envelope)
	}
}

// writePump drains the send channel onto the connection and keeps the
// connection alive with pings. Exits when the channel closes or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(constants.WebSocketPingInterval * 9 / 10)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
