package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	sendBufferSize = 256
)

// Message types
const (
	MessageTypeBuildProgress = "build_progress"
	MessageTypeSubscribe     = "subscribe"
	MessageTypeUnsubscribe   = "unsubscribe"
	MessageTypeHeartbeat     = "heartbeat"
	MessageTypeError         = "error"
)

// ServerMessage is the envelope for everything sent to clients.
type ServerMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// ClientMessage is sent by clients. A subscribe message with a job_id limits
// the feed to that job; an empty job_id follows every build.
type ClientMessage struct {
	Type  string `json:"type"`
	JobID string `json:"job_id,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan ServerMessage
	hub  *Hub

	jobID   string
	jobIDMu sync.RWMutex

	connectedAt time.Time
	logger      logrus.FieldLogger
}

// NewClient creates a new client instance
func NewClient(id string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:          id,
		conn:        conn,
		send:        make(chan ServerMessage, sendBufferSize),
		hub:         hub,
		connectedAt: time.Now(),
		logger:      hub.logger.WithField("client", id),
	}
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if ctx.Err() != nil {
			return
		}

		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.WithError(err).Warn("unexpected close")
			}
			return
		}

		c.handleClientMessage(msg)
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.WithError(err).Warn("write error")
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

// TrySend queues a message without blocking. Returns false if the buffer is full.
func (c *Client) TrySend(msg ServerMessage) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Matches reports whether the client follows jobID.
func (c *Client) Matches(jobID string) bool {
	c.jobIDMu.RLock()
	defer c.jobIDMu.RUnlock()
	return c.jobID == "" || c.jobID == jobID
}

func (c *Client) subscribe(jobID string) {
	c.jobIDMu.Lock()
	defer c.jobIDMu.Unlock()
	c.jobID = jobID
}

func (c *Client) handleClientMessage(msg ClientMessage) {
	switch msg.Type {
	case MessageTypeSubscribe:
		c.subscribe(msg.JobID)
	case MessageTypeUnsubscribe:
		c.subscribe("")
	case MessageTypeHeartbeat:
		c.TrySend(ServerMessage{
			Type: MessageTypeHeartbeat,
			Payload: map[string]interface{}{
				"client_id":    c.ID,
				"connected_at": c.connectedAt,
			},
			Timestamp: time.Now(),
		})
	default:
		c.TrySend(ServerMessage{
			Type:      MessageTypeError,
			Payload:   map[string]string{"code": "unknown_message_type", "message": "unknown message type: " + msg.Type},
			Timestamp: time.Now(),
		})
	}
}
