package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/gridiron/internal/pipeline"
)

// Hub maintains the set of active clients and broadcasts build progress to them
type Hub struct {
	clients   map[*Client]bool
	clientsMu sync.RWMutex

	// Inbound events from the build service
	broadcast chan pipeline.ProgressEvent

	register   chan *Client
	unregister chan *Client

	// closed when Run returns
	done chan struct{}

	totalMessages int64
	metricsMu     sync.Mutex

	logger logrus.FieldLogger
}

var _ pipeline.Broadcaster = (*Hub)(nil)

// NewHub creates a new Hub instance
func NewHub(logger logrus.FieldLogger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan pipeline.ProgressEvent, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("✓ Hub started")

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			h.broadcastEvent(event)
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues a progress event for every subscribed client. Events are
// dropped when the buffer is full.
func (h *Hub) Broadcast(event pipeline.ProgressEvent) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.WithField("job_id", event.JobID).Warn("broadcast buffer full, dropping event")
	}
}

func (h *Hub) registerClient(c *Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.clients[c] = true
	h.logger.WithFields(logrus.Fields{"client": c.ID, "total": len(h.clients)}).Info("client connected")
}

func (h *Hub) unregisterClient(c *Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.logger.WithFields(logrus.Fields{"client": c.ID, "total": len(h.clients)}).Info("client disconnected")
	}
}

func (h *Hub) broadcastEvent(event pipeline.ProgressEvent) {
	h.clientsMu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	message := ServerMessage{
		Type:      MessageTypeBuildProgress,
		Payload:   event,
		Timestamp: time.Now(),
	}

	sent := 0
	for _, c := range clients {
		if !c.Matches(event.JobID) {
			continue
		}
		if c.TrySend(message) {
			sent++
			continue
		}
		// slow client
		h.logger.WithField("client", c.ID).Warn("client buffer full, disconnecting")
		go h.Unregister(c)
	}

	if sent > 0 {
		h.metricsMu.Lock()
		h.totalMessages++
		h.metricsMu.Unlock()
	}
}

// ClientCount returns the number of active clients
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// MessagesSent returns how many events reached at least one client.
func (h *Hub) MessagesSent() int64 {
	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()
	return h.totalMessages
}

func (h *Hub) shutdown() {
	close(h.done)

	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.logger.WithField("clients", len(h.clients)).Info("shutting down hub")

	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}
