package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/fortuna/gridiron/internal/pipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server streams build progress to WebSocket clients.
type Server struct {
	server *http.Server
	hub    *Hub
	logger logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc
}

var _ pipeline.Broadcaster = (*Server)(nil)

// NewServer creates a new WebSocket server
func NewServer(logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		hub:    NewHub(logger.WithField("component", "ws_hub")),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Hub exposes the underlying hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Routes returns the HTTP handler serving the WebSocket endpoints.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/builds", s.handleBuilds)
	mux.HandleFunc("/ws/health", s.handleHealth)
	return mux
}

// Start runs the hub and listens on port. It blocks until the server stops.
func (s *Server) Start(port string) error {
	go s.hub.Run(s.ctx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.WithField("port", port).Info("WebSocket server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Broadcast implements pipeline.Broadcaster.
func (s *Server) Broadcast(event pipeline.ProgressEvent) {
	s.hub.Broadcast(event)
}

// handleBuilds upgrades the connection and subscribes it to build progress
func (s *Server) handleBuilds(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("failed to upgrade connection")
		return
	}

	client := NewClient(uuid.NewString(), conn, s.hub)
	if jobID := r.URL.Query().Get("job_id"); jobID != "" {
		client.subscribe(jobID)
	}

	s.hub.Register(client)

	go client.writePump()
	go client.readPump(s.ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":        "healthy",
		"clients":       s.hub.ClientCount(),
		"messages_sent": s.hub.MessagesSent(),
	})
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
