package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chargehub/backend/services/chargers-service/internal/events"
)

// Server upgrades HTTP requests into charger event streams.
type Server struct {
	hub          *events.Hub
	logger       *zap.Logger
	writeTimeout time.Duration
	pingInterval time.Duration
	upgrader     websocket.Upgrader

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	streams map[string]*Connection
}

// NewServer builds ws server.
func NewServer(hub *events.Hub, writeTimeout, pingInterval time.Duration, logger *zap.Logger) *Server {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		hub:          hub,
		logger:       logger,
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		ctx:     ctx,
		cancel:  cancel,
		streams: make(map[string]*Connection),
	}
}

// Serve upgrades the request and blocks while transitions of chargerID are streamed.
func (s *Server) Serve(w http.ResponseWriter, r *http.Request, chargerID uuid.UUID) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	sub := s.hub.Subscribe(chargerID)
	connection := NewConnection(conn, sub, s.writeTimeout, s.pingInterval, s.logger, s.remove)

	s.mu.Lock()
	s.streams[connection.ID()] = connection
	s.mu.Unlock()

	connection.Start(s.ctx)
}

func (s *Server) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.streams, id)
}

// Active returns the number of open streams.
func (s *Server) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}

// Shutdown asks every stream to close.
func (s *Server) Shutdown() {
	s.cancel()
}
