package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chargehub/backend/services/chargers-service/internal/events"
)

const (
	readLimit   = 4 * 1024
	pongTimeout = 60 * time.Second
)

// Connection streams one charger's transitions to a websocket client.
type Connection struct {
	id           string
	ws           *websocket.Conn
	sub          *events.Subscription
	logger       *zap.Logger
	writeTimeout time.Duration
	pingInterval time.Duration
	readDone     chan struct{}
	onClose      func(id string)
}

// NewConnection builds connection wrapper.
func NewConnection(ws *websocket.Conn, sub *events.Subscription, writeTimeout, pingInterval time.Duration, logger *zap.Logger, onClose func(string)) *Connection {
	return &Connection{
		id:           uuid.NewString(),
		ws:           ws,
		sub:          sub,
		logger:       logger.With(zap.String("charger_id", sub.ChargerID.String())),
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		readDone:     make(chan struct{}),
		onClose:      onClose,
	}
}

// ID returns identifier.
func (c *Connection) ID() string {
	return c.id
}

// Start runs the pumps until the client leaves or ctx is done.
func (c *Connection) Start(ctx context.Context) {
	defer c.cleanup()
	go c.readPump()
	c.writePump(ctx)
}

// readPump only serves control frames; client payloads are ignored.
func (c *Connection) readPump() {
	defer close(c.readDone)
	c.ws.SetReadLimit(readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			c.logger.Debug("event stream read closed", zap.Error(err))
			return
		}
	}
}

func (c *Connection) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case <-c.readDone:
			return
		case t, ok := <-c.sub.C:
			if !ok {
				_ = c.write(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(t)
			if err != nil {
				c.logger.Warn("failed to encode charger event", zap.Error(err))
				continue
			}
			if err := c.write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, []byte("ping")); err != nil {
				return
			}
		}
	}
}

func (c *Connection) write(messageType int, data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(messageType, data)
}

func (c *Connection) cleanup() {
	c.sub.Close()
	_ = c.ws.Close()
	if c.onClose != nil {
		c.onClose(c.id)
	}
}
