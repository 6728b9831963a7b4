// Package websocket adapts gorilla/websocket connections into hub peers that
// feed a dispatch registry.
package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/arena/internal/core/dispatch"
	"github.com/zeusync/arena/internal/core/hub"
	"github.com/zeusync/arena/internal/core/observability/log"
	"github.com/zeusync/arena/internal/core/protocol"
)

var _ hub.Peer = (*Conn)(nil)

// Conn is one websocket client. Emit never blocks: frames go through a
// buffered channel drained by the write pump, the only goroutine that
// writes to the socket.
type Conn struct {
	id     string
	name   string
	ws     *websocket.Conn
	config protocol.Config
	send   chan []byte

	done      chan struct{}
	closeOnce sync.Once

	messagesSent     uint64 // atomic
	messagesReceived uint64 // atomic
	dropped          uint64 // atomic

	logger log.Log
}

// Stats counts frames for one connection.
type Stats struct {
	MessagesSent     uint64
	MessagesReceived uint64
	Dropped          uint64
}

func NewConn(ws *websocket.Conn, name string, config protocol.Config, logger log.Log) *Conn {
	config = config.Normalize()
	if logger == nil {
		logger = log.Provide()
	}
	id := uuid.NewString()
	return &Conn{
		id:     id,
		name:   name,
		ws:     ws,
		config: config,
		send:   make(chan []byte, config.SendBuffer),
		done:   make(chan struct{}),
		logger: logger.With(
			log.String("transport", "websocket"),
			log.String("client_id", id),
			log.String("name", name)),
	}
}

func (c *Conn) ID() string   { return c.id }
func (c *Conn) Name() string { return c.name }

// Emit encodes the event and queues it for the write pump.
func (c *Conn) Emit(event string, args ...any) error {
	data, err := dispatch.Encode(event, args...)
	if err != nil {
		return errors.Wrap(err, "failed to encode event")
	}

	select {
	case <-c.done:
		return protocol.ErrConnectionClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return protocol.ErrConnectionClosed
	default:
		atomic.AddUint64(&c.dropped, 1)
		return protocol.ErrSendBufferFull
	}
}

// Serve runs the read loop, dispatching every frame through registry, until
// the peer goes away, ctx is cancelled or Close is called. Frames from one
// connection are handled in arrival order.
func (c *Conn) Serve(ctx context.Context, registry *dispatch.Registry) error {
	defer c.Close()

	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	go c.writePump()

	c.ws.SetReadLimit(c.config.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.config.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.config.PongTimeout))
	})

	c.logger.Debug("Read loop started")
	defer c.logger.Debug("Read loop stopped")

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if c.isClosed() {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("Unexpected close", log.Error(err))
			}
			return errors.Wrap(err, "failed to read message")
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}

		atomic.AddUint64(&c.messagesReceived, 1)
		protocol.HandleFrame(ctx, registry, data, c.logger)
	}
}

// Close stops both pumps. It is safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) Stats() Stats {
	return Stats{
		MessagesSent:     atomic.LoadUint64(&c.messagesSent),
		MessagesReceived: atomic.LoadUint64(&c.messagesReceived),
		Dropped:          atomic.LoadUint64(&c.dropped),
	}
}

func (c *Conn) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("Write failed", log.Error(err))
				_ = c.Close()
				return
			}
			atomic.AddUint64(&c.messagesSent, 1)
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}
