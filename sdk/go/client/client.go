// Package client is a websocket client for the arena chat events.
package client

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/arena/internal/chat"
	"github.com/zeusync/arena/internal/core/dispatch"
	"github.com/zeusync/arena/internal/core/observability/log"
	"github.com/zeusync/arena/internal/core/protocol"
	wstransport "github.com/zeusync/arena/internal/core/protocol/websocket"
)

// Client represents one named connection to an arena server. A client may
// Connect again after its session ended; bindings carry over.
type Client struct {
	builder *dispatch.Builder

	// Lifecycle
	connected int32 // atomic bool
	closed    int32 // atomic bool

	mu       sync.Mutex
	conn     *wstransport.Conn // current session, guarded by mu
	done     chan struct{}     // closed when the current session ends, guarded by mu
	serveErr error             // guarded by mu

	config Config
	logger log.Log
}

// Config holds configuration for the client
type Config struct {
	// ServerURL is the websocket endpoint, e.g. ws://localhost:8080/ws.
	ServerURL      string
	Name           string
	ConnectTimeout time.Duration
	Transport      protocol.Config
}

// DefaultClientConfig returns default client configuration
func DefaultClientConfig() Config {
	return Config{
		ServerURL:      "ws://localhost:8080/ws",
		ConnectTimeout: 10 * time.Second,
		Transport:      protocol.DefaultConfig(),
	}
}

func NewClient(config Config, logger log.Log) (*Client, error) {
	if config.ServerURL == "" || config.Name == "" {
		return nil, ErrInvalidConfig
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = DefaultClientConfig().ConnectTimeout
	}
	if logger == nil {
		logger = log.Provide()
	}
	done := make(chan struct{})
	close(done)
	return &Client{
		builder: dispatch.NewBuilder(),
		done:    done,
		config:  config,
		logger:  logger.With(log.String("component", "client"), log.String("name", config.Name)),
	}, nil
}

// On binds an inbound event. Bindings must be made before Connect.
func (c *Client) On(event string, h dispatch.Handler) error {
	if atomic.LoadInt32(&c.connected) == 1 {
		return ErrAlreadyConnected
	}
	return c.builder.Register(event, h)
}

// Connect dials the server and starts reading events in the background.
func (c *Client) Connect(ctx context.Context) error {
	if atomic.LoadInt32(&c.closed) == 1 {
		return ErrClientClosed
	}
	if !atomic.CompareAndSwapInt32(&c.connected, 0, 1) {
		return ErrAlreadyConnected
	}

	u, err := url.Parse(c.config.ServerURL)
	if err != nil {
		atomic.StoreInt32(&c.connected, 0)
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	q := u.Query()
	q.Set("name", c.config.Name)
	u.RawQuery = q.Encode()

	dialCtx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	ws, _, err := websocket.DefaultDialer.DialContext(dialCtx, u.String(), nil)
	if err != nil {
		atomic.StoreInt32(&c.connected, 0)
		return errors.Wrap(err, "failed to connect")
	}

	conn := wstransport.NewConn(ws, c.config.Name, c.config.Transport, c.logger)
	done := make(chan struct{})
	c.mu.Lock()
	if atomic.LoadInt32(&c.closed) == 1 {
		c.mu.Unlock()
		_ = ws.Close()
		atomic.StoreInt32(&c.connected, 0)
		return ErrClientClosed
	}
	c.conn = conn
	c.done = done
	c.serveErr = nil
	c.mu.Unlock()

	registry := c.builder.Build()
	go func() {
		defer close(done)
		err := conn.Serve(ctx, registry)
		c.mu.Lock()
		c.serveErr = err
		c.mu.Unlock()
		atomic.StoreInt32(&c.connected, 0)
	}()

	c.logger.Info("Connected", log.String("url", c.config.ServerURL))
	return nil
}

func (c *Client) Emit(event string, args ...any) error {
	if atomic.LoadInt32(&c.closed) == 1 {
		return ErrClientClosed
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil || atomic.LoadInt32(&c.connected) == 0 {
		return ErrNotConnected
	}
	return conn.Emit(event, args...)
}

func (c *Client) Whisper(recipient, message string) error {
	return c.Emit(chat.EventWhisper, recipient, message)
}

func (c *Client) Broadcast(message string) error {
	return c.Emit(chat.EventBroadcast, message)
}

func (c *Client) Command(text string) error {
	return c.Emit(chat.EventCommand, text)
}

// Done is closed once the current session's read loop has ended, and is
// already closed while there is no session.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Err is the last session's read loop result, valid after Done is closed.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serveErr
}

func (c *Client) Close() error {
	c.mu.Lock()
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		c.mu.Unlock()
		return nil
	}
	conn, done := c.conn, c.done
	c.mu.Unlock()
	if conn == nil {
		return nil
	}

	err := conn.Close()
	<-done
	return err
}
