// Package quic carries dispatch envelopes over QUIC. Each connection uses
// its first bidirectional stream; frames are newline-terminated JSON
// envelopes and the first frame is a hello naming the peer.
package quic

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/arena/internal/core/dispatch"
	"github.com/zeusync/arena/internal/core/hub"
	"github.com/zeusync/arena/internal/core/observability/log"
	"github.com/zeusync/arena/internal/core/protocol"
)

// EventHello opens every stream: {"event":"hello","args":["<name>"]}.
const EventHello = "hello"

var _ hub.Peer = (*Conn)(nil)

type Conn struct {
	id     string
	name   string
	conn   *quic.Conn
	stream *quic.Stream
	reader *bufio.Reader
	config protocol.Config
	send   chan []byte

	done      chan struct{}
	closeOnce sync.Once

	messagesSent     uint64 // atomic
	messagesReceived uint64 // atomic

	logger log.Log
}

func newConn(conn *quic.Conn, stream *quic.Stream, reader *bufio.Reader, name string, config protocol.Config, logger log.Log) *Conn {
	id := uuid.NewString()
	return &Conn{
		id:     id,
		name:   name,
		conn:   conn,
		stream: stream,
		reader: reader,
		config: config,
		send:   make(chan []byte, config.SendBuffer),
		done:   make(chan struct{}),
		logger: logger.With(
			log.String("transport", "quic"),
			log.String("client_id", id),
			log.String("name", name),
			log.String("remote_addr", conn.RemoteAddr().String())),
	}
}

// Dial connects to a QUIC listener and introduces itself as name.
func Dial(ctx context.Context, addr string, tlsConfig *tls.Config, name string, config protocol.Config, logger log.Log) (*Conn, error) {
	config = config.Normalize()
	if logger == nil {
		logger = log.Provide()
	}

	qconn, err := quic.DialAddr(ctx, addr, tlsConfig, quicConfig(config))
	if err != nil {
		return nil, errors.Wrap(err, "failed to dial QUIC connection")
	}

	stream, err := qconn.OpenStreamSync(ctx)
	if err != nil {
		_ = qconn.CloseWithError(0, "open stream failed")
		return nil, errors.Wrap(err, "failed to open stream")
	}

	hello, err := dispatch.Encode(EventHello, name)
	if err != nil {
		_ = qconn.CloseWithError(0, "encode hello failed")
		return nil, err
	}
	_ = stream.SetWriteDeadline(time.Now().Add(config.WriteTimeout))
	if _, err := stream.Write(append(hello, '\n')); err != nil {
		_ = qconn.CloseWithError(0, "hello failed")
		return nil, errors.Wrap(err, "failed to send hello")
	}
	_ = stream.SetWriteDeadline(time.Time{})

	reader := bufio.NewReaderSize(stream, int(config.MaxMessageSize)+1)
	return newConn(qconn, stream, reader, name, config, logger), nil
}

func (c *Conn) ID() string   { return c.id }
func (c *Conn) Name() string { return c.name }

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
	case c.send <- append(data, '\n'):
		return nil
	case <-c.done:
		return protocol.ErrConnectionClosed
	default:
		return protocol.ErrSendBufferFull
	}
}

// Serve reads frames in order and dispatches them through registry until
// the stream ends, ctx is cancelled or Close is called.
func (c *Conn) Serve(ctx context.Context, registry *dispatch.Registry) error {
	defer c.Close()

	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	go c.writePump()

	for {
		frame, err := readFrame(c.reader)
		if err != nil {
			if c.isClosed() {
				return nil
			}
			return err
		}
		if len(frame) == 0 {
			continue
		}
		atomic.AddUint64(&c.messagesReceived, 1)
		protocol.HandleFrame(ctx, registry, frame, c.logger)
	}
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.CloseWithError(0, "connection closed")
	})
	return err
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
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.stream.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if _, err := c.stream.Write(data); err != nil {
				c.logger.Debug("Write failed", log.Error(err))
				_ = c.Close()
				return
			}
			atomic.AddUint64(&c.messagesSent, 1)
		}
	}
}

// readFrame returns one line without its terminator. The returned slice is
// only valid until the next read.
func readFrame(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		return nil, protocol.ErrMessageTooLarge
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read frame")
	}
	return bytes.TrimRight(line, "\r\n"), nil
}

func quicConfig(config protocol.Config) *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:       config.PongTimeout,
		KeepAlivePeriod:      config.PingInterval / 2,
		HandshakeIdleTimeout: config.WriteTimeout,
	}
}
