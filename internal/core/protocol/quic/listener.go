package quic

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/arena/internal/core/dispatch"
	"github.com/zeusync/arena/internal/core/observability/log"
	"github.com/zeusync/arena/internal/core/protocol"
)

// Listener accepts QUIC connections and completes the hello handshake.
// Handshakes run concurrently, so a peer that never says hello only holds
// its own goroutine until the write timeout.
type Listener struct {
	listener *quic.Listener
	config   protocol.Config

	ctx      context.Context
	cancel   context.CancelFunc
	accepted chan *Conn
	stopped  chan struct{}
	stopErr  error // set before stopped is closed

	closed int32 // atomic bool
	logger log.Log
}

func Listen(addr string, tlsConfig *tls.Config, config protocol.Config, logger log.Log) (*Listener, error) {
	config = config.Normalize()
	if logger == nil {
		logger = log.Provide()
	}

	listener, err := quic.ListenAddr(addr, tlsConfig, quicConfig(config))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create QUIC listener")
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Listener{
		listener: listener,
		config:   config,
		ctx:      ctx,
		cancel:   cancel,
		accepted: make(chan *Conn),
		stopped:  make(chan struct{}),
		logger:   logger.With(log.String("component", "quic_listener"), log.String("addr", listener.Addr().String())),
	}
	go l.acceptLoop()

	l.logger.Info("QUIC listener created")
	return l, nil
}

// Accept waits for the next peer that has completed its hello. Peers failing
// the handshake are closed and never returned.
func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	if atomic.LoadInt32(&l.closed) == 1 {
		return nil, protocol.ErrConnectionClosed
	}

	select {
	case conn := <-l.accepted:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.stopped:
		return nil, l.stopErr
	}
}

func (l *Listener) acceptLoop() {
	defer close(l.stopped)

	for {
		qconn, err := l.listener.Accept(l.ctx)
		if err != nil {
			if atomic.LoadInt32(&l.closed) == 1 {
				l.stopErr = protocol.ErrConnectionClosed
			} else {
				l.logger.Error("QUIC listener stopped accepting", log.Error(err))
				l.stopErr = errors.Wrap(err, "failed to accept QUIC connection")
			}
			return
		}
		go l.admit(qconn)
	}
}

func (l *Listener) admit(qconn *quic.Conn) {
	conn, err := l.handshake(l.ctx, qconn)
	if err != nil {
		l.logger.Warn("QUIC handshake failed",
			log.String("remote_addr", qconn.RemoteAddr().String()),
			log.Error(err))
		_ = qconn.CloseWithError(1, "handshake failed")
		return
	}

	select {
	case l.accepted <- conn:
	case <-l.ctx.Done():
		_ = conn.Close()
	}
}

func (l *Listener) handshake(ctx context.Context, qconn *quic.Conn) (*Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, l.config.WriteTimeout)
	defer cancel()

	stream, err := qconn.AcceptStream(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to accept stream")
	}

	deadline, _ := ctx.Deadline()
	_ = stream.SetReadDeadline(deadline)
	reader := bufio.NewReaderSize(stream, int(l.config.MaxMessageSize)+1)
	frame, err := readFrame(reader)
	if err != nil {
		return nil, err
	}
	_ = stream.SetReadDeadline(time.Time{})

	env, err := dispatch.ParseEnvelope(frame)
	if err != nil {
		return nil, errors.Wrap(protocol.ErrHandshake, err.Error())
	}
	var name string
	if env.Event != EventHello || env.Decode(0, &name) != nil || name == "" {
		return nil, errors.Wrap(protocol.ErrHandshake, "first frame must be hello with a name")
	}

	return newConn(qconn, stream, reader, name, l.config, l.logger), nil
}

func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

func (l *Listener) Close() error {
	if !atomic.CompareAndSwapInt32(&l.closed, 0, 1) {
		return nil
	}
	l.logger.Info("Closing QUIC listener")
	l.cancel()
	return l.listener.Close()
}
