// Package server hosts the arena: a frame-driven actor runtime and a chat hub
// reachable over websocket and, optionally, QUIC.
package server

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/arena/internal/chat"
	"github.com/zeusync/arena/internal/config"
	"github.com/zeusync/arena/internal/core/actor"
	"github.com/zeusync/arena/internal/core/hub"
	"github.com/zeusync/arena/internal/core/observability/log"
	"github.com/zeusync/arena/internal/core/protocol/middlewares"
	quictransport "github.com/zeusync/arena/internal/core/protocol/quic"
)

// Server composes the hub, the chat handlers and the actor runtime behind
// the network listeners.
type Server struct {
	config config.Config

	hub     *hub.Hub
	chat    *chat.Service
	runtime *actor.Runtime
	loop    *actor.Loop
	metrics *middlewares.Metrics

	mu       sync.Mutex
	addr     net.Addr
	quicAddr net.Addr
	cancel   context.CancelFunc
	done     chan struct{}
	runErr   error

	sessions     sync.WaitGroup
	sessionCount int64 // atomic
	draining     bool  // guarded by mu

	// Server state
	running int32 // atomic bool
	closed  int32 // atomic bool

	logger log.Log
}

// Stats is what /stats reports.
type Stats struct {
	Sessions int64                      `json:"sessions"`
	Hub      hub.Stats                  `json:"hub"`
	Runtime  actor.Stats                `json:"runtime"`
	Events   []middlewares.EventMetrics `json:"events"`
}

// NewServer builds every component from cfg. Nothing listens until Run or
// Start is called.
func NewServer(cfg config.Config, logger log.Log) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Provide()
	}

	h := hub.New(cfg.Hub.Shards, logger)
	runtime := actor.NewRuntime(logger)
	loop, err := actor.NewLoop(runtime, cfg.Game.FPS, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:  cfg,
		hub:     h,
		chat:    chat.NewService(h, cfg.Chat.HelpText, logger),
		runtime: runtime,
		loop:    loop,
		metrics: middlewares.NewMetrics(),
		logger:  logger.With(log.String("component", "server")),
	}

	s.logger.Info("Server created",
		log.String("listen_addr", cfg.Server.ListenAddr),
		log.Bool("quic_enabled", cfg.QUIC.Enabled),
		log.Int("fps", cfg.Game.FPS))

	return s, nil
}

func (s *Server) Hub() *hub.Hub { return s.hub }
func (s *Server) Runtime() *actor.Runtime { return s.runtime }
func (s *Server) Chat() *chat.Service { return s.chat }
func (s *Server) Metrics() *middlewares.Metrics { return s.metrics }

// Addr is the bound HTTP address, nil until the server is listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// QUICAddr is the bound QUIC address, nil unless QUIC is enabled and listening.
func (s *Server) QUICAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quicAddr
}

func (s *Server) Stats() Stats {
	return Stats{
		Sessions: atomic.LoadInt64(&s.sessionCount),
		Hub:      s.hub.Stats(),
		Runtime:  s.runtime.Stats(),
		Events:   s.metrics.Snapshot(),
	}
}

// Run listens and serves until ctx is done or a listener fails. Stop does
// not apply to a server started this way.
func (s *Server) Run(ctx context.Context) error {
	ln, ql, err := s.listen()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	return s.serve(ctx, ln, ql)
}

// Start listens synchronously and serves in the background. Stop ends it.
func (s *Server) Start(ctx context.Context) error {
	ln, ql, err := s.listen()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		err := s.serve(ctx, ln, ql)
		s.mu.Lock()
		s.runErr = err
		s.mu.Unlock()
	}()
	return nil
}

// Stop cancels a server started with Start and waits for every session to
// end.
func (s *Server) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if atomic.LoadInt32(&s.running) == 0 || done == nil {
		return ErrServerNotRunning
	}

	s.logger.Info("Stopping server")
	cancel()
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runErr
}

// Close stops the server if needed. A closed server cannot be started again.
func (s *Server) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	if atomic.LoadInt32(&s.running) == 1 {
		_ = s.Stop()
	}
	s.logger.Info("Server closed")
	return nil
}

func (s *Server) listen() (net.Listener, *quictransport.Listener, error) {
	if atomic.LoadInt32(&s.closed) == 1 {
		return nil, nil, ErrServerClosed
	}
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return nil, nil, ErrServerAlreadyRunning
	}

	ln, err := net.Listen("tcp", s.config.Server.ListenAddr)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		s.logger.Error("Failed to create listener", log.Error(err))
		return nil, nil, errors.Wrap(ErrListenerFailed, err.Error())
	}

	var ql *quictransport.Listener
	if s.config.QUIC.Enabled {
		ql, err = s.listenQUIC()
		if err != nil {
			_ = ln.Close()
			atomic.StoreInt32(&s.running, 0)
			s.logger.Error("Failed to create QUIC listener", log.Error(err))
			return nil, nil, errors.Wrap(ErrListenerFailed, err.Error())
		}
	}

	s.mu.Lock()
	s.draining = false
	s.addr = ln.Addr()
	if ql != nil {
		s.quicAddr = ql.Addr()
	}
	s.mu.Unlock()

	s.logger.Info("Server listening", log.String("addr", ln.Addr().String()))
	return ln, ql, nil
}

func (s *Server) listenQUIC() (*quictransport.Listener, error) {
	var (
		tlsConfig *tls.Config
		err       error
	)
	if s.config.QUIC.CertFile != "" {
		tlsConfig, err = quictransport.LoadTLS(s.config.QUIC.CertFile, s.config.QUIC.KeyFile)
	} else {
		s.logger.Warn("No QUIC certificate configured, using a self-signed one")
		tlsConfig, err = quictransport.GenerateSelfSignedTLS()
	}
	if err != nil {
		return nil, err
	}
	return quictransport.Listen(s.config.QUIC.ListenAddr, tlsConfig, s.config.Transport(), s.logger)
}

func (s *Server) serve(ctx context.Context, ln net.Listener, ql *quictransport.Listener) error {
	defer atomic.StoreInt32(&s.running, 0)

	g, gctx := errgroup.WithContext(ctx)

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server failed")
		}
		return nil
	})

	g.Go(func() error {
		return s.loop.Run(gctx)
	})

	if ql != nil {
		g.Go(func() error {
			return s.acceptQUIC(gctx, ql)
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancelShutdown()

		err := httpServer.Shutdown(shutdownCtx)
		if ql != nil {
			_ = ql.Close()
		}
		return err
	})

	s.logger.Info("Server started successfully")
	err := g.Wait()

	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()
	s.sessions.Wait()
	s.logger.Info("Server stopped", log.Error(err))
	return err
}
