package server

import (
	"context"
	"sync/atomic"

	"github.com/zeusync/arena/internal/core/actor"
	"github.com/zeusync/arena/internal/core/dispatch"
	"github.com/zeusync/arena/internal/core/hub"
	"github.com/zeusync/arena/internal/core/observability/log"
	"github.com/zeusync/arena/internal/core/protocol/middlewares"
	"github.com/zeusync/arena/internal/game/player"
)

// spawnHealth is the starting health of a connection's player.
const spawnHealth = 100

// session is a transport connection the server can serve.
type session interface {
	hub.Peer
	Serve(ctx context.Context, registry *dispatch.Registry) error
	Close() error
}

// beginSession reserves a slot in the session wait group, refusing once the
// server has started draining.
func (s *Server) beginSession() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draining {
		return false
	}
	s.sessions.Add(1)
	return true
}

// serveSession wires conn into the hub and the runtime, then blocks reading
// its frames until it goes away.
func (s *Server) serveSession(ctx context.Context, conn session) {
	defer s.sessions.Done()

	logger := s.logger.With(
		log.String("client_id", conn.ID()),
		log.String("name", conn.Name()))

	registry, err := s.buildRegistry(conn, logger)
	if err != nil {
		logger.Error("Failed to bind events", log.Error(err))
		_ = conn.Close()
		return
	}

	if err := s.hub.Register(conn); err != nil {
		logger.Error("Failed to register peer", log.Error(err))
		_ = conn.Close()
		return
	}
	defer s.hub.Unregister(conn)

	if s.config.Game.SpawnPlayers {
		p := player.New(conn.Name(), actor.Vec2{}, spawnHealth,
			player.WithTickInterval(s.config.Game.TickInterval),
			player.WithLogger(logger))
		if err := s.runtime.RegisterActor(p); err != nil {
			logger.Warn("Failed to spawn player", log.Error(err))
		} else {
			defer s.runtime.RemoveActor(p)
		}
	}

	total := atomic.AddInt64(&s.sessionCount, 1)
	defer atomic.AddInt64(&s.sessionCount, -1)
	logger.Info("Client connected", log.Int64("total_clients", total))

	err = conn.Serve(ctx, registry)
	logger.Info("Client disconnected", log.Error(err))
}

// buildRegistry binds the chat events for conn behind the shared middlewares.
// Each connection gets its own rate limit budget.
func (s *Server) buildRegistry(conn hub.Peer, logger log.Log) (*dispatch.Registry, error) {
	b := dispatch.NewBuilder()
	b.Use(
		middlewares.Logging(logger),
		s.metrics.Middleware(),
		middlewares.NewRateLimiter(s.config.Chat.RateLimit, s.config.Chat.RateWindow, nil).Middleware(),
	)
	if err := s.chat.Bind(b, conn); err != nil {
		return nil, err
	}
	return b.Build(), nil
}
