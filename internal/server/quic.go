package server

import (
	"context"

	"github.com/pkg/errors"

	"github.com/zeusync/arena/internal/core/observability/log"
	"github.com/zeusync/arena/internal/core/protocol"
	quictransport "github.com/zeusync/arena/internal/core/protocol/quic"
)

// acceptQUIC serves QUIC peers until ctx is done.
func (s *Server) acceptQUIC(ctx context.Context, l *quictransport.Listener) error {
	s.logger.Debug("QUIC acceptor started")
	defer s.logger.Debug("QUIC acceptor stopped")

	for {
		conn, err := l.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, protocol.ErrConnectionClosed) {
				return nil
			}
			s.logger.Error("Failed to accept QUIC connection", log.Error(err))
			return err
		}

		if !s.beginSession() {
			_ = conn.Close()
			return nil
		}
		go s.serveSession(ctx, conn)
	}
}
