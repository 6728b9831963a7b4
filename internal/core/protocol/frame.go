package protocol

import (
	"context"
	"errors"

	"github.com/zeusync/arena/internal/core/dispatch"
	"github.com/zeusync/arena/internal/core/observability/log"
)

// HandleFrame dispatches one inbound frame. Handler and decode failures are
// logged and swallowed so the connection keeps reading.
func HandleFrame(ctx context.Context, registry *dispatch.Registry, data []byte, logger log.Log) {
	err := registry.DispatchRaw(ctx, data)
	if err == nil {
		return
	}
	if errors.Is(err, dispatch.ErrDecode) {
		logger.Warn("Dropped undecodable message", log.Error(err))
		return
	}
	logger.Warn("Message handler failed", log.Error(err))
}
