// Package middlewares holds dispatch middlewares shared by every transport.
package middlewares

import (
	"context"
	"encoding/json"
	"time"

	"github.com/zeusync/arena/internal/core/dispatch"
	"github.com/zeusync/arena/internal/core/observability/log"
)

// Logging logs every handled event at debug level, and failures at warn.
func Logging(logger log.Log) dispatch.Middleware {
	return func(event string, next dispatch.Handler) dispatch.Handler {
		return func(ctx context.Context, args []json.RawMessage) error {
			start := time.Now()
			err := next(ctx, args)

			fields := []log.Field{
				log.String("event", event),
				log.Int("args", len(args)),
				log.Duration("duration", time.Since(start)),
			}
			if err != nil {
				logger.Warn("Event handling failed", append(fields, log.Error(err))...)
				return err
			}
			logger.Debug("Event handled", fields...)
			return nil
		}
	}
}
