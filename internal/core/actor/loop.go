package actor

import (
	"context"
	"time"

	"github.com/zeusync/arena/internal/core/observability/log"
)

// MaxFPS keeps the frame interval at one millisecond or more.
const MaxFPS = 1000

// Loop calls RunFrame at a fixed rate until its context is cancelled.
type Loop struct {
	runtime  *Runtime
	interval time.Duration
	logger   log.Log
}

func NewLoop(runtime *Runtime, fps int, logger log.Log) (*Loop, error) {
	if fps <= 0 || fps > MaxFPS {
		return nil, ErrInvalidFPS
	}
	if logger == nil {
		logger = log.Provide()
	}
	return &Loop{
		runtime:  runtime,
		interval: time.Second / time.Duration(fps),
		logger:   logger.With(log.String("component", "frame_loop")),
	}, nil
}

// FrameInterval is the target wall-clock time between frames.
func (l *Loop) FrameInterval() time.Duration { return l.interval }

// Run blocks until ctx is done. Frames that overrun are not replayed; the
// ticker drops them.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("Frame loop started", log.Duration("frame_interval", l.interval))

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			stats := l.runtime.Stats()
			l.logger.Info("Frame loop stopped",
				log.Int64("frames", stats.Frames),
				log.Int64("tick_fires", stats.TickFires))
			return nil
		case <-ticker.C:
			l.runtime.RunFrame()
		}
	}
}
