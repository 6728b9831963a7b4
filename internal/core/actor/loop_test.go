package actor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/arena/internal/core/observability/log"
)

func TestNewLoop_RejectsOutOfRangeFPS(t *testing.T) {
	for _, fps := range []int{0, -1, MaxFPS + 1, 2_000_000_000} {
		_, err := NewLoop(NewRuntime(log.NewNop()), fps, log.NewNop())
		assert.ErrorIs(t, err, ErrInvalidFPS, "fps %d", fps)
	}

	loop, err := NewLoop(NewRuntime(log.NewNop()), MaxFPS, log.NewNop())
	require.NoError(t, err)
	assert.Equal(t, time.Millisecond, loop.FrameInterval())
}

func TestLoop_RunsUntilCancelled(t *testing.T) {
	rt := NewRuntime(log.NewNop())
	a := newSpy("a", nil)
	require.NoError(t, rt.RegisterActor(a))

	loop, err := NewLoop(rt, 200, log.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 5*time.Millisecond, loop.FrameInterval())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	require.Eventually(t, func() bool {
		return rt.Stats().Frames >= 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}
