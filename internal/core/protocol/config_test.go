package protocol

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/arena/internal/core/dispatch"
	"github.com/zeusync/arena/internal/core/observability/log"
)

func TestConfig_Normalize(t *testing.T) {
	assert.Equal(t, DefaultConfig(), Config{}.Normalize())

	c := Config{PongTimeout: 10 * time.Second, PingInterval: 20 * time.Second}.Normalize()
	assert.Equal(t, 9*time.Second, c.PingInterval)

	c = Config{SendBuffer: 4, PingInterval: time.Second}.Normalize()
	assert.Equal(t, 4, c.SendBuffer)
	assert.Equal(t, time.Second, c.PingInterval)
}

func TestHandleFrame_SwallowsFailures(t *testing.T) {
	calls := 0
	b := dispatch.NewBuilder()
	require.NoError(t, b.Register("ok", dispatch.Func0(func(context.Context) error { calls++; return nil })))
	require.NoError(t, b.Register("fail", dispatch.Func0(func(context.Context) error { return errors.New("boom") })))
	reg := b.Build()

	ctx := context.Background()
	HandleFrame(ctx, reg, []byte(`garbage`), log.NewNop())
	HandleFrame(ctx, reg, []byte(`{"event":"fail"}`), log.NewNop())
	HandleFrame(ctx, reg, []byte(`{"event":"ok","args":[1]}`), log.NewNop())
	HandleFrame(ctx, reg, []byte(`{"event":"ok"}`), log.NewNop())

	assert.Equal(t, 1, calls)
}
