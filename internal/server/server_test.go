package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/arena/internal/chat"
	"github.com/zeusync/arena/internal/config"
	"github.com/zeusync/arena/internal/core/dispatch"
	"github.com/zeusync/arena/internal/core/observability/log"
	quictransport "github.com/zeusync/arena/internal/core/protocol/quic"
	"github.com/zeusync/arena/sdk/go/client"
)

const waitFor = 2 * time.Second

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Server.ListenAddr = "127.0.0.1:0"
	cfg.QUIC.ListenAddr = "127.0.0.1:0"
	cfg.Server.ShutdownTimeout = time.Second
	return cfg
}

func startServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	srv, err := NewServer(cfg, log.NewNop())
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

type inbox struct {
	broadcasts chan string
	whispers   chan [2]string
	help       chan string
}

func connect(t *testing.T, srv *Server, name string) (*client.Client, inbox) {
	t.Helper()
	box := inbox{
		broadcasts: make(chan string, 8),
		whispers:   make(chan [2]string, 8),
		help:       make(chan string, 8),
	}

	cfg := client.DefaultClientConfig()
	cfg.ServerURL = "ws://" + srv.Addr().String() + "/ws"
	cfg.Name = name
	c, err := client.NewClient(cfg, log.NewNop())
	require.NoError(t, err)

	require.NoError(t, c.On(chat.EventBroadcast, dispatch.Func1(func(_ context.Context, msg string) error {
		box.broadcasts <- msg
		return nil
	})))
	require.NoError(t, c.On(chat.EventWhisper, dispatch.Func2(func(_ context.Context, recipient, msg string) error {
		box.whispers <- [2]string{recipient, msg}
		return nil
	})))
	require.NoError(t, c.On(chat.EventHelp, dispatch.Func1(func(_ context.Context, text string) error {
		box.help <- text
		return nil
	})))

	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(func() { _ = c.Close() })
	return c, box
}

func waitPeers(t *testing.T, srv *Server, n int64) {
	t.Helper()
	require.Eventually(t, func() bool { return srv.Hub().Count() == n }, waitFor, 10*time.Millisecond)
}

func receive[T any](t *testing.T, ch chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for event")
		var zero T
		return zero
	}
}

func assertSilent[T any](t *testing.T, ch chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected event: %v", v)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestServer_BroadcastReachesEveryoneElse(t *testing.T) {
	srv := startServer(t, testConfig())

	a, boxA := connect(t, srv, "a")
	_, boxB := connect(t, srv, "b")
	_, boxC := connect(t, srv, "c")
	waitPeers(t, srv, 3)

	require.NoError(t, a.Broadcast("hello"))

	assert.Equal(t, "hello", receive(t, boxB.broadcasts))
	assert.Equal(t, "hello", receive(t, boxC.broadcasts))
	assertSilent(t, boxA.broadcasts)
}

func TestServer_WhisperReachesOnlyRecipient(t *testing.T) {
	srv := startServer(t, testConfig())

	a, boxA := connect(t, srv, "a")
	_, boxB := connect(t, srv, "b")
	_, boxC := connect(t, srv, "c")
	waitPeers(t, srv, 3)

	require.NoError(t, a.Whisper("b", "psst"))
	require.NoError(t, a.Whisper("nobody", "lost"))

	assert.Equal(t, [2]string{"b", "psst"}, receive(t, boxB.whispers))
	assertSilent(t, boxA.whispers)
	assertSilent(t, boxC.whispers)
}

func TestServer_CommandAnswersHelp(t *testing.T) {
	cfg := testConfig()
	cfg.Chat.HelpText = "only help here"
	srv := startServer(t, cfg)

	a, boxA := connect(t, srv, "a")
	_, boxB := connect(t, srv, "b")
	waitPeers(t, srv, 2)

	require.NoError(t, a.Command("help"))
	require.NoError(t, a.Command("dance"))

	assert.Equal(t, "only help here", receive(t, boxA.help))
	assert.Equal(t, "only help here", receive(t, boxA.help))
	assertSilent(t, boxB.help)
}

func TestServer_SpawnsAndRemovesPlayers(t *testing.T) {
	srv := startServer(t, testConfig())

	a, _ := connect(t, srv, "a")
	connect(t, srv, "b")
	waitPeers(t, srv, 2)

	require.Eventually(t, func() bool {
		return srv.Runtime().Stats().Actors == 2
	}, waitFor, 10*time.Millisecond)

	require.NoError(t, a.Close())
	waitPeers(t, srv, 1)
	require.Eventually(t, func() bool {
		return srv.Runtime().Stats().Actors == 1
	}, waitFor, 10*time.Millisecond)
}

func TestServer_WithoutPlayers(t *testing.T) {
	cfg := testConfig()
	cfg.Game.SpawnPlayers = false
	srv := startServer(t, cfg)

	connect(t, srv, "a")
	waitPeers(t, srv, 1)

	require.Eventually(t, func() bool {
		return srv.Runtime().Stats().Frames > 5
	}, waitFor, 10*time.Millisecond)
	assert.Zero(t, srv.Runtime().Stats().Actors)
}

func TestServer_BadFramesKeepConnectionAlive(t *testing.T) {
	srv := startServer(t, testConfig())

	a, _ := connect(t, srv, "a")
	_, boxB := connect(t, srv, "b")
	waitPeers(t, srv, 2)

	require.NoError(t, a.Emit(chat.EventBroadcast))
	require.NoError(t, a.Emit(chat.EventWhisper, "b"))
	require.NoError(t, a.Emit("dance", "now"))
	require.NoError(t, a.Broadcast("after"))

	assert.Equal(t, "after", receive(t, boxB.broadcasts))
	assert.Equal(t, int64(2), srv.Hub().Count())
}

func TestServer_HealthAndStats(t *testing.T) {
	srv := startServer(t, testConfig())
	a, _ := connect(t, srv, "a")
	waitPeers(t, srv, 1)
	require.NoError(t, a.Broadcast("x"))

	resp, err := http.Get("http://" + srv.Addr().String() + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])

	require.Eventually(t, func() bool {
		events := srv.Stats().Events
		return len(events) == 1 && events[0].Event == chat.EventBroadcast
	}, waitFor, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	var stats Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.Sessions)
	assert.Equal(t, int64(1), stats.Hub.Peers)
	assert.Positive(t, stats.Runtime.Frames)
}

func TestServer_RejectsMissingName(t *testing.T) {
	srv, err := NewServer(testConfig(), log.NewNop())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Lifecycle(t *testing.T) {
	srv, err := NewServer(testConfig(), log.NewNop())
	require.NoError(t, err)

	assert.ErrorIs(t, srv.Stop(), ErrServerNotRunning)
	require.NoError(t, srv.Start(context.Background()))
	assert.ErrorIs(t, srv.Start(context.Background()), ErrServerAlreadyRunning)

	_, box := connect(t, srv, "a")
	waitPeers(t, srv, 1)

	require.NoError(t, srv.Stop())
	assert.Zero(t, srv.Hub().Count())
	assertSilent(t, box.broadcasts)

	require.NoError(t, srv.Close())
	assert.ErrorIs(t, srv.Start(context.Background()), ErrServerClosed)
}

func TestServer_RunStopsWithContext(t *testing.T) {
	srv, err := NewServer(testConfig(), log.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	require.Eventually(t, func() bool { return srv.Addr() != nil }, waitFor, 10*time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Run did not return")
	}
}

func TestNewServer_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Game.FPS = 0
	_, err := NewServer(cfg, log.NewNop())
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestServer_QUICPeersShareTheHub(t *testing.T) {
	cfg := testConfig()
	cfg.QUIC.Enabled = true
	srv := startServer(t, cfg)
	require.NotNil(t, srv.QUICAddr())

	_, boxWS := connect(t, srv, "web")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	qc, err := quictransport.Dial(ctx, srv.QUICAddr().String(), quictransport.InsecureClientTLS(), "fast", cfg.Transport(), log.NewNop())
	require.NoError(t, err)
	defer qc.Close()

	help := make(chan string, 1)
	b := dispatch.NewBuilder()
	require.NoError(t, b.Register(chat.EventHelp, dispatch.Func1(func(_ context.Context, text string) error {
		help <- text
		return nil
	})))
	go func() { _ = qc.Serve(ctx, b.Build()) }()

	waitPeers(t, srv, 2)

	require.NoError(t, qc.Emit(chat.EventBroadcast, "from quic"))
	assert.Equal(t, "from quic", receive(t, boxWS.broadcasts))

	require.NoError(t, qc.Emit(chat.EventCommand, ""))
	assert.Equal(t, chat.DefaultHelpText, receive[string](t, help))
}
