// Package config loads the server configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/arena/internal/core/actor"
	"github.com/zeusync/arena/internal/core/observability/log"
	"github.com/zeusync/arena/internal/core/protocol"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Log    LogConfig    `yaml:"log"`
	Server ServerConfig `yaml:"server"`
	QUIC   QUICConfig   `yaml:"quic"`
	Game   GameConfig   `yaml:"game"`
	Chat   ChatConfig   `yaml:"chat"`
	Hub    HubConfig    `yaml:"hub"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig covers the HTTP listener and per-connection transport limits.
type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxMessageSize  int64         `yaml:"max_message_size"`
	SendBuffer      int           `yaml:"send_buffer"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	PongTimeout     time.Duration `yaml:"pong_timeout"`
	PingInterval    time.Duration `yaml:"ping_interval"`
}

// QUICConfig enables the QUIC listener. Without a cert and key a
// self-signed development certificate is generated.
type QUICConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
}

type GameConfig struct {
	FPS          int           `yaml:"fps"`
	SpawnPlayers bool          `yaml:"spawn_players"`
	TickInterval time.Duration `yaml:"tick_interval"`
}

type ChatConfig struct {
	HelpText string `yaml:"help_text"`
	// RateLimit caps inbound events per connection per RateWindow; 0 disables it.
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
}

type HubConfig struct {
	Shards int `yaml:"shards"`
}

func Default() Config {
	transport := protocol.DefaultConfig()
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: string(log.FormatJSON),
		},
		Server: ServerConfig{
			ListenAddr:      "127.0.0.1:8080",
			ShutdownTimeout: 5 * time.Second,
			MaxMessageSize:  transport.MaxMessageSize,
			SendBuffer:      transport.SendBuffer,
			WriteTimeout:    transport.WriteTimeout,
			PongTimeout:     transport.PongTimeout,
			PingInterval:    transport.PingInterval,
		},
		QUIC: QUICConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1:8443",
		},
		Game: GameConfig{
			FPS:          60,
			SpawnPlayers: true,
			TickInterval: time.Second,
		},
		Chat: ChatConfig{
			RateLimit:  50,
			RateWindow: time.Second,
		},
		Hub: HubConfig{
			Shards: 16,
		},
	}
}

// Load reads path over Default, so a file only needs the keys it changes.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to read config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "failed to parse config %s", path)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch log.Format(c.Log.Format) {
	case log.FormatJSON, log.FormatConsole:
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Log.Format)
	}
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("%w: server.listen_addr is empty", ErrInvalidConfig)
	}
	if c.QUIC.Enabled && c.QUIC.ListenAddr == "" {
		return fmt.Errorf("%w: quic.listen_addr is empty", ErrInvalidConfig)
	}
	if (c.QUIC.CertFile == "") != (c.QUIC.KeyFile == "") {
		return fmt.Errorf("%w: quic.cert_file and quic.key_file go together", ErrInvalidConfig)
	}
	if c.Game.FPS <= 0 || c.Game.FPS > actor.MaxFPS {
		return fmt.Errorf("%w: game.fps must be between 1 and %d, got %d", ErrInvalidConfig, actor.MaxFPS, c.Game.FPS)
	}
	if c.Chat.RateLimit < 0 {
		return fmt.Errorf("%w: chat.rate_limit must not be negative", ErrInvalidConfig)
	}
	if c.Chat.RateLimit > 0 && c.Chat.RateWindow <= 0 {
		return fmt.Errorf("%w: chat.rate_window must be positive", ErrInvalidConfig)
	}
	if c.Hub.Shards < 0 {
		return fmt.Errorf("%w: hub.shards must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Transport returns the per-connection settings shared by both transports.
func (c Config) Transport() protocol.Config {
	return protocol.Config{
		MaxMessageSize: c.Server.MaxMessageSize,
		SendBuffer:     c.Server.SendBuffer,
		WriteTimeout:   c.Server.WriteTimeout,
		PongTimeout:    c.Server.PongTimeout,
		PingInterval:   c.Server.PingInterval,
	}.Normalize()
}
