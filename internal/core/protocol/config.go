// Package protocol holds what the websocket and QUIC transports share: peer
// configuration, errors, and the inbound frame path into a dispatch registry.
package protocol

import "time"

// Config holds per-connection transport settings
type Config struct {
	// MaxMessageSize caps one inbound frame in bytes.
	MaxMessageSize int64
	// SendBuffer is how many outbound frames may wait before Emit fails.
	SendBuffer int
	// WriteTimeout bounds a single outbound write.
	WriteTimeout time.Duration
	// PongTimeout is how long a websocket peer may stay silent.
	PongTimeout time.Duration
	// PingInterval must be shorter than PongTimeout.
	PingInterval time.Duration
}

// DefaultConfig returns default transport configuration
func DefaultConfig() Config {
	return Config{
		MaxMessageSize: 4096,
		SendBuffer:     256,
		WriteTimeout:   10 * time.Second,
		PongTimeout:    60 * time.Second,
		PingInterval:   54 * time.Second,
	}
}

// Normalize fills zero fields from DefaultConfig.
func (c Config) Normalize() Config {
	d := DefaultConfig()
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = d.PongTimeout
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongTimeout {
		c.PingInterval = c.PongTimeout * 9 / 10
	}
	return c
}
