package wsbridge

import (
	"time"

	"github.com/danmuck/glicbridge/internal/protocol/frame"
)

// BackoffConfig defines dial retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines WebSocket window timing and limits.
type Config struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	// PongWait bounds how long a silent peer is kept. Must exceed
	// PingInterval.
	PongWait time.Duration
	Limits   frame.Limits
	Backoff  BackoffConfig
	// MaxDialAttempts caps Dial retries. Zero retries until the context ends.
	MaxDialAttempts int
}

func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 5 * time.Second,
		WriteTimeout:     10 * time.Second,
		PingInterval:     20 * time.Second,
		PongWait:         60 * time.Second,
		Limits:           frame.DefaultLimits(),
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.PongWait <= c.PingInterval {
		c.PongWait = 3 * c.PingInterval
	}
	if c.Limits.MaxOriginBytes == 0 {
		c.Limits.MaxOriginBytes = d.Limits.MaxOriginBytes
	}
	if c.Limits.MaxPayloadBytes == 0 {
		c.Limits.MaxPayloadBytes = d.Limits.MaxPayloadBytes
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff = d.Backoff
	}
	if c.MaxDialAttempts < 0 {
		c.MaxDialAttempts = 0
	}
	return c
}

// readLimit is the largest WebSocket message a frame can occupy.
func (c Config) readLimit() int64 {
	return int64(frame.FixedHeaderLen) + int64(c.Limits.MaxOriginBytes) + int64(c.Limits.MaxPayloadBytes)
}
