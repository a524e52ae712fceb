// Package server provides configuration helpers that define runtime defaults
// and validation for the websocket edge.
package server

import (
	"net"
	"strconv"
	"time"
)

// IdentityMode selects where a connection identity comes from.
type IdentityMode string

const (
	// IdentityHeader reuses the client's Sec-WebSocket-Key verbatim.
	IdentityHeader IdentityMode = "header"
	// IdentityGenerated issues a server-side UUID per connection.
	IdentityGenerated IdentityMode = "generated"
)

// RateLimitConfig defines the parameters for per-connection inbound throttling.
// A zero Burst disables throttling.
type RateLimitConfig struct {
	Burst          int           `env:"BURST" envDefault:"0"`
	RefillInterval time.Duration `env:"REFILL_INTERVAL" envDefault:"1s"`
}

// Config holds the websocket server settings.
type Config struct {
	Host string `env:"HOST" envDefault:"127.0.0.1"`
	Port int    `env:"PORT" envDefault:"3012"`
	// MaxConnections caps concurrently open connections. Zero means unlimited.
	MaxConnections  int             `env:"MAX_CONNECTIONS" envDefault:"10000"`
	AllowedOrigins  []string        `env:"ALLOWED_ORIGINS" envDefault:"*"`
	MaxMessageSize  int64           `env:"MAX_MESSAGE_SIZE" envDefault:"65536"`
	RateLimit       RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	Identity        IdentityMode    `env:"IDENTITY" envDefault:"header"`
	EvictEmptyRooms bool            `env:"EVICT_EMPTY_ROOMS" envDefault:"true"`
	SSLCert         string          `env:"SSL_CERT"`
	SSLKey          string          `env:"SSL_KEY"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Host:           "127.0.0.1",
		Port:           3012,
		MaxConnections: 10000,
		AllowedOrigins: []string{"*"},
		MaxMessageSize: 65536,
		RateLimit: RateLimitConfig{
			RefillInterval: time.Second,
		},
		Identity:        IdentityHeader,
		EvictEmptyRooms: true,
	}
}

// Addr returns the host:port listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ThrottleEnabled reports whether inbound frames are rate limited.
func (c Config) ThrottleEnabled() bool {
	return c.RateLimit.Burst > 0
}

// TLSEnabled reports whether both certificate and key paths are set.
func (c Config) TLSEnabled() bool {
	return c.SSLCert != "" && c.SSLKey != ""
}

func (c Config) sanitize() Config {
	if c.MaxConnections < 0 {
		c.MaxConnections = 0
	}

	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 65536
	}

	if c.RateLimit.Burst < 0 {
		c.RateLimit.Burst = 0
	}

	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = time.Second
	}

	if c.Identity != IdentityGenerated {
		c.Identity = IdentityHeader
	}

	c.AllowedOrigins = append([]string(nil), c.AllowedOrigins...)
	return c
}
