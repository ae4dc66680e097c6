// Package velox provides a minimal TCP application server with HTTP-like
// framing, keep-alive connections, and SNI-based certificate selection.
package velox

import (
	"fmt"
	"io"
	"log"
	"time"
)

// Engine selects how connections are scheduled.
const (
	// EngineBlocking runs one goroutine per connection and is the only
	// engine that supports TLS.
	EngineBlocking = "blocking"
	// EngineEventLoop runs connections on gnet event loops (cleartext only).
	EngineEventLoop = "eventloop"
)

// CertPair names the PEM files for one certificate/key pair.
type CertPair struct {
	CertFile string
	KeyFile  string
}

// TLSConfig enables transport encryption with per-virtual-host credentials.
type TLSConfig struct {
	Enabled bool
	// Default pair, presented when no virtual host matches. Required when
	// Enabled.
	CertFile string
	KeyFile  string
	// VirtualHosts maps an SNI host name to the pair presented for it.
	VirtualHosts map[string]CertPair
}

// Config holds the server configuration options.
type Config struct {
	Addr             string        // Address to bind to
	Engine           string        // EngineBlocking (default) or EngineEventLoop
	Logger           *log.Logger   // Logger for server events
	DisableKeepAlive bool          // Force-close every connection after one response
	MaxConnections   int           // Maximum concurrent connections (0 = unlimited)
	IdleTimeout      time.Duration // Maximum idle time before connection close
	TLS              TLSConfig     // Transport encryption
	Multicore        bool          // Event-loop engine: enable multicore mode
	NumEventLoop     int           // Event-loop engine: number of loops (0 = auto)
	ReusePort        bool          // Event-loop engine: enable SO_REUSEPORT
}

// newSilentLogger creates a logger that discards all output.
func newSilentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Addr:        ":8080",
		Engine:      EngineBlocking,
		Logger:      newSilentLogger(),
		IdleTimeout: 60 * time.Second,
		Multicore:   true,
	}
}

// Validate checks and normalizes the configuration values.
func (c *Config) Validate() error {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.Engine == "" {
		c.Engine = EngineBlocking
	}
	if c.Engine != EngineBlocking && c.Engine != EngineEventLoop {
		return fmt.Errorf("unknown engine %q", c.Engine)
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	if c.TLS.Enabled {
		if c.Engine != EngineBlocking {
			return fmt.Errorf("TLS requires the %s engine", EngineBlocking)
		}
		if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
			return fmt.Errorf("TLS requires a default certificate and key")
		}
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("MaxConnections must not be negative")
	}
	return nil
}
