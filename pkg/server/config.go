package server

import (
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/vdiff/pkg/reconcile"
	"github.com/vango-dev/vdiff/pkg/snapshot"
)

// ServerConfig configures the mount server.
type ServerConfig struct {
	// Address is the address to listen on (e.g., ":7070").
	Address string

	// ReadBufferSize is the WebSocket read buffer size.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	WriteBufferSize int

	// CheckOrigin validates the WebSocket upgrade Origin header.
	// Default: SameOriginCheck.
	CheckOrigin func(r *http.Request) bool

	// ReadHeaderTimeout, ReadTimeout, WriteTimeout and IdleTimeout are
	// passed to the http.Server. WriteTimeout also bounds each frame write.
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration

	// PingInterval is how often watchers are pinged.
	PingInterval time.Duration

	// PongTimeout is how long a watcher may stay silent before it is dropped.
	// Must be greater than PingInterval.
	PongTimeout time.Duration

	// SendBuffer is the number of frames queued per watcher. A watcher that
	// falls this far behind is disconnected.
	SendBuffer int

	// MaxBodyBytes limits the size of a rendered document.
	MaxBodyBytes int64

	// StrictKeys rejects documents with duplicate sibling keys.
	StrictKeys bool

	// Middleware wraps every render of every mount.
	Middleware []reconcile.Middleware

	// Store enables the snapshot and restore endpoints when set.
	Store snapshot.Store

	// MetricsPath serves Prometheus metrics when non-empty.
	MetricsPath string

	// MetricsGatherer is the gatherer behind MetricsPath.
	// Default: prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:           ":7070",
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		CheckOrigin:       SameOriginCheck,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		PingInterval:      30 * time.Second,
		PongTimeout:       60 * time.Second,
		SendBuffer:        64,
		MaxBodyBytes:      4 << 20,
		StrictKeys:        true,
	}
}

// withDefaults fills unset fields from DefaultServerConfig.
func (c *ServerConfig) withDefaults() *ServerConfig {
	defaults := DefaultServerConfig()
	if c == nil {
		return defaults
	}
	cfg := *c
	if cfg.Address == "" {
		cfg.Address = defaults.Address
	}
	if cfg.ReadBufferSize == 0 {
		cfg.ReadBufferSize = defaults.ReadBufferSize
	}
	if cfg.WriteBufferSize == 0 {
		cfg.WriteBufferSize = defaults.WriteBufferSize
	}
	if cfg.CheckOrigin == nil {
		cfg.CheckOrigin = defaults.CheckOrigin
	}
	if cfg.ReadHeaderTimeout == 0 {
		cfg.ReadHeaderTimeout = defaults.ReadHeaderTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = defaults.IdleTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = defaults.PingInterval
	}
	if cfg.PongTimeout == 0 {
		cfg.PongTimeout = defaults.PongTimeout
	}
	if cfg.PongTimeout <= cfg.PingInterval {
		cfg.PongTimeout = 2 * cfg.PingInterval
	}
	if cfg.SendBuffer == 0 {
		cfg.SendBuffer = defaults.SendBuffer
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}
	return &cfg
}

// SameOriginCheck validates that the WebSocket request origin matches the host.
// Requests without an Origin header (CLI watchers) are allowed.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := r.Host
	if host == "" {
		return false
	}
	return originURL.Host == host
}
