// Package transport creates the raw TCP streams that the TLS layer runs on.
package transport

import (
	"fmt"
	"log/slog"
	"net"
	"time"
)

// Config configures the TCP factory.
type Config struct {
	DialTimeout time.Duration // Upper bound on the TCP connect
	NoDelay     bool          // Set TCP_NODELAY
	KeepAlive   bool          // Set SO_KEEPALIVE
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		DialTimeout: 10 * time.Second,
		NoDelay:     true,
		KeepAlive:   true,
	}
}

// TCPFactory dials TCP connections for the connection manager.
type TCPFactory struct {
	cfg    Config
	dialer net.Dialer
	logger *slog.Logger
}

// NewTCPFactory creates a factory.
func NewTCPFactory(cfg Config, logger *slog.Logger) *TCPFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &TCPFactory{
		cfg: cfg,
		dialer: net.Dialer{
			Timeout: cfg.DialTimeout,
			Control: socketControl(cfg),
		},
		logger: logger,
	}
}

// Create connects to hostPort ("host:port").
func (f *TCPFactory) Create(hostPort string) (net.Conn, error) {
	conn, err := f.dialer.Dial("tcp", hostPort)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", hostPort, err)
	}

	f.logger.Debug("tcp connected",
		"remote", conn.RemoteAddr().String(),
		"local", conn.LocalAddr().String(),
	)
	return conn, nil
}
