package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Manager.PingInterval <= 0 {
		return errors.New("manager.ping_interval must be > 0")
	}
	if c.Manager.Timeout <= c.Manager.PingInterval {
		return fmt.Errorf("manager.timeout (%v) must exceed manager.ping_interval (%v)", c.Manager.Timeout, c.Manager.PingInterval)
	}
	if c.Manager.HandshakeTimeout == nil || *c.Manager.HandshakeTimeout < 0 {
		return errors.New("manager.handshake_timeout must be >= 0")
	}

	if c.Transport.DialTimeout <= 0 {
		return errors.New("transport.dial_timeout must be > 0")
	}

	if c.WebSocket.FrameQueue < 1 {
		return errors.New("websocket.frame_queue must be >= 1")
	}

	for i, target := range c.Targets {
		if err := validateTarget(target); err != nil {
			return fmt.Errorf("targets[%d]: %w", i, err)
		}
	}

	if c.Send.Interval < 0 {
		return errors.New("send.interval must be >= 0")
	}
	if c.Poll.BusyInterval < 0 || c.Poll.IdleInterval < 0 {
		return errors.New("poll intervals must be >= 0")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}

	return nil
}

func validateTarget(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return err
	}
	if u.Scheme != "wss" {
		return fmt.Errorf("scheme must be wss, got %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return errors.New("host is required")
	}
	return nil
}

// ParseLevel converts a log.level value to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: unknown level %q", s)
	}
	return level, nil
}
