package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultInstanceID       = "wspoll"
	DefaultPingInterval     = 15 * time.Second
	DefaultTimeout          = 60 * time.Second
	DefaultHandshakeTimeout = 30 * time.Second
	DefaultDialTimeout      = 10 * time.Second
	DefaultReadBufferSize   = 4096
	DefaultWriteBufferSize  = 4096
	DefaultFrameQueue       = 64
	DefaultWriteTimeout     = 5 * time.Second
	DefaultSendPayload      = "test %d"
	DefaultBusyInterval     = 1 * time.Millisecond
	DefaultIdleInterval     = 10 * time.Millisecond
	DefaultMetricsPort      = 9090
	DefaultMetricsPath      = "/metrics"
	DefaultLogLevel         = "info"
)

// ApplyDefaults fills every unset optional field.
func (c *Config) ApplyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = DefaultInstanceID
	}

	// Manager defaults
	if c.Manager.HandshakeTimeout == nil {
		c.Manager.HandshakeTimeout = durationPtr(DefaultHandshakeTimeout)
	}
	if c.Manager.PingInterval == 0 {
		c.Manager.PingInterval = DefaultPingInterval
	}
	if c.Manager.Timeout == 0 {
		c.Manager.Timeout = DefaultTimeout
	}

	// Transport defaults
	if c.Transport.DialTimeout == 0 {
		c.Transport.DialTimeout = DefaultDialTimeout
	}
	if c.Transport.NoDelay == nil {
		c.Transport.NoDelay = boolPtr(true)
	}
	if c.Transport.KeepAlive == nil {
		c.Transport.KeepAlive = boolPtr(true)
	}

	// WebSocket defaults
	if c.WebSocket.ReadBufferSize == 0 {
		c.WebSocket.ReadBufferSize = DefaultReadBufferSize
	}
	if c.WebSocket.WriteBufferSize == 0 {
		c.WebSocket.WriteBufferSize = DefaultWriteBufferSize
	}
	if c.WebSocket.FrameQueue == 0 {
		c.WebSocket.FrameQueue = DefaultFrameQueue
	}
	if c.WebSocket.WriteTimeout == 0 {
		c.WebSocket.WriteTimeout = DefaultWriteTimeout
	}

	if c.Send.Payload == "" {
		c.Send.Payload = DefaultSendPayload
	}

	// Poll defaults
	if c.Poll.BusyInterval == 0 {
		c.Poll.BusyInterval = DefaultBusyInterval
	}
	if c.Poll.IdleInterval == 0 {
		c.Poll.IdleInterval = DefaultIdleInterval
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

func boolPtr(b bool) *bool {
	return &b
}

func durationPtr(d time.Duration) *time.Duration {
	return &d
}
