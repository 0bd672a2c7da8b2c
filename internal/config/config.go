package config

import "time"

// Config is the root configuration for a wspoll instance.
type Config struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Manager   ManagerConfig   `yaml:"manager"`
	Transport TransportConfig `yaml:"transport"`
	TLS       TLSConfig       `yaml:"tls"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Targets   []string        `yaml:"targets"`
	Send      SendConfig      `yaml:"send"`
	Poll      PollConfig      `yaml:"poll"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// InstanceConfig identifies this instance in logs.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ManagerConfig holds the connection manager's liveness policy.
type ManagerConfig struct {
	PingInterval     time.Duration  `yaml:"ping_interval"`
	Timeout          time.Duration  `yaml:"timeout"`
	HandshakeTimeout *time.Duration `yaml:"handshake_timeout"` // 0 disables
}

// TransportConfig holds TCP dial settings.
type TransportConfig struct {
	DialTimeout time.Duration `yaml:"dial_timeout"`
	NoDelay     *bool         `yaml:"no_delay"`
	KeepAlive   *bool         `yaml:"keepalive"`
}

// TLSConfig holds client TLS settings.
type TLSConfig struct {
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	CAFile             string `yaml:"ca_file"` // Extra PEM roots
	ServerName         string `yaml:"server_name"`
}

// WebSocketConfig holds codec buffer and queue sizes.
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size"`
	FrameQueue      int           `yaml:"frame_queue"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
}

// SendConfig controls the periodic test payload sent to every Ready
// connection. A zero interval disables sending.
type SendConfig struct {
	Interval time.Duration `yaml:"interval"`
	Payload  string        `yaml:"payload"` // fmt format with one %d counter
}

// PollConfig controls how long the loop sleeps between polls.
type PollConfig struct {
	BusyInterval time.Duration `yaml:"busy_interval"`
	IdleInterval time.Duration `yaml:"idle_interval"`
}

// MetricsConfig holds the metrics and health HTTP server settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}
