package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-client
manager:
  ping_interval: 5s
  timeout: 20s
  handshake_timeout: 0s
tls:
  insecure_skip_verify: true
targets:
  - wss://stream.example.com/feed
  - wss://other.example.com:8443/
send:
  interval: 2s
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-client" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-client")
	}
	if cfg.Manager.PingInterval != 5*time.Second {
		t.Errorf("Manager.PingInterval = %v, want 5s", cfg.Manager.PingInterval)
	}
	if !cfg.TLS.InsecureSkipVerify {
		t.Error("TLS.InsecureSkipVerify = false, want true")
	}
	if len(cfg.Targets) != 2 || cfg.Targets[1] != "wss://other.example.com:8443/" {
		t.Errorf("Targets = %v", cfg.Targets)
	}
	if cfg.Send.Interval != 2*time.Second {
		t.Errorf("Send.Interval = %v, want 2s", cfg.Send.Interval)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_WS_HOST", "feed.example.com")

	yaml := `
targets:
  - wss://${TEST_WS_HOST}/stream
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Targets[0] != "wss://feed.example.com/stream" {
		t.Errorf("Targets[0] = %q, want %q", cfg.Targets[0], "wss://feed.example.com/stream")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load of a missing file succeeded")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, "instance:\n  id: test-client\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Manager.PingInterval != DefaultPingInterval {
		t.Errorf("Manager.PingInterval = %v, want default %v", cfg.Manager.PingInterval, DefaultPingInterval)
	}
	if cfg.Manager.HandshakeTimeout == nil || *cfg.Manager.HandshakeTimeout != DefaultHandshakeTimeout {
		t.Errorf("Manager.HandshakeTimeout = %v, want default %v", cfg.Manager.HandshakeTimeout, DefaultHandshakeTimeout)
	}
	if cfg.Transport.NoDelay == nil || !*cfg.Transport.NoDelay {
		t.Error("Transport.NoDelay should default to true")
	}
	if cfg.WebSocket.FrameQueue != DefaultFrameQueue {
		t.Errorf("WebSocket.FrameQueue = %d, want default %d", cfg.WebSocket.FrameQueue, DefaultFrameQueue)
	}
	if cfg.Send.Payload != DefaultSendPayload {
		t.Errorf("Send.Payload = %q, want default %q", cfg.Send.Payload, DefaultSendPayload)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("Log.Level = %q, want default %q", cfg.Log.Level, DefaultLogLevel)
	}
}

func TestApplyDefaultsHandshakeTimeout(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want time.Duration
	}{
		{
			name: "other manager field set",
			yaml: "manager:\n  ping_interval: 5s\n",
			want: DefaultHandshakeTimeout,
		},
		{
			name: "explicitly disabled",
			yaml: "manager:\n  handshake_timeout: 0s\n",
			want: 0,
		},
		{
			name: "explicit value",
			yaml: "manager:\n  handshake_timeout: 3s\n",
			want: 3 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadWithDefaults(writeTempFile(t, tt.yaml))
			if err != nil {
				t.Fatalf("LoadWithDefaults failed: %v", err)
			}
			if cfg.Manager.HandshakeTimeout == nil {
				t.Fatal("Manager.HandshakeTimeout is nil after defaults")
			}
			if got := *cfg.Manager.HandshakeTimeout; got != tt.want {
				t.Errorf("Manager.HandshakeTimeout = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyDefaultsKeepsExplicitFalse(t *testing.T) {
	path := writeTempFile(t, "transport:\n  no_delay: false\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}
	if *cfg.Transport.NoDelay {
		t.Error("Transport.NoDelay = true, want explicit false")
	}
}

func TestLoadWithDefaultsThenValidate(t *testing.T) {
	path := writeTempFile(t, "targets:\n  - http://example.com/\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate accepted a non-wss target")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		var cfg Config
		cfg.ApplyDefaults()
		cfg.Targets = []string{"wss://example.com/"}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing instance id",
			mutate:  func(c *Config) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "zero ping interval",
			mutate:  func(c *Config) { c.Manager.PingInterval = 0 },
			wantErr: "manager.ping_interval must be > 0",
		},
		{
			name: "timeout not above ping interval",
			mutate: func(c *Config) {
				c.Manager.PingInterval = 10 * time.Second
				c.Manager.Timeout = 10 * time.Second
			},
			wantErr: "manager.timeout (10s) must exceed manager.ping_interval (10s)",
		},
		{
			name:    "negative handshake timeout",
			mutate:  func(c *Config) { c.Manager.HandshakeTimeout = durationPtr(-time.Second) },
			wantErr: "manager.handshake_timeout must be >= 0",
		},
		{
			name:    "plain ws target",
			mutate:  func(c *Config) { c.Targets = append(c.Targets, "ws://example.com/") },
			wantErr: `targets[1]: scheme must be wss, got "ws"`,
		},
		{
			name:    "target without host",
			mutate:  func(c *Config) { c.Targets = []string{"wss:///path"} },
			wantErr: "targets[0]: host is required",
		},
		{
			name:    "metrics port out of range",
			mutate:  func(c *Config) { c.Metrics.Port = 70000 },
			wantErr: "metrics.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "metrics path without slash",
			mutate:  func(c *Config) { c.Metrics.Path = "metrics" },
			wantErr: `metrics.path must start with /, got "metrics"`,
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: `log.level: unknown level "loud"`,
		},
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	}

	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil {
			t.Errorf("ParseLevel(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
