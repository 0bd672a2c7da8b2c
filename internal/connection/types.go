package connection

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/rickgao/wspoll/internal/layer"
)

// Errors
var (
	ErrInvalidURI        = errors.New("invalid uri")
	ErrTransport         = errors.New("transport failure")
	ErrTLS               = errors.New("tls failure")
	ErrWSHandshake       = errors.New("websocket handshake failure")
	ErrWSProtocol        = errors.New("websocket protocol failure")
	ErrUnknownConnection = errors.New("unknown connection")
	ErrLivenessTimeout   = errors.New("liveness timeout")
	ErrHandshakeTimeout  = errors.New("handshake timeout")
	ErrNotReady          = errors.New("connection not ready")
	ErrSendDropped       = errors.New("send dropped")
)

// ID identifies a connection for the lifetime of its Manager.
type ID uint64

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// TransportFactory opens raw byte streams to host:port.
type TransportFactory interface {
	Create(hostPort string) (net.Conn, error)
}

// TLSEngine starts client TLS handshakes. An Incomplete result is resumed
// through its Pending.
type TLSEngine interface {
	Start(conn net.Conn, serverName string) layer.Result[net.Conn]
}

// WSCodec starts WebSocket opening handshakes over encrypted streams.
type WSCodec interface {
	Start(conn net.Conn, u *url.URL) layer.Result[layer.Socket]
}

// Deps are the external layers a Manager drives.
type Deps struct {
	Transport TransportFactory
	TLS       TLSEngine
	WS        WSCodec
}

func (d Deps) validate() error {
	if d.Transport == nil {
		return errors.New("connection: transport factory is required")
	}
	if d.TLS == nil {
		return errors.New("connection: tls engine is required")
	}
	if d.WS == nil {
		return errors.New("connection: websocket codec is required")
	}
	return nil
}

// EventKind identifies what an Event reports.
type EventKind uint8

const (
	EventConnected EventKind = iota + 1
	EventMessage
	EventError
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CloseReason says why a connection ended.
type CloseReason uint8

const (
	CloseRequested CloseReason = iota + 1 // Close or Shutdown was called
	ClosePeer                             // Peer sent a close frame
	CloseTimeout                          // No activity for longer than Config.Timeout
	CloseFailed                           // A layer failed; an EventError preceded the close
)

func (r CloseReason) String() string {
	switch r {
	case CloseRequested:
		return "requested"
	case ClosePeer:
		return "peer"
	case CloseTimeout:
		return "timeout"
	case CloseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is one fact delivered to the caller by Poll.
type Event struct {
	Kind   EventKind
	ID     ID
	Data   []byte      // Payload (EventMessage only)
	Err    error       // Failure (EventError), or close cause (EventClosed)
	Reason CloseReason // EventClosed only
}

func (e Event) String() string {
	switch e.Kind {
	case EventMessage:
		return fmt.Sprintf("message(%s, %d bytes)", e.ID, len(e.Data))
	case EventError:
		return fmt.Sprintf("error(%s, %v)", e.ID, e.Err)
	case EventClosed:
		return fmt.Sprintf("closed(%s, %s)", e.ID, e.Reason)
	default:
		return fmt.Sprintf("%s(%s)", e.Kind, e.ID)
	}
}

// Config configures the Manager's liveness policy.
type Config struct {
	PingInterval     time.Duration // Idle time before a keepalive ping is sent
	Timeout          time.Duration // Idle time before a Ready connection is closed
	HandshakeTimeout time.Duration // Max time from Connect to Ready (0 = unbounded)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PingInterval:     15 * time.Second,
		Timeout:          60 * time.Second,
		HandshakeTimeout: 30 * time.Second,
	}
}

// Validate checks the liveness thresholds.
func (c Config) Validate() error {
	if c.PingInterval <= 0 {
		return errors.New("ping_interval must be > 0")
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be > 0")
	}
	if c.PingInterval >= c.Timeout {
		return fmt.Errorf("ping_interval (%v) must be less than timeout (%v)", c.PingInterval, c.Timeout)
	}
	if c.HandshakeTimeout < 0 {
		return errors.New("handshake_timeout must be >= 0")
	}
	return nil
}

// Stats provides statistics about the connection manager.
type Stats struct {
	ManagerID    string         `json:"manager_id"`
	Connections  int            `json:"connections"`
	Phases       map[string]int `json:"phases"`
	QueuedSends  int            `json:"queued_sends"`
	QueuedEvents int            `json:"queued_events"`
}
