package layer

import "errors"

// Errors
var (
	ErrWouldBlock = errors.New("operation would block")
	ErrClosed     = errors.New("closed by peer")
)

// Status is the outcome of one handshake step.
type Status uint8

const (
	StatusIncomplete Status = iota
	StatusComplete
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIncomplete:
		return "incomplete"
	case StatusComplete:
		return "complete"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Pending is a handshake that could not finish without blocking.
// Resume continues it and reports the next outcome.
type Pending[T any] interface {
	Resume() Result[T]
}

// Result is the outcome of starting or resuming a handshake.
// Exactly one of Value, Pending or Err is meaningful, selected by Status.
type Result[T any] struct {
	Status  Status
	Value   T
	Pending Pending[T]
	Err     error
}

// Complete reports a finished handshake.
func Complete[T any](v T) Result[T] {
	return Result[T]{Status: StatusComplete, Value: v}
}

// Incomplete reports a handshake that must be resumed through p.
func Incomplete[T any](p Pending[T]) Result[T] {
	return Result[T]{Status: StatusIncomplete, Pending: p}
}

// Fail reports a handshake that cannot continue.
func Fail[T any](err error) Result[T] {
	return Result[T]{Status: StatusFailed, Err: err}
}

// FrameKind identifies a WebSocket frame type.
type FrameKind uint8

const (
	FrameText FrameKind = iota + 1
	FrameBinary
	FramePing
	FramePong
)

func (k FrameKind) String() string {
	switch k {
	case FrameText:
		return "text"
	case FrameBinary:
		return "binary"
	case FramePing:
		return "ping"
	case FramePong:
		return "pong"
	default:
		return "unknown"
	}
}

// IsControl reports whether the frame is a ping or pong.
func (k FrameKind) IsControl() bool {
	return k == FramePing || k == FramePong
}

// Frame is one complete WebSocket message or control frame.
type Frame struct {
	Kind    FrameKind
	Payload []byte
}

// Socket is an established WebSocket connection with non-blocking I/O.
type Socket interface {
	// Read returns the next frame, ErrWouldBlock if none is available yet,
	// ErrClosed after a clean close by the peer, or a failure.
	Read() (Frame, error)

	// Write hands one frame to the connection. ErrWouldBlock means the frame
	// was not accepted and should be retried later; once accepted a frame is
	// never written twice.
	Write(f Frame) error

	// Close sends a close frame if possible and releases the connection.
	// It does not wait for the peer.
	Close() error
}
