package wscodec

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/wspoll/internal/layer"
)

const defaultCloseTimeout = 5 * time.Second

// socket implements layer.Socket on top of a gorilla connection.
type socket struct {
	conn   *websocket.Conn
	cfg    Config
	logger *slog.Logger

	frames   chan layer.Frame // Read pump output, closed when the pump stops
	writes   chan layer.Frame // Write pump input
	closing  chan struct{}    // Closed by Close
	readDone chan struct{}    // Closed when the read pump stops

	closeOnce sync.Once

	mu       sync.Mutex
	readErr  error
	writeErr error
}

func newSocket(conn *websocket.Conn, cfg Config, logger *slog.Logger) *socket {
	s := &socket{
		conn:     conn,
		cfg:      cfg,
		logger:   logger,
		frames:   make(chan layer.Frame, cfg.FrameQueue),
		writes:   make(chan layer.Frame, cfg.WriteQueue),
		closing:  make(chan struct{}),
		readDone: make(chan struct{}),
	}

	// Peer pings are answered here and surfaced so the owner sees activity.
	conn.SetPingHandler(func(data string) error {
		s.push(layer.Frame{Kind: layer.FramePing, Payload: []byte(data)})

		err := conn.WriteControl(websocket.PongMessage, []byte(data), s.deadline())
		if err == websocket.ErrCloseSent {
			return nil
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil
		}
		return err
	})

	conn.SetPongHandler(func(data string) error {
		s.push(layer.Frame{Kind: layer.FramePong, Payload: []byte(data)})
		return nil
	})

	go s.readLoop()
	go s.writeLoop()

	return s
}

// Read returns the next queued frame without blocking.
func (s *socket) Read() (layer.Frame, error) {
	select {
	case f, ok := <-s.frames:
		if !ok {
			return layer.Frame{}, s.readFailure()
		}
		return f, nil
	default:
	}

	if err := s.writeFailure(); err != nil {
		return layer.Frame{}, err
	}
	return layer.Frame{}, layer.ErrWouldBlock
}

// Write hands f to the write pump if it has room.
func (s *socket) Write(f layer.Frame) error {
	if err := s.writeFailure(); err != nil {
		return err
	}

	select {
	case <-s.closing:
		return net.ErrClosed
	default:
	}

	select {
	case s.writes <- f:
		return nil
	default:
		return layer.ErrWouldBlock
	}
}

// Close starts the close handshake. Frames already accepted by Write are
// flushed before the close frame; the connection is closed once the peer
// answers or the write timeout passes.
func (s *socket) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
	})
	return nil
}

// readLoop reads messages from the connection and queues them for Read.
// After Close it keeps reading, discarding data, until the peer's close
// frame arrives.
func (s *socket) readLoop() {
	defer close(s.readDone)
	defer close(s.frames)

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			s.readErr = s.classify(err)
			s.mu.Unlock()
			return
		}

		kind := layer.FrameBinary
		if mt == websocket.TextMessage {
			kind = layer.FrameText
		}
		s.push(layer.Frame{Kind: kind, Payload: data})
	}
}

// writeLoop writes accepted frames one at a time. It owns the connection
// and closes it on the way out.
func (s *socket) writeLoop() {
	defer s.conn.Close()

	for {
		select {
		case f := <-s.writes:
			if err := s.writeFrame(f); err != nil {
				s.setWriteErr(err)
				<-s.closing
				return
			}
		case <-s.closing:
			s.shutdown()
			return
		}
	}
}

// shutdown flushes queued frames, sends the close frame and waits for the
// peer's reply.
func (s *socket) shutdown() {
flush:
	for {
		select {
		case f := <-s.writes:
			if err := s.writeFrame(f); err != nil {
				s.setWriteErr(err)
				return
			}
		default:
			break flush
		}
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.closeTimeout()))
	if err != nil && err != websocket.ErrCloseSent {
		s.logger.Debug("failed to send close frame", "error", err)
		return
	}

	timer := time.NewTimer(s.closeTimeout())
	defer timer.Stop()
	select {
	case <-s.readDone:
	case <-timer.C:
		s.logger.Debug("peer did not answer close frame", "timeout", s.closeTimeout())
	}
}

func (s *socket) writeFrame(f layer.Frame) error {
	switch f.Kind {
	case layer.FramePing:
		return s.conn.WriteControl(websocket.PingMessage, f.Payload, s.deadline())
	case layer.FramePong:
		return s.conn.WriteControl(websocket.PongMessage, f.Payload, s.deadline())
	}

	mt := websocket.BinaryMessage
	if f.Kind == layer.FrameText {
		mt = websocket.TextMessage
	}
	if s.cfg.WriteTimeout > 0 {
		s.conn.SetWriteDeadline(s.deadline())
	}
	return s.conn.WriteMessage(mt, f.Payload)
}

// push queues f for Read. Frames arriving after Close are dropped.
func (s *socket) push(f layer.Frame) {
	select {
	case s.frames <- f:
	case <-s.closing:
	}
}

// classify maps a read error to layer.ErrClosed when it ends the connection
// cleanly: a close frame from the peer or a local Close.
func (s *socket) classify(err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) && ce.Code != websocket.CloseAbnormalClosure {
		return layer.ErrClosed
	}

	select {
	case <-s.closing:
		return layer.ErrClosed
	default:
	}
	return err
}

func (s *socket) readFailure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr == nil {
		return layer.ErrClosed
	}
	return s.readErr
}

func (s *socket) setWriteErr(err error) {
	s.mu.Lock()
	s.writeErr = err
	s.mu.Unlock()
}

func (s *socket) writeFailure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeErr
}

func (s *socket) closeTimeout() time.Duration {
	if s.cfg.WriteTimeout <= 0 {
		return defaultCloseTimeout
	}
	return s.cfg.WriteTimeout
}

func (s *socket) deadline() time.Time {
	if s.cfg.WriteTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(s.cfg.WriteTimeout)
}
