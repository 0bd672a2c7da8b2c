package connection

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rickgao/wspoll/internal/layer"
)

var keepalivePayload = []byte("keepalive")

// step advances c by exactly one tick. A returned error means a layer
// failed and c must be torn down.
func (m *Manager) step(c *conn, now time.Time) error {
	switch s := c.state.(type) {
	case connecting:
		return m.advanceTLS(c, m.deps.TLS.Start(s.conn, c.target.Host), now)
	case tlsHandshaking:
		return m.advanceTLS(c, s.pending.Resume(), now)
	case tlsReady:
		return m.advanceWS(c, m.deps.WS.Start(s.conn, c.target.URL), now)
	case wsHandshaking:
		return m.advanceWS(c, s.pending.Resume(), now)
	case ready:
		return m.exchange(c, s.sock, now)
	}
	return nil
}

func (m *Manager) advanceTLS(c *conn, res layer.Result[net.Conn], now time.Time) error {
	switch res.Status {
	case layer.StatusIncomplete:
		m.transition(c, tlsHandshaking{pending: res.Pending}, now)
	case layer.StatusComplete:
		m.transition(c, tlsReady{conn: res.Value}, now)
	default:
		return fmt.Errorf("%w: %w", ErrTLS, res.Err)
	}
	return nil
}

func (m *Manager) advanceWS(c *conn, res layer.Result[layer.Socket], now time.Time) error {
	switch res.Status {
	case layer.StatusIncomplete:
		m.transition(c, wsHandshaking{pending: res.Pending}, now)
	case layer.StatusComplete:
		m.transition(c, ready{sock: res.Value}, now)
		m.emit(Event{Kind: EventConnected, ID: c.id})
		m.logger.Info("connection ready",
			"conn_id", c.id,
			"target", c.target.URL.Redacted(),
			"handshake", now.Sub(c.createdAt),
		)
	default:
		return fmt.Errorf("%w: %w", ErrWSHandshake, res.Err)
	}
	return nil
}

// exchange performs the steady-state tick: at most one write from the
// outbox, then exactly one read.
func (m *Manager) exchange(c *conn, sock layer.Socket, now time.Time) error {
	if c.outbox.Length() > 0 {
		payload := c.outbox.Peek().([]byte)
		err := sock.Write(layer.Frame{Kind: layer.FrameBinary, Payload: payload})
		switch {
		case err == nil:
			c.outbox.Remove()
			m.worked = true
		case errors.Is(err, layer.ErrWouldBlock):
		default:
			return fmt.Errorf("%w: write: %w", ErrWSProtocol, err)
		}
	}

	f, err := sock.Read()
	switch {
	case err == nil:
	case errors.Is(err, layer.ErrWouldBlock):
		return nil
	case errors.Is(err, layer.ErrClosed):
		m.finish(c, ClosePeer, nil, now)
		return nil
	default:
		return fmt.Errorf("%w: read: %w", ErrWSProtocol, err)
	}

	m.worked = true
	c.lastActivity = now
	if f.Kind.IsControl() {
		return nil
	}

	m.emit(Event{Kind: EventMessage, ID: c.id, Data: f.Payload})
	return nil
}

// enforce applies the liveness policy after a tick.
func (m *Manager) enforce(c *conn, now time.Time) error {
	if c.handshaking() {
		if m.cfg.HandshakeTimeout > 0 && now.Sub(c.createdAt) > m.cfg.HandshakeTimeout {
			return fmt.Errorf("%w: stuck in %s after %v", ErrHandshakeTimeout, c.phase(), m.cfg.HandshakeTimeout)
		}
		return nil
	}

	s, ok := c.state.(ready)
	if !ok {
		return nil
	}

	idle := now.Sub(c.lastActivity)
	if idle > m.cfg.Timeout {
		m.logger.Warn("connection idle, closing",
			"conn_id", c.id,
			"idle", idle,
			"timeout", m.cfg.Timeout,
		)
		m.finish(c, CloseTimeout, ErrLivenessTimeout, now)
		return nil
	}

	// The ping does not count as activity; only the peer's answer does.
	if idle > m.cfg.PingInterval && now.Sub(c.lastPing) > m.cfg.PingInterval {
		err := s.sock.Write(layer.Frame{Kind: layer.FramePing, Payload: keepalivePayload})
		switch {
		case err == nil:
			c.lastPing = now
			m.worked = true
		case errors.Is(err, layer.ErrWouldBlock):
		default:
			m.logger.Debug("failed to send ping", "conn_id", c.id, "error", err)
		}
	}
	return nil
}

// transition moves c to next. Resuming a handshake in place is not a phase
// change and does not count as progress.
func (m *Manager) transition(c *conn, next state, now time.Time) {
	prev := c.phase()
	c.state = next
	if next.phase() == prev {
		return
	}

	c.lastActivity = now
	m.worked = true
	m.logger.Debug("phase transition",
		"conn_id", c.id,
		"from", prev,
		"to", next.phase(),
	)
}

// fail reports err for c and tears it down.
func (m *Manager) fail(c *conn, err error, now time.Time) {
	m.logger.Warn("connection failed",
		"conn_id", c.id,
		"phase", c.phase(),
		"error", err,
	)
	m.emit(Event{Kind: EventError, ID: c.id, Err: err})
	m.finish(c, CloseFailed, err, now)
}

// finish moves c to Closed and releases its resources. It is a no-op on a
// connection that is already closed.
func (m *Manager) finish(c *conn, reason CloseReason, cause error, now time.Time) {
	if c.phase() == PhaseClosed {
		return
	}

	if err := c.release(); err != nil {
		m.logger.Debug("release failed", "conn_id", c.id, "error", err)
	}
	if n := c.outbox.Length(); n > 0 {
		m.logger.Debug("discarding unsent payloads", "conn_id", c.id, "count", n)
	}

	c.reason = reason
	c.cause = cause
	m.transition(c, closed{}, now)
}
