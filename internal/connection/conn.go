package connection

import (
	"io"
	"net"
	"time"

	"github.com/eapache/queue"
)

// conn holds the state for a single connection. It is owned by the
// Manager's table and never shared with callers.
type conn struct {
	id     ID
	target Target

	state state
	raw   net.Conn // Transport stream; closing it aborts any handshake in flight

	createdAt    time.Time
	lastActivity time.Time // Last read or phase transition
	lastPing     time.Time // Last keepalive ping accepted by the socket

	outbox *queue.Queue // []byte payloads accepted while Ready

	closing bool // Close requested, finalized on the next tick
	reason  CloseReason
	cause   error

	// tombstone is set once the Closed event is queued; the entry is removed
	// at the start of the next poll.
	tombstone bool
}

func newConn(id ID, target Target, raw net.Conn, now time.Time) *conn {
	return &conn{
		id:           id,
		target:       target,
		state:        connecting{conn: raw},
		raw:          raw,
		createdAt:    now,
		lastActivity: now,
		outbox:       queue.New(),
	}
}

func (c *conn) phase() Phase {
	return c.state.phase()
}

// handshaking reports whether the connection has not yet reached Ready.
func (c *conn) handshaking() bool {
	p := c.phase()
	return p != PhaseReady && p != PhaseClosed
}

// release closes whatever the current phase owns. A Ready socket sends a
// close frame on the way out. A handshake in flight is abandoned if its
// Pending supports it, so whatever it produces later is closed too.
func (c *conn) release() error {
	switch s := c.state.(type) {
	case ready:
		return s.sock.Close()
	case tlsHandshaking:
		abandon(s.pending)
	case wsHandshaking:
		abandon(s.pending)
	}
	if c.raw != nil {
		return c.raw.Close()
	}
	return nil
}

func abandon(p any) {
	if closer, ok := p.(io.Closer); ok {
		closer.Close()
	}
}
