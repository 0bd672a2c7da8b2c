package connection

import (
	"fmt"
	"time"
)

// sendRequest is one Send call waiting for delivery.
type sendRequest struct {
	ids     []ID
	payload []byte
}

// insert registers c at the end of the sweep order.
func (m *Manager) insert(c *conn) {
	m.conns[c.id] = c
	m.order = append(m.order, c.id)
}

// purge removes connections whose Closed event went out in an earlier poll.
func (m *Manager) purge() {
	kept := m.order[:0]
	for _, id := range m.order {
		if m.conns[id].tombstone {
			delete(m.conns, id)
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
}

// deliverSends routes every queued send request to its targets.
func (m *Manager) deliverSends() {
	for m.sends.Length() > 0 {
		req := m.sends.Remove().(sendRequest)
		for _, id := range req.ids {
			m.route(id, req.payload)
		}
	}
}

func (m *Manager) route(id ID, payload []byte) {
	c, ok := m.conns[id]
	switch {
	case !ok:
		m.dropSend(id, ErrUnknownConnection)
	case c.closing || c.phase() != PhaseReady:
		m.dropSend(id, fmt.Errorf("%w: %s", ErrNotReady, c.phase()))
	default:
		c.outbox.Add(payload)
	}
}

func (m *Manager) dropSend(id ID, cause error) {
	m.logger.Debug("send dropped", "conn_id", id, "error", cause)
	m.metrics.SendDropped()
	m.emit(Event{Kind: EventError, ID: id, Err: fmt.Errorf("%w: %w", ErrSendDropped, cause)})
}

// sweep visits every live connection once.
func (m *Manager) sweep(now time.Time) {
	for _, id := range m.order {
		c := m.conns[id]
		if c.tombstone {
			continue
		}

		switch {
		case c.closing:
			m.finish(c, CloseRequested, nil, now)
		default:
			if err := m.step(c, now); err != nil {
				m.fail(c, err, now)
			} else if err := m.enforce(c, now); err != nil {
				m.fail(c, err, now)
			}
		}

		if c.phase() == PhaseClosed {
			m.bury(c)
		}
	}
}

// bury queues the Closed event for c and marks it for removal.
func (m *Manager) bury(c *conn) {
	m.emit(Event{Kind: EventClosed, ID: c.id, Err: c.cause, Reason: c.reason})
	c.tombstone = true
	m.logger.Info("connection closed",
		"conn_id", c.id,
		"reason", c.reason,
	)
}

func (m *Manager) emit(ev Event) {
	m.events.Add(ev)
}

// drain returns and clears all queued events in discovery order.
func (m *Manager) drain() []Event {
	events := make([]Event, 0, m.events.Length())
	for m.events.Length() > 0 {
		ev := m.events.Remove().(Event)
		m.metrics.Event(ev.Kind.String())
		events = append(events, ev)
	}
	return events
}

// phaseCounts counts live connections by phase. Tombstones count as closed.
func (m *Manager) phaseCounts() map[Phase]int {
	counts := make(map[Phase]int, len(phaseNames))
	for _, c := range m.conns {
		counts[c.phase()]++
	}
	return counts
}
