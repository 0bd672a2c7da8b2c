package connection

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/eapache/queue"
	"github.com/google/uuid"

	"github.com/rickgao/wspoll/internal/metrics"
)

// Manager owns a table of outbound connections and advances them when
// the caller polls.
type Manager struct {
	cfg     Config
	deps    Deps
	logger  *slog.Logger
	metrics *metrics.Collector
	now     func() time.Time

	instance uuid.UUID
	nextID   ID

	conns map[ID]*conn
	order []ID

	sends  *queue.Queue // sendRequest
	events *queue.Queue // Event

	// worked records I/O progress during the current poll.
	worked bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithMetrics records manager activity in c.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Manager) {
		m.metrics = c
	}
}

// NewManager creates a Connection Manager.
func NewManager(cfg Config, deps Deps, logger *slog.Logger, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	instance := uuid.New()
	m := &Manager{
		cfg:      cfg,
		deps:     deps,
		logger:   logger.With("manager_id", instance.String()),
		now:      time.Now,
		instance: instance,
		conns:    make(map[ID]*conn),
		sends:    queue.New(),
		events:   queue.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Connect registers a connection to uri and returns its ID. The TCP stream
// is opened here; TLS and the WebSocket handshake run on later polls.
func (m *Manager) Connect(uri string) (ID, error) {
	target, err := ParseTarget(uri)
	if err != nil {
		return 0, err
	}

	raw, err := m.deps.Transport.Create(target.HostPort())
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	m.nextID++
	c := newConn(m.nextID, target, raw, m.now())
	m.insert(c)

	m.logger.Info("connection registered",
		"conn_id", c.id,
		"target", target.URL.Redacted(),
	)
	return c.id, nil
}

// Close asks for id to be closed. A Ready connection sends its close frame
// immediately; the Closed event is produced by the next Poll. Closing a
// connection that is already closing is a no-op.
func (m *Manager) Close(id ID) error {
	c, ok := m.conns[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConnection, id)
	}
	if c.closing || c.phase() == PhaseClosed {
		return nil
	}

	c.closing = true
	if s, ok := c.state.(ready); ok {
		if err := s.sock.Close(); err != nil {
			m.logger.Debug("close frame failed", "conn_id", id, "error", err)
		}
	}

	m.logger.Debug("close requested", "conn_id", id, "phase", c.phase())
	return nil
}

// Send queues payload for every connection in ids. Targets are checked when
// the next Poll delivers the request: unknown or not-yet-Ready targets get
// an EventError wrapping ErrSendDropped.
func (m *Manager) Send(ids []ID, payload []byte) {
	m.sends.Add(sendRequest{
		ids:     append([]ID(nil), ids...),
		payload: append([]byte(nil), payload...),
	})
}

// Poll advances every connection by one step and returns the events
// produced, in the order they were discovered. didWork reports whether any
// connection made progress. Poll never blocks.
func (m *Manager) Poll() (didWork bool, events []Event) {
	now := m.now()
	m.worked = false

	m.purge()
	m.deliverSends()
	m.sweep(now)

	events = m.drain()
	m.recordPhases()
	m.metrics.Poll(m.worked)

	return m.worked, events
}

// Shutdown closes every connection immediately. Their Closed events are
// returned by the next Poll.
func (m *Manager) Shutdown() {
	now := m.now()
	for _, id := range m.order {
		c := m.conns[id]
		if c.tombstone {
			continue
		}
		m.finish(c, CloseRequested, nil, now)
		m.bury(c)
	}
	m.logger.Info("connection manager shut down")
}

// Stats returns current statistics.
func (m *Manager) Stats() Stats {
	phases := make(map[string]int)
	for p, n := range m.phaseCounts() {
		phases[p.String()] = n
	}

	return Stats{
		ManagerID:    m.instance.String(),
		Connections:  len(m.conns),
		Phases:       phases,
		QueuedSends:  m.sends.Length(),
		QueuedEvents: m.events.Length(),
	}
}

func (m *Manager) recordPhases() {
	if m.metrics == nil {
		return
	}
	counts := m.phaseCounts()
	for p := PhaseConnecting; p <= PhaseClosed; p++ {
		m.metrics.SetConnections(p.String(), counts[p])
	}
}
