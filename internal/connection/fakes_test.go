package connection

import (
	"errors"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rickgao/wspoll/internal/layer"
)

// fakeConn is a net.Conn that only tracks Close.
type fakeConn struct {
	closed bool
}

func (c *fakeConn) Read(b []byte) (int, error)         { return 0, layer.ErrWouldBlock }
func (c *fakeConn) Write(b []byte) (int, error)        { return len(b), nil }
func (c *fakeConn) Close() error                       { c.closed = true; return nil }
func (c *fakeConn) LocalAddr() net.Addr                { return &net.TCPAddr{} }
func (c *fakeConn) RemoteAddr() net.Addr               { return &net.TCPAddr{} }
func (c *fakeConn) SetDeadline(t time.Time) error      { return nil }
func (c *fakeConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

type fakeTransport struct {
	err       error
	hostPorts []string
	conns     []*fakeConn
}

func (f *fakeTransport) Create(hostPort string) (net.Conn, error) {
	f.hostPorts = append(f.hostPorts, hostPort)
	if f.err != nil {
		return nil, f.err
	}
	c := &fakeConn{}
	f.conns = append(f.conns, c)
	return c, nil
}

// fakePending reports Incomplete until remaining reaches zero, then final.
type fakePending[T any] struct {
	remaining int
	final     layer.Result[T]
	abandoned bool
}

func (p *fakePending[T]) Close() error {
	p.abandoned = true
	return nil
}

func (p *fakePending[T]) Resume() layer.Result[T] {
	if p.remaining > 0 {
		p.remaining--
		return layer.Incomplete[T](p)
	}
	return p.final
}

// script returns a Start result that stays incomplete for the given number
// of ticks (the Start tick included) before yielding final.
func script[T any](incomplete int, final layer.Result[T]) layer.Result[T] {
	if incomplete <= 0 {
		return final
	}
	return layer.Incomplete[T](&fakePending[T]{remaining: incomplete - 1, final: final})
}

type fakeTLS struct {
	incomplete  int
	err         error
	failOn      map[int]error // Start call number (1-based) -> error
	calls       int
	serverNames []string
}

func (f *fakeTLS) Start(conn net.Conn, serverName string) layer.Result[net.Conn] {
	f.calls++
	f.serverNames = append(f.serverNames, serverName)
	if err := f.failOn[f.calls]; err != nil {
		return script(f.incomplete, layer.Fail[net.Conn](err))
	}
	if f.err != nil {
		return script(f.incomplete, layer.Fail[net.Conn](f.err))
	}
	return script(f.incomplete, layer.Complete(conn))
}

type fakeWS struct {
	incomplete int
	err        error
	urls       []string
	sockets    []*fakeSocket
	pendings   []*fakePending[layer.Socket]
}

func (f *fakeWS) Start(conn net.Conn, u *url.URL) layer.Result[layer.Socket] {
	f.urls = append(f.urls, u.String())
	if f.err != nil {
		return script(f.incomplete, layer.Fail[layer.Socket](f.err))
	}
	s := &fakeSocket{}
	f.sockets = append(f.sockets, s)
	res := script(f.incomplete, layer.Complete[layer.Socket](s))
	if p, ok := res.Pending.(*fakePending[layer.Socket]); ok {
		f.pendings = append(f.pendings, p)
	}
	return res
}

type readResult struct {
	frame layer.Frame
	err   error
}

// fakeSocket replays scripted reads and records accepted writes.
type fakeSocket struct {
	reads       []readResult
	written     []layer.Frame
	blockWrites int // Write calls to reject with ErrWouldBlock
	writeErr    error
	closes      int
}

func (s *fakeSocket) Read() (layer.Frame, error) {
	if len(s.reads) == 0 {
		return layer.Frame{}, layer.ErrWouldBlock
	}
	r := s.reads[0]
	s.reads = s.reads[1:]
	return r.frame, r.err
}

func (s *fakeSocket) Write(f layer.Frame) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	if s.blockWrites > 0 {
		s.blockWrites--
		return layer.ErrWouldBlock
	}
	s.written = append(s.written, layer.Frame{Kind: f.Kind, Payload: append([]byte(nil), f.Payload...)})
	return nil
}

func (s *fakeSocket) Close() error {
	s.closes++
	return nil
}

func (s *fakeSocket) queueText(text string) {
	s.reads = append(s.reads, readResult{frame: layer.Frame{Kind: layer.FrameText, Payload: []byte(text)}})
}

func (s *fakeSocket) queueFrame(kind layer.FrameKind, payload []byte) {
	s.reads = append(s.reads, readResult{frame: layer.Frame{Kind: kind, Payload: payload}})
}

func (s *fakeSocket) queueErr(err error) {
	s.reads = append(s.reads, readResult{err: err})
}

func (s *fakeSocket) payloads(kind layer.FrameKind) []string {
	var out []string
	for _, f := range s.written {
		if f.Kind == kind {
			out = append(out, string(f.Payload))
		}
	}
	return out
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type harness struct {
	m         *Manager
	transport *fakeTransport
	tls       *fakeTLS
	ws        *fakeWS
	clock     *fakeClock
}

func testConfig() Config {
	return Config{
		PingInterval:     10 * time.Second,
		Timeout:          30 * time.Second,
		HandshakeTimeout: 20 * time.Second,
	}
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		transport: &fakeTransport{},
		tls:       &fakeTLS{},
		ws:        &fakeWS{},
		clock:     &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	m, err := NewManager(cfg, Deps{Transport: h.transport, TLS: h.tls, WS: h.ws}, nil, WithClock(h.clock.Now))
	require.NoError(t, err)
	h.m = m
	return h
}

// connect registers uri and fails the test on error.
func (h *harness) connect(t *testing.T, uri string) ID {
	t.Helper()
	id, err := h.m.Connect(uri)
	require.NoError(t, err)
	return id
}

// pollUntil polls until an event of kind arrives for id, returning every
// event seen on the way.
func (h *harness) pollUntil(t *testing.T, id ID, kind EventKind) []Event {
	t.Helper()
	var seen []Event
	for i := 0; i < 20; i++ {
		_, events := h.m.Poll()
		seen = append(seen, events...)
		for _, ev := range events {
			if ev.ID == id && ev.Kind == kind {
				return seen
			}
		}
	}
	t.Fatalf("no %s event for connection %s; saw %v", kind, id, seen)
	return nil
}

// ready connects uri and polls until it is Ready, returning its socket.
func (h *harness) ready(t *testing.T, uri string) (ID, *fakeSocket) {
	t.Helper()
	id := h.connect(t, uri)
	h.pollUntil(t, id, EventConnected)
	return id, h.ws.sockets[len(h.ws.sockets)-1]
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

// checkInvariants verifies the per-connection event ordering rules over a
// complete event history.
func checkInvariants(t *testing.T, history []Event) {
	t.Helper()
	type seen struct {
		connected, closed bool
		teardownErrors    int
	}
	byID := make(map[ID]*seen)

	for _, ev := range history {
		s := byID[ev.ID]
		if s == nil {
			s = &seen{}
			byID[ev.ID] = s
		}

		if ev.Kind == EventError && errors.Is(ev.Err, ErrSendDropped) {
			continue
		}
		require.False(t, s.closed, "event %v after connection %s closed", ev, ev.ID)

		switch ev.Kind {
		case EventConnected:
			require.False(t, s.connected, "duplicate connected for %s", ev.ID)
			s.connected = true
		case EventMessage:
			require.True(t, s.connected, "message before connected for %s", ev.ID)
		case EventError:
			s.teardownErrors++
			require.LessOrEqual(t, s.teardownErrors, 1, "more than one error for %s", ev.ID)
		case EventClosed:
			s.closed = true
		}
	}
}
