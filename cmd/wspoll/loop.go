package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/rickgao/wspoll/internal/config"
	"github.com/rickgao/wspoll/internal/connection"
)

// poller is the part of *connection.Manager the loop drives.
type poller interface {
	Poll() (bool, []connection.Event)
	Send(ids []connection.ID, payload []byte)
	Stats() connection.Stats
	Shutdown()
}

// pollLoop owns the Manager. Nothing else may call it; other goroutines
// read the published Stats snapshot instead.
type pollLoop struct {
	mgr    poller
	logger *slog.Logger

	busy time.Duration
	idle time.Duration

	limiter *rate.Limiter // nil when sending is disabled
	payload string
	sent    int

	ready map[connection.ID]bool

	stats atomic.Pointer[connection.Stats]
}

func newPollLoop(mgr poller, pollCfg config.PollConfig, sendCfg config.SendConfig, logger *slog.Logger) *pollLoop {
	l := &pollLoop{
		mgr:     mgr,
		logger:  logger,
		busy:    pollCfg.BusyInterval,
		idle:    pollCfg.IdleInterval,
		payload: sendCfg.Payload,
		ready:   make(map[connection.ID]bool),
	}
	if sendCfg.Interval > 0 {
		l.limiter = rate.NewLimiter(rate.Every(sendCfg.Interval), 1)
	}
	l.publish()
	return l
}

// Run polls until ctx is done, then shuts the Manager down and reports the
// final Closed events.
func (l *pollLoop) Run(ctx context.Context) error {
	defer l.shutdown()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		didWork := l.tick()

		if didWork {
			timer.Reset(l.busy)
		} else {
			timer.Reset(l.idle)
		}
	}
}

// tick runs one poll and handles its events.
func (l *pollLoop) tick() bool {
	didWork, events := l.mgr.Poll()
	for _, ev := range events {
		l.handle(ev)
	}

	if l.limiter != nil && len(l.ready) > 0 && l.limiter.Allow() {
		l.sendAll()
	}

	l.publish()
	return didWork
}

func (l *pollLoop) handle(ev connection.Event) {
	switch ev.Kind {
	case connection.EventConnected:
		l.ready[ev.ID] = true
		l.logger.Info("connected", "conn_id", ev.ID)
	case connection.EventMessage:
		l.logger.Info("message received",
			"conn_id", ev.ID,
			"bytes", len(ev.Data),
			"data", string(ev.Data),
		)
	case connection.EventError:
		l.logger.Warn("connection error", "conn_id", ev.ID, "error", ev.Err)
	case connection.EventClosed:
		delete(l.ready, ev.ID)
		attrs := []any{"conn_id", ev.ID, "reason", ev.Reason}
		if ev.Err != nil {
			attrs = append(attrs, "error", ev.Err)
		}
		l.logger.Info("connection closed", attrs...)
	}
}

// sendAll sends the next numbered payload to every ready connection.
func (l *pollLoop) sendAll() {
	ids := make([]connection.ID, 0, len(l.ready))
	for id := range l.ready {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	l.sent++
	payload := fmt.Sprintf(l.payload, l.sent)
	l.mgr.Send(ids, []byte(payload))
	l.logger.Debug("payload queued", "connections", len(ids), "payload", payload)
}

func (l *pollLoop) publish() {
	st := l.mgr.Stats()
	l.stats.Store(&st)
}

// Stats returns the snapshot taken after the most recent poll.
func (l *pollLoop) Stats() connection.Stats {
	return *l.stats.Load()
}

func (l *pollLoop) shutdown() {
	l.mgr.Shutdown()
	_, events := l.mgr.Poll()
	for _, ev := range events {
		l.handle(ev)
	}
	l.publish()
}
