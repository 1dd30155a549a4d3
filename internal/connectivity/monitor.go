// Package connectivity tracks reachability of the system of record by
// probing its health endpoint. The mutation executor consults it to decide
// between direct execution and offline queueing, and the outbox replayer
// subscribes to online transitions to know when to drain.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Prober is the health probe the monitor polls; implemented by the refbase
// client.
type Prober interface {
	Health(ctx context.Context) error
}

const (
	defaultInterval = 15 * time.Second
	probeTimeout    = 5 * time.Second
)

// Monitor polls the prober at a fixed interval and exposes the current
// reachability plus a notification channel for offline-to-online
// transitions. Safe for concurrent use.
type Monitor struct {
	probe    Prober
	interval time.Duration
	logger   *slog.Logger

	mu     sync.RWMutex
	online bool
	subs   []chan struct{}
}

// NewMonitor creates a Monitor. It starts optimistic (online) so the first
// user action before the first probe completes is attempted directly; a
// failed attempt then classifies as offline on its own.
func NewMonitor(probe Prober, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Monitor{
		probe:    probe,
		interval: interval,
		logger:   logger.With(slog.String("component", "connectivity")),
		online:   true,
	}
}

// Run polls until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// Online reports the last observed reachability.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// OnlineSignal returns a channel that receives a tick on every
// offline-to-online transition. The channel is buffered; a slow consumer
// coalesces transitions instead of blocking the monitor.
func (m *Monitor) OnlineSignal() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan struct{}, 1)
	m.subs = append(m.subs, ch)
	return ch
}

// ReportOffline lets callers that observed a transport failure flip the
// state immediately instead of waiting for the next probe.
func (m *Monitor) ReportOffline() {
	m.setOnline(false)
}

func (m *Monitor) check(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	err := m.probe.Health(probeCtx)
	m.setOnline(err == nil)
}

func (m *Monitor) setOnline(online bool) {
	m.mu.Lock()
	wasOnline := m.online
	m.online = online
	var subs []chan struct{}
	if online && !wasOnline {
		subs = make([]chan struct{}, len(m.subs))
		copy(subs, m.subs)
	}
	m.mu.Unlock()

	if online == wasOnline {
		return
	}

	if online {
		m.logger.Info("system of record reachable again")
		for _, ch := range subs {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	} else {
		m.logger.Warn("system of record unreachable")
	}
}
