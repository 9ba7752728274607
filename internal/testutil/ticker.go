// Package testutil provides deterministic time sources for tests.
package testutil

import (
	"sync"
	"time"
)

// ManualTicker is a hand-driven replacement for time.Ticker. Tests
// inject it where a 1 Hz countdown is expected and advance time with
// Tick, making timer behavior fully deterministic.
type ManualTicker struct {
	mu      sync.Mutex
	c       chan time.Time
	stopped bool
}

// NewManualTicker creates a ticker whose channel only fires on Tick.
func NewManualTicker() *ManualTicker {
	return &ManualTicker{c: make(chan time.Time)}
}

// Factory adapts the ticker to the (channel, stop) shape countdown
// consumers expect.
func (m *ManualTicker) Factory() (<-chan time.Time, func()) {
	return m.c, m.Stop
}

// Tick delivers one tick, blocking until the consumer receives it. It
// returns false if the ticker was stopped before delivery.
func (m *ManualTicker) Tick() bool {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return false
	}
	c := m.c
	m.mu.Unlock()

	select {
	case c <- time.Now():
		return true
	case <-time.After(2 * time.Second):
		return false
	}
}

// Stopped reports whether the consumer has released the ticker.
func (m *ManualTicker) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// Stop marks the ticker released. Pending Tick calls give up.
func (m *ManualTicker) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}
