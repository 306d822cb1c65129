// Package link tracks session link quality.
//
// A Monitor counts sent and received datagrams and keeps a sliding window of
// success-rate samples. The smoothed strength percentage computed over that
// window drives the session's low-strength disconnect decision.
package link

import (
	"sync"

	"github.com/pion/logging"
)

// WindowSize is the maximum number of success-rate samples retained.
// Older samples are evicted first.
const WindowSize = 5

// DeadThreshold is the strength percentage below which the link is
// considered dead.
const DeadThreshold = 5.0

// Monitor estimates link quality from acknowledgement outcomes.
//
// The monitor only records samples while active: acknowledgement outcomes
// before the handshake completes are not counted. Counters increase
// monotonically and are reset only together with the sample window.
type Monitor struct {
	log logging.LeveledLogger

	mu       sync.Mutex
	sent     uint64
	received uint64
	samples  []float64
	active   bool
}

// NewMonitor creates a Monitor. The factory may be nil to disable logging.
func NewMonitor(loggerFactory logging.LoggerFactory) *Monitor {
	m := &Monitor{}
	if loggerFactory != nil {
		m.log = loggerFactory.NewLogger("link")
	}
	return m
}

// SetActive gates sample recording. The session activates the monitor on the
// transition to connected and deactivates it on teardown.
func (m *Monitor) SetActive(active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = active
}

// MarkSent counts one successfully written datagram.
func (m *Monitor) MarkSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent++
}

// MarkReceived counts one inbound datagram.
func (m *Monitor) MarkReceived() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received++
}

// RecordAck records one acknowledgement outcome and returns the current
// strength. A missed acknowledgement records 0; a successful one records the
// instantaneous percentage of received over sent. When the monitor is not
// active nothing is recorded and 0 is returned.
func (m *Monitor) RecordAck(success bool) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return 0
	}

	sample := 0.0
	if success && m.sent > 0 {
		sample = 100 * float64(m.received) / float64(m.sent)
	}

	m.samples = append(m.samples, sample)
	if len(m.samples) > WindowSize {
		m.samples = m.samples[len(m.samples)-WindowSize:]
	}

	strength := m.strengthLocked()
	if m.log != nil {
		m.log.Debugf("ack success=%v sample=%.1f strength=%.1f", success, sample, strength)
	}
	return strength
}

// Strength returns the unweighted mean of the retained samples.
func (m *Monitor) Strength() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.strengthLocked()
}

func (m *Monitor) strengthLocked() float64 {
	if len(m.samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range m.samples {
		sum += s
	}
	return sum / float64(len(m.samples))
}

// Dead reports whether the given strength indicates a dead link.
func Dead(strength float64) bool {
	return strength < DeadThreshold
}

// Sent returns the monotonically increasing sent counter.
func (m *Monitor) Sent() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}

// Received returns the monotonically increasing received counter.
func (m *Monitor) Received() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.received
}

// Reset clears the sample window and, with it, both counters. This is the
// only path that resets the counters.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = nil
	m.sent = 0
	m.received = 0
}
