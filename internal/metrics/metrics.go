// Package metrics holds performance and operational counters for the
// dispatcher, engine, and gossip layers using a plain atomic-counter
// Metrics/Observer pattern. Those layers do not call the Record*/Set*
// methods themselves; counters change only when a caller records into them.
package metrics

import (
	"sync/atomic"
	"time"
)

// Metrics holds lock-free counters. All fields are safe for concurrent
// use.
type Metrics struct {
	PushesAttempted          atomic.Uint64
	PushesFired              atomic.Uint64
	PushesSuppressedCredit   atomic.Uint64
	PushesSuppressedCanceled atomic.Uint64

	BytesSent  atomic.Uint64
	SendOps    atomic.Uint64
	SendErrors atomic.Uint64

	GossipDeltasSent    atomic.Uint64
	GossipDeltasApplied atomic.Uint64
	GossipDeltasStale   atomic.Uint64

	SwapCount     atomic.Uint64
	CongestionLvl atomic.Int32
	SessionsTotal atomic.Int64

	StartTime atomic.Int64
}

// New creates a Metrics instance with the start time stamped now.
func New() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordPush records the outcome of one MaybePush/ResolvePath decision.
func (m *Metrics) RecordPush(fired bool, suppressedByCredit bool, suppressedByCancel bool) {
	m.PushesAttempted.Add(1)
	switch {
	case fired:
		m.PushesFired.Add(1)
	case suppressedByCredit:
		m.PushesSuppressedCredit.Add(1)
	case suppressedByCancel:
		m.PushesSuppressedCanceled.Add(1)
	}
}

// RecordSend records one egress send result.
func (m *Metrics) RecordSend(bytes int, err error) {
	m.SendOps.Add(1)
	if err != nil {
		m.SendErrors.Add(1)
		return
	}
	m.BytesSent.Add(uint64(bytes))
}

// RecordGossip counts gossip delta activity: one sent, applied and/or
// stale delta for each flag that is true.
func (m *Metrics) RecordGossip(sent, applied, stale bool) {
	if sent {
		m.GossipDeltasSent.Add(1)
	}
	if applied {
		m.GossipDeltasApplied.Add(1)
	}
	if stale {
		m.GossipDeltasStale.Add(1)
	}
}

// RecordSwap increments the shadow-swap counter.
func (m *Metrics) RecordSwap() {
	m.SwapCount.Add(1)
}

// SetCongestionLevel records the controller's current level (0-2).
func (m *Metrics) SetCongestionLevel(level int) {
	m.CongestionLvl.Store(int32(level))
}

// SetSessionsTotal records the current live session count.
func (m *Metrics) SetSessionsTotal(n int64) {
	m.SessionsTotal.Store(n)
}

// Snapshot is a point-in-time copy of every counter, used by the
// Prometheus collector and by tests.
type Snapshot struct {
	PushesAttempted          uint64
	PushesFired              uint64
	PushesSuppressedCredit   uint64
	PushesSuppressedCanceled uint64
	BytesSent                uint64
	SendOps                  uint64
	SendErrors               uint64
	GossipDeltasSent         uint64
	GossipDeltasApplied      uint64
	GossipDeltasStale        uint64
	SwapCount                uint64
	CongestionLvl            int32
	SessionsTotal            int64
	UptimeSeconds            float64
}

// Snapshot captures the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		PushesAttempted:          m.PushesAttempted.Load(),
		PushesFired:              m.PushesFired.Load(),
		PushesSuppressedCredit:   m.PushesSuppressedCredit.Load(),
		PushesSuppressedCanceled: m.PushesSuppressedCanceled.Load(),
		BytesSent:                m.BytesSent.Load(),
		SendOps:                  m.SendOps.Load(),
		SendErrors:               m.SendErrors.Load(),
		GossipDeltasSent:         m.GossipDeltasSent.Load(),
		GossipDeltasApplied:      m.GossipDeltasApplied.Load(),
		GossipDeltasStale:        m.GossipDeltasStale.Load(),
		SwapCount:                m.SwapCount.Load(),
		CongestionLvl:            m.CongestionLvl.Load(),
		SessionsTotal:            m.SessionsTotal.Load(),
		UptimeSeconds:            time.Since(time.Unix(0, m.StartTime.Load())).Seconds(),
	}
}
