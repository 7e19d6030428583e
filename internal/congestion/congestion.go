// Package congestion implements the congestion controller (RTT/loss ->
// credit level 0-2) and the hysteresis-aware cluster-mode state machine
// that decides when a node falls back from cluster-integrated learning to
// sovereign-autonomous local learning.
package congestion

import (
	"sync"
	"time"

	"github.com/behrlich/go-httpx/internal/constants"
	"github.com/behrlich/go-httpx/internal/logging"
)

// Controller maps observed RTT and loss signals to a credit level in
// {0, 1, 2}. Level 0 suppresses all speculative pushes.
type Controller struct {
	mu      sync.Mutex
	baseRTT time.Duration
	level   int
}

// NewController creates a Controller with the given base RTT and an
// initial level of 2 (fully open).
func NewController(baseRTT time.Duration) *Controller {
	return &Controller{baseRTT: baseRTT, level: 2}
}

// Evaluate returns the active credit level for currentRTT. If currentRTT
// exceeds baseRTT * RTTSlackFactor, the controller drops to level 0 and
// that is what's returned; otherwise the previously stored level is
// returned unchanged.
func (c *Controller) Evaluate(currentRTT time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if float64(currentRTT) > float64(c.baseRTT)*constants.RTTSlackFactor {
		c.level = 0
		return 0
	}
	return c.level
}

// SetLevel explicitly sets the active level (e.g. after a recovery
// decision made elsewhere).
func (c *Controller) SetLevel(level int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.level = level
}

// NotifyLoss forces the level to 0 immediately, regardless of RTT.
func (c *Controller) NotifyLoss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.level = 0
}

// Level returns the current level without evaluating RTT.
func (c *Controller) Level() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}

// ClusterMode distinguishes a node gossiping with its peers from one
// operating alone after sustained heartbeat loss.
type ClusterMode int

const (
	ModeIntegrated ClusterMode = iota
	ModeSovereign
)

func (m ClusterMode) String() string {
	if m == ModeSovereign {
		return "sovereign"
	}
	return "integrated"
}

// Stability is a leaky-bucket hysteresis monitor over cluster gossip
// heartbeats, preventing mode flapping during transient instability.
type Stability struct {
	mu                sync.Mutex
	mode              ClusterMode
	consecutiveMisses uint32
	consecutiveStable uint32
	missThreshold     uint32
	recoveryThreshold uint32
}

// NewStability creates a Stability monitor with the given miss/recovery
// thresholds, starting in ModeIntegrated.
func NewStability(missThreshold, recoveryThreshold uint32) *Stability {
	return &Stability{
		mode:              ModeIntegrated,
		missThreshold:     missThreshold,
		recoveryThreshold: recoveryThreshold,
	}
}

// NewDefaultStability creates a Stability monitor using the default
// thresholds (3 misses to drop, 10 recoveries to restore).
func NewDefaultStability() *Stability {
	return NewStability(constants.DefaultMissThreshold, constants.DefaultRecoveryThreshold)
}

// RecordSuccess records a successful gossip heartbeat.
func (s *Stability) RecordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveMisses = 0

	if s.mode == ModeSovereign {
		s.consecutiveStable++
		if s.consecutiveStable >= s.recoveryThreshold {
			s.transition(ModeIntegrated)
		}
	}
}

// RecordMiss records a missed gossip heartbeat or timeout.
func (s *Stability) RecordMiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveStable = 0
	s.consecutiveMisses++

	if s.mode == ModeIntegrated && s.consecutiveMisses >= s.missThreshold {
		s.transition(ModeSovereign)
	}
}

// CurrentMode returns the current cluster mode.
func (s *Stability) CurrentMode() ClusterMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// transition must be called with s.mu held.
func (s *Stability) transition(newMode ClusterMode) {
	logging.Default().Warn("cluster stability transition", "from", s.mode, "to", newMode)
	s.mode = newMode
	s.consecutiveMisses = 0
	s.consecutiveStable = 0
}
