// Package session implements per-peer Initial Intent Window (IIW) credit
// accounting and priority-zero pivot cancellation.
package session

import (
	"net"
	"sync/atomic"

	"github.com/behrlich/go-httpx/internal/constants"
)

// Mode distinguishes a session whose learning is synchronized through the
// cluster orchestrator from one operating offline during a partition.
type Mode int

const (
	// ModeClusterIntegrated is the default: learning flows through gossip.
	ModeClusterIntegrated Mode = iota
	// ModeSovereignAutonomous trains locally with doubled weight when
	// cluster connectivity is unavailable.
	ModeSovereignAutonomous
)

// Session tracks one peer's speculative-push budget. Credit is always in
// [0, DefaultIIWCredits]; cancellation is monotonic until an explicit reset.
type Session struct {
	Addr   net.Addr
	Mode   Mode
	credit atomic.Uint32
	cancel atomic.Bool
}

// New creates a Session for addr with a full IIW credit grant.
func New(addr net.Addr) *Session {
	s := &Session{Addr: addr, Mode: ModeClusterIntegrated}
	s.credit.Store(constants.DefaultIIWCredits)
	return s
}

// Cancel sets the priority-zero pivot flag: all further speculative pushes
// are suppressed until Reset is called.
func (s *Session) Cancel() {
	s.cancel.Store(true)
}

// Reset clears the pivot cancellation flag.
func (s *Session) Reset() {
	s.cancel.Store(false)
}

// Cancelled reports whether the pivot flag is set.
func (s *Session) Cancelled() bool {
	return s.cancel.Load()
}

// Replenish resets IIW credit to the full grant, called on receipt of a
// client acknowledgement.
func (s *Session) Replenish() {
	s.credit.Store(constants.DefaultIIWCredits)
}

// HasCredit reports whether at least one credit remains, without consuming
// it.
func (s *Session) HasCredit() bool {
	return s.credit.Load() > 0
}

// ConsumeCredit attempts to atomically consume one credit via a CAS loop.
// Returns false if credit had already reached zero.
func (s *Session) ConsumeCredit() bool {
	for {
		cur := s.credit.Load()
		if cur == 0 {
			return false
		}
		if s.credit.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}

// Credit returns the current credit count, for observability and tests.
func (s *Session) Credit() uint32 {
	return s.credit.Load()
}
