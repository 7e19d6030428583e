// Package engine implements the Predictive Engine: a concurrent-read,
// atomic-replace wrapper over the Linear Intent Trie that decides whether a
// speculative push should fire.
//
// The trie pointer is replaced via shadow-swap: Install atomically swaps in
// a new trie and the previous one is only reclaimed once every reader that
// observed it has released its guard. Go's garbage collector is the actual
// reclaimer (a trie held through a Guard is never collected). The Engine
// also keeps a reference count per installed snapshot (one for the
// installed slot plus one per live Guard); nothing reads that count, so
// reclamation timing is left entirely to the garbage collector.
package engine

import (
	"sync"
	"sync/atomic"

	"github.com/behrlich/go-httpx/internal/constants"
	"github.com/behrlich/go-httpx/internal/logging"
	"github.com/behrlich/go-httpx/internal/session"
	"github.com/behrlich/go-httpx/internal/trie"
)

// entry pins a trie snapshot behind a reference count: readers that Pin it
// hold a reference, and Install releases the "installed" reference it held
// on behalf of the engine when a newer trie replaces it.
type entry struct {
	trie *trie.Trie
	refs atomic.Int64
}

// Guard is a read guard over a pinned trie snapshot. Release must be
// called exactly once, after which the snapshot may be reclaimed.
type Guard struct {
	ent *entry
}

// Trie returns the pinned snapshot.
func (g *Guard) Trie() *trie.Trie { return g.ent.trie }

// Release drops this guard's reference to the pinned snapshot.
func (g *Guard) Release() { g.ent.refs.Add(-1) }

// Engine wraps a single Trie instance behind an atomic pointer. It is the
// only component that reads the trie in the hot path.
type Engine struct {
	current   atomic.Pointer[entry]
	active    atomic.Bool
	threshold atomic.Uint64 // float64 bits

	shadowMu    sync.Mutex
	localShadow *trie.Trie // engine-local training buffer, handed out by TakeLocalTraining
}

// New creates an Engine with an empty trie, initially active or not per the
// active flag, and the default push threshold.
func New(active bool) *Engine {
	e := &Engine{localShadow: trie.New(1024)}
	e.active.Store(active)
	e.SetThreshold(constants.DefaultPushThreshold)

	initial := &entry{trie: trie.New(1024)}
	initial.refs.Store(1)
	e.current.Store(initial)
	return e
}

// SetThreshold configures the push-decision probability threshold.
func (e *Engine) SetThreshold(t float64) {
	e.threshold.Store(float64bits(t))
}

func (e *Engine) Threshold() float64 {
	return float64frombits(e.threshold.Load())
}

// SetActive toggles whether the engine makes push decisions at all.
func (e *Engine) SetActive(active bool) {
	e.active.Store(active)
}

// Pin acquires a read guard over the currently installed trie snapshot.
func (e *Engine) Pin() *Guard {
	ent := e.current.Load()
	ent.refs.Add(1)
	return &Guard{ent: ent}
}

// Install atomically replaces the current trie with t. The previously
// installed trie remains valid for any reader that pinned it before the
// swap; it becomes eligible for reclamation only once every such guard has
// been released.
func (e *Engine) Install(t *trie.Trie) {
	newEnt := &entry{trie: t}
	newEnt.refs.Store(1)
	old := e.current.Swap(newEnt)
	if old != nil {
		old.refs.Add(-1)
	}
}

// MaybePush decides whether to fire a speculative push for context under
// session. Returns the decided outcome bit and true, or false when no push
// should fire.
func (e *Engine) MaybePush(s *session.Session, context []byte) (int, bool) {
	if !e.active.Load() {
		return 0, false
	}
	if s.Cancelled() {
		logging.Default().Warn("maybe_push: session cancelled, suppressing push", "addr", s.Addr)
		return 0, false
	}
	if !s.HasCredit() {
		logging.Default().Warn("maybe_push: no IIW credit remaining", "addr", s.Addr)
		return 0, false
	}

	g := e.Pin()
	defer g.Release()
	t := g.Trie()

	pTrue := t.Probability(context, 1)
	pFalse := t.Probability(context, 0)

	threshold := e.Threshold()
	var decision int
	var decided bool
	switch {
	case pTrue > threshold:
		decision, decided = 1, true
	case pFalse > threshold:
		decision, decided = 0, true
	}
	if !decided {
		return 0, false
	}

	if !s.ConsumeCredit() {
		return 0, false
	}
	return decision, true
}

// ResolvePath is like MaybePush but returns the leaf's (handle, version)
// when a non-zero payload handle is associated with path's bit path,
// consuming one credit on success.
func (e *Engine) ResolvePath(s *session.Session, path []byte) (handle uint32, version uint32, ok bool) {
	if !e.active.Load() {
		return 0, 0, false
	}
	if s.Cancelled() || !s.HasCredit() {
		return 0, 0, false
	}

	g := e.Pin()
	defer g.Release()

	node, found := g.Trie().NodeAt(path)
	if !found || node.PayloadHandle == 0 {
		return 0, 0, false
	}
	if !s.ConsumeCredit() {
		return 0, 0, false
	}
	return node.PayloadHandle, node.VersionID, true
}

// Train records an observation into the engine's local training buffer. In
// sovereign-autonomous mode the observation is applied with multiplicity 2
// to self-weight local learning when peer information is unavailable. The
// buffer is private to the engine until a caller takes it with
// TakeLocalTraining; the currently installed trie is never mutated
// directly, preserving the "immutable once published" invariant.
func (e *Engine) Train(s *session.Session, context []byte, outcome int) {
	if !e.active.Load() {
		return
	}
	multiplier := 1
	if s.Mode == session.ModeSovereignAutonomous {
		multiplier = 2
	}

	e.shadowMu.Lock()
	for i := 0; i < multiplier; i++ {
		e.localShadow.Observe(context, outcome)
	}
	e.shadowMu.Unlock()
}

// TakeLocalTraining returns the engine's accumulated local training buffer
// itself and replaces it with a fresh, empty one. The orchestrator does not
// call it.
func (e *Engine) TakeLocalTraining() *trie.Trie {
	e.shadowMu.Lock()
	defer e.shadowMu.Unlock()
	taken := e.localShadow
	e.localShadow = trie.New(taken.Len())
	return taken
}

// CancelFor is an advisory, best-effort pivot cancellation scoped to addr.
// Upper layers use it to invalidate in-flight speculative state; it never
// blocks.
func (e *Engine) CancelFor(addr string) {
	logging.Default().Warn("pivot: cancelling speculative state", "addr", addr)
}
