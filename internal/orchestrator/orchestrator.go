// Package orchestrator implements the Cluster Orchestrator: a
// single-writer shadow-trie accumulator that batches learning events from
// every worker dispatcher and throttles the shadow-swap broadcast that
// installs a merged trie back into each worker's engine.
package orchestrator

import (
	"sync"
	"time"

	"github.com/behrlich/go-httpx/internal/constants"
	"github.com/behrlich/go-httpx/internal/dispatcher"
	"github.com/behrlich/go-httpx/internal/logging"
	"github.com/behrlich/go-httpx/internal/trie"
)

// GossipBroadcaster is the narrow interface the orchestrator needs from
// internal/gossip, kept separate so orchestrator tests don't need a real
// memberlist cluster. Deltas carry the full context path rather than a
// hash, since nothing in this system maintains a hash-to-path table for a
// receiver to reverse one.
type GossipBroadcaster interface {
	BroadcastContext(context []byte, deltaTrue, deltaFalse uint16, sequenceNumber uint64)
}

// Orchestrator accumulates learning events into a private shadow trie and
// periodically broadcasts a shadow-swap control signal to every attached
// worker, throttled by an event-count or time threshold, whichever comes
// first.
type Orchestrator struct {
	mu         sync.Mutex
	shadow     *trie.Trie
	workerTxs  []chan<- dispatcher.ControlSignal
	gossip     GossipBroadcaster
	eventCount int
	lastSwap   time.Time

	learnCh chan dispatcher.LearnEvent
}

// New creates an Orchestrator with an empty shadow trie and no attached
// workers.
func New(capacityHint int) *Orchestrator {
	return &Orchestrator{
		shadow:   trie.New(capacityHint),
		lastSwap: time.Now(),
		learnCh:  make(chan dispatcher.LearnEvent, 4096),
	}
}

// LearnChan returns the channel dispatchers should send LearnEvents to.
func (o *Orchestrator) LearnChan() chan<- dispatcher.LearnEvent {
	return o.learnCh
}

// Attach registers a worker's control channel for shadow-swap broadcasts.
func (o *Orchestrator) Attach(tx chan<- dispatcher.ControlSignal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.workerTxs = append(o.workerTxs, tx)
}

// WithGossip attaches a gossip broadcaster used to propagate learning to
// other cluster nodes; nil disables cluster-wide propagation.
func (o *Orchestrator) WithGossip(g GossipBroadcaster) *Orchestrator {
	o.gossip = g
	return o
}

// Run processes learning events and a 100ms ticker until stop is closed,
// triggering a throttled global swap at 1000 accumulated events or every
// tick once at least one event has accumulated.
func (o *Orchestrator) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(constants.SwapTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case ev := <-o.learnCh:
			o.mu.Lock()
			o.shadow.Observe(ev.Context, boolToOutcome(ev.Outcome))
			o.eventCount++
			shouldSwap := o.eventCount >= constants.SwapEventThreshold
			seq := o.shadow.Seq
			o.mu.Unlock()

			if o.gossip != nil {
				deltaTrue, deltaFalse := uint16(0), uint16(0)
				if ev.Outcome {
					deltaTrue = 1
				} else {
					deltaFalse = 1
				}
				o.gossip.BroadcastContext(ev.Context, deltaTrue, deltaFalse, seq+1)
			}
			if shouldSwap {
				o.triggerGlobalSwap()
			}
		case <-ticker.C:
			o.mu.Lock()
			shouldSwap := o.eventCount > 0 && time.Since(o.lastSwap) >= constants.SwapTickInterval
			o.mu.Unlock()
			if shouldSwap {
				o.triggerGlobalSwap()
			}
		}
	}
}

func boolToOutcome(b bool) int {
	if b {
		return 1
	}
	return 0
}

// triggerGlobalSwap bumps the shadow trie's sequence number, clones it for
// safe concurrent reading by every worker, and best-effort broadcasts the
// swap (a full worker control channel drops the signal rather than
// blocking the control plane).
func (o *Orchestrator) triggerGlobalSwap() {
	o.mu.Lock()
	o.shadow.Seq++
	snapshot := o.shadow.Clone()
	events := o.eventCount
	o.eventCount = 0
	o.lastSwap = time.Now()
	txs := append([]chan<- dispatcher.ControlSignal(nil), o.workerTxs...)
	o.mu.Unlock()

	logging.Default().Info("orchestrator: shadow-swap handshake", "seq", snapshot.Seq, "events", events)

	for _, tx := range txs {
		select {
		case tx <- dispatcher.SwapTrie{Trie: snapshot}:
		default:
		}
	}
}

// MergeRemote folds a peer's shadow trie into the local one using the
// weighted-merge policy, for use when a gossip delta carries a full trie
// snapshot rather than a per-path delta.
func (o *Orchestrator) MergeRemote(remote *trie.Trie) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.shadow.MergeNewer(remote)
}
