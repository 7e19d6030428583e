package gossip

import (
	"sync/atomic"

	"github.com/hashicorp/memberlist"

	"github.com/behrlich/go-httpx/internal/logging"
	"github.com/behrlich/go-httpx/internal/trie"
)

// Broadcaster propagates IntentDelta records to every member of a
// memberlist cluster and applies received deltas to a local trie,
// discarding any whose sequence number does not advance the node's
// highest-seen value (the gossip integrity gate).
type Broadcaster struct {
	ml      *memberlist.Memberlist
	queue   *memberlist.TransmitLimitedQueue
	lastSeq atomic.Uint64
	applyTo *trie.Trie
}

// NewBroadcaster starts a memberlist instance bound to bindAddr:bindPort
// and registers a delegate that feeds received deltas into applyTo via the
// trie's Observe path. It does not contact any peer; call Join for that.
func NewBroadcaster(name string, bindAddr string, bindPort int, applyTo *trie.Trie) (*Broadcaster, error) {
	b := &Broadcaster{applyTo: applyTo}

	cfg := memberlist.DefaultLocalConfig()
	cfg.Name = name
	cfg.BindAddr = bindAddr
	cfg.BindPort = bindPort

	b.queue = &memberlist.TransmitLimitedQueue{
		NumNodes:       func() int { return b.ml.NumMembers() },
		RetransmitMult: 3,
	}
	cfg.Delegate = &delegate{b: b}

	ml, err := memberlist.Create(cfg)
	if err != nil {
		return nil, err
	}
	b.ml = ml
	return b, nil
}

// Join connects to an existing cluster through any of the given peer
// addresses.
func (b *Broadcaster) Join(peers []string) (int, error) {
	return b.ml.Join(peers)
}

// BroadcastContext enqueues an IntentDelta carrying the full context path
// (not a hash — see IntentDelta's doc comment) for reliable delivery. It
// satisfies orchestrator.GossipBroadcaster.
func (b *Broadcaster) BroadcastContext(context []byte, deltaTrue, deltaFalse uint16, sequenceNumber uint64) {
	delta := IntentDelta{
		Context:        context,
		DeltaTrue:      deltaTrue,
		DeltaFalse:     deltaFalse,
		SequenceNumber: sequenceNumber,
	}
	b.queue.QueueBroadcast(broadcastMsg(delta.Marshal()))
}

// NumMembers returns the current cluster member count.
func (b *Broadcaster) NumMembers() int {
	return b.ml.NumMembers()
}

// Leave gracefully leaves the cluster and shuts down the memberlist
// instance.
func (b *Broadcaster) Leave() error {
	if err := b.ml.Leave(0); err != nil {
		return err
	}
	return b.ml.Shutdown()
}

func (b *Broadcaster) applyDelta(d IntentDelta) {
	for {
		cur := b.lastSeq.Load()
		if d.SequenceNumber <= cur {
			logging.Default().Warn("gossip: discarding stale delta", "seq", d.SequenceNumber, "have", cur)
			return
		}
		if b.lastSeq.CompareAndSwap(cur, d.SequenceNumber) {
			break
		}
	}
	for i := 0; i < int(d.DeltaTrue); i++ {
		b.applyTo.Observe(d.Context, 1)
	}
	for i := 0; i < int(d.DeltaFalse); i++ {
		b.applyTo.Observe(d.Context, 0)
	}
}

// broadcastMsg adapts a raw byte slice to memberlist.Broadcast.
type broadcastMsg []byte

func (m broadcastMsg) Invalidates(other memberlist.Broadcast) bool { return false }
func (m broadcastMsg) Message() []byte                             { return m }
func (m broadcastMsg) Finished()                                   {}

// delegate implements memberlist.Delegate, routing received user messages
// to the Broadcaster's sequence-gated delta application.
type delegate struct {
	b *Broadcaster
}

func (d *delegate) NodeMeta(limit int) []byte { return nil }

func (d *delegate) NotifyMsg(data []byte) {
	if len(data) == 0 {
		return
	}
	delta, err := UnmarshalIntentDelta(data)
	if err != nil {
		logging.Default().Warn("gossip: dropping malformed delta", "error", err)
		return
	}
	d.b.applyDelta(delta)
}

func (d *delegate) GetBroadcasts(overhead, limit int) [][]byte {
	return d.b.queue.GetBroadcasts(overhead, limit)
}

func (d *delegate) LocalState(join bool) []byte { return nil }

func (d *delegate) MergeRemoteState(buf []byte, join bool) {}

var _ memberlist.Delegate = (*delegate)(nil)
