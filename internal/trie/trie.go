// Package trie implements the Linear Intent Trie: a bitwise-addressed radix
// tree over request contexts carrying Markov observation weights, payload
// handles, and version ids. Nodes are cache-line sized and held in a
// contiguous, append-only pool so traversal is pure index arithmetic.
package trie

import (
	"unsafe"

	"github.com/behrlich/go-httpx/internal/constants"
)

// nullChild marks the absence of a child node.
const nullChild = ^uint32(0)

// Node is exactly 64 bytes: one cache line. Child offsets are 32-bit
// indices into the owning Trie's node pool.
type Node struct {
	Children      [2]uint32 // child offsets; nullChild if absent
	Weights       [2]uint8  // Markov weights for outcome 0 / outcome 1, saturating at 255
	PayloadHandle uint32    // slab slot index; 0 means "no payload"
	VersionID     uint32    // freshness version of the associated payload
	SemanticMask  uint32    // protocol/fragment flags
	Flags         uint8
	_             [37]byte // pad to 64 bytes
}

// Compile-time assertion that Node is exactly one cache line.
var _ [constants.TrieNodeSize]byte = [unsafe.Sizeof(Node{})]byte{}

func newNode() Node {
	return Node{Children: [2]uint32{nullChild, nullChild}}
}

// Trie is an append-only pool of Nodes rooted at index 0, carrying a
// monotonic sequence number used by MergeNewer to reject stale updates.
// A Trie is logically immutable once installed into the Predictive Engine;
// all further mutation happens on a private copy (see the orchestrator).
//
// Maximum trie size: child offsets are 32-bit, so a single Trie instance is
// bounded to 2^32-1 nodes, indices 0 through 2^32-2 (nullChild reserves the
// top value).
type Trie struct {
	nodes []Node
	Seq   uint64
}

// New creates a Trie with a pre-sized node pool and a root node at index 0.
func New(capacityHint int) *Trie {
	nodes := make([]Node, 0, capacityHint)
	nodes = append(nodes, newNode())
	return &Trie{nodes: nodes}
}

// Len reports the number of nodes currently in the pool (root included).
func (t *Trie) Len() int {
	return len(t.nodes)
}

// bitAt returns the 0/1 value of bit i of b, counting MSB-first.
func bitAt(b byte, i int) int {
	return int((b >> uint(7-i)) & 1)
}

// Observe walks (and lazily extends) the bit path for context, then
// increments weights[outcome] at the terminal node, saturating at 255.
func (t *Trie) Observe(context []byte, outcome int) {
	cur := t.walkExtend(context)
	w := t.nodes[cur].Weights[outcome]
	if w < constants.MaxWeight {
		t.nodes[cur].Weights[outcome] = w + 1
	}
}

// Warm walks (and lazily extends) the bit path for path without touching
// weights. Used to pre-create paths for statically registered resources.
func (t *Trie) Warm(path []byte) {
	t.walkExtend(path)
}

// walkExtend walks the bit path for data, appending new nodes as needed,
// and returns the terminal node index.
func (t *Trie) walkExtend(data []byte) uint32 {
	cur := uint32(0)
	for _, b := range data {
		for i := 0; i < 8; i++ {
			bit := bitAt(b, i)
			next := t.nodes[cur].Children[bit]
			if next == nullChild {
				newIdx := uint32(len(t.nodes))
				t.nodes = append(t.nodes, newNode())
				t.nodes[cur].Children[bit] = newIdx
				cur = newIdx
			} else {
				cur = next
			}
		}
	}
	return cur
}

// AssociatePayload walks an existing bit path and writes handle/version onto
// its terminal node. A no-op if the path does not exist.
func (t *Trie) AssociatePayload(context []byte, handle, version uint32) {
	idx, ok := t.walk(context)
	if !ok {
		return
	}
	t.nodes[idx].PayloadHandle = handle
	t.nodes[idx].VersionID = version
}

// walk traverses an existing bit path without extending it, returning the
// terminal node index and whether the full path exists.
func (t *Trie) walk(data []byte) (uint32, bool) {
	cur := uint32(0)
	for _, b := range data {
		for i := 0; i < 8; i++ {
			bit := bitAt(b, i)
			next := t.nodes[cur].Children[bit]
			if next == nullChild {
				return 0, false
			}
			cur = next
		}
	}
	return cur, true
}

// Probability returns w[outcome] / (w[0] + w[1]) at the terminal node of
// context's bit path, or 0 if the path is missing or the denominator is 0.
func (t *Trie) Probability(context []byte, outcome int) float64 {
	idx, ok := t.walk(context)
	if !ok {
		return 0
	}
	n := &t.nodes[idx]
	total := int(n.Weights[0]) + int(n.Weights[1])
	if total == 0 {
		return 0
	}
	return float64(n.Weights[outcome]) / float64(total)
}

// NodeAt reports the terminal node of path, if the bit path exists.
func (t *Trie) NodeAt(path []byte) (Node, bool) {
	idx, ok := t.walk(path)
	if !ok {
		return Node{}, false
	}
	return t.nodes[idx], true
}

// MergeNewer merges weights from other into t, the weighted-merge policy
// used by the orchestrator. If other.Seq <= t.Seq, it is a no-op and
// returns false. Otherwise, when the two pools are structurally identical
// (same length), weights are summed with saturation and, where other's
// version is newer, the version and payload handle are adopted; t.Seq is
// then set to other.Seq. When the pools differ in length, the merge is
// skipped (returns false) — this round is dropped by the caller.
func (t *Trie) MergeNewer(other *Trie) bool {
	if other.Seq <= t.Seq {
		return false
	}
	if len(t.nodes) != len(other.nodes) {
		return false
	}
	for i := range t.nodes {
		for b := 0; b < 2; b++ {
			sum := uint16(t.nodes[i].Weights[b]) + uint16(other.nodes[i].Weights[b])
			if sum > constants.MaxWeight {
				sum = constants.MaxWeight
			}
			t.nodes[i].Weights[b] = uint8(sum)
		}
		if other.nodes[i].VersionID > t.nodes[i].VersionID {
			t.nodes[i].VersionID = other.nodes[i].VersionID
			t.nodes[i].PayloadHandle = other.nodes[i].PayloadHandle
		}
	}
	t.Seq = other.Seq
	return true
}

// Clone returns a deep, independent copy of t, suitable for publishing as
// an immutable snapshot to the Predictive Engine.
func (t *Trie) Clone() *Trie {
	nodes := make([]Node, len(t.nodes))
	copy(nodes, t.nodes)
	return &Trie{nodes: nodes, Seq: t.Seq}
}
