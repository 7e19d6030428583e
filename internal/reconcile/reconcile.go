// Package reconcile implements an offline learning buffer for a session
// running in sovereign-autonomous mode during a network partition: local
// observations accumulate here and are merged back into the shadow trie
// once cluster connectivity resumes.
package reconcile

import (
	"sync"

	"github.com/behrlich/go-httpx/internal/trie"
)

// counts is a (success, failure) pair for one context, keyed by its raw
// bytes (not a hash, so the buffer can warm/observe the exact bit path
// on merge — see the gossip hash->path open question resolution).
type counts struct {
	success uint32
	failure uint32
}

// Buffer accumulates local learning events while cluster connectivity is
// unavailable.
type Buffer struct {
	mu        sync.Mutex
	learnings map[string]*counts
}

// New creates an empty reconciliation buffer.
func New() *Buffer {
	return &Buffer{learnings: make(map[string]*counts)}
}

// Record records a local learning event for context.
func (b *Buffer) Record(context []byte, outcome bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := string(context)
	c, ok := b.learnings[key]
	if !ok {
		c = &counts{}
		b.learnings[key] = c
	}
	if outcome {
		c.success++
	} else {
		c.failure++
	}
}

// Len reports the number of distinct contexts with buffered learnings.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.learnings)
}

// MergeInto replays every buffered learning into t as observations, so
// each buffered count is added to the path's weights (saturating at 255).
func (b *Buffer) MergeInto(t *trie.Trie) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ctx, c := range b.learnings {
		data := []byte(ctx)
		for i := uint32(0); i < c.success; i++ {
			t.Observe(data, 1)
		}
		for i := uint32(0); i < c.failure; i++ {
			t.Observe(data, 0)
		}
	}
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.learnings = make(map[string]*counts)
}
