// Package registry bridges application resources to the Predictive
// Engine: registration "burns" contexts into the Linear Intent Trie ahead
// of time, so the hot path never has to do dynamic string matching or
// allocation to resolve a static resource.
package registry

import (
	"fmt"
	"sync"

	"github.com/behrlich/go-httpx/internal/slab"
	"github.com/behrlich/go-httpx/internal/trie"
)

// ShardSize is the nominal content-store shard size. ContentStore does not
// partition by it: every entry sits behind one store-wide lock.
const ShardSize = 64 * 1024

// ContentStore holds named resource bytes, copied into slab slots on
// registration, behind a single sync.RWMutex; registrations serialize
// against each other and against reads.
type ContentStore struct {
	mu     sync.RWMutex
	shards map[string][]byte
}

// NewContentStore creates an empty content store.
func NewContentStore() *ContentStore {
	return &ContentStore{shards: make(map[string][]byte)}
}

// shardKey maps a resource name to one of 64 shard labels. Put and Get do
// not call it; content is stored whole per name in one map.
func (c *ContentStore) shardKey(name string) string {
	h := 0
	for i := 0; i < len(name); i++ {
		h = h*31 + int(name[i])
	}
	if h < 0 {
		h = -h
	}
	return fmt.Sprintf("shard-%d", h%64)
}

// Put stores content under name.
func (c *ContentStore) Put(name string, content []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := make([]byte, len(content))
	copy(buf, content)
	c.shards[name] = buf
}

// Get retrieves content stored under name.
func (c *ContentStore) Get(name string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.shards[name]
	return b, ok
}

// Registry warms the trie with static resource contexts and associates
// each with a payload handle and version, then hands off the fully warmed
// trie for installation into the engine.
type Registry struct {
	trie  *trie.Trie
	store *ContentStore
}

// New creates an empty Registry with the given trie capacity hint.
func New(capacityHint int) *Registry {
	return &Registry{
		trie:  trie.New(capacityHint),
		store: NewContentStore(),
	}
}

// Route registers a static resource: it copies content into the given
// slab slot, stamps the slot's version, warms the trie's bit path for
// context, and associates the handle/version with the terminal node.
func (r *Registry) Route(s *slab.Slab, context []byte, handle uint32, content []byte) error {
	if len(content) > len(s.SlotPtr(int(handle))) {
		return fmt.Errorf("registry: content for %q exceeds slot size", context)
	}
	dst := s.SlotPtr(int(handle))
	copy(dst, content)
	version := s.IncVersion(int(handle))

	r.trie.Warm(context)
	r.trie.AssociatePayload(context, handle, version)
	r.store.Put(string(context), content)
	return nil
}

// TakeTrie returns the registry's warmed trie, ready for installation into
// the Predictive Engine.
func (r *Registry) TakeTrie() *trie.Trie {
	return r.trie
}

// Store returns the registry's content store, for reads outside the hot
// path (e.g. cold-cache fallback, diagnostics).
func (r *Registry) Store() *ContentStore {
	return r.store
}
