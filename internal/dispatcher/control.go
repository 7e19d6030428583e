package dispatcher

import "github.com/behrlich/go-httpx/internal/trie"

// ControlSignal is sent from the cluster orchestrator to every per-core
// dispatcher.
type ControlSignal interface {
	isControlSignal()
}

// Pivot asks the dispatcher to cancel in-flight speculative state for one
// peer (priority-zero pivot detection).
type Pivot struct {
	Addr string
}

func (Pivot) isControlSignal() {}

// KillAll asks every dispatcher to suppress speculative pushes globally.
type KillAll struct{}

func (KillAll) isControlSignal() {}

// SwapTrie installs a freshly merged trie snapshot into the dispatcher's
// engine (the shadow-swap handshake).
type SwapTrie struct {
	Trie *trie.Trie
}

func (SwapTrie) isControlSignal() {}
