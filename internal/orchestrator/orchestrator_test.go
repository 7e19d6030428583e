package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/behrlich/go-httpx/internal/dispatcher"
)

func TestTriggerGlobalSwap_OnEventThreshold(t *testing.T) {
	o := New(16)
	worker := make(chan dispatcher.ControlSignal, 1)
	o.Attach(worker)

	for i := 0; i < 1000; i++ {
		o.learnCh <- dispatcher.LearnEvent{Context: []byte("ctx"), Outcome: true}
	}

	stop := make(chan struct{})
	go o.Run(stop)
	defer close(stop)

	select {
	case sig := <-worker:
		swap, ok := sig.(dispatcher.SwapTrie)
		require.True(t, ok)
		require.Equal(t, uint64(1), swap.Trie.Seq)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a shadow-swap signal")
	}
}

func TestMergeRemote_RejectsStaleSequence(t *testing.T) {
	o := New(16)
	stale := o.shadow.Clone()
	require.False(t, o.MergeRemote(stale))
}
