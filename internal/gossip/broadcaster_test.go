package gossip

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/behrlich/go-httpx/internal/trie"
)

func TestApplyDelta_DiscardsStaleSequence(t *testing.T) {
	b := &Broadcaster{applyTo: trie.New(16)}
	b.applyDelta(IntentDelta{Context: []byte("ctx"), DeltaTrue: 1, SequenceNumber: 5})
	n, ok := b.applyTo.NodeAt([]byte("ctx"))
	require.True(t, ok)
	require.Equal(t, uint8(1), n.Weights[1])

	b.applyDelta(IntentDelta{Context: []byte("ctx"), DeltaTrue: 9, SequenceNumber: 5})
	n, ok = b.applyTo.NodeAt([]byte("ctx"))
	require.True(t, ok)
	require.Equal(t, uint8(1), n.Weights[1], "equal sequence number must be discarded")
}

func TestApplyDelta_AppliesNewerSequence(t *testing.T) {
	b := &Broadcaster{applyTo: trie.New(16)}
	b.applyDelta(IntentDelta{Context: []byte("ctx"), DeltaTrue: 1, SequenceNumber: 1})
	b.applyDelta(IntentDelta{Context: []byte("ctx"), DeltaFalse: 2, SequenceNumber: 2})

	n, ok := b.applyTo.NodeAt([]byte("ctx"))
	require.True(t, ok)
	require.Equal(t, uint8(1), n.Weights[1])
	require.Equal(t, uint8(2), n.Weights[0])
}
