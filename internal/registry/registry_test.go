package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/behrlich/go-httpx/internal/slab"
)

func TestRoute_WarmsAndAssociates(t *testing.T) {
	s, err := slab.New(2)
	require.NoError(t, err)
	defer s.Close()

	r := New(128)
	require.NoError(t, r.Route(s, []byte("GET /index.html"), 1, []byte("hello world")))

	tr := r.TakeTrie()
	n, ok := tr.NodeAt([]byte("GET /index.html"))
	require.True(t, ok)
	require.Equal(t, uint32(1), n.PayloadHandle)
	require.Equal(t, uint32(1), n.VersionID)

	content, ok := r.Store().Get("GET /index.html")
	require.True(t, ok)
	require.Equal(t, "hello world", string(content))
}

func TestRoute_RejectsOversizedContent(t *testing.T) {
	s, err := slab.New(1)
	require.NoError(t, err)
	defer s.Close()

	r := New(16)
	big := make([]byte, 8192)
	require.Error(t, r.Route(s, []byte("GET /big"), 0, big))
}
