package dispatcher

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/behrlich/go-httpx/internal/engine"
	"github.com/behrlich/go-httpx/internal/ring"
	"github.com/behrlich/go-httpx/internal/session"
	"github.com/behrlich/go-httpx/internal/slab"
	"github.com/behrlich/go-httpx/internal/trie"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *slab.Slab, *ring.StubRing) {
	t.Helper()
	r, err := ring.NewStubRing("127.0.0.1", 0)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	s, err := slab.New(4)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	e := engine.New(true)
	control := make(chan ControlSignal, 4)
	d := New(0, r, s, e, control, nil)
	return d, s, r
}

func TestSubmitLinkedBurst_FreshnessGate(t *testing.T) {
	d, s, _ := newTestDispatcher(t)
	s.SetVersion(0, 5)

	dest := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9999}
	err := d.SubmitLinkedBurst(dest, 0, 1, 4)
	require.Error(t, err)
	require.Equal(t, 0, int(d.slabRC(0)))
}

func TestSubmitLinkedBurst_IncrementsAndReapsRC(t *testing.T) {
	d, s, r := newTestDispatcher(t)
	s.SetVersion(0, 1)

	dest, err := net.ResolveUDPAddr("udp", r.LocalAddr().String())
	require.NoError(t, err)

	require.NoError(t, d.SubmitLinkedBurst(dest, 0, 1, 1))
	require.True(t, s.InFlight(0))
	require.True(t, s.InFlight(1))

	time.Sleep(10 * time.Millisecond)
	d.reapCompletions()
	require.False(t, s.InFlight(0))
	require.False(t, s.InFlight(1))
}

func TestHandleControl_Pivot(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1234}
	sess := d.sessionFor(addr)
	require.False(t, sess.Cancelled())

	d.handleControl(Pivot{Addr: addr.String()})
	require.True(t, sess.Cancelled())
}

func TestHandleControl_SwapTrie(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	tr := trie.New(16)
	tr.Warm([]byte("x"))
	tr.AssociatePayload([]byte("x"), 2, 7)

	d.handleControl(SwapTrie{Trie: tr})

	sess := session.New(&net.UDPAddr{})
	handle, version, ok := d.engine.ResolvePath(sess, []byte("x"))
	require.True(t, ok)
	require.Equal(t, uint32(2), handle)
	require.Equal(t, uint32(7), version)
}

func (d *Dispatcher) slabRC(i int) int {
	if d.slab.InFlight(i) {
		return 1
	}
	return 0
}
