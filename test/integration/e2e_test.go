// Package integration exercises the fully wired core — registry, slab,
// engine, and dispatcher bound together over a real loopback UDP socket —
// the way a running httpx-server process wires them, without requiring
// root or a production io_uring backend.
package integration

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/behrlich/go-httpx/internal/dispatcher"
	"github.com/behrlich/go-httpx/internal/engine"
	"github.com/behrlich/go-httpx/internal/registry"
	"github.com/behrlich/go-httpx/internal/ring"
	"github.com/behrlich/go-httpx/internal/session"
	"github.com/behrlich/go-httpx/internal/slab"
)

// TestFastPathHit covers a registered static route: submitting a burst for
// its payload slot at the slot's current version succeeds, and the payload
// slot is in-flight immediately after submission.
func TestFastPathHit(t *testing.T) {
	sl, err := slab.New(4)
	require.NoError(t, err)
	t.Cleanup(func() { sl.Close() })

	reg := registry.New(16)
	require.NoError(t, reg.Route(sl, []byte("GET /index.html"), 1, []byte("<html>hi</html>")))

	eng := engine.New(true)
	eng.Install(reg.TakeTrie())

	r, err := ring.NewStubRing("127.0.0.1", 0)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	control := make(chan dispatcher.ControlSignal, 1)
	d := dispatcher.New(0, r, sl, eng, control, nil)

	client, err := net.ResolveUDPAddr("udp", r.LocalAddr().String())
	require.NoError(t, err)

	version := sl.GetVersion(1)
	require.NoError(t, d.SubmitLinkedBurst(client, 1, 0, version))
	require.True(t, sl.InFlight(1))
}

// TestFreshnessGateRejectsStaleSubmission covers bumping the slab version
// after the caller captured the expected one: the submission fails with
// no reference-count leak.
func TestFreshnessGateRejectsStaleSubmission(t *testing.T) {
	sl, err := slab.New(2)
	require.NoError(t, err)
	t.Cleanup(func() { sl.Close() })

	sl.SetVersion(0, 100)
	expected := sl.GetVersion(0)
	sl.SetVersion(0, 101)

	r, err := ring.NewStubRing("127.0.0.1", 0)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	eng := engine.New(true)
	control := make(chan dispatcher.ControlSignal, 1)
	d := dispatcher.New(0, r, sl, eng, control, nil)

	dest := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9}
	err = d.SubmitLinkedBurst(dest, 0, 1, expected)
	require.Error(t, err)
	require.False(t, sl.InFlight(0))
	require.False(t, sl.InFlight(1))
}

// TestShadowSwapStability covers one writer repeatedly installing freshly
// built tries while concurrent readers call ResolvePath; no reader ever
// observes a torn or partially initialized trie.
func TestShadowSwapStability(t *testing.T) {
	if testing.Short() {
		t.Skip("shadow-swap stability is a stress test, skipped in -short")
	}

	sl, err := slab.New(4)
	require.NoError(t, err)
	t.Cleanup(func() { sl.Close() })

	reg := registry.New(16)
	require.NoError(t, reg.Route(sl, []byte("GET /stable"), 1, []byte("ok")))
	eng := engine.New(true)
	eng.Install(reg.TakeTrie())

	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				fresh := registry.New(16)
				_ = fresh.Route(sl, []byte("GET /stable"), 1, []byte("ok"))
				eng.Install(fresh.TakeTrie())
			}
		}
	}()

	const readers = 8
	const iterations = 2000
	readerDone := make(chan struct{}, readers)
	for i := 0; i < readers; i++ {
		go func(id int) {
			defer func() { readerDone <- struct{}{} }()
			sess := session.New(&net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 10000 + id})
			for j := 0; j < iterations; j++ {
				if j%10 == 0 {
					sess.Replenish()
				}
				eng.ResolvePath(sess, []byte("GET /stable"))
			}
		}(i)
	}
	for i := 0; i < readers; i++ {
		<-readerDone
	}
	close(stop)
	<-writerDone
}
