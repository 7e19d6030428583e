// Package dispatcher implements the Core Dispatcher: a per-worker
// cooperative recv -> predict -> submit -> reap loop binding a Ring, a
// Slab, and a Predictive Engine together.
package dispatcher

import (
	"net"
	"sync"

	httpx "github.com/behrlich/go-httpx"
	"github.com/behrlich/go-httpx/internal/constants"
	"github.com/behrlich/go-httpx/internal/engine"
	"github.com/behrlich/go-httpx/internal/logging"
	"github.com/behrlich/go-httpx/internal/queue"
	"github.com/behrlich/go-httpx/internal/ring"
	"github.com/behrlich/go-httpx/internal/session"
	"github.com/behrlich/go-httpx/internal/slab"
)

// LearnEvent is emitted on every observed packet, before prediction, for
// the cluster orchestrator's shadow-trie accumulation.
type LearnEvent struct {
	Context []byte
	Outcome bool
}

// Dispatcher is a NUMA-aware packet dispatcher bound to one worker. It
// owns no socket directly; egress and ingress both flow through a Ring.
type Dispatcher struct {
	coreID  int
	r       ring.Ring
	slab    *slab.Slab
	engine  *engine.Engine
	control <-chan ControlSignal
	learnTx chan<- LearnEvent

	sessMu   sync.Mutex
	sessions map[string]*session.Session

	recvBuf int
}

// New constructs a Dispatcher bound to a core, wrapping an already-open
// Ring, Slab and Engine. The learn channel is best-effort: a full channel
// drops the event rather than blocking the hot path.
func New(coreID int, r ring.Ring, s *slab.Slab, e *engine.Engine, control <-chan ControlSignal, learnTx chan<- LearnEvent) *Dispatcher {
	return &Dispatcher{
		coreID:   coreID,
		r:        r,
		slab:     s,
		engine:   e,
		control:  control,
		learnTx:  learnTx,
		sessions: make(map[string]*session.Session),
		recvBuf:  constants.PageSize,
	}
}

func (d *Dispatcher) sessionFor(addr net.Addr) *session.Session {
	key := addr.String()
	d.sessMu.Lock()
	defer d.sessMu.Unlock()
	s, ok := d.sessions[key]
	if !ok {
		s = session.New(addr)
		d.sessions[key] = s
	}
	return s
}

type inbound struct {
	data []byte
	addr net.Addr
	err  error
}

// RunLoop runs the hot path until stop is closed. Mechanical sympathy:
// completions are reaped on every iteration before blocking on the next
// event, so slab RCs never pile up behind a quiet control channel.
func (d *Dispatcher) RunLoop(stop <-chan struct{}) {
	logger := logging.Default()
	recvCh := make(chan inbound, 64)

	go func() {
		for {
			buf := queue.GetBuffer(uint32(d.recvBuf))
			n, addr, err := d.r.RecvFrom(buf[:d.recvBuf])
			if err != nil {
				select {
				case recvCh <- inbound{err: err}:
				case <-stop:
				}
				return
			}
			select {
			case recvCh <- inbound{data: buf[:n], addr: addr}:
			case <-stop:
				queue.PutBuffer(buf)
				return
			}
		}
	}()

	for {
		d.reapCompletions()

		select {
		case <-stop:
			return
		case sig := <-d.control:
			d.handleControl(sig)
		case in := <-recvCh:
			if in.err != nil {
				logger.Warn("dispatcher: recv failed", "core", d.coreID, "error", in.err)
				continue
			}
			d.onPacket(in.data, in.addr)
			queue.PutBuffer(in.data[:cap(in.data)])
		}
	}
}

func (d *Dispatcher) handleControl(sig ControlSignal) {
	logger := logging.Default()
	switch s := sig.(type) {
	case Pivot:
		logger.Warn("priority-zero: pivot detected, killing stale pushes", "addr", s.Addr)
		d.engine.CancelFor(s.Addr)
		d.sessMu.Lock()
		if sess, ok := d.sessions[s.Addr]; ok {
			sess.Cancel()
		}
		d.sessMu.Unlock()
	case KillAll:
		logger.Error("priority-zero: global termination")
		d.engine.SetActive(false)
	case SwapTrie:
		d.engine.Install(s.Trie)
		logger.Info("dispatcher: shadow-swap handshake complete", "core", d.coreID)
	}
}

// reapCompletions drains the ring's completion queue and decrements the
// RC of every slab slot referenced by a completed send, decoding the
// combined user-data handle: payload in the low 32 bits, template (if
// any) in the high 32 bits.
func (d *Dispatcher) reapCompletions() {
	results, err := d.r.Reap()
	if err != nil {
		logging.Default().Warn("dispatcher: reap failed", "core", d.coreID, "error", err)
		return
	}
	for _, res := range results {
		if res.UserData == 0 {
			continue
		}
		payloadHandle := uint32((res.UserData & 0xFFFFFFFF) - 1)
		templateData := (res.UserData >> 32) & 0xFFFFFFFF

		d.slab.DecRC(int(payloadHandle))
		if templateData > 0 {
			templateHandle := uint32(templateData - 1)
			d.slab.DecRC(int(templateHandle))
		}
	}
}

// SubmitLinkedBurst submits a GSO super-packet — intent-sync frame, header
// template, payload — as one vectored sendmsg, after checking the
// freshness gate. Slot reference counts are incremented before submission
// and decremented on reap; they are decremented synchronously only when the
// ring refuses the submission.
func (d *Dispatcher) SubmitLinkedBurst(dest net.Addr, payloadHandle, templateHandle, expectedVersion uint32) error {
	if d.slab.GetVersion(int(payloadHandle)) != expectedVersion {
		return httpx.NewError("submit_linked_burst", httpx.ErrCodeIntentMismatch, "stale payload")
	}

	userData := (uint64(payloadHandle) + 1) | ((uint64(templateHandle) + 1) << 32)
	msg := ring.Msg{
		Dest: dest,
		Iovecs: [][]byte{
			[]byte(constants.IntentSyncFrame),
			d.slab.SlotPtr(int(templateHandle)),
			d.slab.SlotPtr(int(payloadHandle)),
		},
		UserData: userData,
	}

	d.slab.IncRC(int(payloadHandle))
	d.slab.IncRC(int(templateHandle))

	if err := d.r.PrepareSendmsg(msg); err != nil {
		d.slab.DecRC(int(payloadHandle))
		d.slab.DecRC(int(templateHandle))
		return httpx.WrapError("submit_linked_burst", httpx.NewError("submit_linked_burst", httpx.ErrCodeCongested, "submission queue full"))
	}
	if _, err := d.r.Submit(); err != nil {
		return httpx.WrapError("submit_linked_burst", err)
	}
	return nil
}

// onPacket handles one inbound datagram: it always emits a learning event,
// then asks the engine to resolve a speculative push for the packet's
// bytes as a bit-path and, if one is found, fires it.
func (d *Dispatcher) onPacket(data []byte, addr net.Addr) {
	sess := d.sessionFor(addr)

	if d.learnTx != nil {
		select {
		case d.learnTx <- LearnEvent{Context: append([]byte(nil), data...), Outcome: true}:
		default:
		}
	}

	payloadHandle, version, ok := d.engine.ResolvePath(sess, data)
	if !ok {
		return
	}
	if err := d.SubmitLinkedBurst(addr, payloadHandle, 0, version); err != nil {
		logging.Default().Debug("dispatcher: speculative push suppressed", "addr", addr, "error", err)
	}
}
