// Package ring provides the asynchronous submission/completion interface
// the Core Dispatcher submits vectored sendmsg operations through, plus
// the direct datagram receive it reads ingress from.
// Three backends satisfy Ring: a default raw-syscall minimal io_uring
// implementation, a giouring-backed production implementation (build tag
// "giouring"), and an in-process stub for tests and non-Linux platforms.
package ring

import (
	"errors"
	"net"
)

// ErrRingFull is returned when the submission queue is full. The
// dispatcher's freshness gate and RC discipline treat this as backpressure,
// surfaced as the Congested error code, not a hard failure.
var ErrRingFull = errors.New("ring: submission queue full")

// Msg describes one vectored send: up to three non-contiguous iovecs
// (intent-sync frame, header template, payload) sent as a single datagram.
type Msg struct {
	Dest     net.Addr
	Iovecs   [][]byte
	UserData uint64
}

// Result is a reaped completion.
type Result struct {
	UserData uint64
	Res      int32 // bytes sent, or negative errno
	Err      error
}

// Ring is the async submission/completion interface the dispatcher uses
// for egress sends and ingress receives.
type Ring interface {
	// PrepareSendmsg stages a vectored send SQE without submitting it to
	// the kernel. Returns ErrRingFull if the submission queue is full.
	PrepareSendmsg(msg Msg) error

	// Submit flushes all staged SQEs with a single syscall and returns
	// the number submitted.
	Submit() (uint32, error)

	// Reap drains available completions without blocking.
	Reap() ([]Result, error)

	// RecvFrom performs a (blocking, cancellable via Close) receive of
	// one datagram. The dispatcher's ingress path calls this directly
	// rather than through the SQ/CQ, keeping the ingress recv separate
	// from the egress submit/reap pair.
	RecvFrom(buf []byte) (n int, addr net.Addr, err error)

	// LocalAddr returns the bound address, for SO_REUSEPORT diagnostics.
	LocalAddr() net.Addr

	// Close releases the ring and underlying socket.
	Close() error
}

// Config configures ring construction.
type Config struct {
	Host           string
	Port           int
	Entries        uint32
	ProductionMode bool
}
