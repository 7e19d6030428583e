package ring

import (
	"net"
	"sync"
)

// StubRing is an in-process Ring backed by a real net.UDPConn. It gives
// tests and non-Linux platforms a working ring without the real io_uring
// submission/completion machinery. Submissions are performed synchronously
// on Submit and their "completions" queued for the next Reap, preserving
// the interface's async shape without actually being async.
type StubRing struct {
	conn *net.UDPConn

	mu      sync.Mutex
	staged  []Msg
	pending []Result
}

// NewStubRing binds a UDP socket at host:port (port 0 picks an ephemeral
// port) and returns a Ring backed by it.
func NewStubRing(host string, port int) (*StubRing, error) {
	addr := &net.UDPAddr{IP: net.ParseIP(host), Port: port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	return &StubRing{conn: conn}, nil
}

func (r *StubRing) PrepareSendmsg(msg Msg) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.staged) >= 4096 {
		return ErrRingFull
	}
	r.staged = append(r.staged, msg)
	return nil
}

func (r *StubRing) Submit() (uint32, error) {
	r.mu.Lock()
	batch := r.staged
	r.staged = nil
	r.mu.Unlock()

	for _, msg := range batch {
		total := 0
		for _, iov := range msg.Iovecs {
			total += len(iov)
		}
		buf := make([]byte, 0, total)
		for _, iov := range msg.Iovecs {
			buf = append(buf, iov...)
		}
		udpAddr, _ := msg.Dest.(*net.UDPAddr)
		n, err := r.conn.WriteToUDP(buf, udpAddr)

		res := Result{UserData: msg.UserData, Res: int32(n)}
		if err != nil {
			res.Res = -1
			res.Err = err
		}
		r.mu.Lock()
		r.pending = append(r.pending, res)
		r.mu.Unlock()
	}
	return uint32(len(batch)), nil
}

func (r *StubRing) Reap() ([]Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.pending
	r.pending = nil
	return out, nil
}

func (r *StubRing) RecvFrom(buf []byte) (int, net.Addr, error) {
	n, addr, err := r.conn.ReadFromUDP(buf)
	return n, addr, err
}

func (r *StubRing) LocalAddr() net.Addr {
	return r.conn.LocalAddr()
}

func (r *StubRing) Close() error {
	return r.conn.Close()
}

var _ Ring = (*StubRing)(nil)
