//go:build linux && !giouring

package ring

import (
	"fmt"
	"net"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/behrlich/go-httpx/internal/logging"
)

// This is the default ring backend: a hand-rolled raw-syscall io_uring
// implementation. io_uring_setup/io_uring_enter scaffolding prepares
// IORING_OP_SENDMSG SQEs for egress datagrams; ingress receives read the
// socket directly (see RecvFrom) and no IORING_OP_RECVMSG SQE is prepared.

const (
	ioringOpSendmsg = 9
	ioringOpRecvmsg = 10

	ioringEnterGetevents = 1 << 0
)

// sqe is the standard 64-byte submission queue entry.
type sqe struct {
	opcode      uint8
	flags       uint8
	ioprio      uint16
	fd          int32
	off         uint64 // also addr2
	addr        uint64
	len         uint32
	opcodeFlags uint32
	userData    uint64
	bufIndex    uint16
	personality uint16
	spliceFdIn  int32
	addr3       uint64
	_           uint64
}

// cqe is the standard 16-byte completion queue entry.
type cqe struct {
	userData uint64
	res      int32
	flags    uint32
}

type ringParams struct {
	sqEntries    uint32
	cqEntries    uint32
	flags        uint32
	sqThreadCpu  uint32
	sqThreadIdle uint32
	features     uint32
	wqFd         uint32
	resv         [3]uint32
	sqOff        struct {
		head, tail, ringMask, ringEntries, flags, dropped, array, resv1 uint32
		userAddr                                                        uint64
	}
	cqOff struct {
		head, tail, ringMask, ringEntries, overflow, cqes, flags, resv1 uint32
		userAddr                                                        uint64
	}
}

// minimalRing implements Ring via raw io_uring_setup/io_uring_enter
// syscalls over a bound, SO_REUSEPORT UDP socket.
type minimalRing struct {
	fd     int
	sockFd int
	conn   *net.UDPConn
	params ringParams
	sqAddr []byte
	cqAddr []byte

	mu       sync.Mutex
	toSubmit uint32

	// kept alive for the duration of any in-flight submission so the
	// kernel always sees valid addresses.
	pinned []*pinnedMsg
}

type pinnedMsg struct {
	msghdr unix.Msghdr
	iov    []unix.Iovec
	name   unix.RawSockaddrInet4
	buf    []byte
}

// New constructs the default minimal ring backend, bound to cfg.Host:Port
// with SO_REUSEPORT so multiple workers can share the ingress port.
func New(cfg Config) (Ring, error) {
	logger := logging.Default()

	entries := cfg.Entries
	if entries == 0 {
		entries = 256
	}

	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
	pc, err := lc.ListenPacket(nil, "udp", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("ring: listen failed: %w", err)
	}
	conn := pc.(*net.UDPConn)

	rawConn, err := conn.SyscallConn()
	if err != nil {
		conn.Close()
		return nil, err
	}
	var sockFd int
	_ = rawConn.Control(func(fd uintptr) { sockFd = int(fd) })

	params := ringParams{sqEntries: entries, cqEntries: entries * 2}
	ringFd, _, errno := syscall.Syscall(unix.SYS_IO_URING_SETUP, uintptr(entries), uintptr(unsafe.Pointer(&params)), 0)
	if errno != 0 {
		conn.Close()
		return nil, fmt.Errorf("ring: io_uring_setup failed: %v", errno)
	}

	sqSize := int(params.sqOff.array + params.sqEntries*4)
	cqSize := int(params.cqOff.cqes + params.cqEntries*uint32(unsafe.Sizeof(cqe{})))

	sqAddr, err := unix.Mmap(int(ringFd), 0, sqSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		syscall.Close(int(ringFd))
		conn.Close()
		return nil, fmt.Errorf("ring: mmap SQ failed: %w", err)
	}
	cqAddr, err := unix.Mmap(int(ringFd), 0x8000000, cqSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Munmap(sqAddr)
		syscall.Close(int(ringFd))
		conn.Close()
		return nil, fmt.Errorf("ring: mmap CQ failed: %w", err)
	}

	logger.Info("minimal ring constructed", "entries", entries, "fd", ringFd)

	return &minimalRing{
		fd:     int(ringFd),
		sockFd: sockFd,
		conn:   conn,
		params: params,
		sqAddr: sqAddr,
		cqAddr: cqAddr,
	}, nil
}

func (r *minimalRing) sqHead() *uint32 { return (*uint32)(unsafe.Pointer(&r.sqAddr[r.params.sqOff.head])) }
func (r *minimalRing) sqTail() *uint32 { return (*uint32)(unsafe.Pointer(&r.sqAddr[r.params.sqOff.tail])) }
func (r *minimalRing) cqHead() *uint32 { return (*uint32)(unsafe.Pointer(&r.cqAddr[r.params.cqOff.head])) }
func (r *minimalRing) cqTail() *uint32 { return (*uint32)(unsafe.Pointer(&r.cqAddr[r.params.cqOff.tail])) }

func (r *minimalRing) PrepareSendmsg(msg Msg) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sqMask := r.params.sqEntries - 1
	if *r.sqTail()-*r.sqHead() >= r.params.sqEntries {
		return ErrRingFull
	}

	udpAddr, _ := msg.Dest.(*net.UDPAddr)
	var name unix.RawSockaddrInet4
	name.Family = unix.AF_INET
	name.Port = htons(uint16(udpAddr.Port))
	copy(name.Addr[:], udpAddr.IP.To4())

	iov := make([]unix.Iovec, len(msg.Iovecs))
	for i, b := range msg.Iovecs {
		if len(b) == 0 {
			continue
		}
		iov[i].Base = &b[0]
		iov[i].SetLen(len(b))
	}

	pm := &pinnedMsg{name: name, iov: iov}
	pm.msghdr.Name = (*byte)(unsafe.Pointer(&pm.name))
	pm.msghdr.Namelen = uint32(unsafe.Sizeof(pm.name))
	pm.msghdr.Iov = &pm.iov[0]
	pm.msghdr.SetIovlen(len(pm.iov))
	r.pinned = append(r.pinned, pm)

	sqIndex := *r.sqTail() & sqMask
	e := (*sqe)(unsafe.Pointer(&r.sqAddr[64*sqIndex]))
	*e = sqe{
		opcode:   ioringOpSendmsg,
		fd:       int32(r.sockFd),
		addr:     uint64(uintptr(unsafe.Pointer(&pm.msghdr))),
		len:      1,
		userData: msg.UserData,
	}

	sqArrayBase := r.params.sqOff.array
	arrSlot := (*uint32)(unsafe.Pointer(&r.sqAddr[sqArrayBase+4*sqIndex]))
	*arrSlot = sqIndex

	*r.sqTail()++
	r.toSubmit++
	return nil
}

func (r *minimalRing) Submit() (uint32, error) {
	r.mu.Lock()
	n := r.toSubmit
	r.toSubmit = 0
	r.mu.Unlock()
	if n == 0 {
		return 0, nil
	}

	_, _, errno := syscall.Syscall6(unix.SYS_IO_URING_ENTER, uintptr(r.fd), uintptr(n), 0,
		uintptr(ioringEnterGetevents), 0, 0)
	if errno != 0 {
		return 0, fmt.Errorf("ring: io_uring_enter failed: %v", errno)
	}
	return n, nil
}

func (r *minimalRing) Reap() ([]Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Result
	cqMask := r.params.cqEntries - 1
	for *r.cqHead() != *r.cqTail() {
		idx := *r.cqHead() & cqMask
		c := (*cqe)(unsafe.Pointer(&r.cqAddr[r.params.cqOff.cqes+16*idx]))
		res := Result{UserData: c.userData, Res: c.res}
		if c.res < 0 {
			res.Err = syscall.Errno(-c.res)
		}
		out = append(out, res)
		*r.cqHead()++
	}
	// Completions reaped: their pinned buffers are no longer referenced
	// by the kernel and may be released.
	r.pinned = nil
	return out, nil
}

func (r *minimalRing) RecvFrom(buf []byte) (int, net.Addr, error) {
	return r.conn.ReadFromUDP(buf)
}

func (r *minimalRing) LocalAddr() net.Addr {
	return r.conn.LocalAddr()
}

func (r *minimalRing) Close() error {
	unix.Munmap(r.sqAddr)
	unix.Munmap(r.cqAddr)
	syscall.Close(r.fd)
	return r.conn.Close()
}

func htons(v uint16) uint16 {
	return (v << 8) | (v >> 8)
}

var _ Ring = (*minimalRing)(nil)
