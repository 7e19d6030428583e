// Package slab implements the Secure Slab: a page-aligned, mmap-backed
// buffer pool handing out stable write targets for payloads and header
// templates, with per-slot reference counting and version tagging for the
// freshness gate.
package slab

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/behrlich/go-httpx/internal/constants"
	"github.com/behrlich/go-httpx/internal/logging"
)

// Slab hands out 4 KiB page-aligned write targets. In huge mode the slots
// are one contiguous 2 MiB-aligned mapping; in guarded mode each slot is
// bracketed by inaccessible guard pages so an overrun faults synchronously.
type Slab struct {
	base      []byte
	slots     int
	totalLen  int
	hugeMode  bool
	refCounts []atomic.Uint32
	versions  []atomic.Uint32
}

// New creates a Slab with the requested number of slots. It attempts a
// huge-page-backed contiguous mapping first and falls back to the guarded
// layout (one inaccessible page on either side of every slot) when huge
// pages are unavailable.
func New(slotCount int) (*Slab, error) {
	if slotCount <= 0 {
		return nil, fmt.Errorf("slab: slot count must be positive, got %d", slotCount)
	}

	logger := logging.Default()

	hugeLen := slotCount * constants.PageSize
	if hugeLen < constants.HugePageSize {
		hugeLen = constants.HugePageSize
	}
	hugeLen = (hugeLen + constants.HugePageSize - 1) &^ (constants.HugePageSize - 1)

	base, err := unix.Mmap(-1, 0, hugeLen, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_HUGETLB)
	hugeMode := true
	totalLen := hugeLen
	if err != nil {
		logger.Debug("huge-page slab mapping failed, falling back to guarded layout", "error", err)
		hugeMode = false
		totalLen = (2*slotCount + 1) * constants.PageSize
		base, err = unix.Mmap(-1, 0, totalLen, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
		if err != nil {
			return nil, fmt.Errorf("slab: mmap failed: %w", err)
		}
	}

	s := &Slab{
		base:      base,
		slots:     slotCount,
		totalLen:  totalLen,
		hugeMode:  hugeMode,
		refCounts: make([]atomic.Uint32, slotCount),
		versions:  make([]atomic.Uint32, slotCount),
	}

	if !hugeMode {
		for i := 0; i < slotCount; i++ {
			off := s.slotOffset(i)
			if perr := unix.Mprotect(base[off:off+constants.PageSize], unix.PROT_READ|unix.PROT_WRITE); perr != nil {
				unix.Munmap(base)
				return nil, fmt.Errorf("slab: mprotect activation failed for slot %d: %w", i, perr)
			}
		}
	}

	logger.Info("slab constructed", "slots", slotCount, "huge_mode", hugeMode, "total_len", totalLen)
	return s, nil
}

func (s *Slab) slotOffset(i int) int {
	if s.hugeMode {
		return i * constants.PageSize
	}
	return (1 + 2*i) * constants.PageSize
}

// Slots returns the number of slots in the slab.
func (s *Slab) Slots() int {
	return s.slots
}

// HugeMode reports whether the slab is huge-page backed.
func (s *Slab) HugeMode() bool {
	return s.hugeMode
}

func (s *Slab) checkIndex(i int) {
	if i < 0 || i >= s.slots {
		panic(fmt.Sprintf("slab: slot index %d out of range [0,%d)", i, s.slots))
	}
}

// SlotPtr returns the 4 KiB-aligned writable byte slice for slot i.
func (s *Slab) SlotPtr(i int) []byte {
	s.checkIndex(i)
	off := s.slotOffset(i)
	return s.base[off : off+constants.PageSize]
}

// IncRC atomically increments slot i's reference count. Release-ordered so
// that content written before submission is visible to the kernel by the
// time it observes the increment.
func (s *Slab) IncRC(i int) {
	s.checkIndex(i)
	s.refCounts[i].Add(1)
}

// DecRC atomically decrements slot i's reference count. Acquire-ordered so
// kernel-side writes are visible before the slot is recycled. Decrementing
// from zero is a fatal usage error (a double-reap bug).
func (s *Slab) DecRC(i int) {
	s.checkIndex(i)
	for {
		cur := s.refCounts[i].Load()
		if cur == 0 {
			panic(fmt.Sprintf("slab: DecRC called on slot %d with RC already 0", i))
		}
		if s.refCounts[i].CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

// InFlight reports whether slot i's reference count is currently non-zero.
func (s *Slab) InFlight(i int) bool {
	s.checkIndex(i)
	return s.refCounts[i].Load() > 0
}

// Release asserts that slot i's RC is zero and logically returns it to the
// free pool. Fatal otherwise: this synchronously catches double-submit bugs.
func (s *Slab) Release(i int) {
	s.checkIndex(i)
	if s.refCounts[i].Load() != 0 {
		panic(fmt.Sprintf("slab: Release called on slot %d while still in-flight", i))
	}
}

// GetVersion returns slot i's current monotonic version id.
func (s *Slab) GetVersion(i int) uint32 {
	s.checkIndex(i)
	return s.versions[i].Load()
}

// SetVersion sets slot i's version id (the freshness commitment made when
// content is published).
func (s *Slab) SetVersion(i int, v uint32) {
	s.checkIndex(i)
	s.versions[i].Store(v)
}

// IncVersion atomically increments slot i's version id and returns the new
// value.
func (s *Slab) IncVersion(i int) uint32 {
	s.checkIndex(i)
	return s.versions[i].Add(1)
}

// Close releases the entire mapping. Individual slots are never freed
// during the slab's lifetime; only the whole mapping is released here.
func (s *Slab) Close() error {
	if s.base == nil {
		return nil
	}
	err := unix.Munmap(s.base)
	s.base = nil
	return err
}
