package vm

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// heapBase is the first virtual address handed out. Address 0 is never
// valid, and a small guard zone below the base catches tiny integers
// being misused as addresses.
const heapBase int64 = 0x1000

// wordSize is the width of a load/store access in bytes.
const wordSize = 8

// Region is one allocation in the simulated address space. Its base is
// a virtual address: loads and stores resolve against the region's own
// byte slice, never against real process memory.
type Region struct {
	Base int64
	Size int64
	data []byte
}

// Memory is a simulated, bounds-checked address space. Virtual bases
// grow monotonically and are never reused, so an address that survives
// its allocation keeps faulting as dangling instead of aliasing a
// later allocation.
type Memory struct {
	regions []*Region // live regions, sorted by Base
	next    int64     // next base to hand out
	limit   int64     // total byte budget, 0 = unlimited
	used    int64     // bytes currently allocated
}

// NewMemory creates an address space with the given byte budget
// (0 = unlimited).
func NewMemory(limit int64) *Memory {
	return &Memory{next: heapBase, limit: limit}
}

// Alloc reserves size bytes and returns the region. The budget check
// counts live bytes only; releasing a region refunds it.
func (m *Memory) Alloc(size int64) (*Region, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrBadAddress, size)
	}
	if m.limit > 0 && m.used+size > m.limit {
		return nil, fmt.Errorf("%w: %d of %d bytes in use, want %d more", ErrMemoryExhausted, m.used, m.limit, size)
	}

	r := &Region{
		Base: m.next,
		Size: size,
		data: make([]byte, size),
	}

	// Keep bases word-aligned with a one-word gap so off-by-one access
	// at a region's end cannot land in its neighbor.
	m.next += size + wordSize
	if rem := m.next % wordSize; rem != 0 {
		m.next += wordSize - rem
	}

	m.used += size
	m.regions = append(m.regions, r)
	return r, nil
}

// Release removes a region from the address space. Accessing its
// addresses afterwards faults as dangling.
func (m *Memory) Release(r *Region) {
	for i, live := range m.regions {
		if live == r {
			m.regions = append(m.regions[:i], m.regions[i+1:]...)
			m.used -= r.Size
			return
		}
	}
}

// Live returns the number of live allocations.
func (m *Memory) Live() int {
	return len(m.regions)
}

// resolve finds the live region containing [addr, addr+wordSize).
// A dangling, out-of-range, or straddling address is a memory fault.
func (m *Memory) resolve(addr int64) (*Region, error) {
	// addr+wordSize below must not overflow.
	if addr < 0 || addr > math.MaxInt64-wordSize {
		return nil, fmt.Errorf("%w: %#x", ErrBadAddress, addr)
	}
	i := sort.Search(len(m.regions), func(i int) bool {
		return m.regions[i].Base+m.regions[i].Size >= addr+wordSize
	})
	if i < len(m.regions) {
		r := m.regions[i]
		if addr >= r.Base && addr+wordSize <= r.Base+r.Size {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %#x", ErrBadAddress, addr)
}

// Load8 reads the 8-byte signed integer at addr.
func (m *Memory) Load8(addr int64) (int64, error) {
	r, err := m.resolve(addr)
	if err != nil {
		return 0, err
	}
	off := addr - r.Base
	return int64(binary.LittleEndian.Uint64(r.data[off : off+wordSize])), nil
}

// Store8 writes an 8-byte signed integer to addr.
func (m *Memory) Store8(addr, val int64) error {
	r, err := m.resolve(addr)
	if err != nil {
		return err
	}
	off := addr - r.Base
	binary.LittleEndian.PutUint64(r.data[off:off+wordSize], uint64(val))
	return nil
}
