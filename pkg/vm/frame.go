package vm

import "fmt"

// PC identifies the next instruction: function, block id, index into
// the block.
type PC struct {
	Func  *Function
	Block int64
	Index int
}

// String renders the PC for fault reports and traces.
func (pc PC) String() string {
	name := "<nil>"
	if pc.Func != nil {
		name = pc.Func.Name
	}
	return fmt.Sprintf("%s:b%d:%d", name, pc.Block, pc.Index)
}

// Frame is the state of one function invocation: its registers, the
// allocations it owns, and its program counter. Registers are strictly
// frame-local; a callee never sees its caller's bindings.
type Frame struct {
	Registers map[int64]int64
	Regions   []*Region
	PC        PC
}

// newFrame creates a frame positioned at the function's entry block.
func newFrame(f *Function) *Frame {
	return &Frame{
		Registers: make(map[int64]int64),
		PC:        PC{Func: f, Block: f.Entry, Index: 0},
	}
}

// Assign binds a register to a value, creating it on first use.
func (fr *Frame) Assign(reg, val int64) {
	fr.Registers[reg] = val
}

// Read returns a register's value. Reading a register that was never
// assigned is a contract violation and faults rather than defaulting
// to zero.
func (fr *Frame) Read(reg int64) (int64, error) {
	v, ok := fr.Registers[reg]
	if !ok {
		return 0, fmt.Errorf("%w: r%d", ErrUnboundRegister, reg)
	}
	return v, nil
}

// Allocate reserves size bytes in mem, records the region under this
// frame, and binds its base address to reg.
func (fr *Frame) Allocate(mem *Memory, reg, size int64) error {
	r, err := mem.Alloc(size)
	if err != nil {
		return err
	}
	fr.Regions = append(fr.Regions, r)
	fr.Assign(reg, r.Base)
	return nil
}

// release returns every region the frame owns to the address space.
// Called exactly once, when the frame is popped.
func (fr *Frame) release(mem *Memory) {
	for _, r := range fr.Regions {
		mem.Release(r)
	}
	fr.Regions = nil
}
