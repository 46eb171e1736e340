package vm

import (
	"io"
	"os"
)

// Engine executes a program: a fetch-decode-execute loop over the top
// frame of an explicit call stack. Execution is strictly sequential;
// nothing here is safe for concurrent use.
type Engine struct {
	program *Program
	memory  *Memory
	stack   []*Frame

	out   io.Writer // debug instruction output
	trace func(PC, Instruction)

	maxSteps int // maximum steps (0 = unlimited)
	steps    int // steps executed

	memLimit int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithWriter sets the stream debug instructions write to.
func WithWriter(w io.Writer) Option {
	return func(e *Engine) { e.out = w }
}

// WithMaxSteps sets a maximum number of executed instructions before
// the run faults with ErrMaxSteps (0 = unlimited).
func WithMaxSteps(n int) Option {
	return func(e *Engine) { e.maxSteps = n }
}

// WithMemoryLimit caps total live allocation bytes (0 = unlimited).
func WithMemoryLimit(bytes int64) Option {
	return func(e *Engine) { e.memLimit = bytes }
}

// WithTrace installs a hook called with each instruction as it is
// fetched, before it executes.
func WithTrace(fn func(PC, Instruction)) Option {
	return func(e *Engine) { e.trace = fn }
}

// NewEngine creates an engine for the given program.
func NewEngine(p *Program, opts ...Option) *Engine {
	e := &Engine{
		program: p,
		stack:   make([]*Frame, 0, 8),
	}
	for _, o := range opts {
		o(e)
	}
	if e.out == nil {
		e.out = os.Stderr
	}
	e.memory = NewMemory(e.memLimit)
	return e
}

// Memory exposes the engine's simulated address space.
func (e *Engine) Memory() *Memory {
	return e.memory
}

// Depth returns the current call stack depth.
func (e *Engine) Depth() int {
	return len(e.stack)
}

// Reset discards all runtime state: frames, allocations, counters.
func (e *Engine) Reset() {
	e.stack = e.stack[:0]
	e.memory = NewMemory(e.memLimit)
	e.steps = 0
}

// top returns the active frame, or nil if the stack is empty.
func (e *Engine) top() *Frame {
	if len(e.stack) == 0 {
		return nil
	}
	return e.stack[len(e.stack)-1]
}

// push creates a frame for f and makes it active.
func (e *Engine) push(f *Function) {
	e.stack = append(e.stack, newFrame(f))
}

// pop destroys the active frame, releasing every allocation it owns.
func (e *Engine) pop() {
	fr := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	fr.release(e.memory)
}

// fetch returns the instruction at the top frame's PC and advances the
// index. A PC naming a missing block, or one past the end of its block,
// is a structural fault.
func (e *Engine) fetch(fr *Frame) (Instruction, error) {
	pc := &fr.PC
	block, ok := pc.Func.Blocks[pc.Block]
	if !ok {
		return Instruction{}, fault(*pc, ErrNoSuchBlock)
	}
	if pc.Index >= len(block.Body) {
		return Instruction{}, fault(*pc, ErrBlockFellOff)
	}
	in := block.Body[pc.Index]
	pc.Index++
	return in, nil
}

// Start resolves the entry function and pushes its frame, so callers
// can drive execution one Step at a time.
func (e *Engine) Start(ref FuncRef) error {
	f, err := e.program.Resolve(ref)
	if err != nil {
		return fault(PC{}, err)
	}
	e.push(f)
	return nil
}

// Run executes the entry function until the call stack empties or a
// fault aborts the run. The returned error, if any, is a *Fault
// carrying the failing PC.
func (e *Engine) Run(ref FuncRef) error {
	if err := e.Start(ref); err != nil {
		return err
	}
	for {
		halted, err := e.Step()
		if err != nil {
			return err
		}
		if halted {
			return nil
		}
	}
}

// Step executes a single instruction of the top frame, returning
// (halted, error). Halted is true once the call stack is empty.
func (e *Engine) Step() (bool, error) {
	fr := e.top()
	if fr == nil {
		return true, nil
	}

	if e.maxSteps > 0 && e.steps >= e.maxSteps {
		return false, fault(fr.PC, ErrMaxSteps)
	}
	e.steps++

	at := fr.PC
	in, err := e.fetch(fr)
	if err != nil {
		return false, err
	}
	if e.trace != nil {
		e.trace(at, in)
	}

	if err := e.exec(fr, in); err != nil {
		return false, fault(at, err)
	}
	return len(e.stack) == 0, nil
}
