package vm

import (
	"errors"
	"fmt"
)

// Fault sentinels. Structural faults come from malformed programs,
// memory faults from bad load/store addresses, exhaustion from running
// out of an engine budget. Every one of them aborts the whole run.
var (
	ErrUnknownOpcode   = errors.New("unknown opcode")
	ErrNoSuchBlock     = errors.New("no such basic block")
	ErrNoSuchFunction  = errors.New("unresolved function reference")
	ErrBadOperand      = errors.New("missing instruction operand")
	ErrBlockFellOff    = errors.New("ran off the end of a basic block")
	ErrUnboundRegister = errors.New("read of unbound register")
	ErrBadAddress      = errors.New("address outside any live allocation")
	ErrMemoryExhausted = errors.New("allocation budget exhausted")
	ErrMaxSteps        = errors.New("maximum steps exceeded")
)

// FaultKind classifies a fault for reporting.
type FaultKind int

const (
	FaultStructural FaultKind = iota
	FaultMemory
	FaultExhaustion
)

// String renders the fault kind.
func (k FaultKind) String() string {
	switch k {
	case FaultStructural:
		return "structural"
	case FaultMemory:
		return "memory"
	case FaultExhaustion:
		return "exhaustion"
	default:
		return "unknown"
	}
}

// Fault is the error an engine run terminates with. It records the
// program counter of the faulting instruction so a host can report it
// without the process dying.
type Fault struct {
	Kind FaultKind
	PC   PC
	Err  error
}

// Error renders the fault with its location.
func (f *Fault) Error() string {
	return fmt.Sprintf("%s fault at %s: %v", f.Kind, f.PC, f.Err)
}

// Unwrap exposes the underlying sentinel to errors.Is.
func (f *Fault) Unwrap() error {
	return f.Err
}

// fault wraps err with the faulting PC, classifying by sentinel.
func fault(pc PC, err error) error {
	kind := FaultStructural
	switch {
	case errors.Is(err, ErrBadAddress):
		kind = FaultMemory
	case errors.Is(err, ErrMemoryExhausted), errors.Is(err, ErrMaxSteps):
		kind = FaultExhaustion
	}
	return &Fault{Kind: kind, PC: pc, Err: err}
}
