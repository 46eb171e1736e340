package vm

import "fmt"

// Opcode identifies a single instruction kind.
type Opcode int

const (
	OpAlloca Opcode = iota // alloca <reg> <size>
	OpImm                  // imm <reg> <num>
	OpAdd                  // add <dst> <a> <b>
	OpCmp                  // cmp <dst> <cond> <a> <b>
	OpBr                   // br <cond-reg> <true-block> <false-block>
	OpCall                 // call <func-index>
	OpRet                  // ret
	OpCopy                 // copy <dst> <src>
	OpLoad                 // load <dst> <addr-reg>
	OpStore                // store <src> <addr-reg>
	OpDebug                // debug <reg>
)

// String renders the opcode mnemonic.
func (op Opcode) String() string {
	switch op {
	case OpAlloca:
		return "alloca"
	case OpImm:
		return "imm"
	case OpAdd:
		return "add"
	case OpCmp:
		return "cmp"
	case OpBr:
		return "br"
	case OpCall:
		return "call"
	case OpRet:
		return "ret"
	case OpCopy:
		return "copy"
	case OpLoad:
		return "load"
	case OpStore:
		return "store"
	case OpDebug:
		return "debug"
	default:
		return fmt.Sprintf("op(%d)", int(op))
	}
}

// Cond is the ordering a cmp instruction tests for. There are exactly
// three states; no unordered comparison exists.
type Cond int64

const (
	CondLt Cond = -1
	CondEq Cond = 0
	CondGt Cond = 1
)

// Instruction is an opcode plus opcode-specific integer operands.
// No validation happens at construction; a malformed instruction
// surfaces as a fault when it executes.
type Instruction struct {
	Op      Opcode
	Operand []int64
}

// arg returns the i-th operand, or a fault if the instruction carries
// fewer operands than the opcode needs.
func (in Instruction) arg(i int) (int64, error) {
	if i < 0 || i >= len(in.Operand) {
		return 0, fmt.Errorf("%w: %s wants operand %d, has %d", ErrBadOperand, in.Op, i, len(in.Operand))
	}
	return in.Operand[i], nil
}

// String renders the instruction for listings and traces.
func (in Instruction) String() string {
	s := in.Op.String()
	for _, op := range in.Operand {
		s += fmt.Sprintf(" %d", op)
	}
	return s
}

// BasicBlock is a straight-line instruction sequence ending in a
// control transfer (br or ret).
type BasicBlock struct {
	Body []Instruction
}

// Append adds instructions to the end of the block.
func (b *BasicBlock) Append(ins ...Instruction) {
	b.Body = append(b.Body, ins...)
}

// Function is a named set of basic blocks reachable from an entry id.
type Function struct {
	Name   string
	Entry  int64
	Blocks map[int64]*BasicBlock
}

// NewFunction creates an empty function whose entry block id is 0.
func NewFunction(name string) *Function {
	return &Function{
		Name:   name,
		Blocks: make(map[int64]*BasicBlock),
	}
}

// Block returns the block with the given id, creating it on first use.
func (f *Function) Block(id int64) *BasicBlock {
	b, ok := f.Blocks[id]
	if !ok {
		b = &BasicBlock{}
		f.Blocks[id] = b
	}
	return b
}

// FuncRef is a resolvable handle into a program's function table.
// Call instructions carry one as their operand instead of a raw address.
type FuncRef int64

// Program is the function table an engine executes against.
type Program struct {
	Functions []*Function
}

// AddFunction appends a function and returns its handle.
func (p *Program) AddFunction(f *Function) FuncRef {
	p.Functions = append(p.Functions, f)
	return FuncRef(len(p.Functions) - 1)
}

// Resolve maps a handle to its function; an out-of-range handle is a
// structural fault at the call site.
func (p *Program) Resolve(ref FuncRef) (*Function, error) {
	if ref < 0 || int(ref) >= len(p.Functions) {
		return nil, fmt.Errorf("%w: ref %d of %d", ErrNoSuchFunction, ref, len(p.Functions))
	}
	return p.Functions[ref], nil
}
