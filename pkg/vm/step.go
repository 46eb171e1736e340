package vm

import "fmt"

// exec runs a single fetched instruction against the frame it was
// fetched from. The frame's PC has already advanced past it.
func (e *Engine) exec(fr *Frame, in Instruction) error {
	switch in.Op {
	case OpAlloca:
		reg, err := in.arg(0)
		if err != nil {
			return err
		}
		size, err := in.arg(1)
		if err != nil {
			return err
		}
		return fr.Allocate(e.memory, reg, size)

	case OpImm:
		reg, err := in.arg(0)
		if err != nil {
			return err
		}
		val, err := in.arg(1)
		if err != nil {
			return err
		}
		fr.Assign(reg, val)
		return nil

	case OpAdd:
		dst, err := in.arg(0)
		if err != nil {
			return err
		}
		a, err := e.readOperand(fr, in, 1)
		if err != nil {
			return err
		}
		b, err := e.readOperand(fr, in, 2)
		if err != nil {
			return err
		}
		// Signed 64-bit addition wraps on overflow.
		fr.Assign(dst, a+b)
		return nil

	case OpCmp:
		dst, err := in.arg(0)
		if err != nil {
			return err
		}
		cond, err := in.arg(1)
		if err != nil {
			return err
		}
		a, err := e.readOperand(fr, in, 2)
		if err != nil {
			return err
		}
		b, err := e.readOperand(fr, in, 3)
		if err != nil {
			return err
		}
		flag := CondEq
		if a < b {
			flag = CondLt
		} else if a > b {
			flag = CondGt
		}
		if flag == Cond(cond) {
			fr.Assign(dst, 1)
		} else {
			fr.Assign(dst, 0)
		}
		return nil

	case OpCopy:
		dst, err := in.arg(0)
		if err != nil {
			return err
		}
		src, err := e.readOperand(fr, in, 1)
		if err != nil {
			return err
		}
		fr.Assign(dst, src)
		return nil

	case OpLoad:
		dst, err := in.arg(0)
		if err != nil {
			return err
		}
		addr, err := e.readOperand(fr, in, 1)
		if err != nil {
			return err
		}
		val, err := e.memory.Load8(addr)
		if err != nil {
			return err
		}
		fr.Assign(dst, val)
		return nil

	case OpStore:
		val, err := e.readOperand(fr, in, 0)
		if err != nil {
			return err
		}
		addr, err := e.readOperand(fr, in, 1)
		if err != nil {
			return err
		}
		return e.memory.Store8(addr, val)

	case OpBr:
		flag, err := e.readOperand(fr, in, 0)
		if err != nil {
			return err
		}
		trueBlock, err := in.arg(1)
		if err != nil {
			return err
		}
		falseBlock, err := in.arg(2)
		if err != nil {
			return err
		}
		fr.PC.Index = 0
		if flag != 0 {
			fr.PC.Block = trueBlock
		} else {
			fr.PC.Block = falseBlock
		}
		return nil

	case OpCall:
		ref, err := in.arg(0)
		if err != nil {
			return err
		}
		callee, err := e.program.Resolve(FuncRef(ref))
		if err != nil {
			return err
		}
		e.push(callee)
		return nil

	case OpRet:
		e.pop()
		return nil

	case OpDebug:
		val, err := e.readOperand(fr, in, 0)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(e.out, "%d\n", val)
		return err

	default:
		return fmt.Errorf("%w: %d", ErrUnknownOpcode, int(in.Op))
	}
}

// readOperand reads the register named by operand i of in.
func (e *Engine) readOperand(fr *Frame, in Instruction, i int) (int64, error) {
	reg, err := in.arg(i)
	if err != nil {
		return 0, err
	}
	return fr.Read(reg)
}
