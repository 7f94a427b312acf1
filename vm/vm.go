package vm

// ---------------------------------------------------------------------------
// VM: the virtual machine instance
// ---------------------------------------------------------------------------

// VM is one virtual machine instance. Instances are freely creatable and
// own no global state; separate instances may run on separate goroutines.
//
// The executable, the built-in table, the clock and the tracer are bound at
// construction and survive Reset, as does the user binding byte. Everything
// else is transient runtime state.
type VM struct {
	timer   uint32
	timeout uint32

	dataStack [DataStackSize]Cell
	callStack [CallStackSize]Frame
	pc        uint16
	dataTop   int
	callTop   int

	// persists over Reset
	binding   byte
	exe       *Exe
	builtins  []Builtin
	clock     Clock
	tracer    *Tracer
	dataSign  uint32
	constSign uint32
}

// New binds an executable and a built-in table to a fresh, reset VM with
// native 32-bit cells and the default monotonic clock. The VM borrows both
// the executable and the table.
func New(exe *Exe, builtins []Builtin) *VM {
	m := &VM{
		exe:       exe,
		builtins:  builtins,
		clock:     NowMS,
		dataSign:  DefaultCellSign,
		constSign: DefaultCellSign,
	}
	m.Reset()
	return m
}

// SetClock replaces the monotonic millisecond source. The clock must be
// non-decreasing; subtraction is wraparound-tolerant.
func (m *VM) SetClock(c Clock) {
	m.clock = c
}

// SetTracer enables per-step debug output. A nil tracer disables it.
func (m *VM) SetTracer(t *Tracer) {
	m.tracer = t
}

// SetCellSigns configures the sign-extension masks for data cells and
// constant cells, for images built with narrower cell widths.
func (m *VM) SetCellSigns(dataSign, constSign uint32) {
	m.dataSign = dataSign
	m.constSign = constSign
}

// Binding returns the user-defined persistent binding byte.
func (m *VM) Binding() byte {
	return m.binding
}

// SetBinding stores the user-defined persistent binding byte.
func (m *VM) SetBinding(b byte) {
	m.binding = b
}

// Exe returns the bound executable.
func (m *VM) Exe() *Exe {
	return m.exe
}

// PC returns the byte offset of the next instruction. After a failing Step
// the faulting instruction is at PC()-1, the fetch having already advanced.
func (m *VM) PC() uint16 {
	return m.pc
}

// Reset zeroes the transient state, leaving the persistent binding and the
// construction-time collaborators intact, then reserves main's locals at
// the bottom of the data stack.
func (m *VM) Reset() {
	m.timer = 0
	m.timeout = 0
	m.dataStack = [DataStackSize]Cell{}
	m.callStack = [CallStackSize]Frame{}
	m.pc = 0
	m.callTop = 0
	m.dataTop = m.exe.MainVariablesCount()
}

// ---------------------------------------------------------------------------
// Step: fetch, decode, execute one instruction
// ---------------------------------------------------------------------------

// Step executes at most one instruction and returns the outcome. While a
// pending sleep has not expired it returns NoError without touching any
// state. MainReturn signals normal program termination. Failures are
// reported by value and nothing is rolled back.
func (m *VM) Step() Errno {
	if m.timer != 0 {
		if m.clock()-m.timer < m.timeout {
			return NoError
		}
		m.timer = 0
	}

	code := m.exe.Code()
	if int(m.pc) >= len(code) {
		return PCOverrun
	}

	t := m.tracer
	t.begin(m.pc)

	in := decode(code[m.pc])
	m.pc++

	errno := m.exec(in)
	if errno == NoError {
		t.end(m)
	} else {
		t.fail(errno)
	}
	return errno
}

// jump applies the shared displacement convention: a negative displacement
// is pulled back two extra bytes, then pc advances past the opcode.
func (m *VM) jump(d int32) {
	if d < 0 {
		d -= 2
	}
	m.pc = uint16(int32(m.pc) + d + 1)
	m.tracer.target(m.pc)
}

// exec dispatches one decoded instruction.
func (m *VM) exec(in Instr) Errno {
	param := in.Imm
	if in.Extended {
		v, errno := m.pop()
		if errno != NoError {
			return errno
		}
		param = v
		if param > 0 {
			param += paramSaturated
		}
	}

	switch in.Op {
	case OpPSH:
		m.tracer.psh(param)
		return m.push(param)

	case OpPSC:
		value, errno := m.pop()
		if errno != NoError {
			return errno
		}
		m.tracer.name(OpPSC)
		return m.push(value<<5 | param)

	case OpJMP:
		m.tracer.name(OpJMP)
		m.jump(param)
		return NoError

	case OpJMB:
		value, errno := m.pop()
		if errno != NoError {
			return errno
		}
		m.tracer.name(OpJMB)
		m.jump(-value)
		return NoError

	case OpCAL:
		return m.execCall(param)

	case OpRET:
		m.tracer.name(OpRET)
		return m.execReturn()

	case OpLDV, OpSTV:
		return m.execVariable(in.Op, param)

	case OpLDC:
		index, errno := m.pop()
		if errno != NoError {
			return errno
		}
		if index < 0 || int(index) >= m.exe.ConstantsCount() {
			return NoConstant
		}
		value := widen(m.exe.Constant(int(index)), m.constSign)
		m.tracer.load(OpLDC, int(index), value)
		return m.push(value)

	case OpADD, OpSUB, OpMUL, OpDIV, OpPWR, OpAND, OpIOR, OpXOR:
		return m.execArith(in.Op)

	case OpBZE, OpBNZ, OpBEQ, OpBNE, OpBGT, OpBLT, OpBGE, OpBLE:
		return m.execBranch(in.Op)

	case OpNEG, OpINV, OpINC, OpDEC:
		value, errno := m.pop()
		if errno != NoError {
			return errno
		}
		m.tracer.name(in.Op)
		switch in.Op {
		case OpNEG:
			value = -value
		case OpINV:
			value = ^value
		case OpINC:
			value++
		default:
			value--
		}
		return m.push(value)

	case OpPOP:
		m.tracer.pop(param)
		for i := param; i > 0; i-- {
			if _, errno := m.pop(); errno != NoError {
				return errno
			}
		}
		return NoError

	case OpSLP:
		value, errno := m.pop()
		if errno != NoError {
			return errno
		}
		m.tracer.slp(value)
		m.timer = m.clock()
		m.timeout = uint32(value)
		return NoError

	default:
		// SKZ, SNZ, SKN, SNN: reserved, executed as no-ops
		m.tracer.name(in.Op)
		return NoError
	}
}

// execArith pops value then second and pushes value OP second.
func (m *VM) execArith(op Op) Errno {
	value, errno := m.pop()
	if errno != NoError {
		return errno
	}
	second, errno := m.pop()
	if errno != NoError {
		return errno
	}
	m.tracer.name(op)
	switch op {
	case OpADD:
		value += second
	case OpSUB:
		value -= second
	case OpMUL:
		value *= second
	case OpDIV:
		// truncated two's-complement division; a zero divisor yields 0
		// since the taxonomy carries no trap code
		if second == 0 {
			value = 0
		} else {
			value /= second
		}
	case OpPWR:
		if second <= 0 {
			value = 1
		} else {
			base := value
			for ; second > 1; second-- {
				value *= base
			}
		}
	case OpAND:
		value &= second
	case OpIOR:
		value |= second
	default:
		value ^= second
	}
	return m.push(value)
}

// execBranch pops the displacement then the test operand. Comparison
// branches pop a third operand and test second-third. Taken branches use
// the shared displacement convention.
func (m *VM) execBranch(op Op) Errno {
	value, errno := m.pop()
	if errno != NoError {
		return errno
	}
	second, errno := m.pop()
	if errno != NoError {
		return errno
	}
	if op >= OpBEQ {
		third, errno := m.pop()
		if errno != NoError {
			return errno
		}
		second -= third
	}
	m.tracer.name(op)
	var taken bool
	switch op {
	case OpBZE, OpBEQ:
		taken = second == 0
	case OpBNZ, OpBNE:
		taken = second != 0
	case OpBGT:
		taken = second > 0
	case OpBLT:
		taken = second < 0
	case OpBGE:
		taken = second >= 0
	default:
		taken = second <= 0
	}
	if taken {
		m.jump(value)
	} else {
		m.tracer.notTaken()
	}
	return NoError
}

// execVariable handles LDV and STV against the active frame's combined
// arguments+locals region.
func (m *VM) execVariable(op Op, param int32) Errno {
	var limit int
	if index := m.currentFunction(); index < 0 {
		limit = m.exe.MainVariablesCount()
	} else {
		if errno := m.validFunctionIndex(int32(index)); errno != NoError {
			return errno
		}
		fun := m.exe.Function(index)
		limit = int(fun.ArgumentsCount) + int(fun.VariablesCount)
	}
	if param < 0 || int(param) >= limit {
		return NoVariable
	}
	abs := m.currentVariablesStart() + int(param)
	if abs >= DataStackSize {
		return VarOutOfStack
	}
	if op == OpSTV {
		value, errno := m.pop()
		if errno != NoError {
			return errno
		}
		m.tracer.store(abs, value)
		m.dataStack[abs] = value
		return NoError
	}
	m.tracer.load(OpLDV, abs, m.dataStack[abs])
	return m.push(m.dataStack[abs])
}

// execCall implements CAL for both user functions and built-ins.
func (m *VM) execCall(param int32) Errno {
	if errno := m.validFunctionIndex(param); errno != NoError {
		return errno
	}
	if m.callTop >= CallStackSize {
		return CallStackOverflow
	}
	fun := m.exe.Function(int(param))

	args := int(fun.ArgumentsCount)
	if fun.IsVariadic {
		k, errno := m.pop()
		if errno != NoError {
			return errno
		}
		if k < 0 || args+int(k) > 0xFF {
			return VariadicSize
		}
		args += int(k)
	}
	m.tracer.cal(fun, args)

	if m.dataTop < args {
		return ArgOutOfStack
	}
	// arguments are already on the stack; the callee still needs headroom
	// for its locals and its returns
	rest := DataStackSize - m.dataTop
	if rest < int(fun.VariablesCount) {
		return VarOutOfStack
	}
	if rest < int(fun.ReturnsCount) {
		return ReturnOutOfStack
	}
	start := m.dataTop - args

	if fun.IsBuiltIn {
		if int(fun.Address) >= len(m.builtins) {
			return BuiltinNoFunction
		}
		// built-ins share the argument window for their returns and do
		// not occupy a frame
		width := args
		if int(fun.ReturnsCount) > width {
			width = int(fun.ReturnsCount)
		}
		m.builtins[fun.Address](m, m.dataStack[start:start+width], args)
		m.dataTop = start + int(fun.ReturnsCount)
		return NoError
	}

	frame := &m.callStack[m.callTop]
	m.callTop++
	frame.FunctionIndex = uint8(param)
	frame.VariablesStart = uint8(start)
	frame.ArgumentsCount = uint8(args)
	for i := 0; i < int(fun.VariablesCount); i++ {
		if errno := m.push(0); errno != NoError {
			return errno
		}
	}
	frame.ReturnAddress = m.pc
	m.pc = fun.Address
	return NoError
}

// execReturn implements RET; with no live user frame it reports
// MainReturn, the normal termination signal.
func (m *VM) execReturn() Errno {
	index := m.currentFunction()
	if index < 0 || m.validFunctionIndex(int32(index)) != NoError {
		return MainReturn
	}
	fun := m.exe.Function(index)
	stackStart := m.currentVariablesStart()
	returns := int(fun.ReturnsCount)
	returnsStart := m.dataTop - returns

	m.callTop--
	frame := &m.callStack[m.callTop]
	// a callee that left unbalanced scratch on the stack smashed it
	if stackStart+int(frame.ArgumentsCount)+int(fun.VariablesCount) != returnsStart {
		return DataStackSmashed
	}
	copy(m.dataStack[stackStart:stackStart+returns], m.dataStack[returnsStart:returnsStart+returns])
	m.dataTop = stackStart + returns
	m.pc = frame.ReturnAddress
	m.tracer.ret(m.pc, int(frame.ArgumentsCount)+int(fun.VariablesCount), returns)
	return NoError
}
