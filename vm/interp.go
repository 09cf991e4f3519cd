package vm

import "github.com/beevm/bee/isa"

// stopSignal is returned internally by opBreak to unwind out of the
// current Step without going through the THROW path — §7 is explicit
// that BREAK is "not used by the interpreter's throw path".
type stopSignal struct{ reason StopReason }

func (s *stopSignal) Error() string { return "bee: stop: " + s.reason.String() }

// Fault constructs a throwable error at the VM's current PC. Exported
// so the trap bridge (package trap) can report host-service failures
// through the same THROW mechanism as internal faults, per §7's "Trap-
// bridge errors follow the same path."
func (m *VM) Fault(code Code) error {
	return m.fault(code)
}

// wordBytes returns W/8 for the VM's configured width.
func (m *VM) wordBytes() uint64 {
	return uint64(m.Width.Bytes())
}

func (m *VM) checkAligned(addr uint64) error {
	if addr%m.wordBytes() != 0 {
		return m.fault(ErrUnaligned)
	}
	return nil
}

// Run executes instructions until a halt condition (§7): an unhandled
// THROW, a BREAK instruction, or the host's event-tick hook requesting
// a stop. It returns the reason execution stopped.
func (m *VM) Run() (StopReason, error) {
	for {
		reason, stopped, err := m.step()
		if err != nil {
			return 0, err
		}
		if stopped {
			return reason, nil
		}
		if m.Hook != nil {
			if stop := m.Hook(m); stop {
				return StopHook, nil
			}
		}
	}
}

// Step executes exactly one instruction and reports whether it halted
// the machine. It is exported for the single-step debugger oracle,
// which drives the interpreter one instruction at a time under its own
// control rather than calling Run.
func (m *VM) Step() (reason StopReason, halted bool, err error) {
	return m.step()
}

func (m *VM) step() (StopReason, bool, error) {
	oldPC := m.Reg.PC
	if err := m.checkAligned(oldPC); err != nil {
		return m.dispatchFault(err)
	}

	word, memErr := m.Memory.LoadWord(oldPC)
	if memErr != nil {
		return 0, false, memErr // host/loader bug: PC points outside any mapped region
	}
	m.Reg.PC = oldPC + m.wordBytes()

	inst := isa.Decode(m.Width, word)
	m.instructionCount++

	execErr := m.execute(oldPC, inst)

	if m.Tracer != nil {
		m.Tracer.Trace(TraceRecord{
			Seq: m.instructionCount, OldPC: oldPC, NewPC: m.Reg.PC,
			Word: word, Inst: inst, Err: execErr,
		})
	}

	if execErr == nil {
		return 0, false, nil
	}
	return m.dispatchFault(execErr)
}

// dispatchFault routes an error returned by execute into the THROW
// mechanism, a BREAK stop, or (for a non-VM error, i.e. a host/loader
// bug reaching outside the VM's own error taxonomy) straight back to
// the caller of Run.
func (m *VM) dispatchFault(err error) (StopReason, bool, error) {
	if sig, ok := err.(*stopSignal); ok {
		return sig.reason, true, nil
	}
	code, ok := AsFault(err)
	if !ok {
		return 0, false, err
	}
	halted, raiseErr := m.raise(code)
	if raiseErr != nil {
		return 0, false, raiseErr
	}
	if halted {
		return StopHalt, true, nil
	}
	return 0, false, nil
}

// raise implements the unified unwinding path of §4.4/§7: every runtime
// fault, and every explicit `throw`, funnels through here. If no
// handler is installed the VM halts with ExitCode = code; otherwise
// execution resumes at the handler, with code (or 0, for a successful
// `ret` crossing — see opRet) left on top of the data stack.
func (m *VM) raise(code Code) (halted bool, err error) {
	if m.Reg.HandlerSP == 0 {
		m.ExitCode = int64(code)
		return true, nil
	}
	if m.Reg.DP < m.Reg.Dsize {
		if err := m.pushD(m.Width.Truncate(uint64(int64(code)))); err != nil {
			return false, err
		}
	}
	m.Reg.SP = m.Reg.HandlerSP
	ra, err := m.popS()
	if err != nil {
		return false, err
	}
	oldHandlerSP, err := m.popS()
	if err != nil {
		return false, err
	}
	m.Reg.HandlerSP = oldHandlerSP
	m.Reg.PC = ra
	return false, nil
}

func (m *VM) execute(oldPC uint64, inst isa.Instruction) error {
	step := m.wordBytes()

	switch inst.Kind {
	case isa.KindPushi:
		return m.pushD(m.Width.Truncate(uint64(inst.Imm)))

	case isa.KindPushreli:
		addr := uint64(int64(oldPC) + inst.Imm*int64(step))
		return m.pushD(m.Width.Truncate(addr))

	case isa.KindCalli:
		addr := uint64(int64(oldPC) + inst.Imm*int64(step))
		if err := m.checkAligned(addr); err != nil {
			return err
		}
		if err := m.pushS(m.Reg.PC); err != nil {
			return err
		}
		m.Reg.PC = addr
		return nil

	case isa.KindJumpi:
		addr := uint64(int64(oldPC) + inst.Imm*int64(step))
		if err := m.checkAligned(addr); err != nil {
			return err
		}
		m.Reg.PC = addr
		return nil

	case isa.KindJumpzi:
		flag, err := m.popD()
		if err != nil {
			return err
		}
		if flag != 0 {
			return nil
		}
		addr := uint64(int64(oldPC) + inst.Imm*int64(step))
		if err := m.checkAligned(addr); err != nil {
			return err
		}
		m.Reg.PC = addr
		return nil

	case isa.KindTrap:
		if m.Trap == nil {
			return m.fault(ErrInvalidLibrary)
		}
		return m.Trap.Invoke(m, inst.TrapLibrary)

	case isa.KindInsn:
		return m.executeInsn(inst.Op)

	default:
		return m.fault(ErrInvalidOpcode)
	}
}

func (m *VM) executeInsn(op isa.Opcode) error {
	w := m.Width
	switch op {
	case isa.OpNop:
		return nil

	// --- bitwise / arithmetic -------------------------------------
	case isa.OpNot:
		return m.unary(func(a uint64) uint64 { return ^a })
	case isa.OpAnd:
		return m.binary(func(a, b uint64) uint64 { return a & b })
	case isa.OpOr:
		return m.binary(func(a, b uint64) uint64 { return a | b })
	case isa.OpXor:
		return m.binary(func(a, b uint64) uint64 { return a ^ b })
	case isa.OpNeg:
		return m.unary(func(a uint64) uint64 { return -a })
	case isa.OpAdd:
		return m.binary(func(a, b uint64) uint64 { return a + b })
	case isa.OpMul:
		return m.binary(func(a, b uint64) uint64 { return a * b })

	case isa.OpLshift:
		return m.shift(func(v uint64, n uint64) uint64 {
			if n >= uint64(w) {
				return 0
			}
			return v << n
		})
	case isa.OpRshift:
		return m.shift(func(v uint64, n uint64) uint64 {
			if n >= uint64(w) {
				return 0
			}
			return v >> n
		})
	case isa.OpArshift:
		return m.shift(func(v uint64, n uint64) uint64 {
			signed := w.SignedValue(v)
			return uint64(signed >> n)
		})

	// --- comparisons -----------------------------------------------
	case isa.OpEq:
		return m.compare(func(a, b int64) bool { return a == b }, false)
	case isa.OpLt:
		return m.compare(func(a, b int64) bool { return b < a }, true)
	case isa.OpUlt:
		return m.compareUnsigned(func(a, b uint64) bool { return b < a })

	// --- division ----------------------------------------------------
	case isa.OpDivmod:
		return m.divmod()
	case isa.OpUdivmod:
		return m.udivmod()

	// --- stack manipulation -----------------------------------------
	case isa.OpPop:
		_, err := m.popD()
		return err
	case isa.OpDup:
		n, err := m.popD()
		if err != nil {
			return err
		}
		v, err := m.peekD(n)
		if err != nil {
			return err
		}
		return m.pushD(v)
	case isa.OpSet:
		n, err := m.popD()
		if err != nil {
			return err
		}
		v, err := m.popD()
		if err != nil {
			return err
		}
		return m.setD(n, v)
	case isa.OpSwap:
		n, err := m.popD()
		if err != nil {
			return err
		}
		top, err := m.peekD(0)
		if err != nil {
			return err
		}
		other, err := m.peekD(n + 1)
		if err != nil {
			return err
		}
		if err := m.setD(0, other); err != nil {
			return err
		}
		return m.setD(n+1, top)

	// --- control ------------------------------------------------------
	case isa.OpJump:
		addr, err := m.popD()
		if err != nil {
			return err
		}
		if err := m.checkAligned(addr); err != nil {
			return err
		}
		m.Reg.PC = addr
		return nil
	case isa.OpJumpz:
		addr, err := m.popD()
		if err != nil {
			return err
		}
		flag, err := m.popD()
		if err != nil {
			return err
		}
		if flag != 0 {
			return nil
		}
		if err := m.checkAligned(addr); err != nil {
			return err
		}
		m.Reg.PC = addr
		return nil
	case isa.OpCall:
		addr, err := m.popD()
		if err != nil {
			return err
		}
		if err := m.checkAligned(addr); err != nil {
			return err
		}
		if err := m.pushS(m.Reg.PC); err != nil {
			return err
		}
		m.Reg.PC = addr
		return nil
	case isa.OpRet:
		return m.opRet()

	// --- memory -------------------------------------------------------
	case isa.OpLoad:
		return m.loadOp(m.Width.Bytes())
	case isa.OpStore:
		return m.storeOp(m.Width.Bytes())
	case isa.OpLoad1:
		return m.loadOp(1)
	case isa.OpStore1:
		return m.storeOp(1)
	case isa.OpLoad2:
		return m.loadOp(2)
	case isa.OpStore2:
		return m.storeOp(2)
	case isa.OpLoad4:
		return m.loadOp(4)
	case isa.OpStore4:
		return m.storeOp(4)

	case isa.OpLoadIA:
		return m.loadIncDec(true, true)
	case isa.OpLoadDA:
		return m.loadIncDec(false, true)
	case isa.OpLoadIB:
		return m.loadIncDec(true, false)
	case isa.OpLoadDB:
		return m.loadIncDec(false, false)
	case isa.OpStoreIA:
		return m.storeIncDec(true, true)
	case isa.OpStoreDA:
		return m.storeIncDec(false, true)
	case isa.OpStoreIB:
		return m.storeIncDec(true, false)
	case isa.OpStoreDB:
		return m.storeIncDec(false, false)

	// --- cross-stack ----------------------------------------------------
	case isa.OpPushs:
		v, err := m.popD()
		if err != nil {
			return err
		}
		return m.pushS(v)
	case isa.OpPops:
		v, err := m.popS()
		if err != nil {
			return err
		}
		return m.pushD(v)
	case isa.OpDups:
		v, err := m.peekS(0)
		if err != nil {
			return err
		}
		return m.pushD(v)

	// --- catch / throw --------------------------------------------------
	case isa.OpCatch:
		return m.opCatch()
	case isa.OpThrow:
		return m.opThrow()

	// --- misc -------------------------------------------------------------
	case isa.OpBreak:
		return &stopSignal{reason: StopBreak}
	case isa.OpWordBytes:
		return m.pushD(uint64(m.Width.Bytes()))
	case isa.OpGetSsize:
		return m.pushD(m.Reg.Ssize)
	case isa.OpGetSp:
		return m.pushD(m.Reg.SP)
	case isa.OpSetSp:
		v, err := m.popD()
		if err != nil {
			return err
		}
		m.Reg.SP = v
		return nil
	case isa.OpGetDsize:
		return m.pushD(m.Reg.Dsize)
	case isa.OpGetDp:
		return m.pushD(m.Reg.DP)
	case isa.OpSetDp:
		v, err := m.popD()
		if err != nil {
			return err
		}
		m.Reg.DP = v
		return nil
	case isa.OpGetHandlerSp:
		return m.pushD(m.Reg.HandlerSP)

	default:
		return m.fault(ErrInvalidOpcode)
	}
}

func (m *VM) unary(f func(uint64) uint64) error {
	a, err := m.popD()
	if err != nil {
		return err
	}
	return m.pushD(m.Width.Truncate(f(a)))
}

// binary pops b (top) then a (second-from-top) and pushes f(a, b).
func (m *VM) binary(f func(a, b uint64) uint64) error {
	b, err := m.popD()
	if err != nil {
		return err
	}
	a, err := m.popD()
	if err != nil {
		return err
	}
	return m.pushD(m.Width.Truncate(f(a, b)))
}

// shift pops n (top) then v (second-from-top) and pushes f(v, n).
func (m *VM) shift(f func(v, n uint64) uint64) error {
	n, err := m.popD()
	if err != nil {
		return err
	}
	v, err := m.popD()
	if err != nil {
		return err
	}
	return m.pushD(m.Width.Truncate(f(v, n)))
}

// compare pops b (top) then a (second-from-top) and pushes 1 if
// f(signed(a), signed(b)) holds, else 0. The trailing bool is unused;
// OpLt passes true to mark that lt is specified against the
// second-from-top operand (§4.4).
func (m *VM) compare(f func(a, b int64) bool, _ bool) error {
	b, err := m.popD()
	if err != nil {
		return err
	}
	a, err := m.popD()
	if err != nil {
		return err
	}
	if f(m.Width.SignedValue(a), m.Width.SignedValue(b)) {
		return m.pushD(1)
	}
	return m.pushD(0)
}

func (m *VM) compareUnsigned(f func(a, b uint64) bool) error {
	b, err := m.popD()
	if err != nil {
		return err
	}
	a, err := m.popD()
	if err != nil {
		return err
	}
	if f(m.Width.Truncate(a), m.Width.Truncate(b)) {
		return m.pushD(1)
	}
	return m.pushD(0)
}

func (m *VM) divmod() error {
	divisor, err := m.popD()
	if err != nil {
		return err
	}
	dividend, err := m.popD()
	if err != nil {
		return err
	}
	sDividend := m.Width.SignedValue(dividend)
	sDivisor := m.Width.SignedValue(divisor)

	var quot, rem int64
	switch {
	case sDivisor == 0:
		quot, rem = 0, sDividend
	case sDividend == m.Width.MinSigned() && sDivisor == -1:
		quot, rem = m.Width.MinSigned(), 0
	default:
		quot = sDividend / sDivisor
		rem = sDividend % sDivisor
	}
	if err := m.pushD(m.Width.Truncate(uint64(quot))); err != nil {
		return err
	}
	return m.pushD(m.Width.Truncate(uint64(rem)))
}

func (m *VM) udivmod() error {
	divisor, err := m.popD()
	if err != nil {
		return err
	}
	dividend, err := m.popD()
	if err != nil {
		return err
	}
	divisor = m.Width.Truncate(divisor)
	dividend = m.Width.Truncate(dividend)

	var quot, rem uint64
	if divisor == 0 {
		quot, rem = 0, dividend
	} else {
		quot, rem = dividend/divisor, dividend%divisor
	}
	if err := m.pushD(quot); err != nil {
		return err
	}
	return m.pushD(rem)
}

func (m *VM) loadOp(size int) error {
	addr, err := m.popD()
	if err != nil {
		return err
	}
	v, merr := m.Memory.Load(addr, size)
	if merr != nil {
		return m.fault(ErrUnaligned)
	}
	return m.pushD(v)
}

func (m *VM) storeOp(size int) error {
	addr, err := m.popD()
	if err != nil {
		return err
	}
	v, err := m.popD()
	if err != nil {
		return err
	}
	if merr := m.Memory.Store(addr, size, v); merr != nil {
		return m.fault(ErrUnaligned)
	}
	return nil
}

// loadIncDec implements the four word-granular incrementing/decrementing
// load variants. inc selects +W/8 vs -W/8; loadAtOriginal selects
// whether the load happens at the original address (load_ia/load_da) or
// at the already-adjusted one (load_ib/load_db) — §9's preserved
// asymmetry.
func (m *VM) loadIncDec(inc, loadAtOriginal bool) error {
	addr, err := m.popD()
	if err != nil {
		return err
	}
	step := m.wordBytes()
	var newAddr uint64
	if inc {
		newAddr = addr + step
	} else {
		newAddr = addr - step
	}
	loadAddr := newAddr
	if loadAtOriginal {
		loadAddr = addr
	}
	v, merr := m.Memory.LoadWord(loadAddr)
	if merr != nil {
		return m.fault(ErrUnaligned)
	}
	if err := m.pushD(m.Width.Truncate(newAddr)); err != nil {
		return err
	}
	return m.pushD(v)
}

func (m *VM) storeIncDec(inc, storeAtOriginal bool) error {
	addr, err := m.popD()
	if err != nil {
		return err
	}
	v, err := m.popD()
	if err != nil {
		return err
	}
	step := m.wordBytes()
	var newAddr uint64
	if inc {
		newAddr = addr + step
	} else {
		newAddr = addr - step
	}
	storeAddr := newAddr
	if storeAtOriginal {
		storeAddr = addr
	}
	if merr := m.Memory.StoreWord(storeAddr, v); merr != nil {
		return m.fault(ErrUnaligned)
	}
	return m.pushD(m.Width.Truncate(newAddr))
}

// opCatch installs an exception handler. The cell pushed for the
// eventual branch target is `addr` itself, not a freshly-captured PC:
// this is what lets a plain `ret` that unwinds back to handler_sp reach
// the same destination a THROW would (§8's matching-ret property) — see
// DESIGN.md for why this reading was chosen over the literal "push
// current pc" wording.
func (m *VM) opCatch() error {
	addr, err := m.popD()
	if err != nil {
		return err
	}
	if err := m.checkAligned(addr); err != nil {
		return err
	}
	if err := m.pushS(m.Reg.HandlerSP); err != nil {
		return err
	}
	if err := m.pushS(addr); err != nil {
		return err
	}
	m.Reg.HandlerSP = m.Reg.SP
	return nil
}

func (m *VM) opThrow() error {
	v, err := m.popD()
	var code Code
	if err != nil {
		if c, ok := AsFault(err); ok && c == ErrStackUnderflow {
			code = ErrStackUnderflow
		} else {
			return err
		}
	} else {
		code = Code(m.Width.SignedValue(v))
	}
	halted, err := m.raise(code)
	if err != nil {
		return err
	}
	if halted {
		return &stopSignal{reason: StopHalt}
	}
	return nil
}

func (m *VM) opRet() error {
	ra, err := m.popS()
	if err != nil {
		return err
	}
	if err := m.checkAligned(ra); err != nil {
		return err
	}
	if m.Reg.SP < m.Reg.HandlerSP {
		oldHandlerSP, err := m.popS()
		if err != nil {
			return err
		}
		m.Reg.HandlerSP = oldHandlerSP
		if err := m.pushD(0); err != nil {
			return err
		}
	}
	m.Reg.PC = ra
	return nil
}
