package vm

import "github.com/beevm/bee/isa"

// Width re-exports isa.Width so callers outside this package only need
// to import vm for the common case.
const (
	Width32 = isa.Width32
	Width64 = isa.Width64
)

// TrapHandler services TRAP instructions. The interpreter calls Invoke
// with the library code carried by the instruction; the handler is
// expected to pop its own function code and arguments from the data
// stack and push its results, exactly as a core instruction would. This
// indirection keeps the VM core free of any dependency on the concrete
// host-service bridge (package trap), avoiding an import cycle and
// letting tests install a fake.
type TrapHandler interface {
	Invoke(m *VM, library uint64) error
}

// Hook is the cooperative-scheduling event-tick callback invoked
// between every two instructions (§5). Returning true asks the
// interpreter to stop after the instruction that just completed.
type Hook func(m *VM) (stop bool)

// Tracer receives one record per executed instruction when installed.
// It is the ambient instrumentation hook described in SPEC_FULL.md; it
// must not be confused with Hook, which can request a stop — Tracer is
// purely an observer.
type Tracer interface {
	Trace(rec TraceRecord)
}

// TraceRecord describes one executed instruction for a Tracer.
type TraceRecord struct {
	Seq    uint64
	OldPC  uint64
	NewPC  uint64
	Word   uint64
	Inst   isa.Instruction
	Err    error
}

// StopReason classifies why Run returned.
type StopReason int

const (
	StopHalt StopReason = iota // orderly THROW-with-no-handler exit
	StopBreak                  // BREAK instruction (debugger breakpoint)
	StopHook                   // host's event-tick hook requested a stop
)

func (r StopReason) String() string {
	switch r {
	case StopHalt:
		return "halt"
	case StopBreak:
		return "break"
	case StopHook:
		return "hook"
	default:
		return "unknown"
	}
}

// VM is a single, self-contained Bee machine instance. All interpreter
// routines take a *VM explicitly (§9's first design note): nothing here
// is process-global, so multiple VMs can run concurrently in separate
// goroutines (never the same one at the same time — see §5).
type VM struct {
	Width isa.Width
	Reg   Registers
	Memory *Memory

	Trap TrapHandler
	Hook Hook
	Tracer Tracer

	// ExitCode is set when Run returns with StopHalt: the error code
	// thrown with no handler installed, or a user-supplied value from
	// a bare `throw` at top level.
	ExitCode int64

	instructionCount uint64
}

// New creates a zeroed VM of the given width and endianness. The host
// must still allocate memory regions and populate the stack-control
// registers and PC before calling Run (§3 Lifecycle); that plumbing is
// the loader's job, not the core's.
func New(width isa.Width, bigEndian bool) *VM {
	return &VM{
		Width:  width,
		Memory: NewMemory(width, bigEndian),
	}
}

// fault builds a *Fault at the current PC and is the single place every
// primitive in this package reports failure from.
func (m *VM) fault(code Code) *Fault {
	return newFault(code, m.Reg.PC)
}

// Snapshot returns a copy of the register file, used by the debugger
// and the trap bridge's introspection helpers so neither needs to
// duplicate register-layout knowledge (§9, Design Note on the decode
// function; PART D of SPEC_FULL.md generalizes this to registers too).
func (m *VM) Snapshot() Registers {
	return m.Reg
}
