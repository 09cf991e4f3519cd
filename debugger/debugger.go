// Package debugger implements the interactive command layer described
// in §6's "debugger breakpoint pattern": a breakpoint manager, a
// watchpoint manager, a small expression evaluator, and a command
// dispatcher driving a vm.VM one instruction (or one run) at a time.
// It is a host-side concern layered entirely on the VM's public API —
// nothing here reaches into interpreter internals.
package debugger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevm/bee/isa"
	"github.com/beevm/bee/vm"
)

// Debugger holds the state of one interactive debugging session
// against a single vm.VM.
type Debugger struct {
	VM *vm.VM

	// Reload resets the VM to its initial loaded state (entry PC, empty
	// stacks, the original code image) for the run/reset commands. It
	// is supplied by the host program that built the VM in the first
	// place (cmd/beedebug's loader call) since the debugger itself has
	// no notion of how a program got loaded.
	Reload func() error

	// LoadFile loads a new program from path, replacing the current
	// one, for the interactive load command. Nil means unsupported.
	LoadFile func(path string) error

	Breakpoints *BreakpointManager
	Watchpoints *WatchpointManager
	History     *CommandHistory
	Evaluator   *ExpressionEvaluator

	// Recorder is non-nil while a "record start"/"record stop" session
	// is in progress (see record.go).
	Recorder *Recorder

	Running           bool
	StepMode          StepMode
	StepOverCallDepth int
	StepOverPC        uint64

	Symbols   map[string]uint64
	SourceMap map[uint64]string

	LastCommand string

	Output strings.Builder
}

type StepMode int

const (
	StepNone StepMode = iota
	StepSingle
	StepOver
	StepOut
)

func NewDebugger(machine *vm.VM) *Debugger {
	return &Debugger{
		VM:          machine,
		Breakpoints: NewBreakpointManager(),
		Watchpoints: NewWatchpointManager(),
		History:     NewCommandHistory(),
		Evaluator:   NewExpressionEvaluator(),
		Symbols:     make(map[string]uint64),
		SourceMap:   make(map[uint64]string),
	}
}

func (d *Debugger) LoadSymbols(symbols map[string]uint64) {
	d.Symbols = symbols
}

func (d *Debugger) LoadSourceMap(sourceMap map[uint64]string) {
	d.SourceMap = sourceMap
}

// ResolveAddress resolves a symbol name, or parses a hex (0x...),
// binary (0b...), or decimal literal address.
func (d *Debugger) ResolveAddress(addrStr string) (uint64, error) {
	if addr, exists := d.Symbols[addrStr]; exists {
		return addr, nil
	}

	lower := strings.ToLower(addrStr)
	switch {
	case strings.HasPrefix(lower, "0x"):
		v, err := strconv.ParseUint(lower[2:], 16, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid address: %s", addrStr)
		}
		return v, nil
	case strings.HasPrefix(lower, "0b"):
		v, err := strconv.ParseUint(lower[2:], 2, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid address: %s", addrStr)
		}
		return v, nil
	default:
		v, err := strconv.ParseUint(addrStr, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid address: %s", addrStr)
		}
		return v, nil
	}
}

// ExecuteCommand parses and runs one command line, with empty input
// repeating the last command (gdb's convention, handy for step/next).
func (d *Debugger) ExecuteCommand(cmdLine string) error {
	cmdLine = strings.TrimSpace(cmdLine)
	if cmdLine == "" {
		cmdLine = d.LastCommand
	}

	if cmdLine != "" {
		d.History.AddAt(cmdLine, d.VM.Reg.PC)
		d.LastCommand = cmdLine
	}

	parts := strings.Fields(cmdLine)
	if len(parts) == 0 {
		return nil
	}

	return d.handleCommand(strings.ToLower(parts[0]), parts[1:])
}

func (d *Debugger) handleCommand(cmd string, args []string) error {
	switch cmd {
	case "run", "r":
		return d.cmdRun(args)
	case "continue", "c":
		return d.cmdContinue(args)
	case "step", "s", "si":
		return d.cmdStep(args)
	case "next", "n":
		return d.cmdNext(args)
	case "finish", "fin":
		return d.cmdFinish(args)

	case "break", "b":
		return d.cmdBreak(args)
	case "tbreak", "tb":
		return d.cmdTBreak(args)
	case "delete", "d":
		return d.cmdDelete(args)
	case "enable":
		return d.cmdEnable(args)
	case "disable":
		return d.cmdDisable(args)

	case "watch", "w":
		return d.cmdWatch(args)
	case "rwatch":
		return d.cmdRWatch(args)
	case "awatch":
		return d.cmdAWatch(args)

	case "print", "p":
		return d.cmdPrint(args)
	case "x":
		return d.cmdExamine(args)
	case "info", "i":
		return d.cmdInfo(args)
	case "backtrace", "bt", "where":
		return d.cmdBacktrace(args)
	case "list", "l":
		return d.cmdList(args)

	case "set":
		return d.cmdSet(args)

	case "load":
		return d.cmdLoad(args)
	case "reset":
		return d.cmdReset(args)

	case "record":
		return d.cmdRecord(args)

	case "history":
		return d.cmdHistory(args)

	case "help", "h", "?":
		return d.cmdHelp(args)

	default:
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmd)
	}
}

// ShouldBreak reports whether execution should pause before the
// instruction at the current PC runs: the debugger's own software
// breakpoints are checked here, ahead of Step, distinct from the VM's
// native break instruction (which Step itself reports via StopBreak).
func (d *Debugger) ShouldBreak() (bool, string) {
	pc := d.VM.Reg.PC

	switch d.StepMode {
	case StepSingle:
		d.StepMode = StepNone
		return true, "single step"

	case StepOver:
		if pc == d.StepOverPC {
			d.StepMode = StepNone
			return true, "step over complete"
		}

	case StepOut:
		// The current function has returned once the return stack is
		// shallower than it was when finish was issued.
		if int(d.VM.Reg.SP) < d.StepOverCallDepth {
			d.StepMode = StepNone
			return true, "step out complete"
		}
	}

	if bp := d.Breakpoints.GetBreakpoint(pc); bp != nil {
		if !bp.Enabled {
			return false, ""
		}

		if bp.Condition != "" {
			result, err := d.Evaluator.Evaluate(bp.Condition, d.VM, d.Symbols)
			if err != nil {
				return true, fmt.Sprintf("breakpoint %d (condition error: %v)", bp.ID, err)
			}
			if !result {
				return false, ""
			}
		}

		hit := d.Breakpoints.ProcessHit(pc)
		return true, fmt.Sprintf("breakpoint %d", hit.ID)
	}

	if op, ok := d.DecodedOpcodeAt(pc); ok {
		if bp := d.Breakpoints.MatchOpcode(op); bp != nil {
			if bp.Condition != "" {
				result, err := d.Evaluator.Evaluate(bp.Condition, d.VM, d.Symbols)
				if err != nil {
					return true, fmt.Sprintf("breakpoint %d (condition error: %v)", bp.ID, err)
				}
				if !result {
					return false, ""
				}
			}
			hit := d.Breakpoints.ProcessOpcodeHit(op)
			return true, fmt.Sprintf("breakpoint %d (opcode %s)", hit.ID, op)
		}
	}

	if wp, changed := d.Watchpoints.CheckWatchpoints(d.VM); wp != nil && changed {
		return true, fmt.Sprintf("watchpoint %d: %s", wp.ID, wp.Expression)
	}

	return false, ""
}

// DecodedOpcodeAt reports the core Opcode the instruction at addr
// decodes to, for matching opcode breakpoints. Exported so API-layer
// code can identify which opcode breakpoint just fired. Only KindInsn words
// carry an Opcode; every other Kind (and a failed memory load) reports
// ok=false so callers never match against a meaningless zero value.
func (d *Debugger) DecodedOpcodeAt(addr uint64) (isa.Opcode, bool) {
	word, err := d.VM.Memory.LoadWord(addr)
	if err != nil {
		return 0, false
	}
	inst := isa.Decode(d.VM.Width, word)
	if inst.Kind != isa.KindInsn {
		return 0, false
	}
	return inst.Op, true
}

func (d *Debugger) GetOutput() string {
	output := d.Output.String()
	d.Output.Reset()
	return output
}

func (d *Debugger) Printf(format string, args ...interface{}) {
	d.Output.WriteString(fmt.Sprintf(format, args...))
}

func (d *Debugger) Println(args ...interface{}) {
	d.Output.WriteString(fmt.Sprintln(args...))
}

// SetStepOver arms step-over by decoding the instruction at PC: a call
// (calli, or insn call) steps over to the following instruction;
// anything else is just a single step, since there is no call to step
// over.
func (d *Debugger) SetStepOver() {
	word, err := d.VM.Memory.LoadWord(d.VM.Reg.PC)
	if err != nil {
		d.StepMode = StepSingle
		d.Running = true
		return
	}

	inst := isa.Decode(d.VM.Width, word)
	isCall := inst.Kind == isa.KindCalli || (inst.Kind == isa.KindInsn && inst.Op == isa.OpCall)

	if isCall {
		d.StepOverPC = d.VM.Reg.PC + uint64(d.VM.Width.Bytes())
		d.StepMode = StepOver
	} else {
		d.StepMode = StepSingle
	}
	d.Running = true
}

func (d *Debugger) SetStepOut() {
	d.StepOverCallDepth = int(d.VM.Reg.SP)
	d.StepMode = StepOut
	d.Running = true
}
