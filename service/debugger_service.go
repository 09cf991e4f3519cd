// Package service provides a thread-safe facade over a debugger.Debugger
// and its underlying vm.VM, grounded on the teacher's DebuggerService:
// the same single-mutex-guards-everything design (shared by the CLI and
// the HTTP API layer above it), trimmed of the Wails-only GUI plumbing
// (context-scoped event emission, stdin piping for an interactive guest
// program) that has no home once the desktop GUI is dropped (see
// DESIGN.md).
package service

import (
	"fmt"
	"io"
	"sync"

	"github.com/beevm/bee/asm"
	"github.com/beevm/bee/debugger"
	"github.com/beevm/bee/disasm"
	"github.com/beevm/bee/loader"
	"github.com/beevm/bee/trap"
	"github.com/beevm/bee/vm"
)

const (
	maxDisassemblyCount = 1000
	maxStackCount       = 1000
)

// DebuggerService owns one VM/debugger pair across its program's
// lifetime: load, run, inspect, reload.
//
// Lock ordering: s.mu is always acquired before any call into the
// Debugger, never the reverse, matching the teacher's own convention
// for this wrapper.
type DebuggerService struct {
	mu sync.RWMutex

	width     vm.Width
	bigEndian bool
	fsroot    string

	vm     *vm.VM
	dbg    *debugger.Debugger
	prog   *asm.Program
	source string

	// stdout, when set via SetStdout, is wired into every subsequently
	// (re)loaded program's trap.Libc so guest fd-1 writes are captured
	// by the caller (the API server's per-session event stream) instead
	// of going to the host process's real stdout.
	stdout io.Writer

	steps uint64
}

// SetStdout directs every future LoadProgram/Reload's guest fd-1 writes
// to w instead of the process's real stdout. Takes effect immediately
// if a program is already loaded.
func (s *DebuggerService) SetStdout(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stdout = w
	if s.vm != nil {
		if lc, ok := s.vm.Trap.(*trap.Libc); ok {
			lc.Stdout = w
		}
	}
}

// NewDebuggerService creates an unloaded service for the given instance
// shape. Call LoadProgram before Step/Continue/etc.
func NewDebuggerService(width vm.Width, bigEndian bool, fsroot string) *DebuggerService {
	return &DebuggerService{width: width, bigEndian: bigEndian, fsroot: fsroot}
}

// LoadProgram assembles source and replaces whatever program was
// previously loaded, mirroring the teacher's LoadProgram but driven by
// asm.Assembler instead of re-walking parser directives.
func (s *DebuggerService) LoadProgram(source string, argv []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := asm.NewAssembler(s.width, s.bigEndian)
	prog, err := a.Assemble(source, "session.bee")
	if err != nil {
		return err
	}

	machine := vm.New(s.width, s.bigEndian)
	image, err := loader.LoadProgram(machine, prog, loader.Options{
		StackSize:  64 * 1024,
		RStackSize: 64 * 1024,
		Argv:       argv,
	})
	if err != nil {
		return err
	}
	libc := trap.NewLibc(s.fsroot, argv, image.ArgvBase)
	if s.stdout != nil {
		libc.Stdout = s.stdout
	}
	machine.Trap = libc

	s.vm = machine
	s.prog = prog
	s.source = source
	s.steps = 0

	if s.dbg == nil {
		s.dbg = debugger.NewDebugger(machine)
	} else {
		s.dbg.VM = machine
	}
	s.dbg.LoadSymbols(prog.Symbols)

	return nil
}

// Reload re-assembles and re-loads the last source given to
// LoadProgram, for the debugger's run/reset commands.
func (s *DebuggerService) Reload() error {
	s.mu.RLock()
	source := s.source
	s.mu.RUnlock()
	if source == "" {
		return fmt.Errorf("no program loaded")
	}
	return s.LoadProgram(source, nil)
}

// Debugger returns the wrapped debugger, for callers (the interactive
// CLI/TUI binaries) that want direct command dispatch instead of this
// facade's discrete methods.
func (s *DebuggerService) Debugger() *debugger.Debugger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dbg
}

// GetRegisterState returns a snapshot of all ten named registers.
func (s *DebuggerService) GetRegisterState() (RegisterState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.vm == nil {
		return RegisterState{}, fmt.Errorf("no program loaded")
	}

	regs := make(map[string]uint64, 10)
	for i := vm.RegisterIndex(0); i.String() != "invalid"; i++ {
		regs[i.String()] = s.vm.Reg.Get(i)
	}
	return RegisterState{Registers: regs, PC: s.vm.Reg.PC, Steps: s.steps}, nil
}

// Step executes a single instruction.
func (s *DebuggerService) Step() (vm.StopReason, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vm == nil {
		return 0, false, fmt.Errorf("no program loaded")
	}
	s.steps++
	return s.vm.Step()
}

// Continue marks the session as running; the caller (the API layer's
// run goroutine, or the CLI's runUntilStop) drives RunUntilHalt.
func (s *DebuggerService) Continue() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dbg.Running = true
	s.dbg.StepMode = debugger.StepNone
}

// Pause stops a run in progress.
func (s *DebuggerService) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dbg.Running = false
}

// IsRunning reports whether a run is currently marked in progress.
func (s *DebuggerService) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dbg.Running
}

// RunUntilHalt single-steps until ShouldBreak fires or Step itself
// halts, mirroring debugger.runUntilStop (unexported, so this facade
// keeps its own copy for callers outside the debugger package).
func (s *DebuggerService) RunUntilHalt() (ExecutionState, error) {
	for {
		s.mu.Lock()
		if !s.dbg.Running {
			s.mu.Unlock()
			return StateIdle, nil
		}
		if shouldBreak, _ := s.dbg.ShouldBreak(); shouldBreak {
			s.dbg.Running = false
			s.mu.Unlock()
			return StateBreak, nil
		}
		reason, halted, err := s.vm.Step()
		s.steps++
		s.mu.Unlock()

		if err != nil {
			s.mu.Lock()
			s.dbg.Running = false
			s.mu.Unlock()
			return StateError, err
		}
		if !halted {
			continue
		}

		s.mu.Lock()
		s.dbg.Running = false
		s.mu.Unlock()

		switch reason {
		case vm.StopHalt:
			return StateHalted, nil
		case vm.StopBreak:
			return StateBreak, nil
		default:
			return StateHookStop, nil
		}
	}
}

// AddBreakpoint adds a breakpoint at address.
func (s *DebuggerService) AddBreakpoint(address uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dbg.Breakpoints.AddBreakpoint(address, false, "")
}

// RemoveBreakpoint removes the breakpoint at address.
func (s *DebuggerService) RemoveBreakpoint(address uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dbg.Breakpoints.DeleteBreakpointAt(address)
}

// GetBreakpoints returns every breakpoint.
func (s *DebuggerService) GetBreakpoints() []BreakpointInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bps := s.dbg.Breakpoints.GetAllBreakpoints()
	result := make([]BreakpointInfo, len(bps))
	for i, bp := range bps {
		info := BreakpointInfo{Address: bp.Address, OnOpcode: bp.OnOpcode, Enabled: bp.Enabled, Condition: bp.Condition}
		if bp.OnOpcode {
			info.Op = bp.Op.String()
		}
		result[i] = info
	}
	return result
}

// AddWatchpoint adds an address watchpoint of the given type
// ("read"/"write"/"readwrite").
func (s *DebuggerService) AddWatchpoint(address uint64, watchType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var wpType debugger.WatchType
	switch watchType {
	case "read":
		wpType = debugger.WatchRead
	case "write":
		wpType = debugger.WatchWrite
	case "readwrite":
		wpType = debugger.WatchReadWrite
	default:
		return fmt.Errorf("invalid watchpoint type: %s", watchType)
	}

	expr := fmt.Sprintf("[0x%x]", address)
	s.dbg.Watchpoints.AddWatchpoint(wpType, expr, address, false, 0)
	return nil
}

// RemoveWatchpoint removes a watchpoint by ID.
func (s *DebuggerService) RemoveWatchpoint(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dbg.Watchpoints.DeleteWatchpoint(id)
}

// GetWatchpoints returns every watchpoint.
func (s *DebuggerService) GetWatchpoints() []WatchpointInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wps := s.dbg.Watchpoints.GetAllWatchpoints()
	result := make([]WatchpointInfo, len(wps))
	for i, wp := range wps {
		var t string
		switch wp.Type {
		case debugger.WatchRead:
			t = "read"
		case debugger.WatchWrite:
			t = "write"
		case debugger.WatchReadWrite:
			t = "readwrite"
		}
		result[i] = WatchpointInfo{ID: wp.ID, Address: wp.Address, Type: t, Enabled: wp.Enabled}
	}
	return result
}

// GetMemory reads size bytes starting at address, returning zeros for
// any portion that falls outside a mapped region rather than failing
// the whole request.
func (s *DebuggerService) GetMemory(address, size uint64) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data := make([]byte, size)
	if s.vm == nil {
		return data
	}
	for i := uint64(0); i < size; i++ {
		b, err := s.vm.Memory.Load(address+i, 1)
		if err != nil {
			continue
		}
		data[i] = byte(b)
	}
	return data
}

// GetDisassembly disassembles count instructions starting at address.
func (s *DebuggerService) GetDisassembly(address uint64, count int) []DisassemblyLine {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.vm == nil || count <= 0 || count > maxDisassemblyCount {
		return nil
	}

	byName := make(map[uint64]string, len(s.prog.Symbols))
	for name, addr := range s.prog.Symbols {
		byName[addr] = name
	}
	lookup := func(addr uint64) (string, bool) {
		name, ok := byName[addr]
		return name, ok
	}

	read := func(addr uint64) (uint64, error) {
		return s.vm.Memory.LoadWord(addr)
	}

	lines := disasm.Range(s.width, address, count, read, lookup)
	result := make([]DisassemblyLine, len(lines))
	for i, l := range lines {
		symbol, _ := lookup(l.Addr)
		result[i] = DisassemblyLine{Address: l.Addr, Word: l.Raw, Text: l.Text, Symbol: symbol}
	}
	return result
}

// GetStack returns count data-stack entries starting offset words above
// the stack base (offset 0 is the oldest live cell).
func (s *DebuggerService) GetStack(offset, count int) []StackEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.vm == nil || count <= 0 || count > maxStackCount {
		return nil
	}

	wordBytes := uint64(s.width.Bytes())
	entries := make([]StackEntry, 0, count)
	for i := 0; i < count; i++ {
		idx := offset + i
		if idx < 0 {
			continue
		}
		addr := s.vm.Reg.D0 + uint64(idx)*wordBytes
		value, err := s.vm.Memory.LoadWord(addr)
		if err != nil {
			break
		}
		entries = append(entries, StackEntry{Address: addr, Value: value})
	}
	return entries
}

// ExecuteCommand runs one debugger-language command and returns its
// buffered output.
func (s *DebuggerService) ExecuteCommand(cmd string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dbg == nil {
		return "", fmt.Errorf("no program loaded")
	}
	err := s.dbg.ExecuteCommand(cmd)
	return s.dbg.GetOutput(), err
}

// Symbols returns the currently loaded program's symbol table.
func (s *DebuggerService) Symbols() map[string]uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.prog == nil {
		return nil
	}
	return s.prog.Symbols
}
