package service

import (
	"testing"
	"time"

	"github.com/beevm/bee/vm"
)

// sampleProgram computes 5+37 on the data stack and throws the result
// as an exit code; with no handler installed this halts the VM
// cleanly (§4.4/§7), giving every test below a deterministic, short
// program to load.
const sampleProgram = `
_start:
	pushi 5
	pushi 37
	add
done:
	throw
`

func TestNewDebuggerService(t *testing.T) {
	svc := NewDebuggerService(vm.Width64, false, "")
	if svc == nil {
		t.Fatal("expected service instance, got nil")
	}
	if _, err := svc.GetRegisterState(); err == nil {
		t.Error("expected error reading register state before a program is loaded")
	}
}

func TestDebuggerService_LoadProgram(t *testing.T) {
	svc := NewDebuggerService(vm.Width64, false, "")

	if err := svc.LoadProgram(sampleProgram, nil); err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}

	regs, err := svc.GetRegisterState()
	if err != nil {
		t.Fatalf("GetRegisterState failed: %v", err)
	}
	symbols := svc.Symbols()
	if _, ok := symbols["_start"]; !ok {
		t.Error("expected _start in the loaded program's symbol table")
	}
	if regs.PC != symbols["_start"] {
		t.Errorf("expected PC at _start (0x%x) after loading a program, got 0x%x", symbols["_start"], regs.PC)
	}
}

func TestDebuggerService_Reload(t *testing.T) {
	svc := NewDebuggerService(vm.Width64, false, "")

	if err := NewDebuggerService(vm.Width64, false, "").Reload(); err == nil {
		t.Error("expected Reload on a service with no program loaded to fail")
	}

	if err := svc.LoadProgram(sampleProgram, nil); err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}
	if _, _, err := svc.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if err := svc.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	regs, err := svc.GetRegisterState()
	if err != nil {
		t.Fatalf("GetRegisterState failed: %v", err)
	}
	if regs.Steps != 0 {
		t.Errorf("expected step counter reset by Reload, got %d", regs.Steps)
	}
}

func TestDebuggerService_Step(t *testing.T) {
	svc := NewDebuggerService(vm.Width64, false, "")
	if err := svc.LoadProgram("pushi 42\nthrow\n", nil); err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}

	if _, _, err := svc.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	regs, err := svc.GetRegisterState()
	if err != nil {
		t.Fatalf("GetRegisterState failed: %v", err)
	}
	if regs.Steps != 1 {
		t.Errorf("expected Steps=1 after one Step, got %d", regs.Steps)
	}
}

func TestDebuggerService_RunUntilHalt(t *testing.T) {
	svc := NewDebuggerService(vm.Width64, false, "")
	if err := svc.LoadProgram(sampleProgram, nil); err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}

	svc.Continue()

	done := make(chan struct{})
	var state ExecutionState
	var runErr error
	go func() {
		state, runErr = svc.RunUntilHalt()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("execution timeout")
	}

	if runErr != nil {
		t.Fatalf("RunUntilHalt failed: %v", runErr)
	}
	if state != StateHalted {
		t.Errorf("expected StateHalted, got %s", state)
	}
	if svc.IsRunning() {
		t.Error("expected IsRunning false once halted")
	}
}

func TestDebuggerService_Breakpoints(t *testing.T) {
	svc := NewDebuggerService(vm.Width64, false, "")
	if err := svc.LoadProgram(sampleProgram, nil); err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}

	symbols := svc.Symbols()
	addr := symbols["done"]

	svc.AddBreakpoint(addr)
	bps := svc.GetBreakpoints()
	if len(bps) != 1 || bps[0].Address != addr {
		t.Fatalf("expected one breakpoint at 0x%x, got %v", addr, bps)
	}

	if err := svc.RemoveBreakpoint(addr); err != nil {
		t.Fatalf("RemoveBreakpoint failed: %v", err)
	}
	if len(svc.GetBreakpoints()) != 0 {
		t.Error("expected no breakpoints after removal")
	}
}

func TestDebuggerService_Watchpoints(t *testing.T) {
	svc := NewDebuggerService(vm.Width64, false, "")
	if err := svc.LoadProgram(sampleProgram, nil); err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}

	if err := svc.AddWatchpoint(0x1000, "write"); err != nil {
		t.Fatalf("AddWatchpoint failed: %v", err)
	}
	wps := svc.GetWatchpoints()
	if len(wps) != 1 || wps[0].Type != "write" {
		t.Fatalf("expected one write watchpoint, got %v", wps)
	}

	if err := svc.AddWatchpoint(0x1000, "bogus"); err == nil {
		t.Error("expected an error for an invalid watchpoint type")
	}

	if err := svc.RemoveWatchpoint(wps[0].ID); err != nil {
		t.Fatalf("RemoveWatchpoint failed: %v", err)
	}
}

func TestDebuggerService_GetMemory(t *testing.T) {
	svc := NewDebuggerService(vm.Width64, false, "")
	if err := svc.LoadProgram(sampleProgram, nil); err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}

	data := svc.GetMemory(0, 16)
	if len(data) != 16 {
		t.Errorf("expected 16 bytes, got %d", len(data))
	}
}

func TestDebuggerService_ExecuteCommand(t *testing.T) {
	svc := NewDebuggerService(vm.Width64, false, "")
	if err := svc.LoadProgram(sampleProgram, nil); err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}

	if _, err := svc.ExecuteCommand("step"); err != nil {
		t.Fatalf("ExecuteCommand(step) failed: %v", err)
	}
}
