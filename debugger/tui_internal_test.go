package debugger

import (
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/beevm/bee/vm"
)

// TestExecuteCommandAsync tests that executeCommand doesn't block.
// This is an internal test that can access unexported methods.
func TestExecuteCommandAsync(t *testing.T) {
	machine := vm.New(vm.Width64, false)
	dbg := NewDebugger(machine)
	screen := tcell.NewSimulationScreen("UTF-8")
	err := screen.Init()
	if err != nil {
		t.Fatalf("failed to init simulation screen: %v", err)
	}
	defer screen.Fini()

	tui := NewTUIWithScreen(dbg, screen)

	// Execute a command in a goroutine, like the real TUI does.
	done := make(chan bool, 1)
	go func() {
		tui.executeCommand("help")
		done <- true
	}()

	// If executeCommand blocks, this will time out.
	select {
	case <-done:
	case <-time.After(time.Second * 2):
		t.Fatal("executeCommand blocked for more than 2 seconds - deadlock detected")
	}
}

// TestHandleCommandAsync tests that handleCommand doesn't block.
// This is an internal test that can access unexported methods.
func TestHandleCommandAsync(t *testing.T) {
	machine := vm.New(vm.Width64, false)
	dbg := NewDebugger(machine)
	screen := tcell.NewSimulationScreen("UTF-8")
	err := screen.Init()
	if err != nil {
		t.Fatalf("failed to init simulation screen: %v", err)
	}
	defer screen.Fini()

	tui := NewTUIWithScreen(dbg, screen)

	tui.CommandInput.SetText("help")

	done := make(chan bool, 1)
	go func() {
		tui.handleCommand(tcell.KeyEnter)
		done <- true
	}()

	// handleCommand itself should not block - it just spawns the goroutine.
	select {
	case <-done:
	case <-time.After(time.Millisecond * 100):
		t.Fatal("handleCommand blocked for more than 100ms - should return immediately")
	}
}
