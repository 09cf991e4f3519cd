package debugger

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/beevm/bee/vm"
)

// RunCLI runs the line-oriented debugger REPL against stdin/stdout.
func RunCLI(dbg *Debugger) error {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("(bee-dbg) ")

		if !scanner.Scan() {
			break
		}

		cmdLine := strings.TrimSpace(scanner.Text())

		if cmdLine == "quit" || cmdLine == "q" || cmdLine == "exit" {
			fmt.Println("Exiting debugger...")
			break
		}

		if err := dbg.ExecuteCommand(cmdLine); err != nil {
			fmt.Printf("Error: %v\n", err)
		}

		if output := dbg.GetOutput(); output != "" {
			fmt.Print(output)
		}

		if dbg.Running {
			runUntilStop(dbg)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("input error: %w", err)
	}
	return nil
}

// runUntilStop single-steps the VM, checking the debugger's own
// software breakpoints before every instruction, until either one of
// those fires or Step itself halts (native break instruction, an
// unhandled throw, or a memory/decode error).
func runUntilStop(dbg *Debugger) {
	for dbg.Running {
		if shouldBreak, reason := dbg.ShouldBreak(); shouldBreak {
			dbg.Running = false
			fmt.Printf("Stopped: %s at pc=0x%x\n", reason, dbg.VM.Reg.PC)
			return
		}

		reason, halted, err := dbg.VM.Step()
		if err != nil {
			fmt.Printf("Runtime error: %v\n", err)
			dbg.Running = false
			return
		}
		if !halted {
			continue
		}

		dbg.Running = false
		switch reason {
		case vm.StopHalt:
			fmt.Printf("Program exited with code %d\n", dbg.VM.ExitCode)
		case vm.StopBreak:
			fmt.Printf("Hit break instruction at pc=0x%x\n", dbg.VM.Reg.PC)
		default:
			fmt.Printf("Stopped (%s) at pc=0x%x\n", reason, dbg.VM.Reg.PC)
		}
		return
	}
}

// RunTUI runs the tview-based full-screen debugger front end.
func RunTUI(dbg *Debugger) error {
	tui := NewTUI(dbg)
	return tui.Run()
}
