// Command beedebug assembles and loads a Bee program, then drives it
// under the interactive debugger (line-oriented REPL by default, or the
// tcell/tview full-screen front end with -tui), mirroring the teacher's
// -debug/-tui flags on its single combined binary.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/beevm/bee/asm"
	"github.com/beevm/bee/debugger"
	"github.com/beevm/bee/loader"
	"github.com/beevm/bee/trap"
	"github.com/beevm/bee/vm"
)

func main() {
	var (
		useTUI     = flag.Bool("tui", false, "Run the full-screen debugger instead of the line-oriented REPL")
		width64    = flag.Bool("64", true, "Use 64-bit words (false selects 32-bit)")
		bigEndian  = flag.Bool("big-endian", false, "Use big-endian byte order")
		stackSize  = flag.Uint64("stack-size", 64*1024, "Data stack size in bytes")
		rstackSize = flag.Uint64("rstack-size", 64*1024, "Return stack size in bytes")
		fsRoot     = flag.String("fsroot", "", "Restrict TRAP_LIBC file operations to this directory (default: current directory)")
	)
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: beedebug [flags] <source.bee> [-- args...]")
		flag.PrintDefaults()
		os.Exit(1)
	}
	srcFile := flag.Arg(0)
	argv := flag.Args()[1:]

	width := vm.Width64
	if !*width64 {
		width = vm.Width32
	}

	fsroot := *fsRoot
	if fsroot == "" {
		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error getting current directory: %v\n", err)
			os.Exit(1)
		}
		fsroot = cwd
	}

	opts := loader.Options{StackSize: *stackSize, RStackSize: *rstackSize, Argv: argv}

	load := func(path string) (*vm.VM, *asm.Program, error) {
		prog, err := asm.AssembleFile(path, width, *bigEndian)
		if err != nil {
			return nil, nil, fmt.Errorf("assemble error: %w", err)
		}
		machine := vm.New(width, *bigEndian)
		image, err := loader.LoadProgram(machine, prog, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("load error: %w", err)
		}
		machine.Trap = trap.NewLibc(fsroot, argv, image.ArgvBase)
		return machine, prog, nil
	}

	machine, prog, err := load(srcFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	dbg := debugger.NewDebugger(machine)
	dbg.LoadSymbols(prog.Symbols)

	currentFile := srcFile
	dbg.Reload = func() error {
		m, p, err := load(currentFile)
		if err != nil {
			return err
		}
		dbg.VM = m
		dbg.LoadSymbols(p.Symbols)
		return nil
	}
	dbg.LoadFile = func(path string) error {
		m, p, err := load(path)
		if err != nil {
			return err
		}
		currentFile = path
		dbg.VM = m
		dbg.LoadSymbols(p.Symbols)
		return nil
	}

	var runErr error
	if *useTUI {
		runErr = debugger.RunTUI(dbg)
	} else {
		runErr = debugger.RunCLI(dbg)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "debugger error: %v\n", runErr)
		os.Exit(1)
	}
}
