// Command beevm assembles and runs a Bee program, mirroring the
// teacher's single-binary emulator CLI but scaled down to the flags
// Bee's simpler instruction set and memory model actually need.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/beevm/bee/asm"
	"github.com/beevm/bee/loader"
	"github.com/beevm/bee/trap"
	"github.com/beevm/bee/vm"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		width64     = flag.Bool("64", true, "Use 64-bit words (false selects 32-bit)")
		bigEndian   = flag.Bool("big-endian", false, "Use big-endian byte order")
		maxCycles   = flag.Uint64("max-cycles", 10_000_000, "Maximum instructions before halt (0 = unbounded)")
		stackSize   = flag.Uint64("stack-size", 64*1024, "Data stack size in bytes")
		rstackSize  = flag.Uint64("rstack-size", 64*1024, "Return stack size in bytes")
		fsRoot      = flag.String("fsroot", "", "Restrict TRAP_LIBC file operations to this directory (default: current directory)")
		traceFile   = flag.String("trace-file", "", "Write an execution trace to this file")
		dumpSymbols = flag.Bool("dump-symbols", false, "Print the symbol table and exit")
		verbose     = flag.Bool("verbose", false, "Verbose loader output")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("beevm %s (%s)\n", Version, Commit)
		os.Exit(0)
	}

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: beevm [flags] <source.bee> [-- args...]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	srcFile := flag.Arg(0)
	argv := flag.Args()[1:]

	width := vm.Width64
	if !*width64 {
		width = vm.Width32
	}

	prog, err := asm.AssembleFile(srcFile, width, *bigEndian)
	if err != nil {
		fmt.Fprintf(os.Stderr, "assemble error: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("Assembled %s: %d bytes of code, entry 0x%x\n", srcFile, len(prog.Code), prog.Entry)
	}

	if *dumpSymbols {
		dumpSymbolTable(prog.Symbols)
		os.Exit(0)
	}

	machine := vm.New(width, *bigEndian)

	fsroot := *fsRoot
	if fsroot == "" {
		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error getting current directory: %v\n", err)
			os.Exit(1)
		}
		fsroot = cwd
	}

	image, err := loader.LoadProgram(machine, prog, loader.Options{
		StackSize:  *stackSize,
		RStackSize: *rstackSize,
		Argv:       argv,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "load error: %v\n", err)
		os.Exit(1)
	}

	machine.Trap = trap.NewLibc(fsroot, argv, image.ArgvBase)

	if *traceFile != "" {
		f, err := os.Create(*traceFile) // #nosec G304 -- user-specified trace output path
		if err != nil {
			fmt.Fprintf(os.Stderr, "error creating trace file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		machine.Tracer = vm.NewTextTracer(f, 0)
	}

	if *maxCycles > 0 {
		limit := *maxCycles
		var count uint64
		machine.Hook = func(*vm.VM) bool {
			count++
			return count >= limit
		}
	}

	reason, err := machine.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "runtime error: %v\n", err)
		os.Exit(1)
	}

	switch reason {
	case vm.StopHalt:
		os.Exit(int(machine.ExitCode))
	case vm.StopHook:
		fmt.Fprintln(os.Stderr, "stopped: instruction limit reached")
		os.Exit(1)
	case vm.StopBreak:
		fmt.Fprintln(os.Stderr, "stopped: break instruction hit")
		os.Exit(1)
	}
}

func dumpSymbolTable(symbols map[string]uint64) {
	names := make([]string, 0, len(symbols))
	for name := range symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%-32s 0x%x\n", name, symbols[name])
	}
}
