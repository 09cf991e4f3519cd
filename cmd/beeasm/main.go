// Command beeasm assembles Bee source text into a flat binary image,
// the same code-plus-symbols pair loader.LoadProgram consumes directly.
// There is no object/relocatable output here: nothing in the pack
// writes ELF (elfbee only reads it, for object files produced outside
// this toolchain), so a standalone assembler's natural output is the
// flat image asm.Program already holds.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/beevm/bee/asm"
	"github.com/beevm/bee/vm"
)

func main() {
	var (
		width64    = flag.Bool("64", true, "Use 64-bit words (false selects 32-bit)")
		bigEndian  = flag.Bool("big-endian", false, "Use big-endian byte order")
		outFile    = flag.String("o", "", "Output file for the assembled image (default: <input>.bin)")
		symbolFile = flag.String("symbols-file", "", "Write the symbol table as JSON to this path")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: beeasm [flags] <source.bee>")
		flag.PrintDefaults()
		os.Exit(1)
	}
	srcFile := flag.Arg(0)

	width := vm.Width64
	if !*width64 {
		width = vm.Width32
	}

	prog, err := asm.AssembleFile(srcFile, width, *bigEndian)
	if err != nil {
		fmt.Fprintf(os.Stderr, "assemble error: %v\n", err)
		os.Exit(1)
	}

	out := *outFile
	if out == "" {
		out = srcFile + ".bin"
	}
	if err := os.WriteFile(out, prog.Code, 0o644); err != nil { // #nosec G306 -- assembled image, not a secret
		fmt.Fprintf(os.Stderr, "error writing %s: %v\n", out, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s: %d bytes, entry 0x%x\n", out, len(prog.Code), prog.Entry)

	if *symbolFile != "" {
		data, err := json.MarshalIndent(prog.Symbols, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "error encoding symbols: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*symbolFile, data, 0o644); err != nil { // #nosec G306 -- symbol table, not a secret
			fmt.Fprintf(os.Stderr, "error writing %s: %v\n", *symbolFile, err)
			os.Exit(1)
		}
	}
}
