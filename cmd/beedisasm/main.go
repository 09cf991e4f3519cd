// Command beedisasm renders a flat Bee binary image (the output of
// beeasm, or an ELF object's section content read through elfbee) back
// to mnemonic text, reusing the same disasm.Range the debugger's
// disassembly pane calls.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/beevm/bee/disasm"
	"github.com/beevm/bee/elfbee"
	"github.com/beevm/bee/isa"
	"github.com/beevm/bee/vm"
)

func main() {
	var (
		width64    = flag.Bool("64", true, "Use 64-bit words (false selects 32-bit)")
		bigEndian  = flag.Bool("big-endian", false, "Use big-endian byte order")
		symbolFile = flag.String("symbols-file", "", "JSON symbol table (as written by beeasm -symbols-file)")
		fromELF    = flag.String("elf-section", "", "Read code from this section of an ELF object instead of a flat image")
		baseAddr   = flag.Uint64("base", 0, "Address of the first word in the image")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: beedisasm [flags] <image.bin>")
		flag.PrintDefaults()
		os.Exit(1)
	}
	path := flag.Arg(0)

	width := vm.Width64
	if !*width64 {
		width = vm.Width32
	}

	var code []byte
	if *fromELF != "" {
		sections, err := elfbee.ReadSections(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error reading ELF object %s: %v\n", path, err)
			os.Exit(1)
		}
		found := false
		for _, s := range sections {
			if s.Name == *fromELF {
				code = s.Content
				found = true
				break
			}
		}
		if !found {
			fmt.Fprintf(os.Stderr, "section %q not found in %s\n", *fromELF, path)
			os.Exit(1)
		}
	} else {
		data, err := os.ReadFile(path) // #nosec G304 -- user-provided image path
		if err != nil {
			fmt.Fprintf(os.Stderr, "error reading %s: %v\n", path, err)
			os.Exit(1)
		}
		code = data
	}

	symbols := map[string]uint64{}
	if *symbolFile != "" {
		data, err := os.ReadFile(*symbolFile) // #nosec G304 -- user-provided symbol table path
		if err != nil {
			fmt.Fprintf(os.Stderr, "error reading %s: %v\n", *symbolFile, err)
			os.Exit(1)
		}
		if err := json.Unmarshal(data, &symbols); err != nil {
			fmt.Fprintf(os.Stderr, "error decoding %s: %v\n", *symbolFile, err)
			os.Exit(1)
		}
	}
	byName := map[uint64]string{}
	for name, addr := range symbols {
		byName[addr] = name
	}
	lookup := func(addr uint64) (string, bool) {
		name, ok := byName[addr]
		return name, ok
	}

	order := isa.ByteOrder(*bigEndian)
	wordBytes := uint64(width.Bytes())
	count := uint64(len(code)) / wordBytes

	read := func(addr uint64) (uint64, error) {
		offset := addr - *baseAddr
		if offset+wordBytes > uint64(len(code)) {
			return 0, fmt.Errorf("beedisasm: address 0x%x out of range", addr)
		}
		return isa.GetWord(order, width, code[offset:offset+wordBytes]), nil
	}

	lines := disasm.Range(width, *baseAddr, int(count), read, lookup)
	for _, l := range lines {
		if name, ok := lookup(l.Addr); ok {
			fmt.Printf("0x%08x <%s>:\t%s\n", l.Addr, name, l.Text)
		} else {
			fmt.Printf("0x%08x:\t%s\n", l.Addr, l.Text)
		}
	}
}
