// Package disasm renders decoded Bee instruction words as text, for the
// debugger's disassembly pane and the standalone beedisasm tool. It is
// grounded on the teacher debugger's UpdateDisassemblyView, generalized
// from that view's raw-hex-only rendering (it never got further than
// "Simple disassembly (just show hex for now)") into a real mnemonic
// renderer, since isa.Decode now gives every consumer a shared decode
// table to build one from.
package disasm

import (
	"fmt"

	"github.com/beevm/bee/isa"
)

// SymbolLookup resolves an address to a label name, if one is known at
// that address. Used to annotate PC-relative targets the same way the
// teacher's debugger annotates addresses with findSymbolForAddress.
type SymbolLookup func(addr uint64) (name string, ok bool)

// Line is one disassembled instruction, with its address and the raw
// and formatted forms.
type Line struct {
	Addr uint64
	Raw  uint64
	Text string
}

// One formats a single decoded instruction at addr. The byte count of
// w is used to turn a PC-relative word offset into an absolute target
// address for display.
func One(w isa.Width, addr, word uint64, lookup SymbolLookup) Line {
	inst := isa.Decode(w, word)
	return Line{Addr: addr, Raw: word, Text: format(w, addr, inst, lookup)}
}

func format(w isa.Width, addr uint64, inst isa.Instruction, lookup SymbolLookup) string {
	wordBytes := int64(w.Bytes())

	target := func() (uint64, string) {
		t := uint64(int64(addr) + inst.Imm*wordBytes)
		if lookup != nil {
			if name, ok := lookup(t); ok {
				return t, fmt.Sprintf("0x%x <%s>", t, name)
			}
		}
		return t, fmt.Sprintf("0x%x", t)
	}

	switch inst.Kind {
	case isa.KindCalli, isa.KindJumpi, isa.KindJumpzi, isa.KindPushreli:
		_, text := target()
		return fmt.Sprintf("%-10s %s", inst.Kind.String(), text)
	case isa.KindPushi:
		return fmt.Sprintf("%-10s %d", "pushi", inst.Imm)
	case isa.KindTrap:
		return fmt.Sprintf("%-10s %d", "trap", inst.TrapLibrary)
	case isa.KindInsn:
		return inst.Op.String()
	default:
		return fmt.Sprintf("invalid (raw=0x%x)", inst.Raw)
	}
}

// Range disassembles count instructions starting at addr, reading each
// word through read. A word whose read fails is skipped (without error)
// and the rest of the range is still read, mirroring the debugger's
// "skip what can't be read" behavior.
func Range(w isa.Width, addr uint64, count int, read func(addr uint64) (uint64, error), lookup SymbolLookup) []Line {
	wordBytes := uint64(w.Bytes())
	lines := make([]Line, 0, count)
	for i := 0; i < count; i++ {
		a := addr + uint64(i)*wordBytes
		word, err := read(a)
		if err != nil {
			continue
		}
		lines = append(lines, One(w, a, word, lookup))
	}
	return lines
}
