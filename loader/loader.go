// Package loader is the host-side bridge between an assembled Program
// and a runnable vm.VM: it maps memory regions, copies the code image
// in, and builds the argv region described in §6 ("Memory layout at
// program start"). This is a genuinely thin host concern compared to
// the teacher's loader.LoadProgramIntoVM, which re-walks directives and
// re-encodes instructions itself — Bee's asm.Assembler already produces
// a flat, fully-encoded byte image, so the loader's own job shrinks to
// placing that image and wiring up the stack/argv registers.
package loader

import (
	"github.com/beevm/bee/asm"
	"github.com/beevm/bee/isa"
	"github.com/beevm/bee/vm"
)

// Image describes how a loaded program's memory is laid out, so a
// debugger or trap bridge can find the pieces it needs (symbol lookup,
// argv placement) without recomputing them.
type Image struct {
	CodeBase  uint64
	CodeSize  uint64
	DataStack uint64
	RetStack  uint64
	ArgvBase  uint64
	Entry     uint64
	Symbols   map[string]uint64
}

// Options configures the regions LoadProgram builds around a Program's
// code.
type Options struct {
	StackSize  uint64 // data stack capacity, in bytes
	RStackSize uint64 // return stack capacity, in bytes
	ArgvBase   uint64 // 0 selects a placement immediately after the stacks
	Argv       []string
}

// LoadProgram maps m's data stack, return stack, code, and argv regions
// and leaves the VM ready for Run: PC at the program's entry point, and
// the stack-control registers populated per §3.
func LoadProgram(m *vm.VM, prog *asm.Program, opts Options) (*Image, error) {
	wordBytes := uint64(prog.Width.Bytes())

	codeBase := uint64(0)
	codeSize := alignUp(uint64(len(prog.Code)), wordBytes)
	codeRegion := m.Memory.AddRegion("code", codeBase, codeSize)
	copy(codeRegion.Data, prog.Code)

	dataStackBase := alignUp(codeBase+codeSize, wordBytes)
	m.Memory.AddRegion("data-stack", dataStackBase, opts.StackSize)

	retStackBase := alignUp(dataStackBase+opts.StackSize, wordBytes)
	m.Memory.AddRegion("return-stack", retStackBase, opts.RStackSize)

	argvBase := opts.ArgvBase
	if argvBase == 0 {
		argvBase = alignUp(retStackBase+opts.RStackSize, wordBytes)
	}
	argvSize := argvRegionSize(prog.Width, opts.Argv)
	m.Memory.AddRegion("argv", argvBase, argvSize)
	if err := writeArgv(m, prog.Width, argvBase, opts.Argv); err != nil {
		return nil, err
	}

	m.Reg.M0 = codeBase
	m.Reg.Msize = argvBase + argvSize - codeBase

	m.Reg.D0 = dataStackBase
	m.Reg.Dsize = opts.StackSize / wordBytes
	m.Reg.DP = 0

	m.Reg.S0 = retStackBase
	m.Reg.Ssize = opts.RStackSize / wordBytes
	m.Reg.SP = 0

	m.Reg.HandlerSP = 0
	m.Reg.PC = prog.Entry

	return &Image{
		CodeBase:  codeBase,
		CodeSize:  codeSize,
		DataStack: dataStackBase,
		RetStack:  retStackBase,
		ArgvBase:  argvBase,
		Entry:     prog.Entry,
		Symbols:   prog.Symbols,
	}, nil
}

// argvRegionSize computes the byte size of the argv region per §6: one
// word for argc, one word per argument, one terminator word, then the
// packed NUL-terminated argument strings themselves.
func argvRegionSize(w isa.Width, argv []string) uint64 {
	wordBytes := uint64(w.Bytes())
	size := (uint64(len(argv)) + 2) * wordBytes
	for _, a := range argv {
		size += uint64(len(a)) + 1
	}
	return alignUp(size, wordBytes)
}

// writeArgv lays out the argc/argv header and packed strings described
// in §6: word 0 = argc; words 1..argc = pointers into the string area;
// word argc+1 = 0 terminator; then the NUL-terminated strings
// themselves, starting at offset (argc+2)*W/8.
func writeArgv(m *vm.VM, w isa.Width, base uint64, argv []string) error {
	wordBytes := uint64(w.Bytes())
	argc := uint64(len(argv))

	if err := m.Memory.StoreWord(base, argc); err != nil {
		return err
	}

	stringsStart := base + (argc+2)*wordBytes
	cursor := stringsStart
	for i, a := range argv {
		ptr := base + (uint64(i)+1)*wordBytes
		if err := m.Memory.StoreWord(ptr, cursor); err != nil {
			return err
		}
		if err := m.Memory.WriteBytes(cursor, append([]byte(a), 0)); err != nil {
			return err
		}
		cursor += uint64(len(a)) + 1
	}

	terminator := base + (argc+1)*wordBytes
	return m.Memory.StoreWord(terminator, 0)
}

func alignUp(v, align uint64) uint64 {
	if align == 0 {
		return v
	}
	return (v + align - 1) / align * align
}
