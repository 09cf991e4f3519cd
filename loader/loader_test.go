package loader

import (
	"testing"

	"github.com/beevm/bee/asm"
	"github.com/beevm/bee/isa"
	"github.com/beevm/bee/vm"
)

func assembleOrFatal(t *testing.T, src string) *asm.Program {
	t.Helper()
	prog, err := asm.NewAssembler(isa.Width64, false).Assemble(src, "test.bee")
	if err != nil {
		t.Fatalf("assemble failed: %v", err)
	}
	return prog
}

func TestLoadProgramSetsEntryAndRegisters(t *testing.T) {
	prog := assembleOrFatal(t, "start: pushi 1\nbreak\n")

	m := vm.New(isa.Width64, false)
	img, err := LoadProgram(m, prog, Options{StackSize: 4096, RStackSize: 4096, Argv: []string{"prog"}})
	if err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}

	if m.Reg.PC != prog.Entry {
		t.Errorf("PC = %d, want entry %d", m.Reg.PC, prog.Entry)
	}
	if m.Reg.DP != 0 || m.Reg.SP != 0 {
		t.Errorf("expected empty stacks at load, got DP=%d SP=%d", m.Reg.DP, m.Reg.SP)
	}
	if m.Reg.Dsize == 0 || m.Reg.Ssize == 0 {
		t.Errorf("expected nonzero stack capacities")
	}
	if img.ArgvBase == 0 {
		t.Errorf("expected a nonzero argv base")
	}
}

func TestArgvLayoutRoundTrip(t *testing.T) {
	prog := assembleOrFatal(t, "break\n")

	m := vm.New(isa.Width64, false)
	img, err := LoadProgram(m, prog, Options{StackSize: 4096, RStackSize: 4096, Argv: []string{"beevm", "hello"}})
	if err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}

	argc, err := m.Memory.LoadWord(img.ArgvBase)
	if err != nil {
		t.Fatalf("reading argc: %v", err)
	}
	if argc != 2 {
		t.Fatalf("argc = %d, want 2", argc)
	}

	wordBytes := uint64(isa.Width64.Bytes())
	ptr0, err := m.Memory.LoadWord(img.ArgvBase + wordBytes)
	if err != nil {
		t.Fatalf("reading argv[0] pointer: %v", err)
	}
	buf, err := m.Memory.ReadBytes(ptr0, 5)
	if err != nil {
		t.Fatalf("reading argv[0] bytes: %v", err)
	}
	if string(buf) != "beevm" {
		t.Errorf("argv[0] = %q, want %q", buf, "beevm")
	}

	terminator, err := m.Memory.LoadWord(img.ArgvBase + (argc+1)*wordBytes)
	if err != nil {
		t.Fatalf("reading terminator: %v", err)
	}
	if terminator != 0 {
		t.Errorf("terminator = %d, want 0", terminator)
	}
}
