package debugger

import (
	"testing"

	"github.com/beevm/bee/asm"
	"github.com/beevm/bee/isa"
	"github.com/beevm/bee/loader"
	"github.com/beevm/bee/vm"
)

func assembleAndLoad(t *testing.T, src string) *vm.VM {
	t.Helper()
	prog, err := asm.NewAssembler(isa.Width64, false).Assemble(src, "record_test.bee")
	if err != nil {
		t.Fatalf("assemble failed: %v", err)
	}
	m := vm.New(isa.Width64, false)
	if _, err := loader.LoadProgram(m, prog, loader.Options{StackSize: 4096, RStackSize: 4096}); err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}
	return m
}

func TestRecorder_CapturesEveryInstruction(t *testing.T) {
	m := assembleAndLoad(t, "pushi 5\npushi 37\nadd\nthrow\n")

	rec := NewRecorder(m)
	m.Tracer = rec

	if _, err := m.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	entries := rec.Entries()
	if len(entries) != 4 {
		t.Fatalf("expected 4 recorded instructions, got %d", len(entries))
	}

	for i, e := range entries {
		if e.Seq != uint64(i+1) {
			t.Errorf("entry %d: Seq = %d, want %d", i, e.Seq, i+1)
		}
	}
	if entries[0].Inst.Kind != isa.KindPushi || entries[1].Inst.Kind != isa.KindPushi {
		t.Errorf("expected first two entries to decode as pushi, got %v, %v", entries[0].Inst.Kind, entries[1].Inst.Kind)
	}

	// pushi 5: data stack depth goes from 0 to 1.
	if entries[0].StackDelta != 1 {
		t.Errorf("entries[0].StackDelta = %d, want 1", entries[0].StackDelta)
	}
	// pushi 37: 1 -> 2.
	if entries[1].StackDelta != 1 {
		t.Errorf("entries[1].StackDelta = %d, want 1", entries[1].StackDelta)
	}
	// add: pops two, pushes one -> 2 -> 1.
	if entries[2].StackDelta != -1 {
		t.Errorf("entries[2].StackDelta = %d, want -1", entries[2].StackDelta)
	}
	if entries[2].Inst.Op != isa.OpAdd {
		t.Errorf("entries[2].Inst.Op = %v, want OpAdd", entries[2].Inst.Op)
	}
	if entries[3].Inst.Op != isa.OpThrow {
		t.Errorf("entries[3].Inst.Op = %v, want OpThrow", entries[3].Inst.Op)
	}
}

func TestRecorder_Replay(t *testing.T) {
	m := assembleAndLoad(t, "pushi 1\npushi 2\nadd\nthrow\n")

	rec := NewRecorder(m)
	m.Tracer = rec
	if _, err := m.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var seen []uint64
	rec.Replay(func(e ReplayEntry) bool {
		seen = append(seen, e.Seq)
		return true
	})
	if len(seen) != 4 {
		t.Fatalf("Replay visited %d entries, want 4", len(seen))
	}

	var stoppedAt int
	rec.Replay(func(e ReplayEntry) bool {
		stoppedAt++
		return e.Seq < 2
	})
	if stoppedAt != 2 {
		t.Errorf("Replay early-stop visited %d entries, want 2", stoppedAt)
	}
}

func TestDebugger_StartStopRecording(t *testing.T) {
	m := assembleAndLoad(t, "pushi 9\nthrow\n")
	d := NewDebugger(m)

	if d.Recorder != nil {
		t.Fatal("expected no recorder before StartRecording")
	}

	d.StartRecording()
	if d.Recorder == nil || m.Tracer != d.Recorder {
		t.Fatal("StartRecording did not attach the recorder as m.Tracer")
	}

	if _, err := m.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	entries := d.StopRecording()
	if len(entries) != 2 {
		t.Fatalf("expected 2 recorded instructions, got %d", len(entries))
	}
	if d.Recorder != nil {
		t.Error("expected Recorder cleared after StopRecording")
	}
	if m.Tracer != nil {
		t.Error("expected VM.Tracer cleared after StopRecording")
	}
}
