package debugger

import (
	"fmt"

	"github.com/beevm/bee/isa"
	"github.com/beevm/bee/vm"
)

// ReplayEntry is one instruction captured by a Recorder: the decoded
// instruction vm.Step already produced (not a second, duplicate decode)
// plus the data/return-stack depth deltas it caused.
type ReplayEntry struct {
	Seq         uint64
	PC          uint64
	Inst        isa.Instruction
	StackDelta  int64 // change in Reg.DP caused by this instruction
	RStackDelta int64 // change in Reg.SP caused by this instruction
	Err         error
}

// Recorder implements vm.Tracer, appending one ReplayEntry per executed
// instruction instead of writing text like vm.TextTracer does. Attaching
// it to a vm.VM's Tracer field lets a test run a program once and then
// walk the resulting trace as many times as it likes — an oracle for
// "did this program visit the PCs/opcodes I expect, with the stack
// effects I expect" without re-running the VM or re-implementing
// isa.Decode.
type Recorder struct {
	vm      *vm.VM
	entries []ReplayEntry
	prevDP  uint64
	prevSP  uint64
}

// NewRecorder creates a Recorder over m. Install it as m.Tracer before
// running to start capturing.
func NewRecorder(m *vm.VM) *Recorder {
	return &Recorder{vm: m, prevDP: m.Reg.DP, prevSP: m.Reg.SP}
}

// Trace implements vm.Tracer.
func (r *Recorder) Trace(rec vm.TraceRecord) {
	dp, sp := r.vm.Reg.DP, r.vm.Reg.SP
	r.entries = append(r.entries, ReplayEntry{
		Seq:         rec.Seq,
		PC:          rec.OldPC,
		Inst:        rec.Inst,
		StackDelta:  int64(dp) - int64(r.prevDP),
		RStackDelta: int64(sp) - int64(r.prevSP),
		Err:         rec.Err,
	})
	r.prevDP, r.prevSP = dp, sp
}

// Entries returns every instruction recorded so far, oldest first.
func (r *Recorder) Entries() []ReplayEntry {
	return r.entries
}

// Replay calls visit once per recorded entry, in execution order,
// stopping early if visit returns false.
func (r *Recorder) Replay(visit func(ReplayEntry) bool) {
	for _, e := range r.entries {
		if !visit(e) {
			return
		}
	}
}

// StartRecording attaches a fresh Recorder to d.VM as its Tracer,
// replacing whatever Tracer (if any) was previously installed.
func (d *Debugger) StartRecording() {
	d.Recorder = NewRecorder(d.VM)
	d.VM.Tracer = d.Recorder
}

// StopRecording detaches the Recorder from d.VM and returns what it
// captured. Returns nil if no recording was in progress.
func (d *Debugger) StopRecording() []ReplayEntry {
	if d.Recorder == nil {
		return nil
	}
	entries := d.Recorder.Entries()
	if d.VM.Tracer == d.Recorder {
		d.VM.Tracer = nil
	}
	d.Recorder = nil
	return entries
}

func (d *Debugger) cmdRecord(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: record <start|stop|show>")
	}

	switch args[0] {
	case "start":
		d.StartRecording()
		d.Println("Recording started.")
		return nil
	case "stop":
		entries := d.StopRecording()
		d.Printf("Recording stopped: %d instructions captured.\n", len(entries))
		return nil
	case "show":
		if d.Recorder == nil {
			return fmt.Errorf("record show: no recording in progress")
		}
		d.Recorder.Replay(func(e ReplayEntry) bool {
			d.Printf("%4d  pc=0x%x  %-6s  d%+d  r%+d\n", e.Seq, e.PC, e.Inst.Op, e.StackDelta, e.RStackDelta)
			return true
		})
		return nil
	default:
		return fmt.Errorf("unknown record subcommand: %s (want start, stop, or show)", args[0])
	}
}
