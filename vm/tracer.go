package vm

import (
	"fmt"
	"io"

	"github.com/beevm/bee/isa"
)

// TextTracer is a Tracer that writes one line per executed instruction
// to an io.Writer, grounded on the teacher's ExecutionTrace but much
// thinner: Bee's ten named registers and flat instruction words need
// none of the teacher's per-register-name filtering or CPSR-flag
// columns, so this is just a sequence number, the PC transition, and
// the decoded instruction's kind/opcode.
type TextTracer struct {
	Writer     io.Writer
	MaxEntries int

	written int
}

// NewTextTracer creates a tracer writing to w. maxEntries caps the
// number of lines written; 0 means unbounded.
func NewTextTracer(w io.Writer, maxEntries int) *TextTracer {
	return &TextTracer{Writer: w, MaxEntries: maxEntries}
}

func (t *TextTracer) Trace(rec TraceRecord) {
	if t.MaxEntries > 0 && t.written >= t.MaxEntries {
		return
	}
	t.written++

	switch rec.Inst.Kind {
	case isa.KindInsn:
		fmt.Fprintf(t.Writer, "%6d  pc=0x%x -> 0x%x  insn op=%d\n", rec.Seq, rec.OldPC, rec.NewPC, rec.Inst.Op)
	default:
		fmt.Fprintf(t.Writer, "%6d  pc=0x%x -> 0x%x  %s imm=%d\n", rec.Seq, rec.OldPC, rec.NewPC, rec.Inst.Kind, rec.Inst.Imm)
	}
	if rec.Err != nil {
		fmt.Fprintf(t.Writer, "%6d  fault: %v\n", rec.Seq, rec.Err)
	}
}
