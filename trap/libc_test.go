package trap

import (
	"bytes"
	"testing"

	"github.com/beevm/bee/vm"
)

// newTestVM builds a minimal VM with a code/data region and a data
// stack, enough to drive Libc.Invoke directly without assembling a
// program.
func newTestVM(t *testing.T) *vm.VM {
	t.Helper()
	m := vm.New(vm.Width64, false)
	m.Memory.AddRegion("main", 0, 0x1000)
	m.Reg.D0 = 0x800
	m.Reg.Dsize = 32
	return m
}

func writeCString(t *testing.T, m *vm.VM, addr uint64, s string) {
	t.Helper()
	for i := 0; i < len(s); i++ {
		if err := m.Memory.Store(addr+uint64(i), 1, uint64(s[i])); err != nil {
			t.Fatalf("store: %v", err)
		}
	}
	if err := m.Memory.Store(addr+uint64(len(s)), 1, 0); err != nil {
		t.Fatalf("store nul: %v", err)
	}
}

// TestLibcWriteRedirectsStdout verifies that a write() to fd 1 goes to
// Libc.Stdout instead of the process's real stdout, so a host embedding
// the VM (the API server's session layer) can capture guest output.
func TestLibcWriteRedirectsStdout(t *testing.T) {
	m := newTestVM(t)
	h := NewLibc("", nil, 0)

	var buf bytes.Buffer
	h.Stdout = &buf

	const msg = "hello bee"
	writeCString(t, m, 0x100, msg)

	if err := m.PushData(0x100); err != nil {
		t.Fatalf("push buf addr: %v", err)
	}
	if err := m.PushData(uint64(len(msg))); err != nil {
		t.Fatalf("push len: %v", err)
	}
	if err := m.PushData(FDStdout); err != nil {
		t.Fatalf("push fd: %v", err)
	}
	if err := m.PushData(uint64(FuncWrite)); err != nil {
		t.Fatalf("push func: %v", err)
	}

	if err := h.Invoke(m, Library); err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	written, err := m.PopData()
	if err != nil {
		t.Fatalf("pop result: %v", err)
	}
	if written != uint64(len(msg)) {
		t.Fatalf("write returned %d, want %d", written, len(msg))
	}
	if buf.String() != msg {
		t.Fatalf("Stdout got %q, want %q", buf.String(), msg)
	}
}

// TestLibcWriteFallsBackToRealFile verifies fd values other than
// FDStdout still resolve through getFile, leaving Stdout redirection
// scoped to fd 1 only.
func TestLibcWriteFallsBackToRealFile(t *testing.T) {
	m := newTestVM(t)
	h := NewLibc("", nil, 0)
	h.Stdout = &bytes.Buffer{}

	const msg = "to stderr"
	writeCString(t, m, 0x100, msg)

	if err := m.PushData(0x100); err != nil {
		t.Fatalf("push buf addr: %v", err)
	}
	if err := m.PushData(uint64(len(msg))); err != nil {
		t.Fatalf("push len: %v", err)
	}
	if err := m.PushData(FDStderr); err != nil {
		t.Fatalf("push fd: %v", err)
	}
	if err := m.PushData(uint64(FuncWrite)); err != nil {
		t.Fatalf("push func: %v", err)
	}

	if err := h.Invoke(m, Library); err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	written, err := m.PopData()
	if err != nil {
		t.Fatalf("pop result: %v", err)
	}
	if written != uint64(len(msg)) {
		t.Fatalf("write returned %d, want %d", written, len(msg))
	}
}
