package tools

import (
	"strings"
	"testing"
)

func TestFormat_BasicInstruction(t *testing.T) {
	result := Format("pushi 10", "test.bee", DefaultFormatOptions())

	if !strings.Contains(result, "pushi") {
		t.Error("expected pushi instruction in output")
	}
	if !strings.Contains(result, "10") {
		t.Error("expected operand in output")
	}
}

func TestFormat_WithLabel(t *testing.T) {
	result := Format("loop: jumpi loop", "test.bee", DefaultFormatOptions())

	lines := strings.Split(strings.TrimRight(result, "\n"), "\n")
	if len(lines) < 2 {
		t.Fatalf("expected label and instruction on separate lines, got: %q", result)
	}
	if strings.TrimSpace(lines[0]) != "loop:" {
		t.Errorf("expected first line to be the label, got %q", lines[0])
	}
}

func TestFormat_WithComment(t *testing.T) {
	result := Format("pushi 10 ; push ten", "test.bee", DefaultFormatOptions())

	if !strings.Contains(result, "; push ten") {
		t.Errorf("expected comment preserved, got: %s", result)
	}
}

func TestFormat_CompactStyle(t *testing.T) {
	aligned := Format("pushi 10", "test.bee", DefaultFormatOptions())
	compact := Format("pushi 10", "test.bee", CompactFormatOptions())

	if len(compact) >= len(aligned) {
		t.Errorf("expected compact style to be narrower than aligned style: %q vs %q", compact, aligned)
	}
}

func TestFormat_BlankLinesPreserved(t *testing.T) {
	result := Format("pushi 1\n\npushi 2", "test.bee", DefaultFormatOptions())
	lines := strings.Split(result, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines (blank preserved), got %d: %q", len(lines), lines)
	}
	if lines[1] != "" {
		t.Errorf("expected middle line blank, got %q", lines[1])
	}
}
