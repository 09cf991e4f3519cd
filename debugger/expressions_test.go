package debugger

import (
	"testing"

	"github.com/beevm/bee/vm"
)

func TestExpressionEvaluator_Numbers(t *testing.T) {
	eval := NewExpressionEvaluator()
	machine := vm.New(vm.Width64, false)
	symbols := make(map[string]uint64)

	tests := []struct {
		name string
		expr string
		want uint64
	}{
		{"Decimal", "42", 42},
		{"Hex", "0x100", 0x100},
		{"Hex uppercase", "0X1A", 0x1A},
		{"Binary", "0b1010", 0b1010},
		{"Octal", "010", 8},
		{"Negative", "-1", 0xFFFFFFFFFFFFFFFF},
		{"Large hex", "0xFFFFFFFF", 0xFFFFFFFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.EvaluateExpression(tt.expr, machine, symbols)
			if err != nil {
				t.Fatalf("EvaluateExpression() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EvaluateExpression() = 0x%x, want 0x%x", got, tt.want)
			}
		})
	}
}

func TestExpressionEvaluator_Registers(t *testing.T) {
	eval := NewExpressionEvaluator()
	machine := vm.New(vm.Width64, false)
	symbols := make(map[string]uint64)

	machine.Reg.Set(vm.RegD0, 100)
	machine.Reg.Set(vm.RegDP, 200)
	machine.Reg.Set(vm.RegSP, 0x1000)
	machine.Reg.Set(vm.RegHandlerSP, 0x2000)
	machine.Reg.PC = 0x3000

	tests := []struct {
		name string
		expr string
		want uint64
	}{
		{"D0", "d0", 100},
		{"DP", "dp", 200},
		{"SP", "sp", 0x1000},
		{"HandlerSP", "handler_sp", 0x2000},
		{"PC", "pc", 0x3000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.EvaluateExpression(tt.expr, machine, symbols)
			if err != nil {
				t.Fatalf("EvaluateExpression() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EvaluateExpression() = 0x%x, want 0x%x", got, tt.want)
			}
		})
	}
}

func TestExpressionEvaluator_Symbols(t *testing.T) {
	eval := NewExpressionEvaluator()
	machine := vm.New(vm.Width64, false)
	symbols := map[string]uint64{
		"main":   0x1000,
		"loop":   0x2000,
		"_start": 0x3000,
	}

	tests := []struct {
		name string
		expr string
		want uint64
	}{
		{"main", "main", 0x1000},
		{"loop", "loop", 0x2000},
		{"_start", "_start", 0x3000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.EvaluateExpression(tt.expr, machine, symbols)
			if err != nil {
				t.Fatalf("EvaluateExpression() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EvaluateExpression() = 0x%x, want 0x%x", got, tt.want)
			}
		})
	}
}

func TestExpressionEvaluator_Memory(t *testing.T) {
	eval := NewExpressionEvaluator()
	machine := vm.New(vm.Width64, false)
	machine.Memory.AddRegion("main", 0, 0x30000)

	dataAddr := uint64(0x20000)
	symbols := map[string]uint64{
		"data": dataAddr,
	}

	machine.Memory.StoreWord(dataAddr, 0x12345678)
	machine.Memory.StoreWord(dataAddr+0x1000, 0xABCDEF00)

	tests := []struct {
		name string
		expr string
		want uint64
	}{
		{"Bracket notation", "[0x20000]", 0x12345678},
		{"Star notation", "*0x21000", 0xABCDEF00},
		{"Symbol in brackets", "[data]", 0x12345678},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.EvaluateExpression(tt.expr, machine, symbols)
			if err != nil {
				t.Fatalf("EvaluateExpression() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EvaluateExpression() = 0x%x, want 0x%x", got, tt.want)
			}
		})
	}
}

func TestExpressionEvaluator_Arithmetic(t *testing.T) {
	eval := NewExpressionEvaluator()
	machine := vm.New(vm.Width64, false)
	symbols := make(map[string]uint64)

	tests := []struct {
		name string
		expr string
		want uint64
	}{
		{"Addition", "10 + 20", 30},
		{"Subtraction", "50 - 20", 30},
		{"Multiplication", "5 * 6", 30},
		{"Division", "60 / 2", 30},
		{"Hex addition", "0x10 + 0x20", 0x30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.EvaluateExpression(tt.expr, machine, symbols)
			if err != nil {
				t.Fatalf("EvaluateExpression() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EvaluateExpression() = 0x%x, want 0x%x", got, tt.want)
			}
		})
	}
}

func TestExpressionEvaluator_Bitwise(t *testing.T) {
	eval := NewExpressionEvaluator()
	machine := vm.New(vm.Width64, false)
	symbols := make(map[string]uint64)

	tests := []struct {
		name string
		expr string
		want uint64
	}{
		{"AND", "0xFF & 0x0F", 0x0F},
		{"OR", "0xF0 | 0x0F", 0xFF},
		{"XOR", "0xFF ^ 0x0F", 0xF0},
		{"Left shift", "1 << 4", 16},
		{"Right shift", "16 >> 2", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.EvaluateExpression(tt.expr, machine, symbols)
			if err != nil {
				t.Fatalf("EvaluateExpression() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EvaluateExpression() = 0x%x, want 0x%x", got, tt.want)
			}
		})
	}
}

func TestExpressionEvaluator_RegisterOperations(t *testing.T) {
	eval := NewExpressionEvaluator()
	machine := vm.New(vm.Width64, false)
	symbols := make(map[string]uint64)

	machine.Reg.Set(vm.RegD0, 10)
	machine.Reg.Set(vm.RegDP, 20)

	tests := []struct {
		name string
		expr string
		want uint64
	}{
		{"Register addition", "d0 + dp", 30},
		{"Register with constant", "d0 + 5", 15},
		{"Register subtraction", "dp - d0", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.EvaluateExpression(tt.expr, machine, symbols)
			if err != nil {
				t.Fatalf("EvaluateExpression() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EvaluateExpression() = 0x%x, want 0x%x", got, tt.want)
			}
		})
	}
}

func TestExpressionEvaluator_ValueHistory(t *testing.T) {
	eval := NewExpressionEvaluator()
	machine := vm.New(vm.Width64, false)
	symbols := make(map[string]uint64)

	val1, _ := eval.EvaluateExpression("42", machine, symbols)
	val2, _ := eval.EvaluateExpression("100", machine, symbols)

	if eval.GetValueNumber() != 2 {
		t.Errorf("ValueNumber = %d, want 2", eval.GetValueNumber())
	}

	got1, err := eval.GetValue(1)
	if err != nil {
		t.Fatalf("GetValue(1) error = %v", err)
	}
	if got1 != val1 {
		t.Errorf("GetValue(1) = %d, want %d", got1, val1)
	}

	got2, err := eval.GetValue(2)
	if err != nil {
		t.Fatalf("GetValue(2) error = %v", err)
	}
	if got2 != val2 {
		t.Errorf("GetValue(2) = %d, want %d", got2, val2)
	}

	_, err = eval.GetValue(999)
	if err == nil {
		t.Error("Expected error for invalid value number")
	}
}

func TestExpressionEvaluator_BooleanEvaluation(t *testing.T) {
	eval := NewExpressionEvaluator()
	machine := vm.New(vm.Width64, false)
	symbols := make(map[string]uint64)

	machine.Reg.Set(vm.RegD0, 42)

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"Zero is false", "0", false},
		{"Non-zero is true", "42", true},
		{"Register non-zero", "d0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.Evaluate(tt.expr, machine, symbols)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpressionEvaluator_Errors(t *testing.T) {
	eval := NewExpressionEvaluator()
	machine := vm.New(vm.Width64, false)
	symbols := make(map[string]uint64)

	tests := []struct {
		name string
		expr string
	}{
		{"Empty expression", ""},
		{"Unknown symbol", "unknown_symbol"},
		{"Invalid register", "not_a_register"},
		{"Division by zero", "10 / 0"},
		{"Invalid hex", "0xGGGG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eval.EvaluateExpression(tt.expr, machine, symbols)
			if err == nil {
				t.Error("Expected error but got none")
			}
		})
	}
}

func TestExpressionEvaluator_Reset(t *testing.T) {
	eval := NewExpressionEvaluator()
	machine := vm.New(vm.Width64, false)
	symbols := make(map[string]uint64)

	eval.EvaluateExpression("42", machine, symbols)
	eval.EvaluateExpression("100", machine, symbols)

	if eval.GetValueNumber() != 2 {
		t.Error("Value number should be 2 before reset")
	}

	eval.Reset()

	if eval.GetValueNumber() != 0 {
		t.Error("Value number should be 0 after reset")
	}

	if len(eval.valueHistory) != 0 {
		t.Error("Value history should be empty after reset")
	}
}
