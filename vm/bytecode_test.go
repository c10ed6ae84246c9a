package vm

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Opcode metadata tests
// ---------------------------------------------------------------------------

func TestOpcodeInfo(t *testing.T) {
	tests := []struct {
		op      Opcode
		name    string
		operand OperandKind
	}{
		{OpNop, "NOP", OperandNone},
		{OpLoadConst, "LOAD_CONST", OperandConstant},
		{OpLoadUndefined, "LOAD_UNDEFINED", OperandNone},
		{OpPop, "POP", OperandNone},
		{OpAdd, "ADD", OperandNone},
		{OpStrictEq, "STRICT_EQ", OperandNone},
		{OpLoadLocal, "LOAD_LOCAL", OperandLocal},
		{OpLoadGlobal, "LOAD_GLOBAL", OperandProperty},
		{OpLoadUpvalue, "LOAD_UPVALUE", OperandLocal},
		{OpGetProperty, "GET_PROPERTY", OperandProperty},
		{OpJump, "JUMP", OperandJump},
		{OpJumpIfFalse, "JUMP_IF_FALSE", OperandJump},
		{OpCall, "CALL", OperandArgCount},
		{OpClosure, "CLOSURE", OperandConstant},
		{OpNewArray, "NEW_ARRAY", OperandArgCount},
		{OpForInNext, "FOR_IN_NEXT", OperandJump},
		{OpThrow, "THROW", OperandNone},
		{OpHalt, "HALT", OperandNone},
	}

	for _, tt := range tests {
		info := tt.op.Info()
		if info.Name != tt.name {
			t.Errorf("%02X: Name = %q, want %q", byte(tt.op), info.Name, tt.name)
		}
		if info.Operand != tt.operand {
			t.Errorf("%s: Operand = %v, want %v", tt.name, info.Operand, tt.operand)
		}
		if !tt.op.Valid() {
			t.Errorf("%s: Valid() = false", tt.name)
		}
	}
}

func TestOpcodeUnknown(t *testing.T) {
	op := Opcode(0xEE)
	if op.Valid() {
		t.Fatal("0xEE should not be a valid opcode")
	}
	if got := op.String(); got != "UNKNOWN_EE" {
		t.Errorf("String() = %q, want UNKNOWN_EE", got)
	}
}

func TestOpcodeNamesUnique(t *testing.T) {
	seen := make(map[string]Opcode)
	for op, info := range opcodeTable {
		if prev, ok := seen[info.Name]; ok {
			t.Errorf("name %q used by %02X and %02X", info.Name, byte(prev), byte(op))
		}
		seen[info.Name] = op
	}
}

func TestStackEffects(t *testing.T) {
	tests := []struct {
		op     Opcode
		effect int
	}{
		{OpLoadConst, 1},
		{OpPop, -1},
		{OpDup2, 2},
		{OpAdd, -1},
		{OpNeg, 0},
		{OpSetElement, -2},
		{OpJumpIfTrue, -1},
		{OpThrow, -1},
	}
	for _, tt := range tests {
		if got := tt.op.Info().StackEffect; got != tt.effect {
			t.Errorf("%s: StackEffect = %d, want %d", tt.op, got, tt.effect)
		}
	}
}

func TestInstructionString(t *testing.T) {
	if got := Simple(OpAdd).String(); got != "ADD" {
		t.Errorf("Simple(ADD) = %q", got)
	}
	got := WithOperand(OpLoadConst, 3).String()
	if !strings.HasPrefix(got, "LOAD_CONST") || !strings.Contains(got, "const(3)") {
		t.Errorf("WithOperand(LOAD_CONST, 3) = %q", got)
	}
	if got := WithOperand(OpJump, 12).String(); got != "JUMP jump(12)" {
		t.Errorf("jump = %q", got)
	}
}

func TestOperandKindString(t *testing.T) {
	for kind, want := range map[OperandKind]string{
		OperandNone:      "none",
		OperandConstant:  "const",
		OperandLocal:     "local",
		OperandArgCount:  "argc",
		OperandKind(200): "?",
	} {
		if got := kind.String(); got != want {
			t.Errorf("OperandKind(%d) = %q, want %q", kind, got, want)
		}
	}
}
