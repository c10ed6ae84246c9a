package vm

import (
	"bytes"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// ChunkBuilder tests
// ---------------------------------------------------------------------------

func TestChunkBuilderDeduplicatesPrimitives(t *testing.T) {
	b := NewChunkBuilder("test")
	a := b.AddConstant(Number(1))
	if again := b.AddConstant(Number(1)); again != a {
		t.Errorf("duplicate number got index %d, want %d", again, a)
	}
	s := b.AddName("x")
	if again := b.AddConstant(String("x")); again != s {
		t.Errorf("duplicate string got index %d, want %d", again, s)
	}
	if b.AddConstant(String("1")) == a {
		t.Error("string \"1\" shared a slot with number 1")
	}
	raw := b.AddRawConstant(Number(1))
	if raw == a {
		t.Error("AddRawConstant deduplicated")
	}
	if n := len(b.Build().Constants); n != 4 {
		t.Errorf("constants = %d, want 4", n)
	}
}

func TestChunkBuilderJumps(t *testing.T) {
	b := NewChunkBuilder("jumps")
	b.Emit(OpLoadTrue)
	j := b.EmitJump(OpJumpIfFalse)
	b.Emit(OpLoadNull)
	b.PatchJump(j)
	loop := b.EmitLoop(OpJump, 0)
	c := b.Build()

	if c.Instructions[j].Operand != 3 {
		t.Errorf("patched jump = %d, want 3", c.Instructions[j].Operand)
	}
	if c.Instructions[loop].Operand != 0 {
		t.Errorf("loop target = %d, want 0", c.Instructions[loop].Operand)
	}
	if b.Len() != 4 {
		t.Errorf("Len() = %d, want 4", b.Len())
	}
}

func TestChunkBuilderLines(t *testing.T) {
	b := NewChunkBuilder("lines")
	b.SetLine(3)
	b.Emit(OpLoadNull)
	b.SetLine(7)
	b.Emit(OpPop)
	c := b.Build()
	if c.Line(0) != 3 || c.Line(1) != 7 {
		t.Errorf("lines = %v, want [3 7]", c.Lines)
	}
	if c.Line(99) != 0 {
		t.Errorf("Line(99) = %d, want 0", c.Line(99))
	}
}

func TestChunkBuilderHandlersAndGlobals(t *testing.T) {
	b := NewChunkBuilder("misc")
	b.Emit(OpNop)
	b.Emit(OpNop)
	b.AddHandler(1, 1, 0)
	b.AddHandler(0, 1, 1)
	b.DeclareGlobal("x", DeclVar)
	b.DeclareGlobal("x", DeclLet)
	b.DeclareGlobal("x", DeclVar)
	c := b.Build()

	if len(c.Handlers) != 1 {
		t.Errorf("handlers = %v, want the empty range dropped", c.Handlers)
	}
	if len(c.Globals) != 1 || c.Globals[0].Kind != DeclLet {
		t.Errorf("globals = %+v, want one let", c.Globals)
	}
}

func TestChunkBuilderOperandLimit(t *testing.T) {
	b := NewChunkBuilder("big")
	b.SetNumLocals(MaxLocals + 1)
	if b.Err() == nil {
		t.Fatal("expected an error for too many locals")
	}
}

// ---------------------------------------------------------------------------
// Validation tests
// ---------------------------------------------------------------------------

func TestChunkValidate(t *testing.T) {
	valid := func() *Chunk {
		b := NewChunkBuilder("ok")
		b.EmitOperand(OpLoadConst, b.AddConstant(Number(1)))
		b.Emit(OpHalt)
		return b.Build()
	}
	if err := valid().Validate(); err != nil {
		t.Fatalf("valid chunk: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Chunk)
		want   string
	}{
		{"unknown opcode", func(c *Chunk) { c.Instructions[1].Op = Opcode(0xEE) }, "unknown opcode"},
		{"constant out of range", func(c *Chunk) { c.Instructions[0].Operand = 5 }, "constant operand 5"},
		{"negative constant", func(c *Chunk) { c.Instructions[0].Operand = -1 }, "constant operand -1"},
		{"local out of range", func(c *Chunk) { c.Instructions[0] = WithOperand(OpLoadLocal, 0) }, "local operand"},
		{"upvalue out of range", func(c *Chunk) {
			c.NumLocals = 4
			c.Instructions[0] = WithOperand(OpLoadUpvalue, 0)
		}, "local operand"},
		{"jump past end", func(c *Chunk) { c.Instructions[0] = WithOperand(OpJump, 3) }, "jump operand"},
		{"property not a string", func(c *Chunk) { c.Instructions[0] = WithOperand(OpGetProperty, 0) }, "property operand"},
		{"argc too large", func(c *Chunk) { c.Instructions[0] = WithOperand(OpCall, 300) }, "argc operand"},
		{"closure not a template", func(c *Chunk) { c.Instructions[0] = WithOperand(OpClosure, 0) }, "not a function template"},
		{"bad handler", func(c *Chunk) { c.Handlers = []Handler{{Start: 0, End: 1, Target: 9}} }, "invalid handler"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(c)
			err := c.Validate()
			if err == nil {
				t.Fatal("Validate() succeeded")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error = %q, want %q", err, tc.want)
			}
			if e, ok := AsError(err); !ok || e.Kind != InternalError {
				t.Errorf("error kind = %v, want InternalError", err)
			}
		})
	}
}

func TestChunkValidateNestedTemplate(t *testing.T) {
	inner := NewChunkBuilder("inner")
	inner.EmitOperand(OpLoadLocal, 7)
	tmpl := &FunctionTemplate{Name: "inner", Chunk: inner.Build(), RestIndex: -1}

	outer := NewChunkBuilder("outer")
	outer.EmitOperand(OpClosure, outer.AddConstant(TemplateValue(tmpl)))
	if err := outer.Build().Validate(); err == nil || !strings.Contains(err.Error(), "inner") {
		t.Errorf("Validate() = %v, want the nested chunk's error", err)
	}
}

func TestChunkDisassemble(t *testing.T) {
	inner := NewChunkBuilder("square")
	inner.SetNumLocals(1)
	inner.EmitOperand(OpLoadLocal, 0)
	inner.EmitOperand(OpLoadLocal, 0)
	inner.Emit(OpMul)
	inner.Emit(OpReturn)
	tmpl := &FunctionTemplate{Name: "square", NumParams: 1, Chunk: inner.Build(), RestIndex: -1}

	b := NewChunkBuilder("<main>")
	b.SetLine(1)
	b.EmitOperand(OpClosure, b.AddConstant(TemplateValue(tmpl)))
	b.EmitOperand(OpLoadConst, b.AddConstant(String("hi")))
	b.Emit(OpHalt)

	var buf bytes.Buffer
	b.Build().Disassemble(&buf)
	out := buf.String()
	for _, want := range []string{"== <main>", "CLOSURE", `'hi'`, "HALT", "  == square", "MUL", "RETURN"} {
		if !strings.Contains(out, want) {
			t.Errorf("disassembly missing %q:\n%s", want, out)
		}
	}
}
