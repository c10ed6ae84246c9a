package vm

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func newTestVM(t *testing.T, opts ...Option) (*VM, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	opts = append([]Option{WithOutput(&out)}, opts...)
	return NewVM(opts...), &out
}

// ---------------------------------------------------------------------------
// Execution of hand-assembled chunks
// ---------------------------------------------------------------------------

func TestExecuteArithmetic(t *testing.T) {
	b := NewChunkBuilder("arith")
	b.EmitOperand(OpLoadConst, b.AddConstant(Int(6)))
	b.EmitOperand(OpLoadConst, b.AddConstant(Int(7)))
	b.Emit(OpMul)
	b.Emit(OpHalt)

	vm, _ := newTestVM(t)
	v, err := vm.Execute(b.Build())
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsNumber() || v.AsNumber() != 42 {
		t.Errorf("result = %s, want 42", v.Inspect())
	}
}

func TestExecuteEmptyStackHaltsUndefined(t *testing.T) {
	b := NewChunkBuilder("empty")
	b.Emit(OpHalt)
	vm, _ := newTestVM(t)
	v, err := vm.Execute(b.Build())
	if err != nil || !v.IsUndefined() {
		t.Errorf("Execute = %s, %v; want undefined", v.Inspect(), err)
	}
}

func TestExecuteStringConcat(t *testing.T) {
	b := NewChunkBuilder("concat")
	b.EmitOperand(OpLoadConst, b.AddConstant(String("n=")))
	b.EmitOperand(OpLoadConst, b.AddConstant(Int(5)))
	b.Emit(OpAdd)
	b.Emit(OpHalt)

	vm, _ := newTestVM(t)
	v, err := vm.Execute(b.Build())
	if err != nil {
		t.Fatal(err)
	}
	if v.String() != "n=5" {
		t.Errorf("result = %q, want n=5", v.String())
	}
}

func TestExecuteConditionalJump(t *testing.T) {
	b := NewChunkBuilder("branch")
	b.Emit(OpLoadFalse)
	j := b.EmitJump(OpJumpIfFalse)
	b.EmitOperand(OpLoadConst, b.AddConstant(String("then")))
	b.Emit(OpHalt)
	b.PatchJump(j)
	b.EmitOperand(OpLoadConst, b.AddConstant(String("else")))
	b.Emit(OpHalt)

	vm, _ := newTestVM(t)
	v, err := vm.Execute(b.Build())
	if err != nil {
		t.Fatal(err)
	}
	if v.String() != "else" {
		t.Errorf("result = %q, want else", v.String())
	}
}

func TestExecuteCallsNative(t *testing.T) {
	var gotThis Value
	sum := NewNative("sum", 2, func(vm *VM, this Value, args []Value) (Value, error) {
		gotThis = this
		total := 0.0
		for _, a := range args {
			total += a.AsNumber()
		}
		return Number(total), nil
	})

	b := NewChunkBuilder("call")
	b.EmitOperand(OpLoadGlobal, b.AddName("sum"))
	b.EmitOperand(OpLoadConst, b.AddConstant(String("recv")))
	b.EmitOperand(OpLoadConst, b.AddConstant(Int(2)))
	b.EmitOperand(OpLoadConst, b.AddConstant(Int(3)))
	b.EmitOperand(OpCall, 2)
	b.Emit(OpHalt)

	vm, _ := newTestVM(t)
	vm.SetGlobal("sum", FunctionValue(sum))
	v, err := vm.Execute(b.Build())
	if err != nil {
		t.Fatal(err)
	}
	if v.AsNumber() != 5 {
		t.Errorf("result = %s, want 5", v.Inspect())
	}
	if gotThis.String() != "recv" {
		t.Errorf("this = %s, want recv", gotThis.Inspect())
	}
}

func TestExecuteClosureCall(t *testing.T) {
	inner := NewChunkBuilder("inc")
	inner.SetNumLocals(1)
	inner.EmitOperand(OpLoadLocal, 0)
	inner.EmitOperand(OpLoadConst, inner.AddConstant(Int(1)))
	inner.Emit(OpAdd)
	inner.Emit(OpReturn)
	tmpl := &FunctionTemplate{Name: "inc", NumParams: 1, Chunk: inner.Build(), RestIndex: -1}

	b := NewChunkBuilder("main")
	b.EmitOperand(OpClosure, b.AddConstant(TemplateValue(tmpl)))
	b.Emit(OpLoadUndefined)
	b.EmitOperand(OpLoadConst, b.AddConstant(Int(41)))
	b.EmitOperand(OpCall, 1)
	b.Emit(OpHalt)

	vm, _ := newTestVM(t)
	v, err := vm.Execute(b.Build())
	if err != nil {
		t.Fatal(err)
	}
	if v.AsNumber() != 42 {
		t.Errorf("inc(41) = %s", v.Inspect())
	}
}

func TestExecuteHandlerCatchesThrow(t *testing.T) {
	b := NewChunkBuilder("catch")
	b.EmitOperand(OpLoadConst, b.AddConstant(String("boom")))
	b.Emit(OpThrow)
	target := b.Emit(OpHalt)
	b.AddHandler(0, 2, target)

	vm, _ := newTestVM(t)
	v, err := vm.Execute(b.Build())
	if err != nil {
		t.Fatal(err)
	}
	if v.String() != "boom" {
		t.Errorf("caught = %s, want boom", v.Inspect())
	}
}

func TestExecuteUncaughtThrow(t *testing.T) {
	b := NewChunkBuilder("throw")
	b.EmitOperand(OpLoadConst, b.AddConstant(Int(7)))
	b.Emit(OpThrow)
	b.Emit(OpHalt)

	vm, _ := newTestVM(t)
	_, err := vm.Execute(b.Build())
	e, ok := AsError(err)
	if !ok {
		t.Fatalf("error = %v, want *Error", err)
	}
	if e.Thrown.AsNumber() != 7 {
		t.Errorf("Thrown = %s, want 7", e.Thrown.Inspect())
	}
	if !strings.Contains(e.Error(), "Uncaught 7") {
		t.Errorf("Error() = %q", e.Error())
	}
}

func TestExecuteNativeErrorKinds(t *testing.T) {
	b := NewChunkBuilder("typeerr")
	b.Emit(OpLoadNull)
	b.EmitOperand(OpGetProperty, b.AddName("x"))
	b.Emit(OpHalt)

	vm, _ := newTestVM(t)
	_, err := vm.Execute(b.Build())
	if e, ok := AsError(err); !ok || e.Kind != TypeError {
		t.Errorf("null.x error = %v, want TypeError", err)
	}

	b = NewChunkBuilder("referr")
	b.EmitOperand(OpLoadGlobal, b.AddName("nowhere"))
	b.Emit(OpHalt)
	_, err = vm.Execute(b.Build())
	if e, ok := AsError(err); !ok || e.Kind != ReferenceError {
		t.Errorf("nowhere error = %v, want ReferenceError", err)
	}
}

func TestExecuteRejectsInvalidChunk(t *testing.T) {
	c := &Chunk{Name: "bad", Instructions: []Instruction{WithOperand(OpLoadConst, 3)}, Lines: []int{1}}
	vm, _ := newTestVM(t)
	_, err := vm.Execute(c)
	if e, ok := AsError(err); !ok || e.Kind != InternalError {
		t.Errorf("error = %v, want InternalError", err)
	}
}

func TestExecuteRecoversStackAfterError(t *testing.T) {
	vm, _ := newTestVM(t)
	b := NewChunkBuilder("fail")
	b.Emit(OpLoadTrue)
	b.Emit(OpLoadTrue)
	b.EmitOperand(OpLoadGlobal, b.AddName("missing"))
	b.Emit(OpHalt)
	if _, err := vm.Execute(b.Build()); err == nil {
		t.Fatal("expected an error")
	}

	ok := NewChunkBuilder("ok")
	ok.Emit(OpHalt)
	v, err := vm.Execute(ok.Build())
	if err != nil || !v.IsUndefined() {
		t.Errorf("after error: %s, %v; want a clean stack", v.Inspect(), err)
	}
}

// ---------------------------------------------------------------------------
// Globals and lifecycle
// ---------------------------------------------------------------------------

func TestDeclareGlobalsBeforeRun(t *testing.T) {
	b := NewChunkBuilder("decls")
	b.DeclareGlobal("v", DeclVar)
	b.DeclareGlobal("l", DeclLet)
	b.Emit(OpHalt)

	vm, _ := newTestVM(t)
	vm.SetGlobal("v", Int(9))
	if _, err := vm.Execute(b.Build()); err != nil {
		t.Fatal(err)
	}
	if v, ok := vm.GetGlobal("v"); !ok || v.AsNumber() != 9 {
		t.Errorf("var redeclaration clobbered value: %v", v)
	}
	if _, ok := vm.GetGlobal("l"); ok {
		t.Error("let binding should be uninitialized")
	}
	if !vm.Globals().Has("l") {
		t.Error("let binding was not declared")
	}
}

func TestResetClearsGlobals(t *testing.T) {
	vm, _ := newTestVM(t)
	vm.SetGlobal("answer", Int(42))
	if _, err := vm.NewObject(); err != nil {
		t.Fatal(err)
	}
	before := vm.Heap().Len()
	vm.Reset()
	if _, ok := vm.GetGlobal("answer"); ok {
		t.Error("global survived Reset")
	}
	if _, ok := vm.GetGlobal("Math"); !ok {
		t.Error("built-ins missing after Reset")
	}
	if vm.Heap().Len() > before {
		t.Errorf("heap grew across Reset: %d > %d", vm.Heap().Len(), before)
	}
}

func TestNewArrayAndObject(t *testing.T) {
	vm, _ := newTestVM(t)
	arr, err := vm.NewArray([]Value{Int(2), Int(3)})
	if err != nil {
		t.Fatal(err)
	}
	if got := arr.Inspect(); got != "[2, 3]" {
		t.Errorf("Inspect() = %q, want [2, 3]", got)
	}
	if got := arr.String(); got != "2,3" {
		t.Errorf("String() = %q, want 2,3", got)
	}
	obj, err := vm.NewObject()
	if err != nil {
		t.Fatal(err)
	}
	if obj.TypeOf() != "object" || !obj.IsObject() {
		t.Errorf("NewObject() kind = %v", obj.Kind())
	}
}

func TestHeapCapacity(t *testing.T) {
	h := NewHeap(2)
	for i := 0; i < 2; i++ {
		if _, ok := h.Allocate(Object{Class: ClassObject}); !ok {
			t.Fatalf("allocation %d failed", i)
		}
	}
	if _, ok := h.Allocate(Object{Class: ClassObject}); ok {
		t.Error("allocation beyond capacity succeeded")
	}
	if h.Len() != 2 || h.Cap() != 2 {
		t.Errorf("Len/Cap = %d/%d, want 2/2", h.Len(), h.Cap())
	}
	h.Reset()
	if h.Len() != 0 || h.Used() != 0 {
		t.Errorf("after Reset: Len = %d, Used = %d", h.Len(), h.Used())
	}
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func TestErrorFormatting(t *testing.T) {
	err := Errorf(RangeError, "bad %d", 3)
	if err.Error() != "RangeError: bad 3" {
		t.Errorf("Error() = %q", err.Error())
	}
	var wrapped error = err
	if got, ok := AsError(wrapped); !ok || got.Kind != RangeError {
		t.Error("AsError failed")
	}
	if !errors.Is(err, &Error{Kind: RangeError}) {
		t.Error("errors.Is should match on kind")
	}
	if errors.Is(err, NewError(RangeError, "other")) {
		t.Error("errors.Is matched a different message")
	}
	if _, ok := AsError(errors.New("plain")); ok {
		t.Error("AsError matched a plain error")
	}
}

func TestErrorKindByName(t *testing.T) {
	for _, name := range []string{"SyntaxError", "TypeError", "ReferenceError", "RangeError"} {
		kind, ok := ErrorKindByName(name)
		if !ok || kind.String() != name {
			t.Errorf("ErrorKindByName(%q) = %v, %v", name, kind, ok)
		}
	}
	if _, ok := ErrorKindByName("IOError"); ok {
		t.Error("IOError is not a script error name")
	}
	if _, ok := ErrorKindByName("EvalError"); ok {
		t.Error("unexpected match for EvalError")
	}
}
