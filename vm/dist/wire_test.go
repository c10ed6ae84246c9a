package dist

import (
	"bytes"
	"crypto/sha256"
	"io"
	"math"
	"math/big"
	"strings"
	"testing"

	"github.com/spacey-js/spacey/compiler"
	"github.com/spacey-js/spacey/vm"
)

func compile(t *testing.T, src string) *vm.Chunk {
	t.Helper()
	c, err := compiler.CompileSource(src, false)
	if err != nil {
		t.Fatalf("compile %q: %v", src, err)
	}
	return c
}

func runChunk(t *testing.T, c *vm.Chunk) string {
	t.Helper()
	machine := vm.NewVM(vm.WithOutput(io.Discard))
	v, err := machine.Execute(c)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	return v.String()
}

func TestChunk_CBORRoundTrip(t *testing.T) {
	sources := []struct {
		name string
		src  string
		want string
	}{
		{"arithmetic", "1 + 2 * 3", "7"},
		{"strings", "'a' + 'b'.toUpperCase()", "aB"},
		{"closures", "function counter() { let n = 0; return () => ++n } const c = counter(); c(); c()", "2"},
		{"bigint", "2n ** 70n", "1180591620717411303424"},
		{"exceptions", "let r; try { throw new TypeError('x') } catch (e) { r = e.name } finally { r += '!' } r", "TypeError!"},
		{"classes", "class A { constructor(v) { this.v = v } get2() { return this.v * 2 } } new A(21).get2()", "42"},
		{"regexp", "/b+/.test('abbc')", "true"},
		{"globals", "var g = 1; let h = 2; const k = 3; g + h + k", "6"},
		{"special numbers", "[NaN, -0, Infinity].map(String).join()", "NaN,0,Infinity"},
	}
	for _, tc := range sources {
		t.Run(tc.name, func(t *testing.T) {
			c := compile(t, tc.src)
			data, err := MarshalChunk(c)
			if err != nil {
				t.Fatalf("MarshalChunk: %v", err)
			}
			got, err := UnmarshalChunk(data)
			if err != nil {
				t.Fatalf("UnmarshalChunk: %v", err)
			}
			if len(got.Instructions) != len(c.Instructions) {
				t.Errorf("instructions: got %d, want %d", len(got.Instructions), len(c.Instructions))
			}
			if out := runChunk(t, got); out != tc.want {
				t.Errorf("decoded chunk result = %q, want %q", out, tc.want)
			}
		})
	}
}

func TestChunk_Deterministic(t *testing.T) {
	src := "function f(a, b) { return a + b } f(1, 2)"
	a, err := MarshalChunk(compile(t, src))
	if err != nil {
		t.Fatal(err)
	}
	b, err := MarshalChunk(compile(t, src))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("two compiles of the same source encoded differently")
	}
	if Equal(compile(t, src), compile(t, "f(2, 1)")) {
		t.Error("different sources reported equal")
	}
}

func TestChunk_PreservesConstants(t *testing.T) {
	b := vm.NewChunkBuilder("consts")
	negZero := math.Copysign(0, -1)
	values := []vm.Value{
		vm.Undefined,
		vm.Null,
		vm.True,
		vm.Number(negZero),
		vm.NaN,
		vm.String("héllo"),
		vm.BigInt(new(big.Int).Lsh(big.NewInt(1), 100)),
	}
	for _, v := range values {
		b.AddRawConstant(v)
	}
	b.Emit(vm.OpHalt)

	data, err := MarshalChunk(b.Build())
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalChunk(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Constants) != len(values) {
		t.Fatalf("constants: got %d, want %d", len(got.Constants), len(values))
	}
	for i, want := range values {
		k := got.Constants[i]
		if k.Kind() != want.Kind() {
			t.Errorf("constant %d kind = %v, want %v", i, k.Kind(), want.Kind())
			continue
		}
		if k.String() != want.String() {
			t.Errorf("constant %d = %q, want %q", i, k.String(), want.String())
		}
	}
	if !math.Signbit(got.Constants[3].AsNumber()) {
		t.Error("negative zero lost its sign")
	}
}

func TestChunk_NestedTemplates(t *testing.T) {
	c := compile(t, "function outer() { function inner(x, ...rest) { return arguments.length + rest.length } return inner } outer()(1, 2, 3)")
	data, err := MarshalChunk(c)
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalChunk(data)
	if err != nil {
		t.Fatal(err)
	}
	var disasm strings.Builder
	got.Disassemble(&disasm)
	for _, name := range []string{"== outer", "== inner"} {
		if !strings.Contains(disasm.String(), name) {
			t.Errorf("decoded chunk is missing template %q", name)
		}
	}
	if out := runChunk(t, got); out != "5" {
		t.Errorf("result = %q, want 5", out)
	}
}

func TestUnmarshalChunk_RejectsVersionMismatch(t *testing.T) {
	body, err := cborEncMode.Marshal(&ChunkRecord{Name: "x", Instructions: []InstructionRecord{{Op: uint8(vm.OpHalt)}}})
	if err != nil {
		t.Fatal(err)
	}
	env := Envelope{Version: FormatVersion + 1, Body: body}
	env.Hash = sha256.Sum256(body)
	data, err := cborEncMode.Marshal(&env)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := UnmarshalChunk(data); err == nil || !strings.Contains(err.Error(), "format version") {
		t.Errorf("error = %v, want a version error", err)
	}
}

func TestUnmarshalChunk_RejectsTamperedBody(t *testing.T) {
	data, err := MarshalChunk(compile(t, "'payload'"))
	if err != nil {
		t.Fatal(err)
	}
	i := bytes.Index(data, []byte("payload"))
	if i < 0 {
		t.Fatal("string constant not found in encoding")
	}
	data[i] = 'P'
	if _, err := UnmarshalChunk(data); err == nil || !strings.Contains(err.Error(), "hash mismatch") {
		t.Errorf("error = %v, want a hash mismatch", err)
	}
}

func TestUnmarshalChunk_RejectsGarbage(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("not cbor"), {0xFF, 0x00}} {
		if _, err := UnmarshalChunk(data); err == nil {
			t.Errorf("UnmarshalChunk(%x) succeeded", data)
		}
	}
}

func TestUnmarshalChunk_ValidatesBytecode(t *testing.T) {
	rec := &ChunkRecord{
		Name:         "bad",
		Instructions: []InstructionRecord{{Op: uint8(vm.OpLoadConst), Operand: 4}},
		Lines:        []int{1},
	}
	body, err := cborEncMode.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	data, err := cborEncMode.Marshal(&Envelope{Version: FormatVersion, Hash: sha256.Sum256(body), Body: body})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := UnmarshalChunk(data); err == nil || !strings.Contains(err.Error(), "invalid") {
		t.Errorf("error = %v, want a validation error", err)
	}
}

func TestMarshalChunk_RejectsHostConstants(t *testing.T) {
	b := vm.NewChunkBuilder("host")
	b.AddRawConstant(vm.FunctionValue(vm.NewNative("f", 0, nil)))
	b.Emit(vm.OpHalt)
	if _, err := MarshalChunk(b.Build()); err == nil {
		t.Error("MarshalChunk encoded a native function constant")
	}
}

func TestVerifyChunk(t *testing.T) {
	src := "let x = 40; x + 2"
	data, err := MarshalChunk(compile(t, src))
	if err != nil {
		t.Fatal(err)
	}
	compileFn := func(s string) (*vm.Chunk, error) { return compiler.CompileSource(s, false) }
	if err := VerifyChunk(data, src, compileFn); err != nil {
		t.Errorf("VerifyChunk(matching source): %v", err)
	}
	if err := VerifyChunk(data, "let x = 41; x + 2", compileFn); err == nil {
		t.Error("VerifyChunk accepted a different source")
	}
	if err := VerifyChunk(data, "let = ;", compileFn); err == nil || !strings.Contains(err.Error(), "compile failed") {
		t.Errorf("VerifyChunk(bad source) = %v", err)
	}
}
