package vm

import (
	"fmt"
	"io"
	"math"
	"strings"
)

// ---------------------------------------------------------------------------
// Chunk: one compilation unit
// ---------------------------------------------------------------------------

// DeclKind is the declaration form of a top-level binding.
type DeclKind uint8

const (
	DeclVar DeclKind = iota
	DeclLet
	DeclConst
	DeclFunction
)

// GlobalDecl is a binding the chunk declares at program top level. The VM
// creates it before the first instruction runs.
type GlobalDecl struct {
	Name string
	Kind DeclKind
}

// Handler is one entry of a chunk's exception table. A throw raised by an
// instruction in [Start, End) resumes at Target with the thrown value
// pushed. Entries are ordered innermost first.
type Handler struct {
	Start  int
	End    int
	Target int
}

// Chunk is an ordered instruction sequence plus its constant pool. It is
// immutable once built.
type Chunk struct {
	Name         string
	Instructions []Instruction
	Constants    []Value
	Lines        []int
	Handlers     []Handler
	NumLocals    int
	NumUpvalues  int
	Globals      []GlobalDecl
	LocalNames   []string
}

// localName returns the declared name of a local slot, for diagnostics.
func (c *Chunk) localName(slot int32) string {
	if int(slot) < len(c.LocalNames) && c.LocalNames[slot] != "" {
		return c.LocalNames[slot]
	}
	return "variable"
}

// Line returns the source line of the instruction at ip, or 0.
func (c *Chunk) Line(ip int) int {
	if ip >= 0 && ip < len(c.Lines) {
		return c.Lines[ip]
	}
	return 0
}

// constantString returns the string constant at idx.
func (c *Chunk) constantString(idx int32) string {
	return c.Constants[idx].str
}

// Validate checks that every operand refers to a valid pool index, local
// slot, or jump target. The VM refuses to run a chunk that fails.
func (c *Chunk) Validate() error {
	n := len(c.Instructions)
	for ip, in := range c.Instructions {
		info, ok := opcodeTable[in.Op]
		if !ok {
			return Errorf(InternalError, "%s: unknown opcode 0x%02X at %d", c.Name, byte(in.Op), ip)
		}
		bad := func(what string) error {
			return Errorf(InternalError, "%s: %s operand %d out of range at %d (%s)", c.Name, what, in.Operand, ip, info.Name)
		}
		switch info.Operand {
		case OperandConstant:
			limit := len(c.Constants)
			if in.Op == OpNewRegExp {
				limit--
			}
			if in.Operand < 0 || int(in.Operand) >= limit {
				return bad("constant")
			}
			if in.Op == OpClosure {
				t := c.Constants[in.Operand].AsTemplate()
				if t == nil {
					return Errorf(InternalError, "%s: closure operand %d is not a function template", c.Name, in.Operand)
				}
				if err := t.Chunk.Validate(); err != nil {
					return err
				}
			}
		case OperandProperty:
			if in.Operand < 0 || int(in.Operand) >= len(c.Constants) || c.Constants[in.Operand].kind != KindString {
				return bad("property")
			}
		case OperandLocal:
			limit := c.NumLocals
			if in.Op == OpLoadUpvalue || in.Op == OpStoreUpvalue {
				limit = c.NumUpvalues
			}
			if in.Operand < 0 || int(in.Operand) >= limit {
				return bad("local")
			}
		case OperandJump:
			if in.Operand < 0 || int(in.Operand) > n {
				return bad("jump")
			}
		case OperandArgCount:
			if in.Operand < 0 || in.Operand > MaxArgCount {
				return bad("argc")
			}
		}
	}
	for _, h := range c.Handlers {
		if h.Start < 0 || h.End > n || h.Start > h.End || h.Target < 0 || h.Target >= n {
			return Errorf(InternalError, "%s: invalid handler [%d,%d)->%d", c.Name, h.Start, h.End, h.Target)
		}
	}
	return nil
}

// Disassemble writes a human-readable listing of the chunk and every
// function template it contains.
func (c *Chunk) Disassemble(w io.Writer) {
	c.disassemble(w, 0)
}

func (c *Chunk) disassemble(w io.Writer, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%s== %s (locals=%d upvalues=%d constants=%d) ==\n",
		indent, c.Name, c.NumLocals, c.NumUpvalues, len(c.Constants))
	for ip, in := range c.Instructions {
		info := in.Op.Info()
		line := fmt.Sprintf("%s%04d %4d  %-18s", indent, ip, c.Line(ip), info.Name)
		switch info.Operand {
		case OperandConstant, OperandProperty:
			if int(in.Operand) < len(c.Constants) {
				line += fmt.Sprintf(" %d (%s)", in.Operand, c.Constants[in.Operand].Inspect())
			} else {
				line += fmt.Sprintf(" %d", in.Operand)
			}
		case OperandNone:
		default:
			line += fmt.Sprintf(" %d", in.Operand)
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
	for _, h := range c.Handlers {
		fmt.Fprintf(w, "%s  handler [%04d, %04d) -> %04d\n", indent, h.Start, h.End, h.Target)
	}
	for _, k := range c.Constants {
		if t := k.AsTemplate(); t != nil {
			t.Chunk.disassemble(w, depth+1)
		}
	}
}

// ---------------------------------------------------------------------------
// ChunkBuilder: emission with jump patching
// ---------------------------------------------------------------------------

type constKey struct {
	kind Kind
	bits uint64
	str  string
}

// ChunkBuilder accumulates instructions and constants for one chunk.
type ChunkBuilder struct {
	chunk  Chunk
	consts map[constKey]int
	line   int
	err    error
}

// NewChunkBuilder creates a builder for a chunk with the given name.
func NewChunkBuilder(name string) *ChunkBuilder {
	return &ChunkBuilder{
		chunk:  Chunk{Name: name},
		consts: make(map[constKey]int),
	}
}

// SetLine sets the source line recorded for subsequent instructions.
func (b *ChunkBuilder) SetLine(line int) { b.line = line }

// Len returns the number of instructions emitted so far. It is also the
// index the next instruction will get.
func (b *ChunkBuilder) Len() int { return len(b.chunk.Instructions) }

// Err returns the first limit violation hit while building.
func (b *ChunkBuilder) Err() error { return b.err }

// Emit appends an operand-less instruction and returns its index.
func (b *ChunkBuilder) Emit(op Opcode) int {
	return b.EmitOperand(op, 0)
}

// EmitOperand appends an instruction with an operand and returns its index.
func (b *ChunkBuilder) EmitOperand(op Opcode, operand int) int {
	if operand > math.MaxInt32 || operand < math.MinInt32 {
		b.fail(Errorf(InternalError, "operand %d out of range", operand))
	}
	b.chunk.Instructions = append(b.chunk.Instructions, WithOperand(op, operand))
	b.chunk.Lines = append(b.chunk.Lines, b.line)
	return len(b.chunk.Instructions) - 1
}

// EmitJump appends a jump with a placeholder target and returns its index
// for PatchJump.
func (b *ChunkBuilder) EmitJump(op Opcode) int {
	return b.EmitOperand(op, -1)
}

// EmitLoop appends a jump back to target.
func (b *ChunkBuilder) EmitLoop(op Opcode, target int) int {
	return b.EmitOperand(op, target)
}

// PatchJump points the jump at index at to the next instruction.
func (b *ChunkBuilder) PatchJump(at int) {
	b.PatchJumpTo(at, b.Len())
}

// PatchJumpTo points the jump at index at to target.
func (b *ChunkBuilder) PatchJumpTo(at, target int) {
	b.chunk.Instructions[at].Operand = int32(target)
}

// AddConstant adds v to the pool and returns its index. Primitive
// constants are deduplicated.
func (b *ChunkBuilder) AddConstant(v Value) int {
	var key constKey
	dedup := false
	switch v.kind {
	case KindNumber, KindString, KindBoolean, KindUndefined, KindNull:
		key = constKey{kind: v.kind, bits: v.bits, str: v.str}
		dedup = true
		if idx, ok := b.consts[key]; ok {
			return idx
		}
	}
	idx := len(b.chunk.Constants)
	if idx >= MaxConstants {
		b.fail(Errorf(InternalError, "%s: too many constants", b.chunk.Name))
		return 0
	}
	b.chunk.Constants = append(b.chunk.Constants, v)
	if dedup {
		b.consts[key] = idx
	}
	return idx
}

// AddRawConstant adds v without deduplication. NewRegExp relies on its
// pattern and flags being adjacent.
func (b *ChunkBuilder) AddRawConstant(v Value) int {
	idx := len(b.chunk.Constants)
	if idx >= MaxConstants {
		b.fail(Errorf(InternalError, "%s: too many constants", b.chunk.Name))
		return 0
	}
	b.chunk.Constants = append(b.chunk.Constants, v)
	return idx
}

// AddName adds a string constant used as a property or global name.
func (b *ChunkBuilder) AddName(name string) int {
	return b.AddConstant(String(name))
}

// AddHandler records an exception-table entry.
func (b *ChunkBuilder) AddHandler(start, end, target int) {
	if start >= end {
		return
	}
	b.chunk.Handlers = append(b.chunk.Handlers, Handler{Start: start, End: end, Target: target})
}

// DeclareGlobal records a top-level binding.
func (b *ChunkBuilder) DeclareGlobal(name string, kind DeclKind) {
	for i, g := range b.chunk.Globals {
		if g.Name == name {
			if kind != DeclVar {
				b.chunk.Globals[i].Kind = kind
			}
			return
		}
	}
	b.chunk.Globals = append(b.chunk.Globals, GlobalDecl{Name: name, Kind: kind})
}

// SetNumLocals records the number of local slots the chunk needs.
func (b *ChunkBuilder) SetNumLocals(n int) {
	if n > MaxLocals {
		b.fail(Errorf(InternalError, "%s: too many locals", b.chunk.Name))
	}
	b.chunk.NumLocals = n
}

// SetLocalNames records the name of every local slot.
func (b *ChunkBuilder) SetLocalNames(names []string) { b.chunk.LocalNames = names }

// SetNumUpvalues records the number of upvalues the chunk's closure has.
func (b *ChunkBuilder) SetNumUpvalues(n int) { b.chunk.NumUpvalues = n }

// Build returns the finished chunk.
func (b *ChunkBuilder) Build() *Chunk {
	c := b.chunk
	return &c
}

func (b *ChunkBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}
