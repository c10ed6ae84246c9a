package dist

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"math"
	"math/big"

	"github.com/fxamacker/cbor/v2"
	"github.com/spacey-js/spacey/vm"
)

// cborEncMode is the canonical encoding mode, so identical chunks always
// produce identical bytes and hashes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("dist: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalChunk serializes a compiled chunk, including every nested
// function template, to CBOR bytes.
func MarshalChunk(c *vm.Chunk) ([]byte, error) {
	rec, err := encodeChunk(c)
	if err != nil {
		return nil, err
	}
	body, err := cborEncMode.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("dist: marshal chunk: %w", err)
	}
	env := Envelope{Version: FormatVersion, Hash: sha256.Sum256(body), Body: body}
	return cborEncMode.Marshal(&env)
}

// UnmarshalChunk deserializes and validates a chunk produced by
// MarshalChunk.
func UnmarshalChunk(data []byte) (*vm.Chunk, error) {
	var env Envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("dist: unmarshal chunk: %w", err)
	}
	if env.Version != FormatVersion {
		return nil, fmt.Errorf("dist: chunk format version %d, want %d", env.Version, FormatVersion)
	}
	if sum := sha256.Sum256(env.Body); sum != env.Hash {
		return nil, fmt.Errorf("dist: hash mismatch: declared %x, computed %x", env.Hash, sum)
	}
	var rec ChunkRecord
	if err := cbor.Unmarshal(env.Body, &rec); err != nil {
		return nil, fmt.Errorf("dist: unmarshal chunk body: %w", err)
	}
	c, err := decodeChunk(&rec)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("dist: decoded chunk is invalid: %w", err)
	}
	return c, nil
}

// ChunkHash returns the content hash MarshalChunk would record for c.
func ChunkHash(c *vm.Chunk) ([32]byte, error) {
	rec, err := encodeChunk(c)
	if err != nil {
		return [32]byte{}, err
	}
	body, err := cborEncMode.Marshal(rec)
	if err != nil {
		return [32]byte{}, fmt.Errorf("dist: marshal chunk: %w", err)
	}
	return sha256.Sum256(body), nil
}

// VerifyChunk compiles source and checks that it yields the same bytecode
// as the encoded chunk in data. The compile function is injected so this
// package does not depend on the compiler.
func VerifyChunk(data []byte, source string, compile func(source string) (*vm.Chunk, error)) error {
	var env Envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("dist: unmarshal chunk: %w", err)
	}
	c, err := compile(source)
	if err != nil {
		return fmt.Errorf("dist: compile failed: %w", err)
	}
	computed, err := ChunkHash(c)
	if err != nil {
		return err
	}
	if computed != env.Hash {
		return fmt.Errorf("dist: hash mismatch: declared %x, computed %x", env.Hash, computed)
	}
	return nil
}

// Equal reports whether two chunks encode to the same bytes.
func Equal(a, b *vm.Chunk) bool {
	x, errA := MarshalChunk(a)
	y, errB := MarshalChunk(b)
	return errA == nil && errB == nil && bytes.Equal(x, y)
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

func encodeChunk(c *vm.Chunk) (*ChunkRecord, error) {
	rec := &ChunkRecord{
		Name:        c.Name,
		Lines:       c.Lines,
		NumLocals:   c.NumLocals,
		NumUpvalues: c.NumUpvalues,
		LocalNames:  c.LocalNames,
	}
	rec.Instructions = make([]InstructionRecord, len(c.Instructions))
	for i, in := range c.Instructions {
		rec.Instructions[i] = InstructionRecord{Op: uint8(in.Op), Operand: in.Operand}
	}
	for _, h := range c.Handlers {
		rec.Handlers = append(rec.Handlers, HandlerRecord{Start: h.Start, End: h.End, Target: h.Target})
	}
	for _, g := range c.Globals {
		rec.Globals = append(rec.Globals, GlobalRecord{Name: g.Name, Kind: uint8(g.Kind)})
	}
	for i, k := range c.Constants {
		cr, err := encodeConst(k)
		if err != nil {
			return nil, fmt.Errorf("dist: %s: constant %d: %w", c.Name, i, err)
		}
		rec.Constants = append(rec.Constants, cr)
	}
	return rec, nil
}

func encodeConst(v vm.Value) (ConstRecord, error) {
	if t := v.AsTemplate(); t != nil {
		tr, err := encodeTemplate(t)
		if err != nil {
			return ConstRecord{}, err
		}
		return ConstRecord{Tag: ConstTemplate, Template: tr}, nil
	}
	switch v.Kind() {
	case vm.KindUndefined:
		return ConstRecord{Tag: ConstUndefined}, nil
	case vm.KindNull:
		return ConstRecord{Tag: ConstNull}, nil
	case vm.KindBoolean:
		return ConstRecord{Tag: ConstBool, Bool: v.AsBool()}, nil
	case vm.KindNumber:
		return ConstRecord{Tag: ConstNumber, Bits: math.Float64bits(v.AsNumber())}, nil
	case vm.KindString:
		return ConstRecord{Tag: ConstString, Str: v.AsString()}, nil
	case vm.KindBigInt:
		return ConstRecord{Tag: ConstBigInt, Str: v.AsBigInt().String()}, nil
	}
	return ConstRecord{}, fmt.Errorf("cannot encode %s constant", v.Kind())
}

func encodeTemplate(t *vm.FunctionTemplate) (*TemplateRecord, error) {
	body, err := encodeChunk(t.Chunk)
	if err != nil {
		return nil, err
	}
	tr := &TemplateRecord{
		Name:          t.Name,
		Kind:          uint8(t.Kind),
		NumParams:     t.NumParams,
		RestIndex:     t.RestIndex,
		Chunk:         body,
		UsesArguments: t.UsesArguments,
		Source:        t.Source,
	}
	for _, u := range t.Upvalues {
		tr.Upvalues = append(tr.Upvalues, UpvalueRecord{FromLocal: u.FromLocal, Index: u.Index, Name: u.Name})
	}
	return tr, nil
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

func decodeChunk(rec *ChunkRecord) (*vm.Chunk, error) {
	c := &vm.Chunk{
		Name:        rec.Name,
		Lines:       rec.Lines,
		NumLocals:   rec.NumLocals,
		NumUpvalues: rec.NumUpvalues,
		LocalNames:  rec.LocalNames,
	}
	if len(c.Lines) != len(rec.Instructions) {
		c.Lines = make([]int, len(rec.Instructions))
		copy(c.Lines, rec.Lines)
	}
	c.Instructions = make([]vm.Instruction, len(rec.Instructions))
	for i, in := range rec.Instructions {
		c.Instructions[i] = vm.Instruction{Op: vm.Opcode(in.Op), Operand: in.Operand}
	}
	for _, h := range rec.Handlers {
		c.Handlers = append(c.Handlers, vm.Handler{Start: h.Start, End: h.End, Target: h.Target})
	}
	for _, g := range rec.Globals {
		if g.Kind > uint8(vm.DeclFunction) {
			return nil, fmt.Errorf("dist: %s: unknown declaration kind %d", rec.Name, g.Kind)
		}
		c.Globals = append(c.Globals, vm.GlobalDecl{Name: g.Name, Kind: vm.DeclKind(g.Kind)})
	}
	for i := range rec.Constants {
		v, err := decodeConst(&rec.Constants[i])
		if err != nil {
			return nil, fmt.Errorf("dist: %s: constant %d: %w", rec.Name, i, err)
		}
		c.Constants = append(c.Constants, v)
	}
	return c, nil
}

func decodeConst(cr *ConstRecord) (vm.Value, error) {
	switch cr.Tag {
	case ConstUndefined:
		return vm.Undefined, nil
	case ConstNull:
		return vm.Null, nil
	case ConstBool:
		return vm.Bool(cr.Bool), nil
	case ConstNumber:
		return vm.Number(math.Float64frombits(cr.Bits)), nil
	case ConstString:
		return vm.String(cr.Str), nil
	case ConstBigInt:
		n, ok := new(big.Int).SetString(cr.Str, 10)
		if !ok {
			return vm.Undefined, fmt.Errorf("malformed bigint %q", cr.Str)
		}
		return vm.BigInt(n), nil
	case ConstTemplate:
		if cr.Template == nil || cr.Template.Chunk == nil {
			return vm.Undefined, fmt.Errorf("template record without a chunk")
		}
		t, err := decodeTemplate(cr.Template)
		if err != nil {
			return vm.Undefined, err
		}
		return vm.TemplateValue(t), nil
	}
	return vm.Undefined, fmt.Errorf("unknown constant tag %d", cr.Tag)
}

func decodeTemplate(tr *TemplateRecord) (*vm.FunctionTemplate, error) {
	if tr.Kind > uint8(vm.FuncClassConstructor) {
		return nil, fmt.Errorf("unknown function kind %d", tr.Kind)
	}
	body, err := decodeChunk(tr.Chunk)
	if err != nil {
		return nil, err
	}
	t := &vm.FunctionTemplate{
		Name:          tr.Name,
		Kind:          vm.FunctionKind(tr.Kind),
		NumParams:     tr.NumParams,
		RestIndex:     tr.RestIndex,
		Chunk:         body,
		UsesArguments: tr.UsesArguments,
		Source:        tr.Source,
	}
	for _, u := range tr.Upvalues {
		t.Upvalues = append(t.Upvalues, vm.UpvalueDesc{FromLocal: u.FromLocal, Index: u.Index, Name: u.Name})
	}
	return t, nil
}
